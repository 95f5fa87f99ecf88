package dto

import (
	"time"
)

// RegisterShopRequest represents the request to register a new shop
type RegisterShopRequest struct {
	OwnerSubject  string   `json:"-"`
	Name          string   `json:"name" validate:"required,max=120"`
	Industry      string   `json:"industry" validate:"required,max=60"`
	BusinessHours string   `json:"business_hours" validate:"required"`
	NGWords       []string `json:"ng_words,omitempty"`
	AccessToken   string   `json:"access_token" validate:"required"`
	ChannelSecret string   `json:"channel_secret" validate:"required"`
}

// RegisterShopResponse represents the response to register a new shop
type RegisterShopResponse struct {
	Message   string `json:"message"`
	UUID      string `json:"uuid"`
	CreatedAt string `json:"created_at"`
}

// UpdateShopConfigRequest represents the request to update shop settings
type UpdateShopConfigRequest struct {
	ShopUUID       string   `json:"-"`
	Name           *string  `json:"name,omitempty" validate:"omitempty,max=120"`
	BusinessHours  *string  `json:"business_hours,omitempty"`
	TargetAudience *string  `json:"target_audience,omitempty"`
	NGWords        []string `json:"ng_words,omitempty"`
}

// UpdateShopConfigResponse represents the response to update shop settings
type UpdateShopConfigResponse struct {
	Message string `json:"message"`
}

// RotateChannelRequest represents the request to replace channel credentials
type RotateChannelRequest struct {
	ShopUUID      string `json:"-"`
	AccessToken   string `json:"access_token" validate:"required"`
	ChannelSecret string `json:"channel_secret" validate:"required"`
}

// RotateChannelResponse represents the response to replace channel credentials
type RotateChannelResponse struct {
	Message string `json:"message"`
}

// GetShopResponse represents a shop in responses. Channel credentials are
// never included.
type GetShopResponse struct {
	UUID              string     `json:"uuid"`
	Name              string     `json:"name"`
	Industry          string     `json:"industry"`
	BusinessHours     string     `json:"business_hours"`
	TargetAudience    string     `json:"target_audience,omitempty"`
	NGWords           []string   `json:"ng_words,omitempty"`
	ChannelConfigured bool       `json:"channel_configured"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
}
