package dto

import (
	"time"
)

// CreateCampaignRequest represents the request to create a new campaign
type CreateCampaignRequest struct {
	ShopUUID string `json:"-"`
	Title    string `json:"title" validate:"required,max=120"`
	Content  string `json:"content" validate:"required,max=5000"`
}

// CreateCampaignResponse represents the response to create a new campaign
type CreateCampaignResponse struct {
	Message   string `json:"message"`
	UUID      string `json:"uuid"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// ScheduleCampaignRequest represents the request to queue a draft campaign.
// Either Timing ("now", "in1hour", "tomorrow9am") or SendAt must be set.
type ScheduleCampaignRequest struct {
	UUID     string     `json:"-"`
	ShopUUID string     `json:"-"`
	Timing   *string    `json:"timing,omitempty" validate:"omitempty,oneof=now in1hour tomorrow9am"`
	SendAt   *time.Time `json:"send_at,omitempty"`
}

// ScheduleCampaignResponse represents the response to schedule a campaign
type ScheduleCampaignResponse struct {
	Message string     `json:"message"`
	UUID    string     `json:"uuid"`
	Status  string     `json:"status"`
	SendAt  *time.Time `json:"send_at,omitempty"`
}

// GetCampaignResponse represents a campaign in responses
type GetCampaignResponse struct {
	UUID          string     `json:"uuid"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	Status        string     `json:"status"`
	SendAt        *time.Time `json:"send_at,omitempty"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	LineMessageID *string    `json:"line_message_id,omitempty"`
	Error         *string    `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// ListCampaignsRequest represents the request to list campaigns
type ListCampaignsRequest struct {
	ShopUUID string `json:"-"`
	Page     int    `json:"page" validate:"omitempty,min=1"`
	PageSize int    `json:"page_size" validate:"omitempty,min=1,max=100"`
}

// ListCampaignsResponse represents the paginated campaign listing
type ListCampaignsResponse struct {
	Items    []GetCampaignResponse `json:"items"`
	Total    int64                 `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
}
