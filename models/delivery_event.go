package models

import (
	"time"

	"gorm.io/gorm"
)

// DeliveryEventType classifies inbound webhook events
type DeliveryEventType string

const (
	DeliveryEventMessage  DeliveryEventType = "message"
	DeliveryEventFollow   DeliveryEventType = "follow"
	DeliveryEventUnfollow DeliveryEventType = "unfollow"
)

// DeliveryEvent records an inbound channel event scoped to a shop.
// The user id is truncated before storage; full ids stay with the channel
// provider.
type DeliveryEvent struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	ShopID      uint              `gorm:"not null;index:idx_delivery_events_shop_id" json:"shop_id"`
	EventType   DeliveryEventType `gorm:"not null" json:"event_type"`
	UserDigest  string            `json:"user_digest"`
	MessageText *string           `gorm:"type:text" json:"message_text,omitempty"`
	ReplyType   *string           `json:"reply_type,omitempty"`
	CreatedAt   time.Time         `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_delivery_events_created_at" json:"created_at"`

	// Relations
	Shop *Shop `gorm:"foreignKey:ShopID;references:ID" json:"shop,omitempty"`
}

// TableName returns the table name for the model
func (DeliveryEvent) TableName() string {
	return "delivery_events"
}

// BeforeCreate is called before creating a new record
func (e *DeliveryEvent) BeforeCreate(tx *gorm.DB) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return nil
}
