package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harukisato/machidori/utils"
	"gorm.io/gorm"
)

// CampaignStatus represents the delivery state of a campaign
type CampaignStatus string

const (
	CampaignStatusDraft   CampaignStatus = "draft"
	CampaignStatusQueued  CampaignStatus = "queued"
	CampaignStatusSending CampaignStatus = "sending"
	CampaignStatusSent    CampaignStatus = "sent"
	CampaignStatusFailed  CampaignStatus = "failed"
)

// String returns the string representation of the status
func (s CampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusQueued, CampaignStatusSending,
		CampaignStatusSent, CampaignStatusFailed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for CampaignStatus
func (s *CampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CampaignStatus(v)
	case []byte:
		*s = CampaignStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CampaignStatus
func (s CampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CampaignStatus: %s", s)
	}
	return string(s), nil
}

// CampaignResult records the outcome of the single delivery attempt
type CampaignResult struct {
	LineMessageID string `json:"line_message_id,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Value implements the driver.Valuer interface for CampaignResult
func (r CampaignResult) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan implements the sql.Scanner interface for CampaignResult
func (r *CampaignResult) Scan(value any) error {
	if value == nil {
		*r = CampaignResult{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into CampaignResult", value)
	}

	return json.Unmarshal(bytes, r)
}

// Campaign represents one outbound broadcast in the database.
// A nil SendAt on a queued campaign means "send immediately".
type Campaign struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	UUID          uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uk_campaigns_uuid" json:"uuid"`
	ShopID        uint            `gorm:"not null;index:idx_campaigns_shop_id" json:"shop_id"`
	Title         string          `gorm:"not null" json:"title"`
	Content       string          `gorm:"type:text;not null" json:"content"`
	Status        CampaignStatus  `gorm:"type:campaign_status;not null;default:'draft';index:idx_campaigns_status" json:"status"`
	SendAt        *time.Time      `gorm:"index:idx_campaigns_send_at" json:"send_at,omitempty"`
	LastAttemptAt *time.Time      `json:"last_attempt_at,omitempty"`
	Result        *CampaignResult `gorm:"type:jsonb" json:"result,omitempty"`
	CreatedAt     time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_campaigns_created_at" json:"created_at"`
	UpdatedAt     *time.Time      `json:"updated_at,omitempty"`

	// Relations
	Shop *Shop `gorm:"foreignKey:ShopID;references:ID" json:"shop,omitempty"`
}

// TableName returns the table name for the model
func (Campaign) TableName() string {
	return "campaigns"
}

// BeforeCreate is called before creating a new record
func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CampaignStatusDraft
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (c *Campaign) BeforeUpdate(tx *gorm.DB) error {
	c.UpdatedAt = utils.ToPtr(time.Now().UTC())
	return nil
}

// CanTransitionTo checks if the campaign can transition to the given status.
// sent and failed are terminal: resending requires a new campaign.
func (c *Campaign) CanTransitionTo(newStatus CampaignStatus) bool {
	switch c.Status {
	case CampaignStatusDraft:
		return newStatus == CampaignStatusQueued
	case CampaignStatusQueued:
		return newStatus == CampaignStatusSending
	case CampaignStatusSending:
		return newStatus == CampaignStatusSent || newStatus == CampaignStatusFailed
	default:
		return false
	}
}

// IsEditable checks if the campaign can still be modified by its shop
func (c *Campaign) IsEditable() bool {
	return c.Status == CampaignStatusDraft
}

// CampaignFilter represents filter criteria for campaigns
type CampaignFilter struct {
	ID            *uint           `json:"id,omitempty"`
	UUID          *uuid.UUID      `json:"uuid,omitempty"`
	ShopID        *uint           `json:"shop_id,omitempty"`
	Status        *CampaignStatus `json:"status,omitempty"`
	SendBefore    *time.Time      `json:"send_before,omitempty"`
	SendAfter     *time.Time      `json:"send_after,omitempty"`
	CreatedAfter  *time.Time      `json:"created_after,omitempty"`
	CreatedBefore *time.Time      `json:"created_before,omitempty"`
}
