// Package models contains the database models for the application
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harukisato/machidori/utils"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ShopConfig represents the per-shop delivery configuration
type ShopConfig struct {
	// BusinessHours is a "HH:MM-HH:MM" range; overnight ranges are allowed
	BusinessHours  string `json:"business_hours"`
	TargetAudience string `json:"target_audience,omitempty"`
}

// Value implements the driver.Valuer interface for ShopConfig
func (c ShopConfig) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements the sql.Scanner interface for ShopConfig
func (c *ShopConfig) Scan(value any) error {
	if value == nil {
		*c = ShopConfig{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into ShopConfig", value)
	}

	return json.Unmarshal(bytes, c)
}

// LineChannel holds the shop's messaging channel credentials. Both values
// are encrypted by the crypto service before they ever reach this struct;
// plaintext credentials are never stored.
type LineChannel struct {
	AccessToken   string `json:"access_token"`
	ChannelSecret string `json:"channel_secret"`
}

// Value implements the driver.Valuer interface for LineChannel
func (l LineChannel) Value() (driver.Value, error) {
	return json.Marshal(l)
}

// Scan implements the sql.Scanner interface for LineChannel
func (l *LineChannel) Scan(value any) error {
	if value == nil {
		*l = LineChannel{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into LineChannel", value)
	}

	return json.Unmarshal(bytes, l)
}

// Configured reports whether both channel secrets are present.
func (l LineChannel) Configured() bool {
	return l.AccessToken != "" && l.ChannelSecret != ""
}

// Shop represents a tenant in the database
type Shop struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	UUID         uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_shops_uuid" json:"uuid"`
	OwnerSubject string         `gorm:"not null;index:idx_shops_owner_subject" json:"owner_subject"`
	Name         string         `gorm:"not null" json:"name"`
	Industry     string         `gorm:"not null" json:"industry"`
	Config       ShopConfig     `gorm:"type:jsonb;not null" json:"config"`
	NGWords      pq.StringArray `gorm:"type:text[]" json:"ng_words"`
	Line         LineChannel    `gorm:"type:jsonb;not null" json:"-"`
	CreatedAt    time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_shops_created_at" json:"created_at"`
	UpdatedAt    *time.Time     `json:"updated_at,omitempty"`

	// Relations
	Campaigns []Campaign `gorm:"foreignKey:ShopID" json:"campaigns,omitempty"`
}

// TableName returns the table name for the model
func (Shop) TableName() string {
	return "shops"
}

// BeforeCreate is called before creating a new record
func (s *Shop) BeforeCreate(tx *gorm.DB) error {
	if s.UUID == uuid.Nil {
		s.UUID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (s *Shop) BeforeUpdate(tx *gorm.DB) error {
	s.UpdatedAt = utils.ToPtr(time.Now().UTC())
	return nil
}

// ContainsNGWord reports the first forbidden word found in the given text.
func (s *Shop) ContainsNGWord(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, w := range s.NGWords {
		if w == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(w)) {
			return w, true
		}
	}
	return "", false
}

// ShopFilter represents filter criteria for shops
type ShopFilter struct {
	ID            *uint      `json:"id,omitempty"`
	UUID          *uuid.UUID `json:"uuid,omitempty"`
	OwnerSubject  *string    `json:"owner_subject,omitempty"`
	Industry      *string    `json:"industry,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
}
