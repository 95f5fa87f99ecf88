// Package testing provides reusable fixtures for exercising flows without a live database
package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/harukisato/machidori/app/services"
	"github.com/harukisato/machidori/config"
	"github.com/harukisato/machidori/models"
	"github.com/lib/pq"
)

// NewCrypto builds a crypto service on the development key fallback so
// fixtures can carry real ciphertext without provisioning a key.
func NewCrypto() (services.CryptoService, error) {
	return services.NewCryptoService(
		&config.EncryptionConfig{},
		&config.DeploymentConfig{Environment: "test"},
	)
}

// ShopOption mutates a fixture shop before it is returned
type ShopOption func(*models.Shop)

// WithIndustry sets the shop's industry
func WithIndustry(industry string) ShopOption {
	return func(s *models.Shop) {
		s.Industry = industry
	}
}

// WithBusinessHours sets the shop's delivery window
func WithBusinessHours(hours string) ShopOption {
	return func(s *models.Shop) {
		s.Config.BusinessHours = hours
	}
}

// WithNGWords sets the shop's blocked word list
func WithNGWords(words ...string) ShopOption {
	return func(s *models.Shop) {
		s.NGWords = pq.StringArray(words)
	}
}

// WithoutChannel clears the channel credentials so the shop is unconfigured
func WithoutChannel() ShopOption {
	return func(s *models.Shop) {
		s.Line = models.LineChannel{}
	}
}

// NewShop builds a shop whose channel credentials are encrypted with the
// given crypto service. The owner subject is randomized so shops built in
// the same test never collide.
func NewShop(crypto services.CryptoService, opts ...ShopOption) (*models.Shop, error) {
	token, secret, err := crypto.EncryptPair("test-access-token", "test-channel-secret")
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt fixture credentials: %w", err)
	}

	now := time.Now().UTC()
	shop := &models.Shop{
		ID:           uint(rand.Intn(900000) + 100000),
		UUID:         uuid.New(),
		OwnerSubject: fmt.Sprintf("owner-%09d", rand.Intn(900000000)+100000000),
		Name:         "Test Shop",
		Industry:     "restaurant",
		Config: models.ShopConfig{
			BusinessHours: "09:00-18:00",
		},
		Line: models.LineChannel{
			AccessToken:   token,
			ChannelSecret: secret,
		},
		CreatedAt: now,
	}

	for _, opt := range opts {
		opt(shop)
	}

	return shop, nil
}

// NewCampaign builds a campaign owned by the given shop. A nil sendAt on a
// queued campaign means it dispatches on the next scan.
func NewCampaign(shop *models.Shop, status models.CampaignStatus, sendAt *time.Time) *models.Campaign {
	return &models.Campaign{
		ID:        uint(rand.Intn(900000) + 100000),
		UUID:      uuid.New(),
		ShopID:    shop.ID,
		Title:     "Lunch special",
		Content:   "Today only, all set menus 500 yen off.",
		Status:    status,
		SendAt:    sendAt,
		CreatedAt: time.Now().UTC(),
	}
}
