package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/harukisato/machidori/models"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

// TxContextKey is the context key for database transactions
const TxContextKey contextKey = "tx"

// ShopRepository defines data access for shops
type ShopRepository interface {
	ByID(ctx context.Context, id uint) (*models.Shop, error)
	ByUUID(ctx context.Context, uuid uuid.UUID) (*models.Shop, error)
	ByOwnerSubject(ctx context.Context, subject string) (*models.Shop, error)
	ByFilter(ctx context.Context, filter models.ShopFilter, orderBy string, limit, offset int) ([]*models.Shop, error)
	Count(ctx context.Context, filter models.ShopFilter) (int64, error)
	Save(ctx context.Context, shop *models.Shop) error
	Update(ctx context.Context, shop models.Shop) error
	UpdateLineChannel(ctx context.Context, id uint, line models.LineChannel) error
}

// CampaignRepository defines data access for campaigns
type CampaignRepository interface {
	ByID(ctx context.Context, id uint) (*models.Campaign, error)
	ByUUID(ctx context.Context, uuid uuid.UUID) (*models.Campaign, error)
	ByShopID(ctx context.Context, shopID uint, limit, offset int) ([]*models.Campaign, error)
	ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error)
	Count(ctx context.Context, filter models.CampaignFilter) (int64, error)
	ListQueuedByShop(ctx context.Context, shopID uint) ([]*models.Campaign, error)
	Save(ctx context.Context, campaign *models.Campaign) error
	Update(ctx context.Context, campaign models.Campaign) error
	MarkSending(ctx context.Context, id uint, attemptAt time.Time) (bool, error)
	Finish(ctx context.Context, id uint, status models.CampaignStatus, result models.CampaignResult) error
}

// DeliveryEventRepository defines data access for inbound delivery events
type DeliveryEventRepository interface {
	Save(ctx context.Context, event *models.DeliveryEvent) error
	ByShopID(ctx context.Context, shopID uint, limit, offset int) ([]*models.DeliveryEvent, error)
	CountByShopID(ctx context.Context, shopID uint) (int64, error)
}
