package repository

import (
	"context"
	"fmt"

	"github.com/harukisato/machidori/models"
	"gorm.io/gorm"
)

// DeliveryEventRepositoryImpl implements the DeliveryEventRepository interface
type DeliveryEventRepositoryImpl struct {
	*BaseRepository[models.DeliveryEvent, struct{}]
}

// NewDeliveryEventRepository creates a new delivery event repository
func NewDeliveryEventRepository(db *gorm.DB) DeliveryEventRepository {
	return &DeliveryEventRepositoryImpl{
		BaseRepository: NewBaseRepository[models.DeliveryEvent, struct{}](db),
	}
}

// ByShopID retrieves delivery events for a shop with pagination
func (r *DeliveryEventRepositoryImpl) ByShopID(ctx context.Context, shopID uint, limit, offset int) ([]*models.DeliveryEvent, error) {
	db := r.getDB(ctx)

	var events []*models.DeliveryEvent
	query := db.Where("shop_id = ?", shopID).Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find delivery events by shop: %w", err)
	}

	return events, nil
}

// CountByShopID counts delivery events for a shop
func (r *DeliveryEventRepositoryImpl) CountByShopID(ctx context.Context, shopID uint) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	err := db.Model(&models.DeliveryEvent{}).Where("shop_id = ?", shopID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count delivery events: %w", err)
	}

	return count, nil
}
