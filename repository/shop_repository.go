package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harukisato/machidori/models"
	"gorm.io/gorm"
)

// ShopRepositoryImpl implements the ShopRepository interface
type ShopRepositoryImpl struct {
	*BaseRepository[models.Shop, models.ShopFilter]
}

// NewShopRepository creates a new shop repository
func NewShopRepository(db *gorm.DB) ShopRepository {
	return &ShopRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Shop, models.ShopFilter](db),
	}
}

// ByUUID retrieves a shop by UUID
func (r *ShopRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	filter := models.ShopFilter{UUID: &id}
	shops, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to find shop by UUID: %w", err)
	}

	if len(shops) == 0 {
		return nil, nil
	}

	return shops[0], nil
}

// ByOwnerSubject retrieves the shop owned by the given subject
func (r *ShopRepositoryImpl) ByOwnerSubject(ctx context.Context, subject string) (*models.Shop, error) {
	db := r.getDB(ctx)

	var shop models.Shop
	err := db.Where("owner_subject = ?", subject).Last(&shop).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find shop by owner subject: %w", err)
	}

	return &shop, nil
}

// ByFilter retrieves shops based on filter criteria
func (r *ShopRepositoryImpl) ByFilter(ctx context.Context, filter models.ShopFilter, orderBy string, limit, offset int) ([]*models.Shop, error) {
	db := r.getDB(ctx)

	var shops []*models.Shop
	query := r.applyFilter(db, filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&shops).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find shops by filter: %w", err)
	}

	return shops, nil
}

// Count returns the number of shops matching the filter
func (r *ShopRepositoryImpl) Count(ctx context.Context, filter models.ShopFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := r.applyFilter(db.Model(&models.Shop{}), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count shops: %w", err)
	}

	return count, nil
}

// Update updates a shop
func (r *ShopRepositoryImpl) Update(ctx context.Context, shop models.Shop) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	now := time.Now().UTC()
	shop.UpdatedAt = &now

	err = db.Save(&shop).Error
	if err != nil {
		return fmt.Errorf("failed to update shop: %w", err)
	}

	return nil
}

// UpdateLineChannel replaces only the shop's encrypted channel credentials
func (r *ShopRepositoryImpl) UpdateLineChannel(ctx context.Context, id uint, line models.LineChannel) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	now := time.Now().UTC()
	err = db.Model(&models.Shop{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"line":       line,
			"updated_at": now,
		}).Error

	if err != nil {
		return fmt.Errorf("failed to update shop channel: %w", err)
	}

	return nil
}

// applyFilter applies filter conditions to the GORM query
func (r *ShopRepositoryImpl) applyFilter(db *gorm.DB, filter models.ShopFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.OwnerSubject != nil {
		db = db.Where("owner_subject = ?", *filter.OwnerSubject)
	}
	if filter.Industry != nil {
		db = db.Where("industry = ?", *filter.Industry)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}

	return db
}
