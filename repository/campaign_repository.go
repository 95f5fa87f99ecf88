package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harukisato/machidori/models"
	"gorm.io/gorm"
)

// CampaignRepositoryImpl implements the CampaignRepository interface
type CampaignRepositoryImpl struct {
	*BaseRepository[models.Campaign, models.CampaignFilter]
}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &CampaignRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Campaign, models.CampaignFilter](db),
	}
}

// ByUUID retrieves a campaign by UUID
func (r *CampaignRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	filter := models.CampaignFilter{UUID: &id}
	campaigns, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to find campaign by UUID: %w", err)
	}

	if len(campaigns) == 0 {
		return nil, nil
	}

	return campaigns[0], nil
}

// ByShopID retrieves campaigns for a shop with pagination
func (r *CampaignRepositoryImpl) ByShopID(ctx context.Context, shopID uint, limit, offset int) ([]*models.Campaign, error) {
	filter := models.CampaignFilter{ShopID: &shopID}
	return r.ByFilter(ctx, filter, "created_at DESC", limit, offset)
}

// ListQueuedByShop retrieves every queued campaign for a shop, oldest first.
// The due check happens in the scheduler against a single captured clock
// reading, so no send_at bound is applied here.
func (r *CampaignRepositoryImpl) ListQueuedByShop(ctx context.Context, shopID uint) ([]*models.Campaign, error) {
	status := models.CampaignStatusQueued
	filter := models.CampaignFilter{ShopID: &shopID, Status: &status}
	return r.ByFilter(ctx, filter, "created_at ASC", 0, 0)
}

// ByFilter retrieves campaigns based on filter criteria
func (r *CampaignRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	db := r.getDB(ctx)

	var campaigns []*models.Campaign
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

	err := query.Find(&campaigns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find campaigns by filter: %w", err)
	}

	return campaigns, nil
}

// Count returns the number of campaigns matching the filter
func (r *CampaignRepositoryImpl) Count(ctx context.Context, filter models.CampaignFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := r.applyFilter(db.Model(&models.Campaign{}), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count campaigns: %w", err)
	}

	return count, nil
}

// Update updates a campaign
func (r *CampaignRepositoryImpl) Update(ctx context.Context, campaign models.Campaign) error {
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
	campaign.UpdatedAt = &now

	err = db.Save(&campaign).Error
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}

	return nil
}

// MarkSending claims a queued campaign for delivery. The status predicate in
// the WHERE clause makes the claim atomic: if another scanner pass already
// moved the row out of queued, zero rows match and claimed is false.
func (r *CampaignRepositoryImpl) MarkSending(ctx context.Context, id uint, attemptAt time.Time) (bool, error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return false, err
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

	res := db.Model(&models.Campaign{}).
		Where("id = ? AND status = ?", id, models.CampaignStatusQueued).
		Updates(map[string]interface{}{
			"status":          models.CampaignStatusSending,
			"last_attempt_at": attemptAt,
			"updated_at":      attemptAt,
		})

	if res.Error != nil {
		err = fmt.Errorf("failed to mark campaign sending: %w", res.Error)
		return false, err
	}

	return res.RowsAffected == 1, nil
}

// Finish records the terminal status and result of a delivery attempt
func (r *CampaignRepositoryImpl) Finish(ctx context.Context, id uint, status models.CampaignStatus, result models.CampaignResult) error {
	if status != models.CampaignStatusSent && status != models.CampaignStatusFailed {
		return fmt.Errorf("finish requires a terminal status, got %s", status)
	}

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
	err = db.Model(&models.Campaign{}).
		Where("id = ? AND status = ?", id, models.CampaignStatusSending).
		Updates(map[string]interface{}{
			"status":     status,
			"result":     result,
			"updated_at": now,
		}).Error

	if err != nil {
		return fmt.Errorf("failed to finish campaign: %w", err)
	}

	return nil
}

// applyFilter applies filter conditions to the GORM query
func (r *CampaignRepositoryImpl) applyFilter(db *gorm.DB, filter models.CampaignFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.ShopID != nil {
		db = db.Where("shop_id = ?", *filter.ShopID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.SendBefore != nil {
		db = db.Where("send_at <= ?", *filter.SendBefore)
	}
	if filter.SendAfter != nil {
		db = db.Where("send_at >= ?", *filter.SendAfter)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}

	return db
}
