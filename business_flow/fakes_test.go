package businessflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harukisato/machidori/models"
)

// fakeShopRepo is an in-memory ShopRepository
type fakeShopRepo struct {
	mu     sync.Mutex
	nextID uint
	shops  map[uint]*models.Shop
}

func newFakeShopRepo(shops ...*models.Shop) *fakeShopRepo {
	r := &fakeShopRepo{nextID: 1, shops: make(map[uint]*models.Shop)}
	for _, s := range shops {
		r.shops[s.ID] = s
		if s.ID >= r.nextID {
			r.nextID = s.ID + 1
		}
	}
	return r
}

func (r *fakeShopRepo) ByID(ctx context.Context, id uint) (*models.Shop, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.shops[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, nil
}

func (r *fakeShopRepo) ByUUID(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.shops {
		if s.UUID == id {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeShopRepo) ByOwnerSubject(ctx context.Context, subject string) (*models.Shop, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.shops {
		if s.OwnerSubject == subject {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeShopRepo) ByFilter(ctx context.Context, filter models.ShopFilter, orderBy string, limit, offset int) ([]*models.Shop, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Shop
	for _, s := range r.shops {
		copied := *s
		out = append(out, &copied)
	}
	return out, nil
}

func (r *fakeShopRepo) Count(ctx context.Context, filter models.ShopFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.shops)), nil
}

func (r *fakeShopRepo) Save(ctx context.Context, shop *models.Shop) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if shop.ID == 0 {
		shop.ID = r.nextID
		r.nextID++
	}
	if shop.CreatedAt.IsZero() {
		shop.CreatedAt = time.Now().UTC()
	}
	copied := *shop
	r.shops[shop.ID] = &copied
	return nil
}

func (r *fakeShopRepo) Update(ctx context.Context, shop models.Shop) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shops[shop.ID] = &shop
	return nil
}

func (r *fakeShopRepo) UpdateLineChannel(ctx context.Context, id uint, line models.LineChannel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.shops[id]; ok {
		s.Line = line
	}
	return nil
}

func (r *fakeShopRepo) get(id uint) *models.Shop {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shops[id]
}

// fakeCampaignRepo is an in-memory CampaignRepository
type fakeCampaignRepo struct {
	mu        sync.Mutex
	nextID    uint
	campaigns map[uint]*models.Campaign
}

func newFakeCampaignRepo(campaigns ...*models.Campaign) *fakeCampaignRepo {
	r := &fakeCampaignRepo{nextID: 1, campaigns: make(map[uint]*models.Campaign)}
	for _, c := range campaigns {
		r.campaigns[c.ID] = c
		if c.ID >= r.nextID {
			r.nextID = c.ID + 1
		}
	}
	return r
}

func (r *fakeCampaignRepo) ByID(ctx context.Context, id uint) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.campaigns[id]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, nil
}

func (r *fakeCampaignRepo) ByUUID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.campaigns {
		if c.UUID == id {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeCampaignRepo) ByShopID(ctx context.Context, shopID uint, limit, offset int) ([]*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*models.Campaign
	for _, c := range r.campaigns {
		if c.ShopID == shopID {
			copied := *c
			all = append(all, &copied)
		}
	}
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *fakeCampaignRepo) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Campaign
	for _, c := range r.campaigns {
		if filter.ShopID != nil && c.ShopID != *filter.ShopID {
			continue
		}
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		copied := *c
		out = append(out, &copied)
	}
	return out, nil
}

func (r *fakeCampaignRepo) Count(ctx context.Context, filter models.CampaignFilter) (int64, error) {
	all, _ := r.ByFilter(context.Background(), filter, "", 0, 0)
	return int64(len(all)), nil
}

func (r *fakeCampaignRepo) ListQueuedByShop(ctx context.Context, shopID uint) ([]*models.Campaign, error) {
	status := models.CampaignStatusQueued
	return r.ByFilter(ctx, models.CampaignFilter{ShopID: &shopID, Status: &status}, "", 0, 0)
}

func (r *fakeCampaignRepo) Save(ctx context.Context, campaign *models.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if campaign.ID == 0 {
		campaign.ID = r.nextID
		r.nextID++
	}
	if campaign.CreatedAt.IsZero() {
		campaign.CreatedAt = time.Now().UTC()
	}
	copied := *campaign
	r.campaigns[campaign.ID] = &copied
	return nil
}

func (r *fakeCampaignRepo) Update(ctx context.Context, campaign models.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.campaigns[campaign.ID] = &campaign
	return nil
}

func (r *fakeCampaignRepo) MarkSending(ctx context.Context, id uint, attemptAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || c.Status != models.CampaignStatusQueued {
		return false, nil
	}
	c.Status = models.CampaignStatusSending
	c.LastAttemptAt = &attemptAt
	return true, nil
}

func (r *fakeCampaignRepo) Finish(ctx context.Context, id uint, status models.CampaignStatus, result models.CampaignResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.campaigns[id]; ok && c.Status == models.CampaignStatusSending {
		c.Status = status
		c.Result = &result
	}
	return nil
}

func (r *fakeCampaignRepo) get(id uint) *models.Campaign {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.campaigns[id]
}

// fakeEventRepo is an in-memory DeliveryEventRepository
type fakeEventRepo struct {
	mu     sync.Mutex
	events []*models.DeliveryEvent
}

func (r *fakeEventRepo) Save(ctx context.Context, event *models.DeliveryEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *fakeEventRepo) ByShopID(ctx context.Context, shopID uint, limit, offset int) ([]*models.DeliveryEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.DeliveryEvent
	for _, e := range r.events {
		if e.ShopID == shopID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeEventRepo) CountByShopID(ctx context.Context, shopID uint) (int64, error) {
	all, _ := r.ByShopID(ctx, shopID, 0, 0)
	return int64(len(all)), nil
}
