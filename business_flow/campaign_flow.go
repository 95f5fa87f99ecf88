package businessflow

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harukisato/machidori/app/dto"
	"github.com/harukisato/machidori/models"
	"github.com/harukisato/machidori/repository"
	"github.com/harukisato/machidori/utils"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// CampaignFlow handles the campaign business logic
type CampaignFlow interface {
	CreateCampaign(ctx context.Context, ownerSubject string, req *dto.CreateCampaignRequest) (*dto.CreateCampaignResponse, error)
	ScheduleCampaign(ctx context.Context, ownerSubject string, req *dto.ScheduleCampaignRequest) (*dto.ScheduleCampaignResponse, error)
	ListCampaigns(ctx context.Context, ownerSubject string, req *dto.ListCampaignsRequest) (*dto.ListCampaignsResponse, error)
	ExportCampaigns(ctx context.Context, ownerSubject string) ([]byte, error)
}

// CampaignFlowImpl implements the campaign business flow
type CampaignFlowImpl struct {
	campaignRepo repository.CampaignRepository
	shopRepo     repository.ShopRepository
	clock        *utils.Clock
	db           *gorm.DB
}

// NewCampaignFlow creates a new campaign flow instance
func NewCampaignFlow(
	campaignRepo repository.CampaignRepository,
	shopRepo repository.ShopRepository,
	clock *utils.Clock,
	db *gorm.DB,
) CampaignFlow {
	return &CampaignFlowImpl{
		campaignRepo: campaignRepo,
		shopRepo:     shopRepo,
		clock:        clock,
		db:           db,
	}
}

// CreateCampaign creates a draft campaign. Content is screened against the
// shop's forbidden words before anything is persisted.
func (s *CampaignFlowImpl) CreateCampaign(ctx context.Context, ownerSubject string, req *dto.CreateCampaignRequest) (*dto.CreateCampaignResponse, error) {
	if req.Title == "" {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign validation failed", ErrCampaignTitleRequired)
	}
	if req.Content == "" {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign validation failed", ErrCampaignContentRequired)
	}

	shop, err := s.ownedShop(ctx, ownerSubject)
	if err != nil {
		return nil, err
	}

	if word, found := shop.ContainsNGWord(req.Content); found {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED",
			fmt.Sprintf("Content contains forbidden word %q", word), ErrCampaignContainsNGWord)
	}

	campaign := &models.Campaign{
		UUID:    uuid.New(),
		ShopID:  shop.ID,
		Title:   req.Title,
		Content: req.Content,
		Status:  models.CampaignStatusDraft,
	}

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		return s.campaignRepo.Save(txCtx, campaign)
	})
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_CREATION_FAILED", "Campaign creation failed", err)
	}

	return &dto.CreateCampaignResponse{
		Message:   "Campaign created successfully",
		UUID:      campaign.UUID.String(),
		Status:    campaign.Status.String(),
		CreatedAt: campaign.CreatedAt.Format(time.RFC3339),
	}, nil
}

// ScheduleCampaign moves a draft campaign into the queue. The send time
// comes either from a timing choice or an explicit instant; times outside
// the shop's business hours are shifted to the next day's opening. A nil
// send time means the scanner picks the campaign up on its next pass.
func (s *CampaignFlowImpl) ScheduleCampaign(ctx context.Context, ownerSubject string, req *dto.ScheduleCampaignRequest) (*dto.ScheduleCampaignResponse, error) {
	shop, err := s.ownedShop(ctx, ownerSubject)
	if err != nil {
		return nil, err
	}

	campaign, err := s.ownedCampaign(ctx, shop, req.UUID)
	if err != nil {
		return nil, err
	}

	if !campaign.IsEditable() {
		return nil, NewBusinessError("CAMPAIGN_NOT_DRAFT", "Campaign is not schedulable", ErrCampaignNotDraft)
	}

	sendAt, err := s.resolveSendTime(req, s.clock.Now())
	if err != nil {
		return nil, err
	}

	if sendAt != nil {
		adjusted := s.clock.RecommendedSendTime(shop.Config.BusinessHours, *sendAt)
		sendAt = &adjusted
	}

	campaign.Status = models.CampaignStatusQueued
	campaign.SendAt = sendAt

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		return s.campaignRepo.Update(txCtx, *campaign)
	})
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_SCHEDULE_FAILED", "Campaign scheduling failed", err)
	}

	return &dto.ScheduleCampaignResponse{
		Message: "Campaign queued for delivery",
		UUID:    campaign.UUID.String(),
		Status:  campaign.Status.String(),
		SendAt:  campaign.SendAt,
	}, nil
}

// ListCampaigns returns the shop's campaigns, newest first
func (s *CampaignFlowImpl) ListCampaigns(ctx context.Context, ownerSubject string, req *dto.ListCampaignsRequest) (*dto.ListCampaignsResponse, error) {
	page, pageSize, err := normalizePage(req.Page, req.PageSize)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign listing failed", err)
	}

	shop, err := s.ownedShop(ctx, ownerSubject)
	if err != nil {
		return nil, err
	}

	campaigns, err := s.campaignRepo.ByShopID(ctx, shop.ID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LISTING_FAILED", "Campaign listing failed", err)
	}

	total, err := s.campaignRepo.Count(ctx, models.CampaignFilter{ShopID: &shop.ID})
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LISTING_FAILED", "Campaign listing failed", err)
	}

	items := make([]dto.GetCampaignResponse, 0, len(campaigns))
	for _, c := range campaigns {
		items = append(items, toCampaignResponse(c))
	}

	return &dto.ListCampaignsResponse{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// ExportCampaigns renders the shop's full campaign history as a workbook
func (s *CampaignFlowImpl) ExportCampaigns(ctx context.Context, ownerSubject string) ([]byte, error) {
	shop, err := s.ownedShop(ctx, ownerSubject)
	if err != nil {
		return nil, err
	}

	campaigns, err := s.campaignRepo.ByShopID(ctx, shop.ID, 0, 0)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_EXPORT_FAILED", "Campaign export failed", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Campaigns"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, NewBusinessError("CAMPAIGN_EXPORT_FAILED", "Campaign export failed", err)
	}

	headers := []string{"UUID", "Title", "Status", "Send At", "Last Attempt", "Result", "Created At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, NewBusinessError("CAMPAIGN_EXPORT_FAILED", "Campaign export failed", err)
		}
	}

	for row, c := range campaigns {
		values := []any{
			c.UUID.String(),
			c.Title,
			c.Status.String(),
			formatOptionalTime(c.SendAt),
			formatOptionalTime(c.LastAttemptAt),
			formatResult(c.Result),
			c.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, NewBusinessError("CAMPAIGN_EXPORT_FAILED", "Campaign export failed", err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, NewBusinessError("CAMPAIGN_EXPORT_FAILED", "Campaign export failed", err)
	}

	return buf.Bytes(), nil
}

func (s *CampaignFlowImpl) resolveSendTime(req *dto.ScheduleCampaignRequest, now time.Time) (*time.Time, error) {
	if req.Timing == nil && req.SendAt == nil {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign scheduling failed", ErrScheduleTimeNotPresent)
	}

	if req.Timing != nil {
		sendAt, err := s.clock.CalculateSendTime(*req.Timing, now)
		if err != nil {
			return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign scheduling failed", ErrScheduleTimingUnknown)
		}
		return sendAt, nil
	}

	if req.SendAt.Before(now) {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign scheduling failed", ErrScheduleTimeInPast)
	}
	sendAt := s.clock.In(*req.SendAt)
	return &sendAt, nil
}

func (s *CampaignFlowImpl) ownedShop(ctx context.Context, ownerSubject string) (*models.Shop, error) {
	shop, err := s.shopRepo.ByOwnerSubject(ctx, ownerSubject)
	if err != nil {
		return nil, NewBusinessError("SHOP_LOOKUP_FAILED", "Failed to lookup shop", err)
	}
	if shop == nil {
		return nil, NewBusinessError("SHOP_NOT_FOUND", "Shop not found", ErrShopNotFound)
	}
	return shop, nil
}

func (s *CampaignFlowImpl) ownedCampaign(ctx context.Context, shop *models.Shop, raw string) (*models.Campaign, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Invalid campaign identifier", err)
	}

	campaign, err := s.campaignRepo.ByUUID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}
	if campaign.ShopID != shop.ID {
		return nil, NewBusinessError("CAMPAIGN_ACCESS_DENIED", "Campaign access denied", ErrCampaignAccessDenied)
	}

	return campaign, nil
}

func toCampaignResponse(c *models.Campaign) dto.GetCampaignResponse {
	resp := dto.GetCampaignResponse{
		UUID:          c.UUID.String(),
		Title:         c.Title,
		Content:       c.Content,
		Status:        c.Status.String(),
		SendAt:        c.SendAt,
		LastAttemptAt: c.LastAttemptAt,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
	if c.Result != nil {
		if c.Result.LineMessageID != "" {
			resp.LineMessageID = &c.Result.LineMessageID
		}
		if c.Result.Error != "" {
			resp.Error = &c.Result.Error
		}
	}
	return resp
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatResult(r *models.CampaignResult) string {
	if r == nil {
		return ""
	}
	if r.Error != "" {
		return "error: " + r.Error
	}
	return r.LineMessageID
}
