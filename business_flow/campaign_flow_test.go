package businessflow

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/harukisato/machidori/app/dto"
	"github.com/harukisato/machidori/models"
	fixtures "github.com/harukisato/machidori/testing"
	"github.com/harukisato/machidori/utils"
)

func newCampaignFlow(t *testing.T, shop *models.Shop, campaigns ...*models.Campaign) (CampaignFlow, *fakeCampaignRepo) {
	t.Helper()

	clock, err := utils.NewClock("UTC")
	require.NoError(t, err)

	campaignRepo := newFakeCampaignRepo(campaigns...)
	shopRepo := newFakeShopRepo(shop)
	return NewCampaignFlow(campaignRepo, shopRepo, clock, nil), campaignRepo
}

func testShop(t *testing.T, opts ...fixtures.ShopOption) *models.Shop {
	t.Helper()

	crypto, err := fixtures.NewCrypto()
	require.NoError(t, err)

	shop, err := fixtures.NewShop(crypto, opts...)
	require.NoError(t, err)
	return shop
}

func TestCreateCampaignStartsAsDraft(t *testing.T) {
	shop := testShop(t)
	flow, repo := newCampaignFlow(t, shop)

	resp, err := flow.CreateCampaign(context.Background(), shop.OwnerSubject, &dto.CreateCampaignRequest{
		Title:   "Lunch special",
		Content: "Today only, all set menus 500 yen off.",
	})
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusDraft.String(), resp.Status)

	campaigns, err := repo.ByShopID(context.Background(), shop.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, campaigns, 1)
	assert.Equal(t, models.CampaignStatusDraft, campaigns[0].Status)
	assert.Nil(t, campaigns[0].SendAt)
}

func TestCreateCampaignRejectsMissingFields(t *testing.T) {
	shop := testShop(t)
	flow, _ := newCampaignFlow(t, shop)

	_, err := flow.CreateCampaign(context.Background(), shop.OwnerSubject, &dto.CreateCampaignRequest{Content: "body"})
	assert.ErrorIs(t, err, ErrCampaignTitleRequired)

	_, err = flow.CreateCampaign(context.Background(), shop.OwnerSubject, &dto.CreateCampaignRequest{Title: "title"})
	assert.ErrorIs(t, err, ErrCampaignContentRequired)
}

func TestCreateCampaignRejectsNGWords(t *testing.T) {
	shop := testShop(t, fixtures.WithNGWords("無料"))
	flow, _ := newCampaignFlow(t, shop)

	_, err := flow.CreateCampaign(context.Background(), shop.OwnerSubject, &dto.CreateCampaignRequest{
		Title:   "Giveaway",
		Content: "今なら無料でプレゼント！",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCampaignContainsNGWord)
}

func TestCreateCampaignUnknownOwner(t *testing.T) {
	shop := testShop(t)
	flow, _ := newCampaignFlow(t, shop)

	_, err := flow.CreateCampaign(context.Background(), "nobody", &dto.CreateCampaignRequest{
		Title:   "Lunch special",
		Content: "body",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrShopNotFound)
}

func TestScheduleCampaignImmediateLeavesSendTimeEmpty(t *testing.T) {
	shop := testShop(t)
	draft := fixtures.NewCampaign(shop, models.CampaignStatusDraft, nil)
	flow, repo := newCampaignFlow(t, shop, draft)

	timing := utils.SendTimingNow
	resp, err := flow.ScheduleCampaign(context.Background(), shop.OwnerSubject, &dto.ScheduleCampaignRequest{
		UUID:   draft.UUID.String(),
		Timing: &timing,
	})
	require.NoError(t, err)

	assert.Equal(t, models.CampaignStatusQueued.String(), resp.Status)
	assert.Nil(t, resp.SendAt)

	stored := repo.get(draft.ID)
	require.NotNil(t, stored)
	assert.Equal(t, models.CampaignStatusQueued, stored.Status)
	assert.Nil(t, stored.SendAt)
}

func TestScheduleCampaignRequiresATime(t *testing.T) {
	shop := testShop(t)
	draft := fixtures.NewCampaign(shop, models.CampaignStatusDraft, nil)
	flow, _ := newCampaignFlow(t, shop, draft)

	_, err := flow.ScheduleCampaign(context.Background(), shop.OwnerSubject, &dto.ScheduleCampaignRequest{
		UUID: draft.UUID.String(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrScheduleTimeNotPresent)
}

func TestScheduleCampaignRejectsNonDraft(t *testing.T) {
	shop := testShop(t)
	queued := fixtures.NewCampaign(shop, models.CampaignStatusQueued, nil)
	flow, _ := newCampaignFlow(t, shop, queued)

	timing := utils.SendTimingNow
	_, err := flow.ScheduleCampaign(context.Background(), shop.OwnerSubject, &dto.ScheduleCampaignRequest{
		UUID:   queued.UUID.String(),
		Timing: &timing,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCampaignNotDraft)
}

func TestScheduleCampaignRejectsPastSendTime(t *testing.T) {
	shop := testShop(t)
	draft := fixtures.NewCampaign(shop, models.CampaignStatusDraft, nil)
	flow, _ := newCampaignFlow(t, shop, draft)

	past := time.Now().UTC().Add(-time.Hour)
	_, err := flow.ScheduleCampaign(context.Background(), shop.OwnerSubject, &dto.ScheduleCampaignRequest{
		UUID:   draft.UUID.String(),
		SendAt: &past,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrScheduleTimeInPast)
}

func TestScheduleCampaignShiftsOutsideBusinessHours(t *testing.T) {
	shop := testShop(t, fixtures.WithBusinessHours("10:00-18:00"))
	draft := fixtures.NewCampaign(shop, models.CampaignStatusDraft, nil)
	flow, _ := newCampaignFlow(t, shop, draft)

	// 9am is before opening, so the send shifts to the next day's 10:00
	timing := utils.SendTimingTomorrow9
	resp, err := flow.ScheduleCampaign(context.Background(), shop.OwnerSubject, &dto.ScheduleCampaignRequest{
		UUID:   draft.UUID.String(),
		Timing: &timing,
	})
	require.NoError(t, err)

	require.NotNil(t, resp.SendAt)
	assert.Equal(t, 10, resp.SendAt.Hour())
	assert.Equal(t, 0, resp.SendAt.Minute())
}

func TestScheduleCampaignDeniedForForeignShop(t *testing.T) {
	shop := testShop(t)
	other := testShop(t)
	foreign := fixtures.NewCampaign(other, models.CampaignStatusDraft, nil)
	flow, _ := newCampaignFlow(t, shop, foreign)

	timing := utils.SendTimingNow
	_, err := flow.ScheduleCampaign(context.Background(), shop.OwnerSubject, &dto.ScheduleCampaignRequest{
		UUID:   foreign.UUID.String(),
		Timing: &timing,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCampaignAccessDenied)
}

func TestListCampaignsPaginates(t *testing.T) {
	shop := testShop(t)
	c1 := fixtures.NewCampaign(shop, models.CampaignStatusDraft, nil)
	c2 := fixtures.NewCampaign(shop, models.CampaignStatusQueued, nil)
	c3 := fixtures.NewCampaign(shop, models.CampaignStatusSent, nil)
	flow, _ := newCampaignFlow(t, shop, c1, c2, c3)

	resp, err := flow.ListCampaigns(context.Background(), shop.OwnerSubject, &dto.ListCampaignsRequest{
		Page:     1,
		PageSize: 2,
	})
	require.NoError(t, err)

	assert.Len(t, resp.Items, 2)
	assert.Equal(t, int64(3), resp.Total)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 2, resp.PageSize)
}

func TestListCampaignsRejectsBadPaging(t *testing.T) {
	shop := testShop(t)
	flow, _ := newCampaignFlow(t, shop)

	_, err := flow.ListCampaigns(context.Background(), shop.OwnerSubject, &dto.ListCampaignsRequest{Page: -1})
	require.Error(t, err)
}

func TestExportCampaignsProducesWorkbook(t *testing.T) {
	shop := testShop(t)
	sent := fixtures.NewCampaign(shop, models.CampaignStatusSent, nil)
	sent.Result = &models.CampaignResult{LineMessageID: "req-123"}
	flow, _ := newCampaignFlow(t, shop, sent)

	data, err := flow.ExportCampaigns(context.Background(), shop.OwnerSubject)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	header, err := f.GetCellValue("Campaigns", "A1")
	require.NoError(t, err)
	assert.Equal(t, "UUID", header)

	title, err := f.GetCellValue("Campaigns", "B2")
	require.NoError(t, err)
	assert.Equal(t, sent.Title, title)

	result, err := f.GetCellValue("Campaigns", "F2")
	require.NoError(t, err)
	assert.Equal(t, "req-123", result)
}
