package businessflow

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harukisato/machidori/app/dto"
	"github.com/harukisato/machidori/app/services"
	"github.com/harukisato/machidori/models"
	fixtures "github.com/harukisato/machidori/testing"
	"github.com/harukisato/machidori/utils"
)

type webhookHarness struct {
	flow       WebhookFlow
	shop       *models.Shop
	events     *fakeEventRepo
	line       *services.MockLineService
	signatures services.SignatureService
}

func newWebhookHarness(t *testing.T, opts ...fixtures.ShopOption) *webhookHarness {
	t.Helper()

	crypto, err := fixtures.NewCrypto()
	require.NoError(t, err)

	// Always-open hours keep the reply type deterministic
	opts = append([]fixtures.ShopOption{fixtures.WithBusinessHours("00:00-23:59")}, opts...)
	shop, err := fixtures.NewShop(crypto, opts...)
	require.NoError(t, err)

	clock, err := utils.NewClock("UTC")
	require.NoError(t, err)

	events := &fakeEventRepo{}
	line := services.NewMockLineService()
	signatures := services.NewSignatureService()

	flow := NewWebhookFlow(newFakeShopRepo(shop), events, crypto, signatures, line, clock, nil, nil)

	return &webhookHarness{
		flow:       flow,
		shop:       shop,
		events:     events,
		line:       line,
		signatures: signatures,
	}
}

// sign computes a valid signature with the fixture channel secret
func (h *webhookHarness) sign(body []byte) string {
	return h.signatures.Sign(body, "test-channel-secret")
}

func messageBody(t *testing.T, text string) []byte {
	t.Helper()

	body, err := json.Marshal(dto.WebhookRequest{
		Destination: "Uxxx",
		Events: []dto.WebhookEvent{
			{
				Type:       "message",
				WebhookID:  "evt-1",
				ReplyToken: "reply-token-1",
				Source:     &dto.WebhookSource{Type: "user", UserID: "U1234567890abcdef"},
				Message:    &dto.WebhookMessage{ID: "m1", Type: "text", Text: text},
			},
		},
	})
	require.NoError(t, err)
	return body
}

func TestHandleWebhookRejectsMissingSignature(t *testing.T) {
	h := newWebhookHarness(t)

	_, err := h.flow.HandleWebhook(context.Background(), h.shop.UUID.String(), messageBody(t, "hello"), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSignatureMissing)
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	h := newWebhookHarness(t)

	body := messageBody(t, "hello")
	wrong := h.sign([]byte("some other body"))

	_, err := h.flow.HandleWebhook(context.Background(), h.shop.UUID.String(), body, wrong)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSignatureInvalid)
	assert.Empty(t, h.events.events)
}

func TestHandleWebhookUnknownShop(t *testing.T) {
	h := newWebhookHarness(t)

	body := messageBody(t, "hello")
	_, err := h.flow.HandleWebhook(context.Background(), uuid.NewString(), body, h.sign(body))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrShopNotFound)
}

func TestHandleWebhookUnconfiguredChannel(t *testing.T) {
	h := newWebhookHarness(t, fixtures.WithoutChannel())

	body := messageBody(t, "hello")
	_, err := h.flow.HandleWebhook(context.Background(), h.shop.UUID.String(), body, h.sign(body))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChannelNotConfigured)
}

func TestHandleWebhookRejectsMalformedPayload(t *testing.T) {
	h := newWebhookHarness(t)

	body := []byte("not a json payload")
	_, err := h.flow.HandleWebhook(context.Background(), h.shop.UUID.String(), body, h.sign(body))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWebhookMalformed)
}

func TestHandleWebhookRecordsMessageAndReplies(t *testing.T) {
	h := newWebhookHarness(t)

	body := messageBody(t, "営業時間を教えてください")
	resp, err := h.flow.HandleWebhook(context.Background(), h.shop.UUID.String(), body, h.sign(body))
	require.NoError(t, err)

	assert.Equal(t, 1, resp.Processed)
	assert.Equal(t, 0, resp.Skipped)

	require.Len(t, h.events.events, 1)
	event := h.events.events[0]
	assert.Equal(t, models.DeliveryEventMessage, event.EventType)
	require.NotNil(t, event.MessageText)
	assert.Equal(t, "営業時間を教えてください", *event.MessageText)
	require.NotNil(t, event.ReplyType)
	assert.Equal(t, "acknowledgment", *event.ReplyType)
	assert.Equal(t, "U1234567890a", event.UserDigest)

	// Reply goes out with the decrypted access token
	require.Len(t, h.line.ReplyCalls, 1)
	assert.Equal(t, "test-access-token", h.line.ReplyCalls[0].AccessToken)
	assert.Equal(t, "reply-token-1", h.line.ReplyCalls[0].ReplyToken)
}

func TestHandleWebhookSuppressesReplyForNGWords(t *testing.T) {
	h := newWebhookHarness(t, fixtures.WithNGWords("クレーム"))

	body := messageBody(t, "クレームがあります")
	resp, err := h.flow.HandleWebhook(context.Background(), h.shop.UUID.String(), body, h.sign(body))
	require.NoError(t, err)

	assert.Equal(t, 1, resp.Processed)
	assert.Empty(t, h.line.ReplyCalls)

	require.Len(t, h.events.events, 1)
	require.NotNil(t, h.events.events[0].ReplyType)
	assert.Equal(t, "blocked", *h.events.events[0].ReplyType)
}

func TestHandleWebhookFollowGreetingByIndustry(t *testing.T) {
	h := newWebhookHarness(t, fixtures.WithIndustry("salon"))

	body, err := json.Marshal(dto.WebhookRequest{
		Events: []dto.WebhookEvent{
			{
				Type:       "follow",
				WebhookID:  "evt-follow",
				ReplyToken: "reply-token-2",
				Source:     &dto.WebhookSource{Type: "user", UserID: "U2"},
			},
		},
	})
	require.NoError(t, err)

	resp, err := h.flow.HandleWebhook(context.Background(), h.shop.UUID.String(), body, h.sign(body))
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Processed)

	require.Len(t, h.line.ReplyCalls, 1)
	assert.Equal(t, followResponses["salon"], h.line.ReplyCalls[0].Text)

	require.Len(t, h.events.events, 1)
	assert.Equal(t, models.DeliveryEventFollow, h.events.events[0].EventType)
	require.NotNil(t, h.events.events[0].ReplyType)
	assert.Equal(t, "follow_greeting", *h.events.events[0].ReplyType)
}

func TestHandleWebhookRecordsUnfollow(t *testing.T) {
	h := newWebhookHarness(t)

	body, err := json.Marshal(dto.WebhookRequest{
		Events: []dto.WebhookEvent{
			{Type: "unfollow", WebhookID: "evt-unfollow", Source: &dto.WebhookSource{Type: "user", UserID: "U3"}},
		},
	})
	require.NoError(t, err)

	resp, err := h.flow.HandleWebhook(context.Background(), h.shop.UUID.String(), body, h.sign(body))
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Processed)

	require.Len(t, h.events.events, 1)
	assert.Equal(t, models.DeliveryEventUnfollow, h.events.events[0].EventType)
	assert.Empty(t, h.line.ReplyCalls)
}

func TestHandleWebhookAcknowledgesUnknownEventTypes(t *testing.T) {
	h := newWebhookHarness(t)

	body, err := json.Marshal(dto.WebhookRequest{
		Events: []dto.WebhookEvent{
			{Type: "beacon", WebhookID: "evt-beacon"},
		},
	})
	require.NoError(t, err)

	resp, err := h.flow.HandleWebhook(context.Background(), h.shop.UUID.String(), body, h.sign(body))
	require.NoError(t, err)

	assert.Equal(t, 1, resp.Processed)
	assert.Empty(t, h.events.events)
}
