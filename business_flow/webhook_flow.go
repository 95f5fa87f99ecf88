package businessflow

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/harukisato/machidori/app/dto"
	"github.com/harukisato/machidori/app/services"
	"github.com/harukisato/machidori/config"
	"github.com/harukisato/machidori/models"
	"github.com/harukisato/machidori/repository"
	"github.com/harukisato/machidori/utils"
	"github.com/redis/go-redis/v9"
)

// Auto-response text per industry for follow events. Unknown industries
// fall back to the default entry.
var followResponses = map[string]string{
	"restaurant": "友だち追加ありがとうございます！最新メニューやお得なクーポンをお届けします。",
	"salon":      "友だち追加ありがとうございます！ご予約やキャンペーン情報をお届けします。",
	"retail":     "友だち追加ありがとうございます！新商品やセール情報をお届けします。",
	"default":    "友だち追加ありがとうございます！",
}

// userDigestLength bounds how much of an inbound user id is stored
const userDigestLength = 12

// WebhookFlow handles inbound channel events
type WebhookFlow interface {
	HandleWebhook(ctx context.Context, shopUUID string, body []byte, signature string) (*dto.WebhookResponse, error)
}

// WebhookFlowImpl implements the webhook business flow
type WebhookFlowImpl struct {
	shopRepo    repository.ShopRepository
	eventRepo   repository.DeliveryEventRepository
	crypto      services.CryptoService
	signatures  services.SignatureService
	line        services.LineService
	clock       *utils.Clock
	rc          *redis.Client
	cacheConfig *config.CacheConfig
}

// NewWebhookFlow creates a new webhook flow instance
func NewWebhookFlow(
	shopRepo repository.ShopRepository,
	eventRepo repository.DeliveryEventRepository,
	crypto services.CryptoService,
	signatures services.SignatureService,
	line services.LineService,
	clock *utils.Clock,
	rc *redis.Client,
	cacheConfig *config.CacheConfig,
) WebhookFlow {
	return &WebhookFlowImpl{
		shopRepo:    shopRepo,
		eventRepo:   eventRepo,
		crypto:      crypto,
		signatures:  signatures,
		line:        line,
		clock:       clock,
		rc:          rc,
		cacheConfig: cacheConfig,
	}
}

// HandleWebhook verifies the delivery signature against the raw body and
// only then parses the payload. Events already seen within the dedup TTL
// are skipped so provider retries do not double-process.
func (s *WebhookFlowImpl) HandleWebhook(ctx context.Context, shopUUID string, body []byte, signature string) (*dto.WebhookResponse, error) {
	shop, err := getShopByUUID(ctx, s.shopRepo, shopUUID)
	if err != nil {
		return nil, err
	}
	if !shop.Line.Configured() {
		return nil, NewBusinessError("CHANNEL_NOT_CONFIGURED", "Channel is not configured", ErrChannelNotConfigured)
	}

	if signature == "" {
		return nil, NewBusinessError("SIGNATURE_MISSING", "Signature header is missing", ErrSignatureMissing)
	}

	channelSecret, err := s.crypto.Decrypt(shop.Line.ChannelSecret)
	if err != nil {
		return nil, NewBusinessError("CREDENTIAL_DECRYPTION_FAILED", "Failed to decrypt channel credentials", err)
	}

	if !s.signatures.Verify(body, signature, channelSecret) {
		return nil, NewBusinessError("SIGNATURE_INVALID", "Signature verification failed", ErrSignatureInvalid)
	}

	var payload dto.WebhookRequest
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, NewBusinessError("WEBHOOK_MALFORMED", "Webhook payload is malformed", ErrWebhookMalformed)
	}

	resp := &dto.WebhookResponse{}
	for i := range payload.Events {
		event := &payload.Events[i]

		seen, err := s.alreadySeen(ctx, event.WebhookID)
		if err != nil {
			log.Printf("webhook dedup check failed, processing anyway: %v", err)
		}
		if seen {
			resp.Skipped++
			continue
		}

		if err := s.processEvent(ctx, shop, event); err != nil {
			log.Printf("webhook event processing failed: %v", utils.Sanitize(err))
			resp.Skipped++
			continue
		}
		resp.Processed++
	}

	return resp, nil
}

// alreadySeen marks the event id as processed and reports whether it was
// processed before. Without Redis every delivery is treated as new.
func (s *WebhookFlowImpl) alreadySeen(ctx context.Context, eventID string) (bool, error) {
	if s.rc == nil || eventID == "" {
		return false, nil
	}

	key := s.cacheConfig.RedisPrefix + "webhook:event:" + eventID
	ok, err := s.rc.SetNX(ctx, key, 1, s.cacheConfig.EventTTL).Result()
	if err != nil {
		return false, err
	}

	return !ok, nil
}

func (s *WebhookFlowImpl) processEvent(ctx context.Context, shop *models.Shop, event *dto.WebhookEvent) error {
	record := &models.DeliveryEvent{
		ShopID:     shop.ID,
		UserDigest: digestUser(event.Source),
	}

	switch event.Type {
	case "message":
		record.EventType = models.DeliveryEventMessage
		if event.Message != nil && event.Message.Type == "text" {
			text := event.Message.Text
			record.MessageText = &text

			replyType := s.replyToMessage(ctx, shop, event.ReplyToken, text)
			if replyType != "" {
				record.ReplyType = &replyType
			}
		}
	case "follow":
		record.EventType = models.DeliveryEventFollow
		if event.ReplyToken != "" {
			if err := s.reply(ctx, shop, event.ReplyToken, followResponse(shop.Industry)); err != nil {
				log.Printf("follow auto-response failed: %v", utils.Sanitize(err))
			} else {
				replyType := "follow_greeting"
				record.ReplyType = &replyType
			}
		}
	case "unfollow":
		record.EventType = models.DeliveryEventUnfollow
	default:
		// Unknown event types are acknowledged but not recorded
		return nil
	}

	return s.eventRepo.Save(ctx, record)
}

// replyToMessage decides whether and how to answer an inbound text. NG
// words suppress the auto-response entirely; outside business hours the
// answer says so instead of the generic acknowledgment.
func (s *WebhookFlowImpl) replyToMessage(ctx context.Context, shop *models.Shop, replyToken, text string) string {
	if replyToken == "" {
		return ""
	}

	if _, found := shop.ContainsNGWord(text); found {
		return "blocked"
	}

	var response, replyType string
	if s.clock.IsBusinessHours(s.clock.Now(), shop.Config.BusinessHours) {
		response = "メッセージありがとうございます！担当者より順次ご返信いたします。"
		replyType = "acknowledgment"
	} else {
		response = "メッセージありがとうございます。営業時間外のため、営業時間内に改めてご返信いたします。"
		replyType = "after_hours"
	}

	if err := s.reply(ctx, shop, replyToken, response); err != nil {
		log.Printf("message auto-response failed: %v", utils.Sanitize(err))
		return ""
	}

	return replyType
}

// reply decrypts the access token for this single call only
func (s *WebhookFlowImpl) reply(ctx context.Context, shop *models.Shop, replyToken, text string) error {
	accessToken, err := s.crypto.Decrypt(shop.Line.AccessToken)
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.line.Reply(callCtx, accessToken, replyToken, text)
}

func followResponse(industry string) string {
	if r, ok := followResponses[industry]; ok {
		return r
	}
	return followResponses["default"]
}

func digestUser(source *dto.WebhookSource) string {
	if source == nil || source.UserID == "" {
		return ""
	}
	if len(source.UserID) <= userDigestLength {
		return source.UserID
	}
	return source.UserID[:userDigestLength]
}
