// Package scheduler runs the periodic dispatch scan that delivers queued campaigns
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/harukisato/machidori/app/services"
	"github.com/harukisato/machidori/config"
	"github.com/harukisato/machidori/models"
	"github.com/harukisato/machidori/repository"
	"github.com/harukisato/machidori/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchProcessedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "machidori_dispatch_processed_total",
			Help: "Total number of campaigns claimed by the dispatch scanner",
		},
	)

	dispatchResultTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "machidori_dispatch_result_total",
			Help: "Dispatch outcomes partitioned by terminal status",
		},
		[]string{"status"},
	)

	dispatchTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "machidori_dispatch_tick_duration_seconds",
			Help:    "Duration of full dispatch scan passes",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// TickSummary reports the outcome of one full scan pass. Counts are only
// final because the pass waits for every spawned delivery to finish.
type TickSummary struct {
	Processed int           `json:"processed"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
	StartedAt time.Time     `json:"started_at"`
}

// DispatchScheduler periodically scans queued campaigns and delivers the
// due ones. All dispatch decisions of one pass observe the same captured
// clock reading.
type DispatchScheduler struct {
	shopRepo     repository.ShopRepository
	campaignRepo repository.CampaignRepository
	crypto       services.CryptoService
	line         services.LineService
	clock        *utils.Clock
	logger       *log.Logger

	interval    time.Duration
	tolerance   time.Duration
	sendTimeout time.Duration
	pageSize    int
}

// NewDispatchScheduler creates a dispatch scheduler from the scheduler config
func NewDispatchScheduler(
	shopRepo repository.ShopRepository,
	campaignRepo repository.CampaignRepository,
	crypto services.CryptoService,
	line services.LineService,
	clock *utils.Clock,
	cfg config.SchedulerConfig,
	logging config.LoggingConfig,
) *DispatchScheduler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = utils.DefaultDispatchInterval
	}
	tolerance := cfg.DueTolerance
	if tolerance <= 0 {
		tolerance = utils.DefaultDueTolerance
	}
	sendTimeout := cfg.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = 30 * time.Second
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	logger := utils.NewRotatingLogger(utils.LoggerOptions{
		Prefix:     "dispatch ",
		FilePath:   logging.FilePath,
		MaxSize:    logging.MaxSize,
		MaxBackups: logging.MaxBackups,
		MaxAge:     logging.MaxAge,
		Compress:   logging.Compress,
		Stdout:     logging.Output != "file",
	})

	return &DispatchScheduler{
		shopRepo:     shopRepo,
		campaignRepo: campaignRepo,
		crypto:       crypto,
		line:         line,
		clock:        clock,
		logger:       logger,
		interval:     interval,
		tolerance:    tolerance,
		sendTimeout:  sendTimeout,
		pageSize:     pageSize,
	}
}

// Start launches the scheduler loop in a background goroutine and returns a stop function
func (s *DispatchScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.RunOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()

	return cancel
}

// RunOnce executes one full scan pass across all shops and returns its
// summary. It is also the entry point for the external dispatch trigger.
func (s *DispatchScheduler) RunOnce(ctx context.Context) TickSummary {
	now := s.clock.Now()
	start := time.Now()

	summary := TickSummary{StartedAt: now}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	offset := 0
	for {
		shops, err := s.shopRepo.ByFilter(ctx, models.ShopFilter{}, "id ASC", s.pageSize, offset)
		if err != nil {
			s.logger.Printf("shop page listing failed at offset %d: %v", offset, err)
			break
		}
		if len(shops) == 0 {
			break
		}

		for _, shop := range shops {
			due, err := s.collectDue(ctx, shop, now)
			if err != nil {
				s.logger.Printf("queued scan failed for shop %s: %v", shop.UUID, err)
				continue
			}

			for _, campaign := range due {
				claimed, err := s.campaignRepo.MarkSending(ctx, campaign.ID, now)
				if err != nil {
					s.logger.Printf("claim failed for campaign %s: %v", campaign.UUID, err)
					continue
				}
				if !claimed {
					// Another pass won the row between listing and claiming
					continue
				}

				summary.Processed++
				dispatchProcessedTotal.Inc()

				wg.Add(1)
				go func(shop *models.Shop, campaign *models.Campaign) {
					defer wg.Done()

					ok := s.deliver(ctx, shop, campaign)

					mu.Lock()
					if ok {
						summary.Succeeded++
					} else {
						summary.Failed++
					}
					mu.Unlock()
				}(shop, campaign)
			}
		}

		if len(shops) < s.pageSize {
			break
		}
		offset += s.pageSize
	}

	wg.Wait()

	summary.Duration = time.Since(start)
	dispatchTickDuration.Observe(summary.Duration.Seconds())

	if summary.Processed > 0 {
		s.logger.Printf("tick complete: processed=%d succeeded=%d failed=%d duration=%s",
			summary.Processed, summary.Succeeded, summary.Failed, summary.Duration)
	}

	return summary
}

// collectDue returns the shop's queued campaigns whose send time falls
// within tolerance of now. A nil send time is due immediately.
func (s *DispatchScheduler) collectDue(ctx context.Context, shop *models.Shop, now time.Time) ([]*models.Campaign, error) {
	queued, err := s.campaignRepo.ListQueuedByShop(ctx, shop.ID)
	if err != nil {
		return nil, err
	}

	due := make([]*models.Campaign, 0, len(queued))
	for _, c := range queued {
		if c.SendAt == nil || s.clock.IsDue(*c.SendAt, now, s.tolerance) {
			due = append(due, c)
		}
	}

	return due, nil
}

// deliver performs the single delivery attempt for a claimed campaign and
// records the terminal status. The access token is decrypted for this
// attempt only and never stored.
func (s *DispatchScheduler) deliver(ctx context.Context, shop *models.Shop, campaign *models.Campaign) bool {
	status := models.CampaignStatusSent
	var result models.CampaignResult

	messageID, err := s.broadcast(ctx, shop, campaign)
	if err != nil {
		status = models.CampaignStatusFailed
		result.Error = err.Error()
		s.logger.Printf("delivery failed for campaign %s: %v", campaign.UUID, utils.Sanitize(err))
	} else {
		result.LineMessageID = messageID
	}

	dispatchResultTotal.WithLabelValues(status.String()).Inc()

	if ferr := s.campaignRepo.Finish(ctx, campaign.ID, status, result); ferr != nil {
		s.logger.Printf("failed to record %s for campaign %s: %v", status, campaign.UUID, ferr)
	}

	return status == models.CampaignStatusSent
}

func (s *DispatchScheduler) broadcast(ctx context.Context, shop *models.Shop, campaign *models.Campaign) (string, error) {
	if !shop.Line.Configured() {
		return "", fmt.Errorf("shop %s has no channel credentials", shop.UUID)
	}

	accessToken, err := s.crypto.Decrypt(shop.Line.AccessToken)
	if err != nil {
		return "", fmt.Errorf("credential decryption failed: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	messageID, err := s.line.Broadcast(callCtx, accessToken, campaign.Content)
	if err != nil {
		return "", fmt.Errorf("broadcast failed: %w", err)
	}

	return messageID, nil
}
