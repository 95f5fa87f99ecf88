package handlers

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/harukisato/machidori/app/dto"
	"github.com/harukisato/machidori/app/scheduler"
)

// DispatchHandlerInterface defines the contract for the dispatch trigger
type DispatchHandlerInterface interface {
	TriggerDispatch(c fiber.Ctx) error
}

// DispatchHandler exposes the dispatch scan to an external cron trigger
type DispatchHandler struct {
	dispatcher *scheduler.DispatchScheduler
	cronSecret string
}

// NewDispatchHandler creates a new dispatch handler
func NewDispatchHandler(dispatcher *scheduler.DispatchScheduler, cronSecret string) *DispatchHandler {
	return &DispatchHandler{
		dispatcher: dispatcher,
		cronSecret: cronSecret,
	}
}

// TriggerDispatch runs one scan pass. The bearer comparison is constant
// time; an unset secret disables the endpoint rather than opening it.
func (h *DispatchHandler) TriggerDispatch(c fiber.Ctx) error {
	if h.cronSecret == "" {
		return errorResponse(c, fiber.StatusUnauthorized, "Dispatch trigger is disabled", "DISPATCH_DISABLED", nil)
	}

	token := strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.cronSecret)) != 1 {
		return errorResponse(c, fiber.StatusUnauthorized, "Invalid dispatch credentials", "DISPATCH_UNAUTHORIZED", nil)
	}

	// A scan pass can outlive the default request budget
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	summary := h.dispatcher.RunOnce(ctx)

	return successResponse(c, fiber.StatusOK, "Dispatch scan complete", dto.DispatchResponse{
		Processed:  summary.Processed,
		Succeeded:  summary.Succeeded,
		Failed:     summary.Failed,
		DurationMS: summary.Duration.Milliseconds(),
		StartedAt:  summary.StartedAt.Format(time.RFC3339),
	})
}
