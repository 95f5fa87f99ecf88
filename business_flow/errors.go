// Package businessflow contains the core business logic and use cases for broadcast workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Shop-related errors
	ErrShopNotFound          = errors.New("shop not found")
	ErrShopAlreadyExists     = errors.New("shop already exists for this owner")
	ErrShopAccessDenied      = errors.New("shop access denied")
	ErrChannelNotConfigured  = errors.New("channel credentials are not configured")
	ErrBusinessHoursInvalid  = errors.New("business hours must be formatted as HH:MM-HH:MM")
	ErrShopUpdateRequired    = errors.New("at least one field must be provided for update")
	ErrCredentialsIncomplete = errors.New("both access token and channel secret are required")

	// Campaign-related errors
	ErrCampaignNotFound        = errors.New("campaign not found")
	ErrCampaignAccessDenied    = errors.New("campaign access denied")
	ErrCampaignNotDraft        = errors.New("only draft campaigns can be scheduled")
	ErrCampaignTitleRequired   = errors.New("campaign title is required")
	ErrCampaignContentRequired = errors.New("campaign content is required")
	ErrCampaignContainsNGWord  = errors.New("campaign content contains a forbidden word")
	ErrScheduleTimeNotPresent  = errors.New("either timing or send_at must be provided")
	ErrScheduleTimeInPast      = errors.New("send time cannot be in the past")
	ErrScheduleTimingUnknown   = errors.New("unknown timing option")

	// Webhook-related errors
	ErrSignatureMissing = errors.New("signature header is missing")
	ErrSignatureInvalid = errors.New("signature verification failed")
	ErrWebhookMalformed = errors.New("webhook payload is malformed")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func IsShopNotFound(err error) bool {
	return errors.Is(err, ErrShopNotFound)
}

func IsShopAccessDenied(err error) bool {
	return errors.Is(err, ErrShopAccessDenied)
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsCampaignNotDraft(err error) bool {
	return errors.Is(err, ErrCampaignNotDraft)
}

func IsSignatureInvalid(err error) bool {
	return errors.Is(err, ErrSignatureInvalid) || errors.Is(err, ErrSignatureMissing)
}
