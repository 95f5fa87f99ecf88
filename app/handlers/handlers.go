// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/harukisato/machidori/app/dto"
	businessflow "github.com/harukisato/machidori/business_flow"
	"github.com/harukisato/machidori/utils"
)

// requestContext creates a context with request-scoped values for observability and timeout
func requestContext(c fiber.Ctx) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	return ctx, cancel
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "min":
		return err.Field() + " must be at least " + err.Param() + " characters"
	case "max":
		return err.Field() + " must be at most " + err.Param() + " characters"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}

func errorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func successResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// businessErrorResponse maps a business flow error onto an HTTP status
func businessErrorResponse(c fiber.Ctx, err error) error {
	var be *businessflow.BusinessError
	if !errors.As(err, &be) {
		return errorResponse(c, fiber.StatusInternalServerError, "Internal server error", "INTERNAL_ERROR", nil)
	}

	status := fiber.StatusInternalServerError
	switch {
	case businessflow.IsShopNotFound(err) || businessflow.IsCampaignNotFound(err):
		status = fiber.StatusNotFound
	case businessflow.IsSignatureInvalid(err):
		status = fiber.StatusUnauthorized
	case businessflow.IsShopAccessDenied(err) || errors.Is(err, businessflow.ErrCampaignAccessDenied):
		status = fiber.StatusForbidden
	case errors.Is(err, businessflow.ErrShopAlreadyExists):
		status = fiber.StatusConflict
	case be.Code == "CAMPAIGN_VALIDATION_FAILED" || be.Code == "SHOP_VALIDATION_FAILED" ||
		be.Code == "WEBHOOK_MALFORMED" || businessflow.IsCampaignNotDraft(err):
		status = fiber.StatusBadRequest
	}

	return errorResponse(c, status, be.Message, be.Code, nil)
}

func validateRequest(c fiber.Ctx, v *validator.Validate, req any) error {
	if err := v.Struct(req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}
	return nil
}
