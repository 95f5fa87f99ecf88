package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/harukisato/machidori/app/dto"
	"github.com/harukisato/machidori/app/middleware"
	businessflow "github.com/harukisato/machidori/business_flow"
)

// ShopHandlerInterface defines the contract for shop handlers
type ShopHandlerInterface interface {
	RegisterShop(c fiber.Ctx) error
	GetShop(c fiber.Ctx) error
	UpdateShopConfig(c fiber.Ctx) error
	RotateChannel(c fiber.Ctx) error
}

// ShopHandler handles shop-related HTTP requests
type ShopHandler struct {
	shopFlow  businessflow.ShopFlow
	validator *validator.Validate
}

// NewShopHandler creates a new shop handler
func NewShopHandler(shopFlow businessflow.ShopFlow) *ShopHandler {
	return &ShopHandler{
		shopFlow:  shopFlow,
		validator: validator.New(),
	}
}

// RegisterShop handles shop registration
func (h *ShopHandler) RegisterShop(c fiber.Ctx) error {
	var req dto.RegisterShopRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := validateRequest(c, h.validator, &req); err != nil {
		return err
	}

	subject := middleware.OwnerSubject(c)
	if subject == "" {
		return errorResponse(c, fiber.StatusUnauthorized, "Owner subject not found in context", "MISSING_OWNER_SUBJECT", nil)
	}
	req.OwnerSubject = subject

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := h.shopFlow.RegisterShop(ctx, &req, metadata)
	if err != nil {
		return businessErrorResponse(c, err)
	}

	return successResponse(c, fiber.StatusCreated, resp.Message, resp)
}

// GetShop returns the caller's shop
func (h *ShopHandler) GetShop(c fiber.Ctx) error {
	subject := middleware.OwnerSubject(c)
	if subject == "" {
		return errorResponse(c, fiber.StatusUnauthorized, "Owner subject not found in context", "MISSING_OWNER_SUBJECT", nil)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := h.shopFlow.GetShop(ctx, subject)
	if err != nil {
		return businessErrorResponse(c, err)
	}

	return successResponse(c, fiber.StatusOK, "Shop retrieved", resp)
}

// UpdateShopConfig applies partial updates to shop settings
func (h *ShopHandler) UpdateShopConfig(c fiber.Ctx) error {
	var req dto.UpdateShopConfigRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := validateRequest(c, h.validator, &req); err != nil {
		return err
	}

	subject := middleware.OwnerSubject(c)
	if subject == "" {
		return errorResponse(c, fiber.StatusUnauthorized, "Owner subject not found in context", "MISSING_OWNER_SUBJECT", nil)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := h.shopFlow.UpdateShopConfig(ctx, subject, &req)
	if err != nil {
		return businessErrorResponse(c, err)
	}

	return successResponse(c, fiber.StatusOK, resp.Message, resp)
}

// RotateChannel replaces the shop's channel credentials
func (h *ShopHandler) RotateChannel(c fiber.Ctx) error {
	var req dto.RotateChannelRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := validateRequest(c, h.validator, &req); err != nil {
		return err
	}

	subject := middleware.OwnerSubject(c)
	if subject == "" {
		return errorResponse(c, fiber.StatusUnauthorized, "Owner subject not found in context", "MISSING_OWNER_SUBJECT", nil)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := h.shopFlow.RotateChannel(ctx, subject, &req)
	if err != nil {
		return businessErrorResponse(c, err)
	}

	return successResponse(c, fiber.StatusOK, resp.Message, resp)
}
