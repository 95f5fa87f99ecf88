package handlers

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/harukisato/machidori/app/dto"
	"github.com/harukisato/machidori/app/middleware"
	businessflow "github.com/harukisato/machidori/business_flow"
)

// CampaignHandlerInterface defines the contract for campaign handlers
type CampaignHandlerInterface interface {
	CreateCampaign(c fiber.Ctx) error
	ScheduleCampaign(c fiber.Ctx) error
	ListCampaigns(c fiber.Ctx) error
	ExportCampaigns(c fiber.Ctx) error
}

// CampaignHandler handles campaign-related HTTP requests
type CampaignHandler struct {
	campaignFlow businessflow.CampaignFlow
	validator    *validator.Validate
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(campaignFlow businessflow.CampaignFlow) *CampaignHandler {
	return &CampaignHandler{
		campaignFlow: campaignFlow,
		validator:    validator.New(),
	}
}

// CreateCampaign handles draft campaign creation
func (h *CampaignHandler) CreateCampaign(c fiber.Ctx) error {
	var req dto.CreateCampaignRequest
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

	resp, err := h.campaignFlow.CreateCampaign(ctx, subject, &req)
	if err != nil {
		return businessErrorResponse(c, err)
	}

	return successResponse(c, fiber.StatusCreated, resp.Message, resp)
}

// ScheduleCampaign queues a draft campaign for delivery
func (h *CampaignHandler) ScheduleCampaign(c fiber.Ctx) error {
	var req dto.ScheduleCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := validateRequest(c, h.validator, &req); err != nil {
		return err
	}
	req.UUID = c.Params("uuid")

	subject := middleware.OwnerSubject(c)
	if subject == "" {
		return errorResponse(c, fiber.StatusUnauthorized, "Owner subject not found in context", "MISSING_OWNER_SUBJECT", nil)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := h.campaignFlow.ScheduleCampaign(ctx, subject, &req)
	if err != nil {
		return businessErrorResponse(c, err)
	}

	return successResponse(c, fiber.StatusOK, resp.Message, resp)
}

// ListCampaigns returns the caller's campaigns with pagination
func (h *CampaignHandler) ListCampaigns(c fiber.Ctx) error {
	req := dto.ListCampaignsRequest{}
	if page := c.Query("page"); page != "" {
		v, err := strconv.Atoi(page)
		if err != nil {
			return errorResponse(c, fiber.StatusBadRequest, "Invalid page parameter", "INVALID_REQUEST", nil)
		}
		req.Page = v
	}
	if pageSize := c.Query("page_size"); pageSize != "" {
		v, err := strconv.Atoi(pageSize)
		if err != nil {
			return errorResponse(c, fiber.StatusBadRequest, "Invalid page_size parameter", "INVALID_REQUEST", nil)
		}
		req.PageSize = v
	}

	subject := middleware.OwnerSubject(c)
	if subject == "" {
		return errorResponse(c, fiber.StatusUnauthorized, "Owner subject not found in context", "MISSING_OWNER_SUBJECT", nil)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := h.campaignFlow.ListCampaigns(ctx, subject, &req)
	if err != nil {
		return businessErrorResponse(c, err)
	}

	return successResponse(c, fiber.StatusOK, "Campaigns retrieved", resp)
}

// ExportCampaigns streams the campaign history as a workbook download
func (h *CampaignHandler) ExportCampaigns(c fiber.Ctx) error {
	subject := middleware.OwnerSubject(c)
	if subject == "" {
		return errorResponse(c, fiber.StatusUnauthorized, "Owner subject not found in context", "MISSING_OWNER_SUBJECT", nil)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	data, err := h.campaignFlow.ExportCampaigns(ctx, subject)
	if err != nil {
		return businessErrorResponse(c, err)
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", `attachment; filename="campaigns.xlsx"`)
	return c.Send(data)
}
