package businessflow

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/harukisato/machidori/app/dto"
	"github.com/harukisato/machidori/app/services"
	"github.com/harukisato/machidori/models"
	"github.com/harukisato/machidori/repository"
	"github.com/harukisato/machidori/utils"
	"gorm.io/gorm"
)

// ShopFlow handles shop registration and configuration
type ShopFlow interface {
	RegisterShop(ctx context.Context, req *dto.RegisterShopRequest, metadata *ClientMetadata) (*dto.RegisterShopResponse, error)
	GetShop(ctx context.Context, ownerSubject string) (*dto.GetShopResponse, error)
	UpdateShopConfig(ctx context.Context, ownerSubject string, req *dto.UpdateShopConfigRequest) (*dto.UpdateShopConfigResponse, error)
	RotateChannel(ctx context.Context, ownerSubject string, req *dto.RotateChannelRequest) (*dto.RotateChannelResponse, error)
}

// ShopFlowImpl implements the shop business flow
type ShopFlowImpl struct {
	shopRepo repository.ShopRepository
	crypto   services.CryptoService
	db       *gorm.DB
}

// NewShopFlow creates a new shop flow instance
func NewShopFlow(shopRepo repository.ShopRepository, crypto services.CryptoService, db *gorm.DB) ShopFlow {
	return &ShopFlowImpl{
		shopRepo: shopRepo,
		crypto:   crypto,
		db:       db,
	}
}

// RegisterShop creates a shop with encrypted channel credentials
func (s *ShopFlowImpl) RegisterShop(ctx context.Context, req *dto.RegisterShopRequest, metadata *ClientMetadata) (*dto.RegisterShopResponse, error) {
	if req.AccessToken == "" || req.ChannelSecret == "" {
		return nil, NewBusinessError("SHOP_VALIDATION_FAILED", "Shop validation failed", ErrCredentialsIncomplete)
	}
	if !utils.ValidBusinessHours(req.BusinessHours) {
		return nil, NewBusinessError("SHOP_VALIDATION_FAILED", "Shop validation failed", ErrBusinessHoursInvalid)
	}

	existing, err := s.shopRepo.ByOwnerSubject(ctx, req.OwnerSubject)
	if err != nil {
		return nil, NewBusinessError("SHOP_LOOKUP_FAILED", "Failed to lookup shop", err)
	}
	if existing != nil {
		return nil, NewBusinessError("SHOP_ALREADY_EXISTS", "Shop already exists", ErrShopAlreadyExists)
	}

	encToken, encSecret, err := s.crypto.EncryptPair(req.AccessToken, req.ChannelSecret)
	if err != nil {
		return nil, NewBusinessError("CREDENTIAL_ENCRYPTION_FAILED", "Failed to encrypt channel credentials", err)
	}

	shop := &models.Shop{
		UUID:         uuid.New(),
		OwnerSubject: req.OwnerSubject,
		Name:         req.Name,
		Industry:     req.Industry,
		Config: models.ShopConfig{
			BusinessHours: req.BusinessHours,
		},
		NGWords: req.NGWords,
		Line: models.LineChannel{
			AccessToken:   encToken,
			ChannelSecret: encSecret,
		},
	}

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		return s.shopRepo.Save(txCtx, shop)
	})
	if err != nil {
		return nil, NewBusinessError("SHOP_CREATION_FAILED", "Shop creation failed", err)
	}

	log.Printf("shop registered: %v", utils.Sanitize(map[string]any{
		"shop_uuid": shop.UUID.String(),
		"industry":  shop.Industry,
		"ip":        metadata.IPAddress,
	}))

	return &dto.RegisterShopResponse{
		Message:   "Shop registered successfully",
		UUID:      shop.UUID.String(),
		CreatedAt: shop.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}, nil
}

// GetShop returns the caller's shop without any credential material
func (s *ShopFlowImpl) GetShop(ctx context.Context, ownerSubject string) (*dto.GetShopResponse, error) {
	shop, err := s.getOwnedShop(ctx, ownerSubject)
	if err != nil {
		return nil, err
	}

	return &dto.GetShopResponse{
		UUID:              shop.UUID.String(),
		Name:              shop.Name,
		Industry:          shop.Industry,
		BusinessHours:     shop.Config.BusinessHours,
		TargetAudience:    shop.Config.TargetAudience,
		NGWords:           shop.NGWords,
		ChannelConfigured: shop.Line.Configured(),
		CreatedAt:         shop.CreatedAt,
		UpdatedAt:         shop.UpdatedAt,
	}, nil
}

// UpdateShopConfig applies partial updates to the shop's settings
func (s *ShopFlowImpl) UpdateShopConfig(ctx context.Context, ownerSubject string, req *dto.UpdateShopConfigRequest) (*dto.UpdateShopConfigResponse, error) {
	if req.Name == nil && req.BusinessHours == nil && req.TargetAudience == nil && req.NGWords == nil {
		return nil, NewBusinessError("SHOP_VALIDATION_FAILED", "Shop validation failed", ErrShopUpdateRequired)
	}

	shop, err := s.getOwnedShop(ctx, ownerSubject)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		shop.Name = *req.Name
	}
	if req.BusinessHours != nil {
		if !utils.ValidBusinessHours(*req.BusinessHours) {
			return nil, NewBusinessError("SHOP_VALIDATION_FAILED", "Shop validation failed", ErrBusinessHoursInvalid)
		}
		shop.Config.BusinessHours = *req.BusinessHours
	}
	if req.TargetAudience != nil {
		shop.Config.TargetAudience = *req.TargetAudience
	}
	if req.NGWords != nil {
		shop.NGWords = req.NGWords
	}

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		return s.shopRepo.Update(txCtx, *shop)
	})
	if err != nil {
		return nil, NewBusinessError("SHOP_UPDATE_FAILED", "Shop update failed", err)
	}

	return &dto.UpdateShopConfigResponse{Message: "Shop updated successfully"}, nil
}

// RotateChannel replaces both channel credentials. Partial rotation is not
// supported so a token never pairs with a stale secret.
func (s *ShopFlowImpl) RotateChannel(ctx context.Context, ownerSubject string, req *dto.RotateChannelRequest) (*dto.RotateChannelResponse, error) {
	if req.AccessToken == "" || req.ChannelSecret == "" {
		return nil, NewBusinessError("SHOP_VALIDATION_FAILED", "Shop validation failed", ErrCredentialsIncomplete)
	}

	shop, err := s.getOwnedShop(ctx, ownerSubject)
	if err != nil {
		return nil, err
	}

	encToken, encSecret, err := s.crypto.EncryptPair(req.AccessToken, req.ChannelSecret)
	if err != nil {
		return nil, NewBusinessError("CREDENTIAL_ENCRYPTION_FAILED", "Failed to encrypt channel credentials", err)
	}

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		return s.shopRepo.UpdateLineChannel(txCtx, shop.ID, models.LineChannel{
			AccessToken:   encToken,
			ChannelSecret: encSecret,
		})
	})
	if err != nil {
		return nil, NewBusinessError("CHANNEL_ROTATION_FAILED", "Channel rotation failed", err)
	}

	return &dto.RotateChannelResponse{Message: "Channel credentials updated"}, nil
}

func (s *ShopFlowImpl) getOwnedShop(ctx context.Context, ownerSubject string) (*models.Shop, error) {
	shop, err := s.shopRepo.ByOwnerSubject(ctx, ownerSubject)
	if err != nil {
		return nil, NewBusinessError("SHOP_LOOKUP_FAILED", "Failed to lookup shop", err)
	}
	if shop == nil {
		return nil, NewBusinessError("SHOP_NOT_FOUND", "Shop not found", ErrShopNotFound)
	}
	return shop, nil
}

func getShopByUUID(ctx context.Context, repo repository.ShopRepository, raw string) (*models.Shop, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, NewBusinessError("SHOP_LOOKUP_FAILED", "Invalid shop identifier", fmt.Errorf("invalid shop UUID: %w", err))
	}
	shop, err := repo.ByUUID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("SHOP_LOOKUP_FAILED", "Failed to lookup shop", err)
	}
	if shop == nil {
		return nil, NewBusinessError("SHOP_NOT_FOUND", "Shop not found", ErrShopNotFound)
	}
	return shop, nil
}
