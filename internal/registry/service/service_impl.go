package service

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/metergate/metergate/internal/clock"
	"github.com/metergate/metergate/internal/events"
	"github.com/metergate/metergate/internal/identity"
	registrydomain "github.com/metergate/metergate/internal/registry/domain"
	"github.com/metergate/metergate/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  registrydomain.Repository
	Hub   *events.Hub `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  registrydomain.Repository
	hub   *events.Hub
}

func NewService(p Params) registrydomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("registry.service"),
		clock: p.Clock,
		repo:  p.Repo,
		hub:   p.Hub,
	}
}

func (s *Service) Register(ctx context.Context, req registrydomain.RegisterRequest) (*registrydomain.ApiConfig, error) {
	if req.ApiID == (common.Hash{}) {
		return nil, registrydomain.ErrNotFound
	}
	if identity.IsZeroAddress(req.PaymentUnit) {
		return nil, registrydomain.ErrInvalidPaymentUnit
	}
	if req.PricePerUnit <= 0 {
		return nil, registrydomain.ErrInvalidPrice
	}
	if identity.IsZeroAddress(req.Caller) {
		return nil, registrydomain.ErrInvalidCaller
	}

	now := s.clock.Now()
	cfg := &registrydomain.ApiConfig{
		ApiID:        identity.HashHex(req.ApiID),
		Provider:     identity.AddressHex(req.Caller),
		PaymentUnit:  identity.AddressHex(req.PaymentUnit),
		PricePerUnit: req.PricePerUnit,
		MetadataRef:  strings.TrimSpace(req.MetadataRef),
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Insert(ctx, s.db, cfg); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, registrydomain.ErrAlreadyExists
		}
		return nil, err
	}

	s.log.Info("api registered",
		zap.String("api_id", cfg.ApiID),
		zap.String("provider", cfg.Provider),
		zap.Int64("price_per_unit", cfg.PricePerUnit),
	)
	s.hub.Publish(events.Event{
		Kind:     events.KindApiRegistered,
		ApiID:    cfg.ApiID,
		Provider: cfg.Provider,
		Amount:   cfg.PricePerUnit,
		At:       now,
	})

	return cfg, nil
}

func (s *Service) Update(ctx context.Context, req registrydomain.UpdateRequest) (*registrydomain.ApiConfig, error) {
	apiID := identity.HashHex(req.ApiID)

	var updated *registrydomain.ApiConfig
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cfg, err := s.repo.FindByID(ctx, tx, apiID)
		if err != nil {
			return err
		}
		if cfg == nil {
			return registrydomain.ErrNotFound
		}
		if cfg.Provider != identity.AddressHex(req.Caller) {
			return registrydomain.ErrUnauthorized
		}

		if req.PricePerUnit != nil {
			if *req.PricePerUnit <= 0 {
				return registrydomain.ErrInvalidPrice
			}
			cfg.PricePerUnit = *req.PricePerUnit
		}
		if req.MetadataRef != nil {
			cfg.MetadataRef = strings.TrimSpace(*req.MetadataRef)
		}
		if req.Active != nil {
			cfg.Active = *req.Active
		}
		cfg.UpdatedAt = s.clock.Now()

		if err := s.repo.Update(ctx, tx, cfg); err != nil {
			return err
		}
		updated = cfg
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("api config updated",
		zap.String("api_id", updated.ApiID),
		zap.Int64("price_per_unit", updated.PricePerUnit),
		zap.Bool("active", updated.Active),
	)
	s.hub.Publish(events.Event{
		Kind:     events.KindApiConfigUpdated,
		ApiID:    updated.ApiID,
		Provider: updated.Provider,
		Amount:   updated.PricePerUnit,
		At:       updated.UpdatedAt,
	})

	return updated, nil
}

func (s *Service) Get(ctx context.Context, apiID common.Hash) (registrydomain.ApiConfig, error) {
	cfg, err := s.repo.FindByID(ctx, s.db, identity.HashHex(apiID))
	if err != nil {
		return registrydomain.ApiConfig{}, err
	}
	if cfg == nil {
		return registrydomain.ApiConfig{}, nil
	}
	return *cfg, nil
}

func (s *Service) ListByProvider(ctx context.Context, provider common.Address) ([]registrydomain.ApiConfig, error) {
	return s.repo.ListByProvider(ctx, s.db, identity.AddressHex(provider))
}
