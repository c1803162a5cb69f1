package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/ethereum/go-ethereum/common"
	"github.com/metergate/metergate/internal/clock"
	"github.com/metergate/metergate/internal/config"
	"github.com/metergate/metergate/internal/events"
	"github.com/metergate/metergate/internal/identity"
	obsmetrics "github.com/metergate/metergate/internal/observability/metrics"
	registrydomain "github.com/metergate/metergate/internal/registry/domain"
	revenuedomain "github.com/metergate/metergate/internal/revenue/domain"
	treasurydomain "github.com/metergate/metergate/internal/treasury/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Cfg         config.Config
	Repo        revenuedomain.Repository
	RegistrySvc registrydomain.Service
	TreasurySvc treasurydomain.Service
	Hub         *events.Hub         `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	custody     common.Address
	repo        revenuedomain.Repository
	registrySvc registrydomain.Service
	treasurySvc treasurydomain.Service
	hub         *events.Hub
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p Params) revenuedomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("revenue.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		custody:     common.HexToAddress(p.Cfg.CustodyAccount),
		repo:        p.Repo,
		registrySvc: p.RegistrySvc,
		treasurySvc: p.TreasurySvc,
		hub:         p.Hub,
		obsMetrics:  p.ObsMetrics,
	}
}

func (s *Service) Withdraw(ctx context.Context, req revenuedomain.WithdrawRequest) error {
	if req.Amount <= 0 {
		return revenuedomain.ErrInvalidAmount
	}
	if identity.IsZeroAddress(req.Destination) {
		return revenuedomain.ErrInvalidDestination
	}

	cfg, err := s.registrySvc.Get(ctx, req.ApiID)
	if err != nil {
		return err
	}
	if !cfg.Registered() {
		return registrydomain.ErrNotFound
	}
	if cfg.Provider != identity.AddressHex(req.Caller) {
		return registrydomain.ErrUnauthorized
	}

	apiID := identity.HashHex(req.ApiID)

	// The decrement commits before the external transfer so the ledger
	// lock is never held across the collaborator call. Racing
	// withdrawals cannot both pass the conditional debit, and a failed
	// transfer is compensated by restoring the decremented amount.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.Debit(ctx, tx, apiID, req.Amount)
		if err != nil {
			return err
		}
		if !ok {
			return revenuedomain.ErrInsufficientRevenue
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.treasurySvc.Transfer(ctx, cfg.PaymentUnitAddress(), s.custody, req.Destination, req.Amount); err != nil {
		restoreErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.repo.Credit(ctx, tx, s.genID.Generate(), apiID, req.Amount)
		})
		if restoreErr != nil {
			s.log.Error("withdrawal transfer failed and restore failed, revenue balance understated",
				zap.String("api_id", apiID),
				zap.Int64("amount", req.Amount),
				zap.Error(restoreErr),
			)
		}
		return err
	}

	destination := identity.AddressHex(req.Destination)
	s.log.Info("revenue withdrawn",
		zap.String("api_id", apiID),
		zap.String("destination", destination),
		zap.Int64("amount", req.Amount),
	)
	s.obsMetrics.RecordWithdrawal(ctx, apiID)
	s.hub.Publish(events.Event{
		Kind:     events.KindProviderWithdraw,
		ApiID:    apiID,
		Provider: cfg.Provider,
		Amount:   req.Amount,
		At:       s.clock.Now(),
	})

	return nil
}

func (s *Service) BalanceOf(ctx context.Context, apiID common.Hash) (int64, error) {
	return s.repo.FindAmount(ctx, s.db, identity.HashHex(apiID))
}
