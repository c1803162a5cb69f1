package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ethereum/go-ethereum/common"
	balancedomain "github.com/metergate/metergate/internal/balance/domain"
	"github.com/metergate/metergate/internal/clock"
	"github.com/metergate/metergate/internal/events"
	"github.com/metergate/metergate/internal/identity"
	obsmetrics "github.com/metergate/metergate/internal/observability/metrics"
	registrydomain "github.com/metergate/metergate/internal/registry/domain"
	revenuedomain "github.com/metergate/metergate/internal/revenue/domain"
	usagedomain "github.com/metergate/metergate/internal/usage/domain"
	"github.com/metergate/metergate/pkg/db"
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
	Repo        usagedomain.Repository
	BalanceRepo balancedomain.Repository
	RevenueRepo revenuedomain.Repository
	RegistrySvc registrydomain.Service
	Hub         *events.Hub         `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        usagedomain.Repository
	balanceRepo balancedomain.Repository
	revenueRepo revenuedomain.Repository
	registrySvc registrydomain.Service
	hub         *events.Hub
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p Params) usagedomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("usage.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		balanceRepo: p.BalanceRepo,
		revenueRepo: p.RevenueRepo,
		registrySvc: p.RegistrySvc,
		hub:         p.Hub,
		obsMetrics:  p.ObsMetrics,
	}
}

func (s *Service) Report(ctx context.Context, req usagedomain.ReportRequest) (*usagedomain.UsageRecord, error) {
	if req.Units <= 0 {
		return nil, usagedomain.ErrInvalidUnits
	}
	if identity.IsZeroAddress(req.Consumer) {
		return nil, balancedomain.ErrInvalidConsumer
	}

	cfg, err := s.registrySvc.Get(ctx, req.ApiID)
	if err != nil {
		return nil, err
	}
	if !cfg.Registered() {
		return nil, registrydomain.ErrNotFound
	}
	// No active check here: deactivation stops new prepayments, but
	// units already paid for stay consumable.

	apiID := identity.HashHex(req.ApiID)
	consumer := identity.AddressHex(req.Consumer)
	reporter := ""
	if !identity.IsZeroAddress(req.Reporter) {
		reporter = identity.AddressHex(req.Reporter)
	}

	salt := s.genID.Generate()
	usageID := usagedomain.DeriveUsageID(req.ApiID, req.Consumer, req.Units, req.OffchainRef, salt)

	record := &usagedomain.UsageRecord{
		UsageID:       identity.HashHex(usageID),
		ApiID:         apiID,
		Consumer:      consumer,
		Units:         req.Units,
		PriceSnapshot: cfg.PricePerUnit,
		PaymentUnit:   cfg.PaymentUnit,
		Status:        usagedomain.StatusReported,
		OffchainRef:   req.OffchainRef,
		Reporter:      reporter,
		SaltID:        salt,
		ReportedAt:    s.clock.Now(),
	}

	// Debit and insert share one serialized transaction: racing reports
	// against the same balance cannot both pass the funds check, and a
	// duplicate usage id aborts before the debit commits.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByID(ctx, tx, record.UsageID)
		if err != nil {
			return err
		}
		if existing != nil {
			return usagedomain.ErrDuplicateUsage
		}

		ok, err := s.balanceRepo.Debit(ctx, tx, apiID, consumer, req.Units)
		if err != nil {
			return err
		}
		if !ok {
			return balancedomain.ErrInsufficientBalance
		}

		if err := s.repo.Insert(ctx, tx, record); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return usagedomain.ErrDuplicateUsage
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("usage reported",
		zap.String("usage_id", record.UsageID),
		zap.String("api_id", apiID),
		zap.String("consumer", consumer),
		zap.Int64("units", req.Units),
		zap.Int64("price_snapshot", record.PriceSnapshot),
	)
	s.obsMetrics.RecordUsageReported(ctx, apiID)
	s.hub.Publish(events.Event{
		Kind:     events.KindUsageReported,
		ApiID:    apiID,
		Consumer: consumer,
		UsageID:  record.UsageID,
		Units:    req.Units,
		At:       record.ReportedAt,
	})

	return record, nil
}

func (s *Service) Settle(ctx context.Context, usageID common.Hash) (*usagedomain.UsageRecord, error) {
	key := identity.HashHex(usageID)

	var settled *usagedomain.UsageRecord
	var amount int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := s.repo.FindByID(ctx, tx, key)
		if err != nil {
			return err
		}
		if record == nil || record.Status != usagedomain.StatusReported {
			// Absent (the None phase) and already-settled records fail
			// the same way: there is nothing in the reported phase.
			return usagedomain.ErrInvalidState
		}

		now := s.clock.Now()
		ok, err := s.repo.MarkSettled(ctx, tx, key, now)
		if err != nil {
			return err
		}
		if !ok {
			return usagedomain.ErrInvalidState
		}

		// Settlement values the record at its price snapshot, so a
		// price change after reporting never affects a pending record.
		amount = record.Units * record.PriceSnapshot
		if err := s.revenueRepo.Credit(ctx, tx, s.genID.Generate(), record.ApiID, amount); err != nil {
			return err
		}

		record.Status = usagedomain.StatusSettled
		record.SettledAt = &now
		settled = record
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("usage settled",
		zap.String("usage_id", settled.UsageID),
		zap.String("api_id", settled.ApiID),
		zap.Int64("amount", amount),
	)
	s.obsMetrics.RecordUsageSettled(ctx, settled.ApiID, amount)
	s.hub.Publish(events.Event{
		Kind:     events.KindUsageSettled,
		ApiID:    settled.ApiID,
		Consumer: settled.Consumer,
		UsageID:  settled.UsageID,
		Units:    settled.Units,
		Amount:   amount,
		At:       *settled.SettledAt,
	})

	return settled, nil
}

func (s *Service) Get(ctx context.Context, usageID common.Hash) (*usagedomain.UsageRecord, error) {
	record, err := s.repo.FindByID(ctx, s.db, identity.HashHex(usageID))
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, usagedomain.ErrNotFound
	}
	return record, nil
}

func (s *Service) ListStaleReported(ctx context.Context, cutoff time.Time, limit int) ([]usagedomain.UsageRecord, error) {
	return s.repo.ListReportedBefore(ctx, s.db, cutoff, limit)
}
