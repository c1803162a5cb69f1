package service

import (
	"context"
	"math"

	"github.com/bwmarrin/snowflake"
	"github.com/ethereum/go-ethereum/common"
	balancedomain "github.com/metergate/metergate/internal/balance/domain"
	"github.com/metergate/metergate/internal/clock"
	"github.com/metergate/metergate/internal/config"
	"github.com/metergate/metergate/internal/events"
	"github.com/metergate/metergate/internal/identity"
	obsmetrics "github.com/metergate/metergate/internal/observability/metrics"
	registrydomain "github.com/metergate/metergate/internal/registry/domain"
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
	Repo        balancedomain.Repository
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
	repo        balancedomain.Repository
	registrySvc registrydomain.Service
	treasurySvc treasurydomain.Service
	hub         *events.Hub
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p Params) balancedomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("balance.service"),
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

func (s *Service) Prepay(ctx context.Context, req balancedomain.PrepayRequest) (*balancedomain.Balance, error) {
	if req.Units <= 0 {
		return nil, balancedomain.ErrInvalidUnits
	}
	if identity.IsZeroAddress(req.Consumer) {
		return nil, balancedomain.ErrInvalidConsumer
	}
	if identity.IsZeroAddress(req.Payer) {
		return nil, balancedomain.ErrInvalidPayer
	}

	cfg, err := s.registrySvc.Get(ctx, req.ApiID)
	if err != nil {
		return nil, err
	}
	if !cfg.Registered() {
		return nil, registrydomain.ErrNotFound
	}
	if !cfg.Active {
		return nil, registrydomain.ErrInactive
	}

	if req.Units > math.MaxInt64/cfg.PricePerUnit {
		return nil, balancedomain.ErrInvalidUnits
	}
	amount := cfg.PricePerUnit * req.Units

	apiID := identity.HashHex(req.ApiID)
	consumer := identity.AddressHex(req.Consumer)
	payer := identity.AddressHex(req.Payer)

	// The external transfer happens before the credit so the ledger
	// transaction never spans the collaborator call. A storage failure
	// after a successful transfer is compensated with a refund.
	if err := s.treasurySvc.Transfer(ctx, cfg.PaymentUnitAddress(), req.Payer, s.custody, amount); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.Credit(ctx, tx, s.genID.Generate(), apiID, consumer, req.Units)
	})
	if err != nil {
		if refundErr := s.treasurySvc.Transfer(ctx, cfg.PaymentUnitAddress(), s.custody, req.Payer, amount); refundErr != nil {
			s.log.Error("prepay credit failed and refund failed, funds stranded in custody",
				zap.String("api_id", apiID),
				zap.String("payer", payer),
				zap.Int64("amount", amount),
				zap.Error(refundErr),
			)
		}
		return nil, err
	}

	units, err := s.repo.FindUnits(ctx, s.db, apiID, consumer)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	s.log.Info("prepayment accepted",
		zap.String("api_id", apiID),
		zap.String("consumer", consumer),
		zap.String("payer", payer),
		zap.Int64("units", req.Units),
		zap.Int64("amount", amount),
	)
	s.obsMetrics.RecordPrepaid(ctx, apiID, req.Units)
	s.hub.Publish(events.Event{
		Kind:     events.KindUsagePrepaid,
		ApiID:    apiID,
		Consumer: consumer,
		Payer:    payer,
		Units:    req.Units,
		Amount:   amount,
		At:       now,
	})

	return &balancedomain.Balance{
		ApiID:        apiID,
		Consumer:     consumer,
		PrepaidUnits: units,
		UpdatedAt:    now,
	}, nil
}

func (s *Service) PrepaidUnits(ctx context.Context, apiID common.Hash, consumer common.Address) (int64, error) {
	return s.repo.FindUnits(ctx, s.db, identity.HashHex(apiID), identity.AddressHex(consumer))
}
