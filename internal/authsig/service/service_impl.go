package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/metergate/metergate/internal/authsig/domain"
	"github.com/metergate/metergate/internal/config"
	"github.com/metergate/metergate/internal/identity"
	obsmetrics "github.com/metergate/metergate/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Config     config.Config
	GenID      *snowflake.Node
	Repo       domain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	chainID     int64
	contract    string
	trackNonces bool
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("authsig.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		chainID:     p.Config.ChainID,
		contract:    p.Config.VerifyingContract,
		trackNonces: p.Config.AuthNonceTracking,
		obsMetrics:  p.ObsMetrics,
	}
}

func (s *Service) Verify(ctx context.Context, payload domain.Payload, signature []byte, expectedApiID common.Hash, now time.Time) (common.Address, error) {
	consumer, err := s.verify(ctx, payload, signature, expectedApiID, now)
	if err != nil {
		s.obsMetrics.RecordAuthFailure(ctx, err.Error())
	}
	return consumer, err
}

func (s *Service) verify(ctx context.Context, payload domain.Payload, signature []byte, expectedApiID common.Hash, now time.Time) (common.Address, error) {
	if identity.IsZeroAddress(payload.Consumer) {
		return common.Address{}, domain.ErrMalformed
	}
	if payload.ApiID != expectedApiID {
		return common.Address{}, domain.ErrMalformed
	}
	if payload.Nonce <= 0 || payload.Deadline <= 0 {
		return common.Address{}, domain.ErrMalformed
	}
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, domain.ErrMalformed
	}
	if payload.Deadline < now.Unix() {
		return common.Address{}, domain.ErrExpired
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData(payload, s.chainID, s.contract))
	if err != nil {
		return common.Address{}, domain.ErrMalformed
	}

	sig := make([]byte, crypto.SignatureLength)
	copy(sig, signature)
	// Wallets emit V as 27/28; go-ethereum recovery wants 0/1.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return common.Address{}, domain.ErrInvalidSignature
	}
	if crypto.PubkeyToAddress(*pub) != payload.Consumer {
		return common.Address{}, domain.ErrInvalidSignature
	}

	if s.trackNonces {
		ok, err := s.repo.Consume(ctx, s.db, &domain.ConsumedNonce{
			ID:         s.genID.Generate().Int64(),
			Consumer:   identity.AddressHex(payload.Consumer),
			Nonce:      payload.Nonce,
			Deadline:   payload.Deadline,
			ConsumedAt: now,
		})
		if err != nil {
			return common.Address{}, err
		}
		if !ok {
			return common.Address{}, domain.ErrNonceUsed
		}
	}

	return payload.Consumer, nil
}

func (s *Service) PruneNonces(ctx context.Context, cutoff time.Time) (int64, error) {
	if !s.trackNonces {
		return 0, nil
	}
	pruned, err := s.repo.DeleteOlderThan(ctx, s.db, cutoff)
	if err != nil {
		return 0, err
	}
	if pruned > 0 {
		s.log.Info("pruned consumed nonces", zap.Int64("rows", pruned), zap.Time("cutoff", cutoff))
	}
	return pruned, nil
}
