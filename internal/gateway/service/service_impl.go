package service

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	authdomain "github.com/metergate/metergate/internal/authsig/domain"
	"github.com/metergate/metergate/internal/clock"
	"github.com/metergate/metergate/internal/config"
	"github.com/metergate/metergate/internal/gateway/domain"
	historydomain "github.com/metergate/metergate/internal/history/domain"
	"github.com/metergate/metergate/internal/identity"
	obsmetrics "github.com/metergate/metergate/internal/observability/metrics"
	"github.com/metergate/metergate/internal/ratelimit"
	usagedomain "github.com/metergate/metergate/internal/usage/domain"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log          *zap.Logger
	Clock        clock.Clock
	PolicyHolder *config.GatewayPolicyHolder
	AuthSvc      authdomain.Service
	UsageSvc     usagedomain.Service
	HistorySvc   historydomain.Service     `optional:"true"`
	Limiter      *ratelimit.GatewayLimiter `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics       `optional:"true"`
}

type Service struct {
	log          *zap.Logger
	clock        clock.Clock
	policyHolder *config.GatewayPolicyHolder
	authSvc      authdomain.Service
	usageSvc     usagedomain.Service
	historySvc   historydomain.Service
	limiter      *ratelimit.GatewayLimiter
	obsMetrics   *obsmetrics.Metrics

	backends map[string]domain.Backend
	fallback domain.Backend
}

func NewService(p Params) domain.Service {
	s := &Service{
		log:          p.Log.Named("gateway.service"),
		clock:        p.Clock,
		policyHolder: p.PolicyHolder,
		authSvc:      p.AuthSvc,
		usageSvc:     p.UsageSvc,
		historySvc:   p.HistorySvc,
		limiter:      p.Limiter,
		obsMetrics:   p.ObsMetrics,
		backends:     map[string]domain.Backend{},
		fallback:     textTransformBackend{},
	}

	// The demo backend serves the apiIDs the policy names. Entries were
	// validated when the policy loaded.
	for _, raw := range p.PolicyHolder.Get().BackendApis {
		id, err := identity.ParseApiID(raw)
		if err != nil {
			s.log.Warn("skipping backend binding", zap.String("api_id", raw), zap.Error(err))
			continue
		}
		s.RegisterBackend(identity.HashHex(id), textTransformBackend{})
	}

	return s
}

func (s *Service) Call(ctx context.Context, req domain.CallRequest) (*domain.CallResult, error) {
	policy := s.policyHolder.Get()
	apiID := identity.HashHex(req.ApiID)
	claimed := identity.AddressHex(req.Auth.Consumer)

	// Throttle on the claimed consumer before any signature work. A
	// forged claim burns someone else's bucket but never their funds.
	if s.limiter.Enabled() {
		res, err := s.limiter.AllowConsumer(ctx, claimed)
		if err != nil {
			s.log.Warn("rate limiter unavailable, allowing call", zap.Error(err))
		} else if !res.Allowed {
			s.obsMetrics.RecordRateLimitDenied(ctx, "gateway.call", "consumer_bucket")
			return nil, domain.ErrRateLimited
		} else {
			s.obsMetrics.RecordRateLimitAllowed(ctx, "gateway.call")
		}
	}

	now := s.clock.Now()
	if policy.DeadlineSkew > 0 {
		now = now.Add(-time.Duration(policy.DeadlineSkew) * time.Second)
	}
	consumer, err := s.authSvc.Verify(ctx, req.Auth, req.Signature, req.ApiID, now)
	if err != nil {
		return nil, err
	}

	units := req.Units
	if units <= 0 {
		units = policy.DefaultUnits
		if perAPI, ok := policy.UnitsByAPI[apiID]; ok {
			units = perAPI
		}
	}
	if units > policy.MaxUnits {
		return nil, domain.ErrUnitsOutOfRange
	}

	ref := req.OffchainRef
	if ref == "" {
		ref = ulid.Make().String()
	}

	backend := s.backends[apiID]
	if backend == nil {
		backend = s.fallback
	}
	output, err := backend.Invoke(ctx, req.Input)
	if err != nil {
		return nil, err
	}

	record, err := s.usageSvc.Report(ctx, usagedomain.ReportRequest{
		ApiID:       req.ApiID,
		Consumer:    consumer,
		Units:       units,
		OffchainRef: ref,
	})
	if err != nil {
		return nil, err
	}

	settled := false
	if policy.SettleInline {
		if _, err := s.usageSvc.Settle(ctx, common.HexToHash(record.UsageID)); err != nil {
			// Leave the record reported; the sweeper retries it later.
			s.log.Warn("inline settle failed",
				zap.String("usage_id", record.UsageID),
				zap.Error(err),
			)
		} else {
			settled = true
		}
	}

	if policy.HistoryEnabled && s.historySvc != nil {
		if err := s.historySvc.Append(ctx, historydomain.AppendRequest{
			UsageID:     common.HexToHash(record.UsageID),
			ApiID:       req.ApiID,
			Consumer:    consumer,
			Units:       units,
			OffchainRef: ref,
			Metadata: map[string]any{
				"input_bytes":  len(req.Input),
				"output_bytes": len(output),
				"settled":      settled,
			},
		}); err != nil {
			s.log.Warn("history append failed", zap.String("usage_id", record.UsageID), zap.Error(err))
		}
	}

	return &domain.CallResult{
		ApiID:    apiID,
		UsageID:  record.UsageID,
		Consumer: identity.AddressHex(consumer),
		Units:    units,
		Settled:  settled,
		Output:   output,
		Ref:      ref,
	}, nil
}

// RegisterBackend binds a business computation to an apiID. Unbound
// apiIDs fall back to the demo text transform.
func (s *Service) RegisterBackend(apiID string, backend domain.Backend) {
	if backend == nil {
		return
	}
	s.backends[apiID] = backend
}
