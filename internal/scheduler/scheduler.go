package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	authdomain "github.com/metergate/metergate/internal/authsig/domain"
	"github.com/metergate/metergate/internal/clock"
	"github.com/metergate/metergate/internal/config"
	"github.com/metergate/metergate/internal/ratelimit"
	usagedomain "github.com/metergate/metergate/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler: invalid configuration")

type Params struct {
	fx.In

	Log      *zap.Logger
	Config   config.Config
	Clock    clock.Clock
	UsageSvc usagedomain.Service
	AuthSvc  authdomain.Service
	Limiter  *ratelimit.GatewayLimiter `optional:"true"`
}

// Scheduler drives the background jobs: retrying settlement of stale
// reported usage and pruning consumed authorization nonces.
type Scheduler struct {
	log      *zap.Logger
	cfg      config.Config
	clock    clock.Clock
	usageSvc usagedomain.Service
	authSvc  authdomain.Service
	limiter  *ratelimit.GatewayLimiter

	batchSize int
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.UsageSvc == nil || p.AuthSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:       p.Log.Named("scheduler"),
		cfg:       p.Config,
		clock:     p.Clock,
		usageSvc:  p.UsageSvc,
		authSvc:   p.AuthSvc,
		limiter:   p.Limiter,
		batchSize: 100,
	}, nil
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{"settle_sweep", s.cfg.Sweeper.Enabled, s.SettleSweepJob},
		{"nonce_prune", s.cfg.AuthNonceTracking, s.NoncePruneJob},
	}

	for _, job := range jobs {
		if !job.Enabled {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, 30*time.Second, job.Run))
	}

	return err
}

func (s *Scheduler) runJob(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	log := s.log.With(zap.String("job", name))
	err := fn(ctx)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			log.Warn("job timed out", zap.Duration("timeout", timeout), zap.Error(err))
			return nil
		}
		return fmt.Errorf("%s: %w", name, err)
	}

	log.Debug("job finished", zap.Duration("elapsed", elapsed))
	return nil
}

// SettleSweepJob settles reported usage older than the configured age.
// Records another instance settled first come back as invalid_state and
// count as done.
func (s *Scheduler) SettleSweepJob(ctx context.Context) error {
	token, acquired, err := s.limiter.TryLockSweep(ctx, s.cfg.Sweeper.Interval)
	if err != nil {
		s.log.Warn("sweep lock unavailable, proceeding unlocked", zap.Error(err))
	} else if !acquired {
		return nil
	} else if token != "" {
		defer func() {
			if err := s.limiter.ReleaseSweep(ctx, token); err != nil {
				s.log.Warn("sweep lock release failed", zap.Error(err))
			}
		}()
	}

	cutoff := s.clock.Now().Add(-s.cfg.Sweeper.MinAge)
	var jobErr error

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		stale, err := s.usageSvc.ListStaleReported(ctx, cutoff, s.batchSize)
		if err != nil {
			return errors.Join(jobErr, err)
		}
		if len(stale) == 0 {
			break
		}

		settled := 0
		for _, record := range stale {
			if ctx.Err() != nil {
				return errors.Join(jobErr, ctx.Err())
			}
			_, err := s.usageSvc.Settle(ctx, common.HexToHash(record.UsageID))
			switch {
			case err == nil:
				settled++
			case errors.Is(err, usagedomain.ErrInvalidState):
				settled++
			default:
				jobErr = errors.Join(jobErr, err)
			}
		}

		s.log.Info("settlement sweep batch",
			zap.Int("stale", len(stale)),
			zap.Int("settled", settled),
		)

		// A batch where nothing settled would refetch the same rows.
		if settled == 0 {
			break
		}
		if len(stale) < s.batchSize {
			break
		}
	}

	return jobErr
}

// NoncePruneJob drops consumed nonces whose deadlines passed more than
// the retention window ago.
func (s *Scheduler) NoncePruneJob(ctx context.Context) error {
	cutoff := s.clock.Now().Add(-s.cfg.NonceRetention)
	_, err := s.authSvc.PruneNonces(ctx, cutoff)
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Sweeper.Interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
