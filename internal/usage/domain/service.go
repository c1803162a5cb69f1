package domain

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type ReportRequest struct {
	ApiID       common.Hash
	Consumer    common.Address
	Units       int64
	OffchainRef string

	// Reporter is stored on the usage record for audit only. The ledger
	// deliberately does not restrict who reports: that trust boundary
	// belongs to the gateway wired in front of it.
	Reporter common.Address
}

type Service interface {
	// Report debits the consumer's prepaid units and opens a usage
	// record in the reported phase, snapshotting the current price.
	Report(ctx context.Context, req ReportRequest) (*UsageRecord, error)

	// Settle moves a reported record to settled and credits the
	// provider's revenue with units×priceSnapshot. Settling anything
	// not in the reported phase fails with ErrInvalidState; a repeat
	// settle fails cleanly rather than double-crediting.
	Settle(ctx context.Context, usageID common.Hash) (*UsageRecord, error)

	Get(ctx context.Context, usageID common.Hash) (*UsageRecord, error)

	// ListStaleReported returns reported records older than the cutoff,
	// for the gateway's settlement retry job.
	ListStaleReported(ctx context.Context, cutoff time.Time, limit int) ([]UsageRecord, error)
}

var (
	ErrInvalidUnits   = errors.New("invalid_units")
	ErrDuplicateUsage = errors.New("duplicate_usage")
	ErrInvalidState   = errors.New("invalid_state")
	ErrNotFound       = errors.New("not_found")
)
