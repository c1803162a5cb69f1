package domain

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	authdomain "github.com/metergate/metergate/internal/authsig/domain"
)

// CallRequest is one metered invocation: the signed authorization plus
// the input for the business backend.
type CallRequest struct {
	ApiID       common.Hash
	Auth        authdomain.Payload
	Signature   []byte
	Input       string
	Units       int64
	OffchainRef string
}

type CallResult struct {
	ApiID    string `json:"api_id"`
	UsageID  string `json:"usage_id"`
	Consumer string `json:"consumer"`
	Units    int64  `json:"units"`
	Settled  bool   `json:"settled"`
	Output   string `json:"output"`
	Ref      string `json:"offchain_ref"`
}

type Service interface {
	// Call meters one invocation end to end: authorize, compute,
	// report, settle, then append the display history.
	Call(ctx context.Context, req CallRequest) (*CallResult, error)
}

// Backend is a business computation the gateway fronts. The demo
// deployment registers one backend per apiID.
type Backend interface {
	Invoke(ctx context.Context, input string) (string, error)
}

var (
	ErrUnitsOutOfRange = errors.New("units_out_of_range")
	ErrRateLimited     = errors.New("rate_limited")
	ErrUnknownBackend  = errors.New("unknown_backend")
)
