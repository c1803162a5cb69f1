package domain

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

type RegisterRequest struct {
	ApiID        common.Hash
	PaymentUnit  common.Address
	PricePerUnit int64
	MetadataRef  string
	Caller       common.Address
}

type UpdateRequest struct {
	ApiID        common.Hash
	PricePerUnit *int64
	MetadataRef  *string
	Active       *bool
	Caller       common.Address
}

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*ApiConfig, error)
	Update(ctx context.Context, req UpdateRequest) (*ApiConfig, error)

	// Get returns the zero-value config when the apiId is unregistered;
	// callers check Registered() rather than treating absence as an error.
	Get(ctx context.Context, apiID common.Hash) (ApiConfig, error)

	ListByProvider(ctx context.Context, provider common.Address) ([]ApiConfig, error)
}

var (
	ErrAlreadyExists      = errors.New("already_exists")
	ErrInvalidPaymentUnit = errors.New("invalid_payment_unit")
	ErrInvalidPrice       = errors.New("invalid_price")
	ErrInvalidCaller      = errors.New("invalid_caller")
	ErrNotFound           = errors.New("not_found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInactive           = errors.New("inactive")
)
