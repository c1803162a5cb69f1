package domain

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

type PrepayRequest struct {
	ApiID    common.Hash
	Units    int64
	Consumer common.Address
	Payer    common.Address
}

type Service interface {
	// Prepay moves pricePerUnit*units of the payment unit from the payer
	// into custody, then credits the consumer's prepaid units. The
	// transfer and the credit are all-or-nothing.
	Prepay(ctx context.Context, req PrepayRequest) (*Balance, error)

	PrepaidUnits(ctx context.Context, apiID common.Hash, consumer common.Address) (int64, error)
}

var (
	ErrInvalidUnits        = errors.New("invalid_units")
	ErrInvalidConsumer     = errors.New("invalid_consumer")
	ErrInvalidPayer        = errors.New("invalid_payer")
	ErrInsufficientBalance = errors.New("insufficient_balance")
)
