package domain

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

type WithdrawRequest struct {
	ApiID       common.Hash
	Amount      int64
	Destination common.Address
	Caller      common.Address
}

type Service interface {
	// Withdraw decrements the API's revenue balance and pays the
	// destination from custody. Decrement and transfer are
	// all-or-nothing: a failed transfer leaves the balance untouched.
	Withdraw(ctx context.Context, req WithdrawRequest) error

	BalanceOf(ctx context.Context, apiID common.Hash) (int64, error)
}

var (
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidDestination  = errors.New("invalid_destination")
	ErrInsufficientRevenue = errors.New("insufficient_revenue")
)
