package domain

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

// Service moves fungible payment units between accounts. The ledger
// treats this as an external collaborator with an all-or-nothing
// contract: a transfer either fully succeeds or reports ErrTransferFailed.
type Service interface {
	Transfer(ctx context.Context, unit common.Address, from, to common.Address, amount int64) error
	Deposit(ctx context.Context, unit common.Address, account common.Address, amount int64) error
	BalanceOf(ctx context.Context, unit common.Address, account common.Address) (int64, error)
}

var (
	ErrInvalidUnit    = errors.New("invalid_unit")
	ErrInvalidAccount = errors.New("invalid_account")
	ErrInvalidAmount  = errors.New("invalid_amount")

	// ErrTransferFailed is the distinct failure kind callers must treat
	// as aborting the enclosing ledger mutation.
	ErrTransferFailed = errors.New("transfer_failed")
)
