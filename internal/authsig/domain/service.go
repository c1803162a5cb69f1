package domain

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type Service interface {
	// Verify checks the signed payload against the expected apiID and
	// returns the consumer identity the signature recovers to. The
	// deadline is compared against now; with nonce tracking enabled the
	// (consumer, nonce) pair is consumed atomically on success.
	Verify(ctx context.Context, payload Payload, signature []byte, expectedApiID common.Hash, now time.Time) (common.Address, error)

	// PruneNonces drops consumed nonces older than the cutoff and
	// returns how many rows went. No-op when tracking is disabled.
	PruneNonces(ctx context.Context, cutoff time.Time) (int64, error)
}

var (
	ErrMalformed        = errors.New("malformed_authorization")
	ErrExpired          = errors.New("expired_authorization")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrNonceUsed        = errors.New("nonce_used")
)
