package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	// Consume records the pair, reporting false when it was already
	// spent.
	Consume(ctx context.Context, db *gorm.DB, nonce *ConsumedNonce) (bool, error)
	DeleteOlderThan(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error)
}
