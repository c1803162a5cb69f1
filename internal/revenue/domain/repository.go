package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Credit increments the API's withdrawable amount, creating the row
	// on first settlement. Runs inside the settlement transaction.
	Credit(ctx context.Context, db *gorm.DB, id snowflake.ID, apiID string, amount int64) error

	// Debit decrements conditionally; it reports false when the stored
	// amount is below the requested amount.
	Debit(ctx context.Context, db *gorm.DB, apiID string, amount int64) (bool, error)

	FindAmount(ctx context.Context, db *gorm.DB, apiID string) (int64, error)
}
