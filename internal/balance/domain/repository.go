package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Credit increments the pair's prepaid units, creating the row on
	// first prepayment.
	Credit(ctx context.Context, db *gorm.DB, id snowflake.ID, apiID, consumer string, units int64) error

	// Debit decrements conditionally; it reports false when the stored
	// units are below the requested amount, leaving the row untouched.
	Debit(ctx context.Context, db *gorm.DB, apiID, consumer string, units int64) (bool, error)

	FindUnits(ctx context.Context, db *gorm.DB, apiID, consumer string) (int64, error)
}
