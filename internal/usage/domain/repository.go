package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *UsageRecord) error
	FindByID(ctx context.Context, db *gorm.DB, usageID string) (*UsageRecord, error)

	// MarkSettled flips reported→settled conditionally; it reports
	// false when the record is absent or not in the reported phase.
	MarkSettled(ctx context.Context, db *gorm.DB, usageID string, settledAt time.Time) (bool, error)

	ListReportedBefore(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]UsageRecord, error)
}
