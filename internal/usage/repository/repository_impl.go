package repository

import (
	"context"
	"errors"
	"time"

	usagedomain "github.com/metergate/metergate/internal/usage/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() usagedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *usagedomain.UsageRecord) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO usage_records (usage_id, api_id, consumer, units, price_snapshot, payment_unit, status, offchain_ref, reporter, salt_id, reported_at, settled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.UsageID,
		record.ApiID,
		record.Consumer,
		record.Units,
		record.PriceSnapshot,
		record.PaymentUnit,
		string(record.Status),
		record.OffchainRef,
		record.Reporter,
		record.SaltID,
		record.ReportedAt,
		record.SettledAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, usageID string) (*usagedomain.UsageRecord, error) {
	var record usagedomain.UsageRecord
	err := db.WithContext(ctx).Raw(
		`SELECT usage_id, api_id, consumer, units, price_snapshot, payment_unit, status, offchain_ref, reporter, salt_id, reported_at, settled_at
		 FROM usage_records WHERE usage_id = ?`,
		usageID,
	).Scan(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if record.UsageID == "" {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) MarkSettled(ctx context.Context, db *gorm.DB, usageID string, settledAt time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE usage_records
		 SET status = ?, settled_at = ?
		 WHERE usage_id = ? AND status = ?`,
		string(usagedomain.StatusSettled), settledAt, usageID, string(usagedomain.StatusReported),
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected != 0, nil
}

func (r *repo) ListReportedBefore(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]usagedomain.UsageRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []usagedomain.UsageRecord
	err := db.WithContext(ctx).Raw(
		`SELECT usage_id, api_id, consumer, units, price_snapshot, payment_unit, status, offchain_ref, reporter, salt_id, reported_at, settled_at
		 FROM usage_records
		 WHERE status = ? AND reported_at < ?
		 ORDER BY reported_at
		 LIMIT ?`,
		string(usagedomain.StatusReported), cutoff, limit,
	).Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
