package repository

import (
	"context"
	"strings"

	"github.com/metergate/metergate/internal/history/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.CallRecord) error {
	if record == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO call_records (
			id, usage_id, api_id, consumer, units, offchain_ref, metadata, called_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.UsageID,
		record.ApiID,
		record.Consumer,
		record.Units,
		record.OffchainRef,
		record.Metadata,
		record.CalledAt,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.CallRecord, error) {
	var records []*domain.CallRecord
	stmt := db.WithContext(ctx).Model(&domain.CallRecord{}).
		Where("consumer = ?", filter.Consumer)

	if apiID := strings.TrimSpace(filter.ApiID); apiID != "" {
		stmt = stmt.Where("api_id = ?", apiID)
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(called_at < ?) OR (called_at = ? AND id < ?)",
			filter.Cursor.CalledAt,
			filter.Cursor.CalledAt,
			filter.Cursor.ID,
		)
	}

	stmt = stmt.Order("called_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
