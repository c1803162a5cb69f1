package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	balancedomain "github.com/metergate/metergate/internal/balance/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() balancedomain.Repository {
	return &repo{}
}

func (r *repo) Credit(ctx context.Context, db *gorm.DB, id snowflake.ID, apiID, consumer string, units int64) error {
	now := time.Now().UTC()

	result := db.WithContext(ctx).Exec(
		`UPDATE balances
		 SET prepaid_units = prepaid_units + ?, updated_at = ?
		 WHERE api_id = ? AND consumer = ?`,
		units, now, apiID, consumer,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected != 0 {
		return nil
	}

	return db.WithContext(ctx).Exec(
		`INSERT INTO balances (id, api_id, consumer, prepaid_units, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, apiID, consumer, units, now, now,
	).Error
}

func (r *repo) Debit(ctx context.Context, db *gorm.DB, apiID, consumer string, units int64) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE balances
		 SET prepaid_units = prepaid_units - ?, updated_at = ?
		 WHERE api_id = ? AND consumer = ? AND prepaid_units >= ?`,
		units, time.Now().UTC(), apiID, consumer, units,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected != 0, nil
}

func (r *repo) FindUnits(ctx context.Context, db *gorm.DB, apiID, consumer string) (int64, error) {
	var units int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(prepaid_units), 0) FROM balances WHERE api_id = ? AND consumer = ?`,
		apiID, consumer,
	).Scan(&units).Error
	if err != nil {
		return 0, err
	}
	return units, nil
}
