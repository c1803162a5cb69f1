package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	revenuedomain "github.com/metergate/metergate/internal/revenue/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() revenuedomain.Repository {
	return &repo{}
}

func (r *repo) Credit(ctx context.Context, db *gorm.DB, id snowflake.ID, apiID string, amount int64) error {
	now := time.Now().UTC()

	result := db.WithContext(ctx).Exec(
		`UPDATE revenue_balances
		 SET withdrawable_amount = withdrawable_amount + ?, updated_at = ?
		 WHERE api_id = ?`,
		amount, now, apiID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected != 0 {
		return nil
	}

	return db.WithContext(ctx).Exec(
		`INSERT INTO revenue_balances (id, api_id, withdrawable_amount, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, apiID, amount, now, now,
	).Error
}

func (r *repo) Debit(ctx context.Context, db *gorm.DB, apiID string, amount int64) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE revenue_balances
		 SET withdrawable_amount = withdrawable_amount - ?, updated_at = ?
		 WHERE api_id = ? AND withdrawable_amount >= ?`,
		amount, time.Now().UTC(), apiID, amount,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected != 0, nil
}

func (r *repo) FindAmount(ctx context.Context, db *gorm.DB, apiID string) (int64, error) {
	var amount int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(withdrawable_amount), 0) FROM revenue_balances WHERE api_id = ?`,
		apiID,
	).Scan(&amount).Error
	if err != nil {
		return 0, err
	}
	return amount, nil
}
