package repository

import (
	"context"
	"time"

	"github.com/metergate/metergate/internal/authsig/domain"
	"github.com/metergate/metergate/pkg/db"
	"gorm.io/gorm"
)

type repositoryImpl struct{}

func Provide() domain.Repository {
	return &repositoryImpl{}
}

func (r *repositoryImpl) Consume(ctx context.Context, dbh *gorm.DB, nonce *domain.ConsumedNonce) (bool, error) {
	err := dbh.WithContext(ctx).Exec(`
		INSERT INTO consumed_nonces (id, consumer, nonce, deadline, consumed_at)
		VALUES (?, ?, ?, ?, ?)
	`, nonce.ID, nonce.Consumer, nonce.Nonce, nonce.Deadline, nonce.ConsumedAt).Error
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// DeleteOlderThan prunes on the stored deadline, not on consumption
// time: a row whose signature can still verify must outlive any
// retention window, or the replay it blocks comes back.
func (r *repositoryImpl) DeleteOlderThan(ctx context.Context, dbh *gorm.DB, cutoff time.Time) (int64, error) {
	res := dbh.WithContext(ctx).Exec(`
		DELETE FROM consumed_nonces WHERE deadline < ?
	`, cutoff.Unix())
	return res.RowsAffected, res.Error
}
