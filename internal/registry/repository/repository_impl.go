package repository

import (
	"context"
	"errors"

	registrydomain "github.com/metergate/metergate/internal/registry/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() registrydomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, cfg *registrydomain.ApiConfig) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO api_configs (api_id, provider, payment_unit, price_per_unit, metadata_ref, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		cfg.ApiID,
		cfg.Provider,
		cfg.PaymentUnit,
		cfg.PricePerUnit,
		cfg.MetadataRef,
		cfg.Active,
		cfg.CreatedAt,
		cfg.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, cfg *registrydomain.ApiConfig) error {
	return db.WithContext(ctx).Exec(
		`UPDATE api_configs
		 SET price_per_unit = ?, metadata_ref = ?, active = ?, updated_at = ?
		 WHERE api_id = ?`,
		cfg.PricePerUnit,
		cfg.MetadataRef,
		cfg.Active,
		cfg.UpdatedAt,
		cfg.ApiID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, apiID string) (*registrydomain.ApiConfig, error) {
	var cfg registrydomain.ApiConfig
	err := db.WithContext(ctx).Raw(
		`SELECT api_id, provider, payment_unit, price_per_unit, metadata_ref, active, created_at, updated_at
		 FROM api_configs WHERE api_id = ?`,
		apiID,
	).Scan(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if cfg.ApiID == "" {
		return nil, nil
	}
	return &cfg, nil
}

func (r *repo) ListByProvider(ctx context.Context, db *gorm.DB, provider string) ([]registrydomain.ApiConfig, error) {
	var configs []registrydomain.ApiConfig
	err := db.WithContext(ctx).Raw(
		`SELECT api_id, provider, payment_unit, price_per_unit, metadata_ref, active, created_at, updated_at
		 FROM api_configs WHERE provider = ? ORDER BY created_at`,
		provider,
	).Scan(&configs).Error
	if err != nil {
		return nil, err
	}
	return configs, nil
}
