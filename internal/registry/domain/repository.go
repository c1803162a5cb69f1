package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, cfg *ApiConfig) error
	Update(ctx context.Context, db *gorm.DB, cfg *ApiConfig) error
	FindByID(ctx context.Context, db *gorm.DB, apiID string) (*ApiConfig, error)
	ListByProvider(ctx context.Context, db *gorm.DB, provider string) ([]ApiConfig, error)
}
