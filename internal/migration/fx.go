package migration

import (
	authdomain "github.com/metergate/metergate/internal/authsig/domain"
	balancedomain "github.com/metergate/metergate/internal/balance/domain"
	"github.com/metergate/metergate/internal/config"
	historydomain "github.com/metergate/metergate/internal/history/domain"
	registrydomain "github.com/metergate/metergate/internal/registry/domain"
	revenuedomain "github.com/metergate/metergate/internal/revenue/domain"
	treasurydomain "github.com/metergate/metergate/internal/treasury/domain"
	usagedomain "github.com/metergate/metergate/internal/usage/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// sqlite and mysql deployments lean on gorm's schema sync;
			// the versioned SQL path is postgres only.
			return conn.AutoMigrate(
				&registrydomain.ApiConfig{},
				&balancedomain.Balance{},
				&usagedomain.UsageRecord{},
				&revenuedomain.RevenueBalance{},
				&treasurydomain.Holding{},
				&historydomain.CallRecord{},
				&authdomain.ConsumedNonce{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
