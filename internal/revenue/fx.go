package revenue

import (
	"github.com/metergate/metergate/internal/revenue/repository"
	"github.com/metergate/metergate/internal/revenue/service"
	"go.uber.org/fx"
)

var Module = fx.Module("revenue.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
