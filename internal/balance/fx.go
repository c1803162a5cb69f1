package balance

import (
	"github.com/metergate/metergate/internal/balance/repository"
	"github.com/metergate/metergate/internal/balance/service"
	"go.uber.org/fx"
)

var Module = fx.Module("balance.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
