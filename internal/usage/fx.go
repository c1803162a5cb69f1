package usage

import (
	"github.com/metergate/metergate/internal/usage/repository"
	"github.com/metergate/metergate/internal/usage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("usage.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
