package registry

import (
	"github.com/metergate/metergate/internal/registry/repository"
	"github.com/metergate/metergate/internal/registry/service"
	"go.uber.org/fx"
)

var Module = fx.Module("registry.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
