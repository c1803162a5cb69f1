package history

import (
	"github.com/metergate/metergate/internal/history/repository"
	"github.com/metergate/metergate/internal/history/service"
	"go.uber.org/fx"
)

var Module = fx.Module("history.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
