package treasury

import (
	"github.com/metergate/metergate/internal/treasury/service"
	"go.uber.org/fx"
)

var Module = fx.Module("treasury.service",
	fx.Provide(service.NewService),
)
