package authsig

import (
	"github.com/metergate/metergate/internal/authsig/repository"
	"github.com/metergate/metergate/internal/authsig/service"
	"go.uber.org/fx"
)

var Module = fx.Module("authsig.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
