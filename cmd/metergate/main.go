package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/metergate/metergate/internal/authsig"
	"github.com/metergate/metergate/internal/balance"
	"github.com/metergate/metergate/internal/clock"
	"github.com/metergate/metergate/internal/config"
	"github.com/metergate/metergate/internal/events"
	"github.com/metergate/metergate/internal/gateway"
	"github.com/metergate/metergate/internal/history"
	"github.com/metergate/metergate/internal/migration"
	"github.com/metergate/metergate/internal/observability"
	"github.com/metergate/metergate/internal/ratelimit"
	"github.com/metergate/metergate/internal/registry"
	"github.com/metergate/metergate/internal/revenue"
	"github.com/metergate/metergate/internal/scheduler"
	"github.com/metergate/metergate/internal/server"
	"github.com/metergate/metergate/internal/treasury"
	"github.com/metergate/metergate/internal/usage"
	"github.com/metergate/metergate/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		events.Module,
		treasury.Module,
		registry.Module,
		balance.Module,
		usage.Module,
		revenue.Module,
		authsig.Module,
		history.Module,
		ratelimit.Module,
		gateway.Module,

		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
