package events

import "go.uber.org/fx"

// Module provides the ledger event hub.
var Module = fx.Module("events",
	fx.Provide(NewHub),
)
