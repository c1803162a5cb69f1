// Package events is the in-process audit feed for ledger mutations.
// It is observability plumbing, not the source of truth: every event is
// derivable from ledger state.
package events

import "time"

type Kind string

const (
	KindApiRegistered    Kind = "ApiRegistered"
	KindApiConfigUpdated Kind = "ApiConfigUpdated"
	KindUsagePrepaid     Kind = "UsagePrepaid"
	KindUsageReported    Kind = "UsageReported"
	KindUsageSettled     Kind = "UsageSettled"
	KindProviderWithdraw Kind = "ProviderWithdraw"
)

// Event is one ledger mutation notification. Fields that do not apply
// to a given kind are left zero.
type Event struct {
	Kind     Kind      `json:"kind"`
	ApiID    string    `json:"api_id"`
	Provider string    `json:"provider,omitempty"`
	Consumer string    `json:"consumer,omitempty"`
	Payer    string    `json:"payer,omitempty"`
	UsageID  string    `json:"usage_id,omitempty"`
	Units    int64     `json:"units,omitempty"`
	Amount   int64     `json:"amount,omitempty"`
	At       time.Time `json:"at"`
}
