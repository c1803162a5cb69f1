package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Payload is the typed-data struct a consumer signs to authorize one
// metered call. Deadline bounds the signature's lifetime; Nonce makes
// each authorization distinct (and, with nonce tracking enabled,
// single-use).
type Payload struct {
	Consumer common.Address `json:"consumer"`
	ApiID    common.Hash    `json:"apiId"`
	Nonce    int64          `json:"nonce"`
	Deadline int64          `json:"deadline"` // unix seconds
}

// ConsumedNonce is a spent (consumer, nonce) pair. Rows whose deadline
// lies beyond the retention window are pruned: once the deadline has
// passed, the signature itself can no longer verify, so forgetting the
// pair is safe.
type ConsumedNonce struct {
	ID         int64  `gorm:"primaryKey"`
	Consumer   string `gorm:"type:text;not null;uniqueIndex:idx_consumed_nonces_pair,priority:1"`
	Nonce      int64  `gorm:"not null;uniqueIndex:idx_consumed_nonces_pair,priority:2"`
	Deadline   int64  `gorm:"not null;index:idx_consumed_nonces_deadline"`
	ConsumedAt time.Time
}

func (ConsumedNonce) TableName() string {
	return "consumed_nonces"
}
