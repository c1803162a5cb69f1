package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// CallRecord is the display log behind the consumer's call history. It
// duplicates fields the usage ledger already holds so listing never
// joins against accounting tables.
type CallRecord struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	UsageID     string            `gorm:"type:text;not null;index" json:"usage_id"`
	ApiID       string            `gorm:"type:text;not null;index:idx_call_records_api_consumer,priority:1" json:"api_id"`
	Consumer    string            `gorm:"type:text;not null;index:idx_call_records_api_consumer,priority:2" json:"consumer"`
	Units       int64             `gorm:"not null" json:"units"`
	OffchainRef string            `gorm:"type:text" json:"offchain_ref"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CalledAt    time.Time         `gorm:"not null;index" json:"called_at"`
}

func (CallRecord) TableName() string {
	return "call_records"
}

type Cursor struct {
	ID       snowflake.ID
	CalledAt time.Time
}

type ListFilter struct {
	Consumer string
	ApiID    string
	Cursor   *Cursor
	Limit    int
}
