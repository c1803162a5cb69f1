// Package domain contains the usage ledger model and contracts.
package domain

import (
	"encoding/binary"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Status is the usage record phase. The None phase has no row; a row
// exists only once reported.
type Status string

const (
	StatusReported Status = "reported"
	StatusSettled  Status = "settled"
)

// UsageRecord is one metered consumption event. Append-only: records
// transition reported→settled and are never deleted.
type UsageRecord struct {
	UsageID       string       `gorm:"primaryKey;type:text"`
	ApiID         string       `gorm:"type:text;not null;index"`
	Consumer      string       `gorm:"type:text;not null;index"`
	Units         int64        `gorm:"not null"`
	PriceSnapshot int64        `gorm:"not null"`
	PaymentUnit   string       `gorm:"type:text;not null"`
	Status        Status       `gorm:"type:text;not null;index"`
	OffchainRef   string       `gorm:"type:text"`
	Reporter      string       `gorm:"type:text;not null;default:''"`
	SaltID        snowflake.ID `gorm:"not null"`
	ReportedAt    time.Time    `gorm:"not null"`
	SettledAt     *time.Time
}

// TableName sets the database table name.
func (UsageRecord) TableName() string { return "usage_records" }

// DeriveUsageID computes the collision-resistant usage identifier from
// the report inputs plus the environment salt. The salt is a snowflake
// ID, which encodes the millisecond timestamp and a per-node sequence
// number, so two well-behaved reports never collide; the ledger still
// checks existence before inserting.
func DeriveUsageID(apiID common.Hash, consumer common.Address, units int64, offchainRef string, salt snowflake.ID) common.Hash {
	buf := make([]byte, 0, 32+20+8+8+len(offchainRef))
	buf = append(buf, apiID.Bytes()...)
	buf = append(buf, consumer.Bytes()...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(units))
	buf = binary.BigEndian.AppendUint64(buf, uint64(salt.Int64()))
	buf = append(buf, []byte(offchainRef)...)
	return crypto.Keccak256Hash(buf)
}
