// Package domain contains the prepaid balance model and contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Balance tracks prepaid consumable units per (apiId, consumer) pair.
// The invariant is enforced in SQL: units only rise via prepayment and
// only fall via a usage report, never below zero.
type Balance struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	ApiID        string       `gorm:"type:text;not null;uniqueIndex:ux_balances_api_consumer,priority:1"`
	Consumer     string       `gorm:"type:text;not null;uniqueIndex:ux_balances_api_consumer,priority:2"`
	PrepaidUnits int64        `gorm:"not null"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Balance) TableName() string { return "balances" }
