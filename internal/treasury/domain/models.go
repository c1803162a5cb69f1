// Package domain defines the payment-unit custody ledger.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Holding is the balance of one account in one fungible payment unit.
type Holding struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Unit      string       `gorm:"type:text;not null;uniqueIndex:ux_treasury_holdings_unit_account,priority:1"`
	Account   string       `gorm:"type:text;not null;uniqueIndex:ux_treasury_holdings_unit_account,priority:2"`
	Amount    int64        `gorm:"not null"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Holding) TableName() string { return "treasury_holdings" }
