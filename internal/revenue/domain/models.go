// Package domain contains the provider revenue model and contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// RevenueBalance accumulates settled amounts owed to an API's provider.
// Credited only by settlement, debited only by an authorized withdrawal,
// never negative.
type RevenueBalance struct {
	ID                 snowflake.ID `gorm:"primaryKey"`
	ApiID              string       `gorm:"type:text;not null;uniqueIndex:ux_revenue_balances_api"`
	WithdrawableAmount int64        `gorm:"not null"`
	CreatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (RevenueBalance) TableName() string { return "revenue_balances" }
