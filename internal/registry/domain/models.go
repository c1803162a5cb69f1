// Package domain contains the API registry model and contracts.
package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/metergate/metergate/internal/identity"
)

// ApiConfig is the registration record for one meterable API. Provider
// and PaymentUnit are immutable after registration; price, metadata and
// the active flag are provider-mutable. Rows are never deleted.
type ApiConfig struct {
	ApiID        string    `gorm:"primaryKey;type:text"`
	Provider     string    `gorm:"type:text;not null;index"`
	PaymentUnit  string    `gorm:"type:text;not null"`
	PricePerUnit int64     `gorm:"not null"`
	MetadataRef  string    `gorm:"type:text"`
	Active       bool      `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ApiConfig) TableName() string { return "api_configs" }

// Registered reports whether the config belongs to a registered API.
// The zero value (empty provider) is the read-contract sentinel for an
// unregistered apiId.
func (c ApiConfig) Registered() bool {
	return c.Provider != "" && c.Provider != identity.AddressHex(common.Address{})
}

// ProviderAddress parses the owning identity.
func (c ApiConfig) ProviderAddress() common.Address {
	return common.HexToAddress(c.Provider)
}

// PaymentUnitAddress parses the accepted payment unit.
func (c ApiConfig) PaymentUnitAddress() common.Address {
	return common.HexToAddress(c.PaymentUnit)
}

func (c ApiConfig) ApiIDHash() common.Hash {
	return common.HexToHash(c.ApiID)
}
