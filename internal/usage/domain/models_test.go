package domain

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestDeriveUsageIDDeterministic(t *testing.T) {
	apiID := common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111")
	consumer := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	first := DeriveUsageID(apiID, consumer, 3, "ref-1", snowflake.ID(1234))
	second := DeriveUsageID(apiID, consumer, 3, "ref-1", snowflake.ID(1234))
	assert.Equal(t, first, second)
	assert.NotEqual(t, common.Hash{}, first)
}

func TestDeriveUsageIDSensitivity(t *testing.T) {
	apiID := common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111")
	otherApi := common.HexToHash("0x2222222222222222222222222222222222222222222222222222222222222222")
	consumer := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	other := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	base := DeriveUsageID(apiID, consumer, 3, "ref-1", snowflake.ID(1234))

	variants := map[string]common.Hash{
		"api":      DeriveUsageID(otherApi, consumer, 3, "ref-1", snowflake.ID(1234)),
		"consumer": DeriveUsageID(apiID, other, 3, "ref-1", snowflake.ID(1234)),
		"units":    DeriveUsageID(apiID, consumer, 4, "ref-1", snowflake.ID(1234)),
		"ref":      DeriveUsageID(apiID, consumer, 3, "ref-2", snowflake.ID(1234)),
		"salt":     DeriveUsageID(apiID, consumer, 3, "ref-1", snowflake.ID(1235)),
	}
	for name, variant := range variants {
		assert.NotEqual(t, base, variant, name)
	}
}
