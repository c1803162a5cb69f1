package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticGatewayPolicyHolder(t *testing.T) {
	policy := DefaultGatewayPolicy()
	policy.BackendApis = []string{"0x1111111111111111111111111111111111111111111111111111111111111111"}

	holder, err := StaticGatewayPolicyHolder(policy)
	require.NoError(t, err)
	assert.Equal(t, policy.BackendApis, holder.Get().BackendApis)
}

func TestGatewayPolicyValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*GatewayPolicy)
	}{
		{"zero default units", func(p *GatewayPolicy) { p.DefaultUnits = 0 }},
		{"max below default", func(p *GatewayPolicy) { p.MaxUnits = p.DefaultUnits - 1 }},
		{"malformed backend api", func(p *GatewayPolicy) { p.BackendApis = []string{"0xabcdef"} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			policy := DefaultGatewayPolicy()
			tc.mutate(&policy)
			_, err := StaticGatewayPolicyHolder(policy)
			assert.Error(t, err)
		})
	}
}
