package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/metergate/metergate/internal/identity"
	"github.com/spf13/viper"
)

// GatewayPolicy is the hot-reloadable part of the gateway configuration:
// per-endpoint metering defaults that operators tune without a restart.
// BackendApis lists the apiIDs served by the built-in demo backend; it
// is read once at startup, not on reload.
type GatewayPolicy struct {
	DefaultUnits   int64            `mapstructure:"defaultUnits"`
	MaxUnits       int64            `mapstructure:"maxUnits"`
	DeadlineSkew   int64            `mapstructure:"deadlineSkewSeconds"`
	UnitsByAPI     map[string]int64 `mapstructure:"unitsByApi"`
	BackendApis    []string         `mapstructure:"backendApis"`
	SettleInline   bool             `mapstructure:"settleInline"`
	HistoryEnabled bool             `mapstructure:"historyEnabled"`
}

func DefaultGatewayPolicy() GatewayPolicy {
	return GatewayPolicy{
		DefaultUnits:   1,
		MaxUnits:       1000,
		DeadlineSkew:   0,
		SettleInline:   true,
		HistoryEnabled: true,
	}
}

type GatewayPolicyHolder struct {
	current atomic.Value // holds GatewayPolicy
}

func NewGatewayPolicyHolder() (*GatewayPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("gateway")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/metergate/config")
	v.AddConfigPath("/etc/metergate")
	v.AddConfigPath(".")

	v.SetEnvPrefix("METERGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultGatewayPolicy()
		v.SetDefault("gateway.defaultUnits", defaults.DefaultUnits)
		v.SetDefault("gateway.maxUnits", defaults.MaxUnits)
		v.SetDefault("gateway.settleInline", defaults.SettleInline)
		v.SetDefault("gateway.historyEnabled", defaults.HistoryEnabled)
	}

	var policy GatewayPolicy
	if err := v.UnmarshalKey("gateway", &policy); err != nil {
		return nil, err
	}
	if err := validateGatewayPolicy(policy); err != nil {
		return nil, err
	}

	holder := &GatewayPolicyHolder{}
	holder.current.Store(policy)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated GatewayPolicy
		if err := v.UnmarshalKey("gateway", &updated); err != nil {
			log.Printf("[gateway-policy] reload failed: %v", err)
			return
		}
		if err := validateGatewayPolicy(updated); err != nil {
			log.Printf("[gateway-policy] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[gateway-policy] reloaded from %s", e.Name)
	})

	return holder, nil
}

// StaticGatewayPolicyHolder pins a fixed policy without the config
// watcher behind it.
func StaticGatewayPolicyHolder(policy GatewayPolicy) (*GatewayPolicyHolder, error) {
	if err := validateGatewayPolicy(policy); err != nil {
		return nil, err
	}
	holder := &GatewayPolicyHolder{}
	holder.current.Store(policy)
	return holder, nil
}

func (h *GatewayPolicyHolder) Get() GatewayPolicy {
	return h.current.Load().(GatewayPolicy)
}

func validateGatewayPolicy(policy GatewayPolicy) error {
	if policy.DefaultUnits <= 0 {
		return errors.New("gateway.defaultUnits must be positive")
	}
	if policy.MaxUnits < policy.DefaultUnits {
		return errors.New("gateway.maxUnits must be >= gateway.defaultUnits")
	}
	for _, raw := range policy.BackendApis {
		if _, err := identity.ParseApiID(raw); err != nil {
			return fmt.Errorf("gateway.backendApis: %q is not an apiID", raw)
		}
	}
	return nil
}
