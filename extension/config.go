package extension

import "time"

// Config holds the streamswap extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.streamswap" or "streamswap" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Admin is the address allowed to pause, resume and cancel streams.
	Admin string `json:"admin" mapstructure:"admin" yaml:"admin"`

	// FeeCollector receives the exit fee taken from successful streams.
	FeeCollector string `json:"fee_collector" mapstructure:"fee_collector" yaml:"fee_collector"`

	// ExitFeePercent is a decimal fraction in [0, 1), e.g. "0.01".
	ExitFeePercent string `json:"exit_fee_percent" mapstructure:"exit_fee_percent" yaml:"exit_fee_percent"`

	// HookTimeout bounds each plugin hook call (default: 5s).
	HookTimeout time.Duration `json:"hook_timeout" mapstructure:"hook_timeout" yaml:"hook_timeout"`

	// GroveDatabase is the name of a grove.DB registered in the DI container.
	// When set, the extension resolves this named database and auto-constructs
	// the appropriate store based on the driver type (pg/sqlite/mongo).
	// When empty and WithGroveDatabase was called, the default (unnamed) DB is used.
	GroveDatabase string `json:"grove_database" mapstructure:"grove_database" yaml:"grove_database"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ExitFeePercent: "0",
		HookTimeout:    5 * time.Second,
	}
}
