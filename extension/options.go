package extension

import (
	"time"

	"github.com/xraph/streamswap"
	"github.com/xraph/streamswap/plugin"
	"github.com/xraph/streamswap/store"
)

// Option configures the streamswap Forge extension.
type Option func(*Extension)

// WithStore sets the store for the engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithEngineOption passes a streamswap.Option through to the underlying engine.
func WithEngineOption(opt streamswap.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a streamswap plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, streamswap.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithAdmin sets the stream admin address.
func WithAdmin(addr string) Option {
	return func(e *Extension) { e.config.Admin = addr }
}

// WithFeeCollector sets the exit fee recipient.
func WithFeeCollector(addr string) Option {
	return func(e *Extension) { e.config.FeeCollector = addr }
}

// WithExitFeePercent sets the exit fee as a decimal string such as "0.01".
func WithExitFeePercent(percent string) Option {
	return func(e *Extension) { e.config.ExitFeePercent = percent }
}

// WithHookTimeout bounds each plugin hook call.
func WithHookTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.HookTimeout = d }
}

// WithGroveDatabase sets the name of the grove.DB to resolve from the DI container.
// The extension will auto-construct the appropriate store backend (postgres/sqlite/mongo)
// based on the grove driver type. Pass an empty string to use the default (unnamed) grove.DB.
func WithGroveDatabase(name string) Option {
	return func(e *Extension) {
		e.config.GroveDatabase = name
		e.useGrove = true
	}
}
