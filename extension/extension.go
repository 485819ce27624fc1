// Package extension provides the Forge extension adapter for streamswap.
//
// It implements the forge.Extension interface to integrate the streaming
// engine into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.streamswap" or
// "streamswap" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"cosmossdk.io/math"
	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/xraph/streamswap"
	"github.com/xraph/streamswap/store"
	"github.com/xraph/streamswap/store/memory"
	"github.com/xraph/streamswap/store/mongo"
	"github.com/xraph/streamswap/store/postgres"
	"github.com/xraph/streamswap/store/sqlite"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "streamswap"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Continuous pro-rata asset streaming engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts streamswap as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *streamswap.Engine
	store      store.Store
	engineOpts []streamswap.Option
	useGrove   bool
}

// New creates a new streamswap Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine.
// This is nil until Register is called.
func (e *Extension) Engine() *streamswap.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil {
		if e.useGrove || e.config.GroveDatabase != "" {
			s, err := e.resolveGroveStore(fapp.Container())
			if err != nil {
				return err
			}
			e.store = s
		} else {
			e.store = memory.New()
		}
	}

	opts, err := e.buildEngineOpts()
	if err != nil {
		return err
	}

	e.engine = streamswap.New(e.store, opts...)

	return vessel.Provide(fapp.Container(), func() (*streamswap.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("streamswap: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("streamswap: store not initialized")
	}
	return e.store.Ping(ctx)
}

// resolveGroveStore looks up the configured grove.DB and wraps it in the
// store matching its driver.
func (e *Extension) resolveGroveStore(c forge.Container) (store.Store, error) {
	var (
		db  *grove.DB
		err error
	)
	if name := e.config.GroveDatabase; name != "" {
		db, err = vessel.InjectNamed[*grove.DB](c, name)
	} else {
		db, err = vessel.Inject[*grove.DB](c)
	}
	if err != nil {
		return nil, fmt.Errorf("streamswap: resolve grove database %q: %w", e.config.GroveDatabase, err)
	}
	return storeForDriver(db)
}

// storeForDriver picks the store backend from the grove driver name.
func storeForDriver(db *grove.DB) (store.Store, error) {
	switch name := db.Driver().Name(); name {
	case "pg":
		return postgres.New(db), nil
	case "sqlite":
		return sqlite.New(db), nil
	case "mongo":
		return mongo.New(db), nil
	default:
		return nil, fmt.Errorf("streamswap: unsupported grove driver %q", name)
	}
}

// buildEngineOpts constructs streamswap.Option values from the resolved config.
func (e *Extension) buildEngineOpts() ([]streamswap.Option, error) {
	opts := make([]streamswap.Option, 0, len(e.engineOpts)+5)

	if e.config.Admin != "" {
		opts = append(opts, streamswap.WithAdmin(e.config.Admin))
	}
	if e.config.FeeCollector != "" {
		opts = append(opts, streamswap.WithFeeCollector(e.config.FeeCollector))
	}
	if e.config.ExitFeePercent != "" {
		fee, err := math.LegacyNewDecFromStr(e.config.ExitFeePercent)
		if err != nil {
			return nil, fmt.Errorf("streamswap: invalid exit_fee_percent %q: %w", e.config.ExitFeePercent, err)
		}
		opts = append(opts, streamswap.WithExitFee(fee))
	}
	if e.config.HookTimeout > 0 {
		opts = append(opts, streamswap.WithHookTimeout(e.config.HookTimeout))
	}
	if e.config.DisableMigrate {
		opts = append(opts, streamswap.WithoutMigrate())
	}

	// Pass-through options go last so they win over config.
	opts = append(opts, e.engineOpts...)

	return opts, nil
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("streamswap: configuration is required but not found in config files; " +
				"ensure 'extensions.streamswap' or 'streamswap' key exists in your config")
		}
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("streamswap: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("admin", e.config.Admin),
		forge.F("fee_collector", e.config.FeeCollector),
		forge.F("exit_fee_percent", e.config.ExitFeePercent),
		forge.F("hook_timeout", e.config.HookTimeout),
		forge.F("grove_database", e.config.GroveDatabase),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.streamswap", "streamswap"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("streamswap: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("streamswap: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.ExitFeePercent == "" {
		cfg.ExitFeePercent = defaults.ExitFeePercent
	}
	if cfg.HookTimeout == 0 {
		cfg.HookTimeout = defaults.HookTimeout
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence; programmatic values fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	if yamlConfig.Admin == "" {
		yamlConfig.Admin = programmaticConfig.Admin
	}
	if yamlConfig.FeeCollector == "" {
		yamlConfig.FeeCollector = programmaticConfig.FeeCollector
	}
	if yamlConfig.ExitFeePercent == "" {
		yamlConfig.ExitFeePercent = programmaticConfig.ExitFeePercent
	}
	if yamlConfig.GroveDatabase == "" {
		yamlConfig.GroveDatabase = programmaticConfig.GroveDatabase
	}
	if yamlConfig.HookTimeout == 0 {
		yamlConfig.HookTimeout = programmaticConfig.HookTimeout
	}

	return e.mergeWithDefaults(yamlConfig)
}
