package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the CLI configuration. Values come from an optional YAML file,
// then STREAMSWAP_* environment variables (a .env file in the working
// directory is loaded first).
type Config struct {
	// Driver selects the store: sqlite, postgres, mongo or memory.
	Driver string `mapstructure:"driver"`
	// DSN is the database path, connection string or URI.
	DSN string `mapstructure:"dsn"`

	Admin          string `mapstructure:"admin"`
	FeeCollector   string `mapstructure:"fee_collector"`
	ExitFeePercent string `mapstructure:"exit_fee_percent"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// LoadConfig reads configuration from path (if non-empty) and the
// environment.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("streamswap")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("STREAMSWAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("driver", "sqlite")
	v.SetDefault("dsn", "streamswap.db")
	v.SetDefault("admin", "")
	v.SetDefault("fee_collector", "")
	v.SetDefault("exit_fee_percent", "0")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Logger builds the slog logger described by the config.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
