// Package cli implements the streamswap command line tool.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"cosmossdk.io/math"
	"github.com/spf13/cobra"

	"github.com/xraph/streamswap"
)

// options holds the persistent flags shared by all subcommands.
type options struct {
	configPath string
	now        string
}

// NewRoot constructs the root command with every subcommand attached.
func NewRoot() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "streamswap",
		Short:         "Continuous pro-rata asset streaming ledger",
		Long:          "streamswap runs stream commands against a persistent store and inspects streams and positions.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default is ./streamswap.yaml)")
	root.PersistentFlags().StringVar(&opts.now, "now", "", "evaluation time in RFC 3339 (default is the current time)")

	root.AddCommand(
		newMigrateCommand(opts),
		newCreateCommand(opts),
		newExecCommand(opts),
		newStreamCommand(opts),
		newPositionCommand(opts),
		newAuditCommand(opts),
	)
	return root
}

// session is an opened engine plus the resolved clock.
type session struct {
	cfg    *Config
	engine *streamswap.Engine
	now    time.Time
}

func (s *session) close() { _ = s.engine.Stop() }

// open loads config, opens the store and starts an engine on it.
func (o *options) open(cmd *cobra.Command) (*session, error) {
	now, err := o.clock()
	if err != nil {
		return nil, err
	}

	cfg, err := LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}

	ctx := cmd.Context()
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	engineOpts := []streamswap.Option{
		streamswap.WithLogger(cfg.Logger(cmd.ErrOrStderr())),
		streamswap.WithAdmin(cfg.Admin),
		streamswap.WithFeeCollector(cfg.FeeCollector),
	}
	if cfg.ExitFeePercent != "" {
		fee, err := math.LegacyNewDecFromStr(cfg.ExitFeePercent)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("exit_fee_percent %q: %w", cfg.ExitFeePercent, err)
		}
		engineOpts = append(engineOpts, streamswap.WithExitFee(fee))
	}

	eng := streamswap.New(st, engineOpts...)
	if err := eng.Start(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return &session{cfg: cfg, engine: eng, now: now}, nil
}

func (o *options) clock() (time.Time, error) {
	if o.now == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, o.now)
	if err != nil {
		return time.Time{}, fmt.Errorf("--now: %w", err)
	}
	return t.UTC(), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return NewRoot().ExecuteContext(ctx)
}
