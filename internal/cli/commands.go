package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"cosmossdk.io/math"
	"github.com/spf13/cobra"

	"github.com/xraph/streamswap"
	"github.com/xraph/streamswap/id"
	"github.com/xraph/streamswap/stream"
)

// lastStream is the stream_id placeholder exec replaces with the stream
// created most recently in the same run.
const lastStream = "$last"

func newMigrateCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the store schema",
		Long:  "Opens the configured store and applies pending migrations. Every other command does the same on startup.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "migrated %s store\n", s.cfg.Driver)
			return err
		},
	}
}

func newCreateCommand(opts *options) *cobra.Command {
	var (
		c         streamswap.CreateStream
		out       string
		start     string
		end       string
		bootstrap string
		threshold string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if c.OutAsset, err = streamswap.ParseCoin(out); err != nil {
				return fmt.Errorf("--out: %w", err)
			}
			if c.StartTime, err = time.Parse(time.RFC3339Nano, start); err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			if c.EndTime, err = time.Parse(time.RFC3339Nano, end); err != nil {
				return fmt.Errorf("--end: %w", err)
			}
			if bootstrap != "" {
				b, err := time.Parse(time.RFC3339Nano, bootstrap)
				if err != nil {
					return fmt.Errorf("--bootstrap-start: %w", err)
				}
				c.BootstrappingStartTime = &b
			}
			if threshold != "" {
				th, ok := math.NewIntFromString(threshold)
				if !ok {
					return fmt.Errorf("--threshold: invalid integer %q", threshold)
				}
				c.Threshold = &th
			}

			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			rcpt, err := s.engine.CreateStream(cmd.Context(), s.now, c)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rcpt)
		},
	}

	f := cmd.Flags()
	f.StringVar(&c.Name, "name", "", "stream name")
	f.StringVar(&c.URL, "url", "", "stream info URL")
	f.StringVar(&c.Creator, "creator", "", "creator address")
	f.StringVar(&out, "out", "", "out asset, e.g. 1000000ulaunch")
	f.StringVar(&c.InDenom, "in-denom", "", "denom participants pay with")
	f.StringVar(&start, "start", "", "start time (RFC 3339)")
	f.StringVar(&end, "end", "", "end time (RFC 3339)")
	f.StringVar(&bootstrap, "bootstrap-start", "", "bootstrapping start time (RFC 3339)")
	f.StringVar(&threshold, "threshold", "", "minimum in amount for the stream to succeed")
	for _, name := range []string{"name", "creator", "out", "in-denom", "start", "end"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newExecCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "exec [file]",
		Short: "Run JSON command envelopes from a file or stdin",
		Long: `Reads a sequence of JSON command envelopes such as
{"type": "subscribe", "stream_id": "...", "sender": "alice", "amount": "100"}
and runs them in order. An envelope may carry its own "at" time; otherwise
--now is used. A stream_id of "$last" refers to the stream most recently
created in the same run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			return runEnvelopes(cmd, s, in)
		},
	}
}

// envelopeMeta holds the exec-only fields of an envelope.
type envelopeMeta struct {
	StreamID *string    `json:"stream_id"`
	At       *time.Time `json:"at"`
}

func runEnvelopes(cmd *cobra.Command, s *session, in io.Reader) error {
	dec := json.NewDecoder(in)
	var last id.StreamID

	for n := 1; ; n++ {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("command %d: %w", n, err)
		}

		var meta envelopeMeta
		if err := json.Unmarshal(raw, &meta); err != nil {
			return fmt.Errorf("command %d: %w", n, err)
		}
		if meta.StreamID != nil && *meta.StreamID == lastStream {
			if last.IsNil() {
				return fmt.Errorf("command %d: %s used before any stream was created", n, lastStream)
			}
			quoted, _ := json.Marshal(lastStream)
			raw = bytes.Replace(raw, quoted, []byte(`"`+last.String()+`"`), 1)
		}

		c, err := streamswap.DecodeCommand(raw)
		if err != nil {
			return fmt.Errorf("command %d: %w", n, err)
		}
		now := s.now
		if meta.At != nil {
			now = meta.At.UTC()
		}

		rcpt, err := s.engine.Execute(cmd.Context(), now, c)
		if err != nil {
			return fmt.Errorf("command %d (%s): %w", n, c.Op(), err)
		}
		if c.Op() == streamswap.OpCreateStream {
			last = rcpt.StreamID
		}
		if err := writeJSON(cmd.OutOrStdout(), rcpt); err != nil {
			return err
		}
	}
}

// streamView is the output of the stream command.
type streamView struct {
	Stream       *streamswap.Stream    `json:"stream"`
	CurrentPrice math.LegacyDec        `json:"current_price"`
	AveragePrice math.LegacyDec        `json:"average_price"`
	Threshold    stream.ThresholdState `json:"threshold"`
}

func newStreamCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stream <stream-id>",
		Short: "Show a stream synced to --now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sid, err := id.ParseStreamID(args[0])
			if err != nil {
				return err
			}
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			ctx := cmd.Context()
			var view streamView
			if view.Stream, err = s.engine.GetStreamAt(ctx, sid, s.now); err != nil {
				return err
			}
			if view.CurrentPrice, err = s.engine.CurrentPrice(ctx, sid, s.now); err != nil {
				return err
			}
			if view.AveragePrice, err = s.engine.AveragePrice(ctx, sid, s.now); err != nil {
				return err
			}
			if view.Threshold, err = s.engine.Threshold(ctx, sid, s.now); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), view)
		},
	}
}

func newPositionCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "position <stream-id> <owner>",
		Short: "Show a position settled to --now",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sid, err := id.ParseStreamID(args[0])
			if err != nil {
				return err
			}
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			p, err := s.engine.GetPositionAt(cmd.Context(), sid, args[1], s.now)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), p)
		},
	}
}

func newAuditCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "audit <stream-id>",
		Short: "Check share and out-asset conservation for a stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sid, err := id.ParseStreamID(args[0])
			if err != nil {
				return err
			}
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			report, err := s.engine.CheckInvariants(cmd.Context(), sid)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if !report.OK() {
				return fmt.Errorf("stream %s: %d invariant violation(s)", sid, len(report.Violations))
			}
			return nil
		},
	}
}
