package streamswap

import (
	"context"
	"log/slog"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	"github.com/go-playground/validator/v10"

	"github.com/xraph/streamswap/fixedpoint"
	"github.com/xraph/streamswap/id"
	"github.com/xraph/streamswap/plugin"
	"github.com/xraph/streamswap/position"
	"github.com/xraph/streamswap/store"
	"github.com/xraph/streamswap/stream"
	"github.com/xraph/streamswap/types"
)

// Engine is the streaming-sale ledger. It owns no state of its own: every
// operation loads the latest persisted stream, applies one transition and
// writes the result back atomically.
type Engine struct {
	store    store.Store
	plugins  *plugin.Registry
	logger   *slog.Logger
	validate *validator.Validate

	// Configuration
	admin        string
	feeCollector string
	exitFee      math.LegacyDec
	skipMigrate  bool

	locks keyedMutex
}

// New creates a new Engine backed by s.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		plugins:  plugin.NewRegistry(),
		logger:   slog.Default(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		exitFee:  math.LegacyZeroDec(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithHookTimeout bounds each plugin hook call.
func WithHookTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.plugins.WithTimeout(d)
	}
}

// WithAdmin sets the address allowed to pause, resume and cancel streams.
func WithAdmin(addr string) Option {
	return func(e *Engine) {
		e.admin = addr
	}
}

// WithFeeCollector sets the recipient of exit fees.
func WithFeeCollector(addr string) Option {
	return func(e *Engine) {
		e.feeCollector = addr
	}
}

// WithExitFee sets the fraction of a successful stream's revenue collected
// as a fee. New streams snapshot the value at creation.
func WithExitFee(percent math.LegacyDec) Option {
	return func(e *Engine) {
		if !percent.IsNil() {
			e.exitFee = percent
		}
	}
}

// WithoutMigrate makes Start skip store migration.
func WithoutMigrate() Option {
	return func(e *Engine) {
		e.skipMigrate = true
	}
}

// Start migrates the store and initializes plugins.
func (e *Engine) Start(ctx context.Context) error {
	if e.exitFee.IsNegative() || e.exitFee.GTE(math.LegacyOneDec()) {
		return errorsmod.Wrapf(ErrInvalidInput, "exit fee %s out of range [0, 1)", e.exitFee)
	}
	if e.exitFee.IsPositive() && e.feeCollector == "" {
		return errorsmod.Wrap(ErrInvalidInput, "exit fee configured without a fee collector")
	}

	if !e.skipMigrate {
		if err := e.store.Migrate(ctx); err != nil {
			return err
		}
	}

	e.plugins.EmitInit(ctx, e)

	e.logger.Info("streamswap started",
		"admin", e.admin,
		"fee_collector", e.feeCollector,
		"exit_fee", e.exitFee.String(),
		"plugins", e.plugins.Count(),
	)

	return nil
}

// Stop shuts down the Engine and closes its store.
func (e *Engine) Stop() error {
	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Health pings the store.
func (e *Engine) Health(ctx context.Context) error { return e.store.Ping(ctx) }

// ──────────────────────────────────────────────────
// Operation plumbing
// ──────────────────────────────────────────────────

// Receipt is the outcome of a committed command.
type Receipt struct {
	Command   string             `json:"command"`
	StreamID  id.StreamID        `json:"stream_id"`
	Status    stream.Status      `json:"status"`
	Stream    *stream.Stream     `json:"stream"`
	Position  *position.Position `json:"position,omitempty"`
	Purchased math.Int           `json:"purchased"`
	Spent     math.Int           `json:"spent"`
	Transfers []types.Transfer   `json:"transfers,omitempty"`
}

func newReceipt() *Receipt {
	return &Receipt{Purchased: math.ZeroInt(), Spent: math.ZeroInt()}
}

// apply runs fn against the latest persisted stream while holding the
// stream's lock, then persists the stream and the receipt's position in one
// write. Any error, including a recovered math panic, aborts without saving.
func (e *Engine) apply(ctx context.Context, op string, streamID id.StreamID, now time.Time, fn func(s *stream.Stream) (*Receipt, error)) (rcpt *Receipt, err error) {
	unlock := e.locks.lock(streamID.String())
	defer unlock()

	defer func() {
		if err != nil {
			e.reject(ctx, op, streamID.String(), err)
		}
	}()
	defer fixedpoint.Recover(&err)

	s, err := e.store.GetStream(ctx, streamID)
	if err != nil {
		return nil, err
	}

	rcpt, err = fn(s)
	if err != nil {
		return nil, err
	}

	s.Touch(now)
	if rcpt.Position != nil {
		rcpt.Position.Touch(now)
	}
	if err := e.store.SaveState(ctx, s, rcpt.Position); err != nil {
		return nil, err
	}

	rcpt.Command = op
	rcpt.StreamID = s.ID
	rcpt.Status = s.Status
	rcpt.Stream = s

	return rcpt, nil
}

func (e *Engine) reject(ctx context.Context, op, streamID string, err error) {
	e.logger.Debug("operation rejected",
		"op", op,
		"stream_id", streamID,
		"error", err,
	)
	e.plugins.EmitOperationRejected(ctx, op, streamID, err)
}

// loadPosition fetches owner's open position and checks sender may act on it.
func (e *Engine) loadPosition(ctx context.Context, s *stream.Stream, owner, sender string) (*position.Position, error) {
	p, err := e.store.GetPosition(ctx, s.ID, owner)
	if err != nil {
		return nil, err
	}
	if !p.Authorized(sender) {
		return nil, errorsmod.Wrapf(ErrUnauthorized, "%s may not act on position of %s", sender, owner)
	}
	if p.IsExited() {
		return nil, errorsmod.Wrapf(ErrPositionAlreadyExited, "owner %s", owner)
	}
	return p, nil
}

// settle syncs s and brings p up to date with it.
func settle(s *stream.Stream, p *position.Position, now time.Time) (purchased, spent math.Int, err error) {
	if _, err := s.Sync(now); err != nil {
		return math.Int{}, math.Int{}, err
	}
	return p.Settle(s.DistIndex, s.Shares, s.LastUpdated, s.InSupply)
}

func appendTransfer(s *stream.Stream, kind types.TransferKind, recipient string, coin types.Coin, out []types.Transfer) []types.Transfer {
	if !coin.IsPositive() {
		return out
	}
	return append(out, types.NewTransfer(s.ID, kind, recipient, coin))
}

func ownerOr(owner, sender string) string {
	if owner != "" {
		return owner
	}
	return sender
}
