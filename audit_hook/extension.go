// Package audithook bridges streamswap lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import any
// audit backend directly. Callers inject a RecorderFunc adapter at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"cosmossdk.io/math"

	"github.com/xraph/streamswap/plugin"
	"github.com/xraph/streamswap/position"
	"github.com/xraph/streamswap/stream"
	"github.com/xraph/streamswap/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin              = (*Extension)(nil)
	_ plugin.OnStreamCreated     = (*Extension)(nil)
	_ plugin.OnStreamUpdated     = (*Extension)(nil)
	_ plugin.OnStreamPaused      = (*Extension)(nil)
	_ plugin.OnStreamResumed     = (*Extension)(nil)
	_ plugin.OnStreamCanceled    = (*Extension)(nil)
	_ plugin.OnStreamFinalized   = (*Extension)(nil)
	_ plugin.OnSubscribed        = (*Extension)(nil)
	_ plugin.OnWithdrawn         = (*Extension)(nil)
	_ plugin.OnPositionUpdated   = (*Extension)(nil)
	_ plugin.OnPositionExited    = (*Extension)(nil)
	_ plugin.OnOperationRejected = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges streamswap lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Stream lifecycle hooks
// ──────────────────────────────────────────────────

// OnStreamCreated implements plugin.OnStreamCreated.
func (e *Extension) OnStreamCreated(ctx context.Context, s *stream.Stream) error {
	return e.record(ctx, ActionStreamCreated, SeverityInfo, OutcomeSuccess,
		ResourceStream, s.ID.String(), CategoryLifecycle, nil,
		"creator", s.Creator,
		"out", s.OutAsset.String(),
		"in_denom", s.InDenom,
		"start_time", s.StartTime,
		"end_time", s.EndTime,
	)
}

// OnStreamUpdated implements plugin.OnStreamUpdated.
func (e *Extension) OnStreamUpdated(ctx context.Context, s *stream.Stream, diff math.LegacyDec) error {
	return e.record(ctx, ActionStreamSynced, SeverityInfo, OutcomeSuccess,
		ResourceStream, s.ID.String(), CategoryLifecycle, nil,
		"diff", diff.String(),
		"dist_index", s.DistIndex.String(),
		"out_remaining", s.OutRemaining.String(),
	)
}

// OnStreamPaused implements plugin.OnStreamPaused.
func (e *Extension) OnStreamPaused(ctx context.Context, s *stream.Stream) error {
	return e.record(ctx, ActionStreamPaused, SeverityWarning, OutcomeSuccess,
		ResourceStream, s.ID.String(), CategoryAdmin, nil,
		"pause_date", s.PauseDate,
	)
}

// OnStreamResumed implements plugin.OnStreamResumed.
func (e *Extension) OnStreamResumed(ctx context.Context, s *stream.Stream) error {
	return e.record(ctx, ActionStreamResumed, SeverityInfo, OutcomeSuccess,
		ResourceStream, s.ID.String(), CategoryAdmin, nil,
		"end_time", s.EndTime,
	)
}

// OnStreamCanceled implements plugin.OnStreamCanceled.
func (e *Extension) OnStreamCanceled(ctx context.Context, s *stream.Stream, transfers []types.Transfer) error {
	return e.record(ctx, ActionStreamCanceled, SeverityWarning, OutcomeSuccess,
		ResourceStream, s.ID.String(), CategoryAdmin, nil,
		"status", string(s.Status),
		"transfers", transferSummary(transfers),
	)
}

// OnStreamFinalized implements plugin.OnStreamFinalized.
func (e *Extension) OnStreamFinalized(ctx context.Context, s *stream.Stream, transfers []types.Transfer) error {
	return e.record(ctx, ActionStreamFinalized, SeverityInfo, OutcomeSuccess,
		ResourceStream, s.ID.String(), CategorySettlement, nil,
		"status", string(s.Status),
		"spent_in", s.SpentIn.String(),
		"transfers", transferSummary(transfers),
	)
}

// ──────────────────────────────────────────────────
// Position lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscribed implements plugin.OnSubscribed.
func (e *Extension) OnSubscribed(ctx context.Context, s *stream.Stream, p *position.Position, amount math.Int) error {
	return e.record(ctx, ActionPositionSubscribed, SeverityInfo, OutcomeSuccess,
		ResourcePosition, p.ID.String(), CategoryTrading, nil,
		"stream_id", s.ID.String(),
		"owner", p.Owner,
		"amount", amount.String(),
		"shares", p.Shares.String(),
	)
}

// OnWithdrawn implements plugin.OnWithdrawn.
func (e *Extension) OnWithdrawn(ctx context.Context, s *stream.Stream, p *position.Position, amount math.Int) error {
	return e.record(ctx, ActionPositionWithdrawn, SeverityInfo, OutcomeSuccess,
		ResourcePosition, p.ID.String(), CategoryTrading, nil,
		"stream_id", s.ID.String(),
		"owner", p.Owner,
		"amount", amount.String(),
		"in_balance", p.InBalance.String(),
	)
}

// OnPositionUpdated implements plugin.OnPositionUpdated.
func (e *Extension) OnPositionUpdated(ctx context.Context, s *stream.Stream, p *position.Position, purchased, spent math.Int) error {
	return e.record(ctx, ActionPositionUpdated, SeverityInfo, OutcomeSuccess,
		ResourcePosition, p.ID.String(), CategoryTrading, nil,
		"stream_id", s.ID.String(),
		"owner", p.Owner,
		"operator", p.Operator,
		"purchased", purchased.String(),
		"spent", spent.String(),
	)
}

// OnPositionExited implements plugin.OnPositionExited.
func (e *Extension) OnPositionExited(ctx context.Context, s *stream.Stream, p *position.Position, transfers []types.Transfer) error {
	return e.record(ctx, ActionPositionExited, SeverityInfo, OutcomeSuccess,
		ResourcePosition, p.ID.String(), CategorySettlement, nil,
		"stream_id", s.ID.String(),
		"owner", p.Owner,
		"status", string(s.Status),
		"transfers", transferSummary(transfers),
	)
}

// ──────────────────────────────────────────────────
// Failure hooks
// ──────────────────────────────────────────────────

// OnOperationRejected implements plugin.OnOperationRejected.
func (e *Extension) OnOperationRejected(ctx context.Context, op, streamID string, opErr error) error {
	return e.record(ctx, ActionOperationRejected, SeverityWarning, OutcomeFailure,
		ResourceStream, streamID, CategoryLifecycle, opErr,
		"operation", op,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}

// transferSummary renders transfers as "recipient:coin" strings.
func transferSummary(transfers []types.Transfer) []string {
	out := make([]string, len(transfers))
	for i, t := range transfers {
		out[i] = t.Recipient + ":" + t.Coin.String()
	}
	return out
}
