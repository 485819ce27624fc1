// Package observability provides a metrics extension for streamswap that
// records lifecycle event counts through a MetricFactory.
package observability

import (
	"context"
	"math/big"

	"cosmossdk.io/math"

	"github.com/xraph/streamswap/plugin"
	"github.com/xraph/streamswap/position"
	"github.com/xraph/streamswap/stream"
	"github.com/xraph/streamswap/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin              = (*MetricsExtension)(nil)
	_ plugin.OnInit              = (*MetricsExtension)(nil)
	_ plugin.OnStreamCreated     = (*MetricsExtension)(nil)
	_ plugin.OnStreamUpdated     = (*MetricsExtension)(nil)
	_ plugin.OnStreamPaused      = (*MetricsExtension)(nil)
	_ plugin.OnStreamResumed     = (*MetricsExtension)(nil)
	_ plugin.OnStreamCanceled    = (*MetricsExtension)(nil)
	_ plugin.OnStreamFinalized   = (*MetricsExtension)(nil)
	_ plugin.OnSubscribed        = (*MetricsExtension)(nil)
	_ plugin.OnWithdrawn         = (*MetricsExtension)(nil)
	_ plugin.OnPositionUpdated   = (*MetricsExtension)(nil)
	_ plugin.OnPositionExited    = (*MetricsExtension)(nil)
	_ plugin.OnOperationRejected = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records engine-wide lifecycle metrics.
// Register it as a streamswap plugin to track stream activity.
type MetricsExtension struct {
	factory MetricFactory

	// Stream metrics
	StreamCreated                Counter
	StreamSynced                 Counter
	StreamPaused                 Counter
	StreamResumed                Counter
	StreamCanceled               Counter
	StreamFinalized              Counter
	StreamThresholdNotReached    Counter
	StreamSpentIn                Histogram
	StreamDistributionIncrements Histogram

	// Position metrics
	Subscriptions    Counter
	SubscribedAmount Histogram
	Withdrawals      Counter
	WithdrawnAmount  Histogram
	PositionSettled  Counter
	PositionExited   Counter
	TransfersIssued  Counter

	// Error metrics
	OperationsRejected Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Stream metrics
		StreamCreated:                factory.Counter("streamswap.stream.created"),
		StreamSynced:                 factory.Counter("streamswap.stream.synced"),
		StreamPaused:                 factory.Counter("streamswap.stream.paused"),
		StreamResumed:                factory.Counter("streamswap.stream.resumed"),
		StreamCanceled:               factory.Counter("streamswap.stream.canceled"),
		StreamFinalized:              factory.Counter("streamswap.stream.finalized"),
		StreamThresholdNotReached:    factory.Counter("streamswap.stream.threshold_not_reached"),
		StreamSpentIn:                factory.Histogram("streamswap.stream.spent_in"),
		StreamDistributionIncrements: factory.Histogram("streamswap.stream.dist_index_diff"),

		// Position metrics
		Subscriptions:    factory.Counter("streamswap.position.subscriptions"),
		SubscribedAmount: factory.Histogram("streamswap.position.subscribed_amount"),
		Withdrawals:      factory.Counter("streamswap.position.withdrawals"),
		WithdrawnAmount:  factory.Histogram("streamswap.position.withdrawn_amount"),
		PositionSettled:  factory.Counter("streamswap.position.settled"),
		PositionExited:   factory.Counter("streamswap.position.exited"),
		TransfersIssued:  factory.Counter("streamswap.transfers.issued"),

		// Error metrics
		OperationsRejected: factory.Counter("streamswap.operations.rejected"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// ──────────────────────────────────────────────────
// Stream lifecycle hooks
// ──────────────────────────────────────────────────

// OnStreamCreated implements plugin.OnStreamCreated.
func (m *MetricsExtension) OnStreamCreated(_ context.Context, _ *stream.Stream) error {
	m.StreamCreated.Inc()
	return nil
}

// OnStreamUpdated implements plugin.OnStreamUpdated.
func (m *MetricsExtension) OnStreamUpdated(_ context.Context, _ *stream.Stream, diff math.LegacyDec) error {
	m.StreamSynced.Inc()
	if f, err := diff.Float64(); err == nil {
		m.StreamDistributionIncrements.Observe(f)
	}
	return nil
}

// OnStreamPaused implements plugin.OnStreamPaused.
func (m *MetricsExtension) OnStreamPaused(_ context.Context, _ *stream.Stream) error {
	m.StreamPaused.Inc()
	return nil
}

// OnStreamResumed implements plugin.OnStreamResumed.
func (m *MetricsExtension) OnStreamResumed(_ context.Context, _ *stream.Stream) error {
	m.StreamResumed.Inc()
	return nil
}

// OnStreamCanceled implements plugin.OnStreamCanceled.
func (m *MetricsExtension) OnStreamCanceled(_ context.Context, _ *stream.Stream, transfers []types.Transfer) error {
	m.StreamCanceled.Inc()
	m.TransfersIssued.Add(float64(len(transfers)))
	return nil
}

// OnStreamFinalized implements plugin.OnStreamFinalized.
func (m *MetricsExtension) OnStreamFinalized(_ context.Context, s *stream.Stream, transfers []types.Transfer) error {
	m.StreamFinalized.Inc()
	if s.Status == stream.StatusFinalizedThresholdNotReached {
		m.StreamThresholdNotReached.Inc()
	}
	m.StreamSpentIn.Observe(toFloat(s.SpentIn))
	m.TransfersIssued.Add(float64(len(transfers)))
	return nil
}

// ──────────────────────────────────────────────────
// Position lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscribed implements plugin.OnSubscribed.
func (m *MetricsExtension) OnSubscribed(_ context.Context, _ *stream.Stream, _ *position.Position, amount math.Int) error {
	m.Subscriptions.Inc()
	m.SubscribedAmount.Observe(toFloat(amount))
	return nil
}

// OnWithdrawn implements plugin.OnWithdrawn.
func (m *MetricsExtension) OnWithdrawn(_ context.Context, _ *stream.Stream, _ *position.Position, amount math.Int) error {
	m.Withdrawals.Inc()
	m.WithdrawnAmount.Observe(toFloat(amount))
	m.TransfersIssued.Inc()
	return nil
}

// OnPositionUpdated implements plugin.OnPositionUpdated.
func (m *MetricsExtension) OnPositionUpdated(_ context.Context, _ *stream.Stream, _ *position.Position, _, _ math.Int) error {
	m.PositionSettled.Inc()
	return nil
}

// OnPositionExited implements plugin.OnPositionExited.
func (m *MetricsExtension) OnPositionExited(_ context.Context, _ *stream.Stream, _ *position.Position, transfers []types.Transfer) error {
	m.PositionExited.Inc()
	m.TransfersIssued.Add(float64(len(transfers)))
	return nil
}

// ──────────────────────────────────────────────────
// Failure hooks
// ──────────────────────────────────────────────────

// OnOperationRejected implements plugin.OnOperationRejected.
func (m *MetricsExtension) OnOperationRejected(_ context.Context, _, _ string, _ error) error {
	m.OperationsRejected.Inc()
	return nil
}

// toFloat approximates amounts for histograms.
func toFloat(v math.Int) float64 {
	if v.IsNil() {
		return 0
	}
	f, _ := new(big.Float).SetInt(v.BigInt()).Float64()
	return f
}
