package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"cosmossdk.io/math"

	"github.com/xraph/streamswap/position"
	"github.com/xraph/streamswap/stream"
	"github.com/xraph/streamswap/types"
)

// DefaultTimeout bounds a single hook invocation.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery so emitting never type-asserts.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	onInit              []OnInit
	onShutdown          []OnShutdown
	onStreamCreated     []OnStreamCreated
	onStreamUpdated     []OnStreamUpdated
	onStreamPaused      []OnStreamPaused
	onStreamResumed     []OnStreamResumed
	onStreamCanceled    []OnStreamCanceled
	onStreamFinalized   []OnStreamFinalized
	onSubscribed        []OnSubscribed
	onWithdrawn         []OnWithdrawn
	onPositionUpdated   []OnPositionUpdated
	onPositionExited    []OnPositionExited
	onOperationRejected []OnOperationRejected
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnStreamCreated); ok {
		r.onStreamCreated = append(r.onStreamCreated, v)
	}
	if v, ok := p.(OnStreamUpdated); ok {
		r.onStreamUpdated = append(r.onStreamUpdated, v)
	}
	if v, ok := p.(OnStreamPaused); ok {
		r.onStreamPaused = append(r.onStreamPaused, v)
	}
	if v, ok := p.(OnStreamResumed); ok {
		r.onStreamResumed = append(r.onStreamResumed, v)
	}
	if v, ok := p.(OnStreamCanceled); ok {
		r.onStreamCanceled = append(r.onStreamCanceled, v)
	}
	if v, ok := p.(OnStreamFinalized); ok {
		r.onStreamFinalized = append(r.onStreamFinalized, v)
	}
	if v, ok := p.(OnSubscribed); ok {
		r.onSubscribed = append(r.onSubscribed, v)
	}
	if v, ok := p.(OnWithdrawn); ok {
		r.onWithdrawn = append(r.onWithdrawn, v)
	}
	if v, ok := p.(OnPositionUpdated); ok {
		r.onPositionUpdated = append(r.onPositionUpdated, v)
	}
	if v, ok := p.(OnPositionExited); ok {
		r.onPositionExited = append(r.onPositionExited, v)
	}
	if v, ok := p.(OnOperationRejected); ok {
		r.onOperationRejected = append(r.onOperationRejected, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeFor[OnInit]()},
	{"OnShutdown", reflect.TypeFor[OnShutdown]()},
	{"OnStreamCreated", reflect.TypeFor[OnStreamCreated]()},
	{"OnStreamUpdated", reflect.TypeFor[OnStreamUpdated]()},
	{"OnStreamPaused", reflect.TypeFor[OnStreamPaused]()},
	{"OnStreamResumed", reflect.TypeFor[OnStreamResumed]()},
	{"OnStreamCanceled", reflect.TypeFor[OnStreamCanceled]()},
	{"OnStreamFinalized", reflect.TypeFor[OnStreamFinalized]()},
	{"OnSubscribed", reflect.TypeFor[OnSubscribed]()},
	{"OnWithdrawn", reflect.TypeFor[OnWithdrawn]()},
	{"OnPositionUpdated", reflect.TypeFor[OnPositionUpdated]()},
	{"OnPositionExited", reflect.TypeFor[OnPositionExited]()},
	{"OnOperationRejected", reflect.TypeFor[OnOperationRejected]()},
}

func implementedInterfaces(p Plugin) []string {
	var names []string
	t := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if t.Implements(h.typ) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// emit snapshots hooks under the read lock and calls fn for each one.
func emit[T Plugin](ctx context.Context, r *Registry, hooks *[]T, event string, fn func(T) error) {
	r.mu.RLock()
	plugins := *hooks
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return fn(p)
		}); err != nil {
			r.logger.Warn("plugin "+event+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	emit(ctx, r, &r.onInit, "OnInit", func(p OnInit) error {
		return p.OnInit(ctx, engine)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(ctx, r, &r.onShutdown, "OnShutdown", func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitStreamCreated emits a stream created event.
func (r *Registry) EmitStreamCreated(ctx context.Context, s *stream.Stream) {
	emit(ctx, r, &r.onStreamCreated, "OnStreamCreated", func(p OnStreamCreated) error {
		return p.OnStreamCreated(ctx, s)
	})
}

// EmitStreamUpdated emits a stream sync event.
func (r *Registry) EmitStreamUpdated(ctx context.Context, s *stream.Stream, diff math.LegacyDec) {
	emit(ctx, r, &r.onStreamUpdated, "OnStreamUpdated", func(p OnStreamUpdated) error {
		return p.OnStreamUpdated(ctx, s, diff)
	})
}

// EmitStreamPaused emits a stream paused event.
func (r *Registry) EmitStreamPaused(ctx context.Context, s *stream.Stream) {
	emit(ctx, r, &r.onStreamPaused, "OnStreamPaused", func(p OnStreamPaused) error {
		return p.OnStreamPaused(ctx, s)
	})
}

// EmitStreamResumed emits a stream resumed event.
func (r *Registry) EmitStreamResumed(ctx context.Context, s *stream.Stream) {
	emit(ctx, r, &r.onStreamResumed, "OnStreamResumed", func(p OnStreamResumed) error {
		return p.OnStreamResumed(ctx, s)
	})
}

// EmitStreamCanceled emits a stream cancelled event.
func (r *Registry) EmitStreamCanceled(ctx context.Context, s *stream.Stream, transfers []types.Transfer) {
	emit(ctx, r, &r.onStreamCanceled, "OnStreamCanceled", func(p OnStreamCanceled) error {
		return p.OnStreamCanceled(ctx, s, transfers)
	})
}

// EmitStreamFinalized runs the post-finalize hooks.
func (r *Registry) EmitStreamFinalized(ctx context.Context, s *stream.Stream, transfers []types.Transfer) {
	emit(ctx, r, &r.onStreamFinalized, "OnStreamFinalized", func(p OnStreamFinalized) error {
		return p.OnStreamFinalized(ctx, s, transfers)
	})
}

// EmitSubscribed emits a subscription event.
func (r *Registry) EmitSubscribed(ctx context.Context, s *stream.Stream, pos *position.Position, amount math.Int) {
	emit(ctx, r, &r.onSubscribed, "OnSubscribed", func(p OnSubscribed) error {
		return p.OnSubscribed(ctx, s, pos, amount)
	})
}

// EmitWithdrawn emits a withdrawal event.
func (r *Registry) EmitWithdrawn(ctx context.Context, s *stream.Stream, pos *position.Position, amount math.Int) {
	emit(ctx, r, &r.onWithdrawn, "OnWithdrawn", func(p OnWithdrawn) error {
		return p.OnWithdrawn(ctx, s, pos, amount)
	})
}

// EmitPositionUpdated emits a position settlement event.
func (r *Registry) EmitPositionUpdated(ctx context.Context, s *stream.Stream, pos *position.Position, purchased, spent math.Int) {
	emit(ctx, r, &r.onPositionUpdated, "OnPositionUpdated", func(p OnPositionUpdated) error {
		return p.OnPositionUpdated(ctx, s, pos, purchased, spent)
	})
}

// EmitPositionExited emits a position exit event.
func (r *Registry) EmitPositionExited(ctx context.Context, s *stream.Stream, pos *position.Position, transfers []types.Transfer) {
	emit(ctx, r, &r.onPositionExited, "OnPositionExited", func(p OnPositionExited) error {
		return p.OnPositionExited(ctx, s, pos, transfers)
	})
}

// EmitOperationRejected emits a rejected command event.
func (r *Registry) EmitOperationRejected(ctx context.Context, op, streamID string, opErr error) {
	emit(ctx, r, &r.onOperationRejected, "OnOperationRejected", func(p OnOperationRejected) error {
		return p.OnOperationRejected(ctx, op, streamID, opErr)
	})
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the operation pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
