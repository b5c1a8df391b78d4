package livequery

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/tommyfx/storefront/pkg/datastore"
	"github.com/tommyfx/storefront/pkg/logger"
	"github.com/tommyfx/storefront/pkg/notification"
	"github.com/tommyfx/storefront/pkg/realtime"
	"github.com/tommyfx/storefront/pkg/workerpool"
)

// State is the presentation state of a view.
type State string

const (
	StateLoading   State = "loading"
	StateEmpty     State = "empty"
	StatePopulated State = "populated"
)

// Snapshot is a copy of a view's state, safe to render or serialise.
type Snapshot[T any] struct {
	State   State    `json:"state"`
	Records []T      `json:"records"`
	Busy    []string `json:"busy,omitempty"`
	Message string   `json:"message,omitempty"`
}

// Options configures a View. Pipeline, Key and Broker are required for a
// live view; Load-only views may leave Broker nil.
type Options[T any] struct {
	Pipeline *Pipeline[T]
	Key      func(T) string

	Broker realtime.Broker
	Filter realtime.Filter

	Notifier notification.Notifier
	Pool     *workerpool.Pool
	Policy   FailurePolicy

	// EmptyMessage is shown in the empty state.
	EmptyMessage string
}

// View owns one private, mutable copy of a pipeline's records.
type View[T any] struct {
	opts Options[T]

	mu      sync.Mutex
	state   State
	records []T
	busy    map[string]struct{}
	active  bool
	pending bool
	sub     *realtime.Subscription
	baseCtx context.Context

	emitMu    sync.Mutex
	observers map[int]func(Snapshot[T])
	nextObs   int
}

// New returns an inactive view in the loading state.
func New[T any](opts Options[T]) *View[T] {
	if opts.Notifier == nil {
		opts.Notifier = notification.Log{}
	}
	return &View[T]{
		opts:      opts,
		state:     StateLoading,
		busy:      map[string]struct{}{},
		observers: map[int]func(Snapshot[T]){},
	}
}

// Name is the pipeline name, used in logs and metrics.
func (v *View[T]) Name() string { return v.opts.Pipeline.Name }

// OnChange registers fn to receive a snapshot after every state change.
// fn must not call back into the view. The returned func unregisters it.
func (v *View[T]) OnChange(fn func(Snapshot[T])) (remove func()) {
	v.emitMu.Lock()
	id := v.nextObs
	v.nextObs++
	v.observers[id] = fn
	v.emitMu.Unlock()

	return func() {
		v.emitMu.Lock()
		delete(v.observers, id)
		v.emitMu.Unlock()
	}
}

// Snapshot returns the current state.
func (v *View[T]) Snapshot() Snapshot[T] {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

func (v *View[T]) snapshotLocked() Snapshot[T] {
	snap := Snapshot[T]{
		State:   v.state,
		Records: append([]T{}, v.records...),
	}
	if len(v.busy) > 0 {
		snap.Busy = make([]string, 0, len(v.busy))
		for k := range v.busy {
			snap.Busy = append(snap.Busy, k)
		}
		sort.Strings(snap.Busy)
	}
	if v.state == StateEmpty {
		snap.Message = v.opts.EmptyMessage
	}
	return snap
}

// Busy reports whether key has a mutation outstanding, i.e. whether its
// action controls are disabled.
func (v *View[T]) Busy(key string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.busy[key]
	return ok
}

// Active reports whether the view currently holds its subscription.
func (v *View[T]) Active() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.active
}

// Activate subscribes to changes on the pipeline's table and issues the
// initial fetch once, directly. Each later matching change re-runs the
// whole pipeline and replaces the list. Calling Activate on an active view
// is a no-op.
func (v *View[T]) Activate(ctx context.Context) error {
	if v.opts.Broker == nil {
		return errors.New("livequery: view has no broker")
	}

	v.mu.Lock()
	if v.active {
		v.mu.Unlock()
		return nil
	}
	v.active = true
	v.state = StateLoading
	v.baseCtx = context.WithoutCancel(ctx)
	v.mu.Unlock()

	// Subscribe before fetching so a write landing mid-fetch still
	// triggers a refresh.
	sub, err := v.opts.Broker.Subscribe(v.opts.Pipeline.Query.Table, v.opts.Filter, v.onChange)
	if err != nil {
		v.mu.Lock()
		v.active = false
		v.mu.Unlock()
		return err
	}

	v.mu.Lock()
	if !v.active {
		// Deactivated while subscribing.
		v.mu.Unlock()
		sub.Release()
		return nil
	}
	v.sub = sub
	v.mu.Unlock()

	_ = v.refresh(ctx)
	return nil
}

// Deactivate releases the subscription. Responses still in flight are
// discarded when they arrive. Safe to call more than once.
func (v *View[T]) Deactivate() {
	v.mu.Lock()
	sub := v.sub
	v.sub = nil
	v.active = false
	v.pending = false
	v.mu.Unlock()

	sub.Release()
}

// Watch activates the view, reports every snapshot to fn until ctx ends,
// and always deactivates on return.
func (v *View[T]) Watch(ctx context.Context, fn func(Snapshot[T])) error {
	remove := v.OnChange(fn)
	defer remove()

	if err := v.Activate(ctx); err != nil {
		return err
	}
	defer v.Deactivate()

	<-ctx.Done()
	return nil
}

// Load runs the pipeline once and installs the result without subscribing.
// Request-scoped views use it.
func (v *View[T]) Load(ctx context.Context) error {
	v.mu.Lock()
	v.baseCtx = context.WithoutCancel(ctx)
	v.mu.Unlock()
	return v.install(ctx, true)
}

// Refresh re-runs the pipeline on demand. On an inactive view the result is
// discarded.
func (v *View[T]) Refresh(ctx context.Context) error {
	return v.refresh(ctx)
}

func (v *View[T]) refresh(ctx context.Context) error {
	return v.install(ctx, false)
}

// install runs the pipeline and replaces the list with its result. The last
// response to arrive wins.
func (v *View[T]) install(ctx context.Context, force bool) error {
	recs, err := v.opts.Pipeline.Run(ctx)

	v.mu.Lock()
	if !v.active && !force {
		v.mu.Unlock()
		logger.WithCtx(ctx).Debug("livequery: discarding response for inactive view", "view", v.Name())
		return err
	}
	if err != nil {
		v.records = nil
	} else {
		v.records = recs
	}
	v.state = stateOf(len(v.records))
	v.mu.Unlock()

	if err != nil {
		logger.WithCtx(ctx).Error("livequery: fetch failed", "view", v.Name(), "error", err)
		v.opts.Notifier.Notify(ctx, notification.Destructive(
			"Could not load data",
			"Something went wrong while loading. Please try again.",
		))
	}
	v.emit()
	return err
}

// onChange runs on the broker's goroutine. At most one refresh is queued per
// view; it reads the latest rows when it runs, so further changes arriving
// before it starts are covered by it.
func (v *View[T]) onChange(c datastore.Change) {
	v.mu.Lock()
	if !v.active || v.pending {
		v.mu.Unlock()
		return
	}
	v.pending = true
	ctx := v.baseCtx
	v.mu.Unlock()

	logger.WithCtx(ctx).Debug("livequery: invalidated", "view", v.Name(), "table", c.Table, "kind", c.Kind)

	task := func() {
		v.mu.Lock()
		v.pending = false
		v.mu.Unlock()
		_ = v.refresh(ctx)
	}

	if v.opts.Pool == nil {
		go task()
		return
	}
	if err := v.opts.Pool.SubmitWait(task); err != nil {
		v.mu.Lock()
		v.pending = false
		v.mu.Unlock()
		logger.WithCtx(ctx).Warn("livequery: refresh not scheduled", "view", v.Name(), "error", err)
	}
}

// emit hands the current snapshot to every observer. emitMu orders
// emissions so observers never see an older state after a newer one.
func (v *View[T]) emit() {
	v.emitMu.Lock()
	defer v.emitMu.Unlock()

	if len(v.observers) == 0 {
		return
	}
	snap := v.Snapshot()
	for _, fn := range v.observers {
		fn(snap)
	}
}

func stateOf(n int) State {
	if n == 0 {
		return StateEmpty
	}
	return StatePopulated
}
