package livequery

import (
	"context"

	"github.com/tommyfx/storefront/pkg/logger"
	"github.com/tommyfx/storefront/pkg/metrics"
	"github.com/tommyfx/storefront/pkg/notification"
)

// FailurePolicy decides what happens to an optimistic change whose remote
// write failed.
type FailurePolicy int

const (
	// KeepOptimistic leaves the local change in place and warns once. The
	// next invalidation refetch brings the list back in line with remote.
	KeepOptimistic FailurePolicy = iota
	// RollbackOnFailure restores the record as it was before the mutation.
	RollbackOnFailure
)

// ParsePolicy maps the config value "rollback" to RollbackOnFailure and
// anything else to KeepOptimistic.
func ParsePolicy(s string) FailurePolicy {
	if s == "rollback" {
		return RollbackOnFailure
	}
	return KeepOptimistic
}

func (p FailurePolicy) String() string {
	if p == RollbackOnFailure {
		return "rollback"
	}
	return "keep"
}

// Mutation is one user action against a single record.
type Mutation[T any] struct {
	Kind string // approve, unapprove, delete, submit, ...
	Key  string

	// Apply returns the list with the change made. It receives a copy.
	Apply func([]T) []T

	// Remote performs the write against the data source.
	Remote func(ctx context.Context) error
}

// Outcome describes how a mutation settled.
type Outcome struct {
	Persisted  bool `json:"persisted"`
	RolledBack bool `json:"rolled_back"`
}

// Mutate applies m to the local list at once, then issues the remote write.
// While the write is outstanding m.Key is busy and further mutations on it
// fail with ErrMutationInFlight. On failure the view's FailurePolicy
// decides whether the local change stays, and the user gets exactly one
// notice: a warning when it stays, a destructive notice when it is undone.
// The returned error is a *MutationError in that case.
func (v *View[T]) Mutate(ctx context.Context, m Mutation[T]) (Outcome, error) {
	v.mu.Lock()
	if _, busy := v.busy[m.Key]; busy {
		v.mu.Unlock()
		metrics.Mutations.WithLabelValues(v.Name(), m.Kind, "rejected").Inc()
		return Outcome{}, ErrMutationInFlight
	}
	v.busy[m.Key] = struct{}{}
	before := v.records
	pos, prev, existed := v.locate(m.Key)
	v.records = m.Apply(append([]T(nil), v.records...))
	v.state = stateOf(len(v.records))
	v.mu.Unlock()
	v.emit()

	err := m.Remote(ctx)

	rolledBack := false
	v.mu.Lock()
	delete(v.busy, m.Key)
	if err != nil && v.opts.Policy == RollbackOnFailure {
		v.records = v.restore(m.Key, pos, prev, existed, before)
		v.state = stateOf(len(v.records))
		rolledBack = true
	}
	v.mu.Unlock()
	v.emit()

	if err == nil {
		metrics.Mutations.WithLabelValues(v.Name(), m.Kind, "persisted").Inc()
		return Outcome{Persisted: true}, nil
	}

	outcome := "kept"
	notice := notification.Warning("Changed locally", "The change may not be persisted.")
	if rolledBack {
		outcome = "rolled_back"
		notice = notification.Destructive("Change not saved", "The change could not be saved and was undone.")
	}
	metrics.Mutations.WithLabelValues(v.Name(), m.Kind, outcome).Inc()

	merr := &MutationError{Kind: m.Kind, Key: m.Key, RolledBack: rolledBack, Err: err}
	logger.WithCtx(ctx).Error("livequery: remote write failed", "view", v.Name(), "error", merr)
	v.opts.Notifier.Notify(ctx, notice)

	return Outcome{RolledBack: rolledBack}, merr
}

// locate finds key in the current list. Caller holds v.mu.
func (v *View[T]) locate(key string) (int, T, bool) {
	var zero T
	if v.opts.Key == nil {
		return -1, zero, false
	}
	for i, r := range v.records {
		if v.opts.Key(r) == key {
			return i, r, true
		}
	}
	return -1, zero, false
}

// restore undoes a mutation on key: the previous record goes back to its
// old position, or a record that did not exist before is removed. Without
// a Key func records cannot be told apart, so the whole list reverts to
// before. Caller holds v.mu.
func (v *View[T]) restore(key string, pos int, prev T, existed bool, before []T) []T {
	if v.opts.Key == nil {
		return append([]T(nil), before...)
	}
	out := make([]T, 0, len(v.records)+1)
	for _, r := range v.records {
		if v.opts.Key(r) != key {
			out = append(out, r)
		}
	}
	if !existed {
		return out
	}
	if pos > len(out) {
		pos = len(out)
	}
	out = append(out, prev)
	copy(out[pos+1:], out[pos:])
	out[pos] = prev
	return out
}
