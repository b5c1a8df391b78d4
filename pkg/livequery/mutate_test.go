package livequery_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tommyfx/storefront/pkg/livequery"
	"github.com/tommyfx/storefront/pkg/notification"
)

func TestMutate_SuccessPersists(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.view.Load(context.Background()))

	out, err := h.view.Mutate(context.Background(), approve(h.store, "f3"))
	require.NoError(t, err)
	assert.True(t, out.Persisted)

	r, ok := find(h.view.Snapshot().Records, "f3")
	require.True(t, ok)
	assert.True(t, r.Approved)
	assert.False(t, h.view.Busy("f3"))
	assert.Empty(t, h.notices.Notices())
}

func TestMutate_FailedApproveKeepsLocalChangeAndWarnsOnce(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.view.Load(context.Background()))
	h.store.failNext = errDown

	out, err := h.view.Mutate(context.Background(), approve(h.store, "f3"))

	var me *livequery.MutationError
	require.ErrorAs(t, err, &me)
	assert.False(t, me.RolledBack)
	assert.ErrorIs(t, err, errDown)
	assert.False(t, out.Persisted)

	r, ok := find(h.view.Snapshot().Records, "f3")
	require.True(t, ok)
	assert.True(t, r.Approved, "optimistic change stays")
	assert.Equal(t, 1, h.notices.Count(notification.SeverityWarning))
	assert.Len(t, h.notices.Notices(), 1)
}

func TestMutate_FailedDeleteDoesNotReappear(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.view.Load(context.Background()))
	h.store.failNext = errDown

	_, err := h.view.Mutate(context.Background(), remove(h.store, "f4"))
	require.Error(t, err)

	_, ok := find(h.view.Snapshot().Records, "f4")
	assert.False(t, ok)
	assert.Equal(t, 1, h.notices.Count(notification.SeverityWarning))
}

func TestMutate_RollbackRestoresPosition(t *testing.T) {
	h := newHarness(t, func(o *livequery.Options[review]) { o.Policy = livequery.RollbackOnFailure })
	require.NoError(t, h.view.Load(context.Background()))
	h.store.failNext = errDown

	out, err := h.view.Mutate(context.Background(), remove(h.store, "f4"))
	require.Error(t, err)
	assert.True(t, out.RolledBack)

	assert.Equal(t, []int{5, 4, 3}, ratings(h.view.Snapshot().Records))
	assert.Equal(t, 1, h.notices.Count(notification.SeverityDestructive))
	assert.Len(t, h.notices.Notices(), 1)
}

func TestMutate_RollbackUndoesApprove(t *testing.T) {
	h := newHarness(t, func(o *livequery.Options[review]) { o.Policy = livequery.RollbackOnFailure })
	require.NoError(t, h.view.Load(context.Background()))
	h.store.failNext = errDown

	_, err := h.view.Mutate(context.Background(), approve(h.store, "f3"))
	require.Error(t, err)

	r, _ := find(h.view.Snapshot().Records, "f3")
	assert.False(t, r.Approved)
}

func TestMutate_RollbackRemovesInsertedRecord(t *testing.T) {
	h := newHarness(t, func(o *livequery.Options[review]) { o.Policy = livequery.RollbackOnFailure })
	require.NoError(t, h.view.Load(context.Background()))

	_, err := h.view.Mutate(context.Background(), livequery.Mutation[review]{
		Kind:   "submit",
		Key:    "new",
		Apply:  func(rs []review) []review { return append(rs, review{ID: "new", Rating: 2}) },
		Remote: func(context.Context) error { return errDown },
	})
	require.Error(t, err)
	_, ok := find(h.view.Snapshot().Records, "new")
	assert.False(t, ok)
}

func TestMutate_RollbackWithoutKeyRevertsList(t *testing.T) {
	h := newHarness(t, func(o *livequery.Options[review]) {
		o.Policy = livequery.RollbackOnFailure
		o.Key = nil
	})
	require.NoError(t, h.view.Load(context.Background()))
	h.store.failNext = errDown

	var out livequery.Outcome
	var err error
	require.NotPanics(t, func() { out, err = h.view.Mutate(context.Background(), remove(h.store, "f4")) })
	require.Error(t, err)
	assert.True(t, out.RolledBack)
	assert.Equal(t, []int{5, 4, 3}, ratings(h.view.Snapshot().Records))
}

func TestMutate_RejectsSecondMutationOnBusyKey(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.view.Load(context.Background()))

	gate := make(chan struct{})
	h.store.mu.Lock()
	h.store.gate = gate
	h.store.mu.Unlock()

	first := make(chan error, 1)
	go func() {
		_, err := h.view.Mutate(context.Background(), approve(h.store, "f3"))
		first <- err
	}()

	require.Eventually(t, func() bool { return h.view.Busy("f3") }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"f3"}, h.view.Snapshot().Busy)

	_, err := h.view.Mutate(context.Background(), remove(h.store, "f3"))
	assert.ErrorIs(t, err, livequery.ErrMutationInFlight)

	close(gate)
	require.NoError(t, <-first)
	assert.False(t, h.view.Busy("f3"))

	_, ok := find(h.view.Snapshot().Records, "f3")
	assert.True(t, ok, "rejected delete was never applied")
}

func TestMutate_ObserversSeeOptimisticStateFirst(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.view.Load(context.Background()))

	var states [][]string
	h.view.OnChange(func(s livequery.Snapshot[review]) { states = append(states, s.Busy) })

	_, err := h.view.Mutate(context.Background(), livequery.Mutation[review]{
		Kind:   "approve",
		Key:    "f3",
		Apply:  func(rs []review) []review { return rs },
		Remote: func(context.Context) error { return nil },
	})
	require.NoError(t, err)

	require.Len(t, states, 2)
	assert.Equal(t, []string{"f3"}, states[0])
	assert.Empty(t, states[1])
}

func TestParsePolicy(t *testing.T) {
	assert.Equal(t, livequery.RollbackOnFailure, livequery.ParsePolicy("rollback"))
	assert.Equal(t, livequery.KeepOptimistic, livequery.ParsePolicy("keep"))
	assert.Equal(t, livequery.KeepOptimistic, livequery.ParsePolicy(""))
	assert.Equal(t, "rollback", livequery.RollbackOnFailure.String())
}
