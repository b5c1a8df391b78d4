package realtime

import (
	"context"
	"sync"

	"github.com/tommyfx/storefront/pkg/datastore"
	"github.com/tommyfx/storefront/pkg/metrics"
)

type listener struct {
	filter  Filter
	handler Handler
}

// MemoryBroker delivers changes to subscribers in the same process,
// synchronously on the publishing goroutine.
type MemoryBroker struct {
	mu        sync.RWMutex
	listeners map[string]map[uint64]listener
	nextID    uint64
	closed    bool
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{listeners: map[string]map[uint64]listener{}}
}

func (b *MemoryBroker) Subscribe(table string, f Filter, h Handler) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	b.nextID++
	id := b.nextID
	if b.listeners[table] == nil {
		b.listeners[table] = map[uint64]listener{}
	}
	b.listeners[table][id] = listener{filter: f, handler: h}

	return newSubscription(table, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners[table], id)
		if len(b.listeners[table]) == 0 {
			delete(b.listeners, table)
		}
	}), nil
}

func (b *MemoryBroker) Publish(_ context.Context, c datastore.Change) error {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	metrics.ChangesPublished.WithLabelValues(c.Table, string(c.Kind)).Inc()
	b.dispatch(c)
	return nil
}

// dispatch copies the matching handlers under the read lock and calls them
// after releasing it, so a handler may Release its own subscription.
func (b *MemoryBroker) dispatch(c datastore.Change) {
	b.mu.RLock()
	hs := make([]Handler, 0, len(b.listeners[c.Table]))
	for _, l := range b.listeners[c.Table] {
		if l.filter.Match(c) {
			hs = append(hs, l.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range hs {
		h(c)
	}
}

// Subscribers returns the number of live subscriptions on table.
func (b *MemoryBroker) Subscribers(table string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[table])
}

// Close drops every subscription. Handles already given out stay safe to
// Release.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.listeners = map[string]map[uint64]listener{}
	return nil
}
