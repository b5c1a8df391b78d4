// Package realtime is the change-notification side of the storefront's
// remote data source. A Broker fans committed changes out to subscribers
// scoped by table and an optional equality filter.
//
//	sub, err := broker.Subscribe("feedback", realtime.Eq("approved", true), onChange)
//	if err != nil { ... }
//	defer sub.Release()
package realtime

import (
	"errors"
	"sync"

	"github.com/tommyfx/storefront/pkg/datastore"
	"github.com/tommyfx/storefront/pkg/metrics"
)

// ErrClosed is returned by Subscribe and Publish after the broker is closed.
var ErrClosed = errors.New("realtime: broker closed")

// Handler receives a matching change. It runs on the publisher's goroutine
// and must not block for long.
type Handler func(datastore.Change)

// Filter restricts a subscription to rows whose Column equals Value.
// The zero Filter matches every row.
type Filter struct {
	Column string
	Value  any
}

func Eq(column string, value any) Filter { return Filter{Column: column, Value: value} }

// IsZero reports whether f matches everything.
func (f Filter) IsZero() bool { return f.Column == "" }

// Match reports whether c concerns a row accepted by f. Either image of the
// row counts, so a row leaving the filtered set (approved flipped back to
// false, or deleted) still notifies subscribers that were showing it.
func (f Filter) Match(c datastore.Change) bool {
	if f.IsZero() {
		return true
	}
	return f.matchRow(c.New) || f.matchRow(c.Old)
}

func (f Filter) matchRow(r datastore.Row) bool {
	if r == nil {
		return false
	}
	v, ok := r[f.Column]
	return ok && datastore.Equal(v, f.Value)
}

// Broker publishes changes and manages subscriptions.
type Broker interface {
	datastore.Publisher
	Subscribe(table string, f Filter, h Handler) (*Subscription, error)
	Close() error
}

// Subscription is the handle returned by Subscribe. Release is idempotent
// and safe to defer.
type Subscription struct {
	table   string
	once    sync.Once
	release func()
}

func newSubscription(table string, release func()) *Subscription {
	metrics.Subscriptions.WithLabelValues(table).Inc()
	return &Subscription{table: table, release: release}
}

// Table returns the subscribed table.
func (s *Subscription) Table() string { return s.table }

// Release stops delivery to the subscription's handler.
func (s *Subscription) Release() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.release()
		metrics.Subscriptions.WithLabelValues(s.table).Dec()
	})
}
