package livequery

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMutationInFlight rejects a mutation on a key that already has one
// outstanding. The caller's action control for that key is disabled until
// the first mutation settles.
var ErrMutationInFlight = errors.New("livequery: mutation already in flight for this record")

// FetchError reports a failed primary query. Views turn it into an empty
// list and a destructive notice.
type FetchError struct {
	View  string
	Table string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("livequery: %s: fetch %s: %v", e.View, e.Table, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// EnrichmentError reports a failed secondary lookup. It is logged and
// counted, never shown to the user; affected records keep their fallbacks.
type EnrichmentError struct {
	View  string
	Table string
	Err   error
}

func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("livequery: %s: enrich from %s: %v", e.View, e.Table, e.Err)
}

func (e *EnrichmentError) Unwrap() error { return e.Err }

// MutationError reports a remote write that failed after the local list
// was already changed. RolledBack tells whether the local change was undone.
type MutationError struct {
	Kind       string
	Key        string
	RolledBack bool
	Err        error
}

func (e *MutationError) Error() string {
	state := "kept locally"
	if e.RolledBack {
		state = "rolled back"
	}
	return fmt.Sprintf("livequery: %s %s not persisted (%s): %v", e.Kind, e.Key, state, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// ValidationError carries field-level input problems found before any
// remote call was attempted.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "livequery: invalid input: " + strings.Join(parts, "; ")
}
