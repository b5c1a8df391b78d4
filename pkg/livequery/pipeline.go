// Package livequery keeps a private, view-ready copy of remote rows in sync
// with the data source.
//
// A Pipeline reads and enriches records; a View holds the resulting list,
// re-runs the pipeline whenever the change broker reports a matching write,
// and applies optimistic mutations on top.
package livequery

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/tommyfx/storefront/pkg/datastore"
	"github.com/tommyfx/storefront/pkg/logger"
	"github.com/tommyfx/storefront/pkg/metrics"
)

// Index holds secondary rows grouped by the relation's key column.
type Index map[string][]datastore.Row

// One returns the first row for key.
func (ix Index) One(key string) (datastore.Row, bool) {
	if key == "" {
		return nil, false
	}
	rows := ix[key]
	if len(rows) == 0 {
		return nil, false
	}
	return rows[0], true
}

// Many returns every row for key, in lookup order.
func (ix Index) Many(key string) []datastore.Row {
	if key == "" {
		return nil
	}
	return ix[key]
}

// Relation resolves references held by each record against a secondary
// table with a single batched IN lookup.
type Relation[T any] struct {
	Table   string
	Key     string // column matched against the references; defaults to "id"
	Columns []string
	OrderBy string

	// Refs lists the references a record holds. Empty strings are ignored.
	Refs func(T) []string

	// Apply copies resolved values onto the record, or fallbacks when the
	// index has nothing for it. It runs for every record, including when the
	// lookup failed or was skipped.
	Apply func(rec *T, ix Index)
}

// Ref adapts a single-reference accessor for Relation.Refs.
func Ref[T any](f func(T) string) func(T) []string {
	return func(rec T) []string { return []string{f(rec)} }
}

// Pipeline is a primary query plus the relations that enrich its rows.
type Pipeline[T any] struct {
	Name      string
	Store     datastore.Store
	Query     datastore.Query
	Decode    func(datastore.Row) (T, error)
	Relations []Relation[T]
}

// Run executes the primary query, decodes each row, then resolves every
// relation in order. Zero rows is a normal, empty result. A failed primary
// query yields a *FetchError and no records; a failed relation lookup is
// logged and leaves fallbacks in place.
func (p *Pipeline[T]) Run(ctx context.Context) ([]T, error) {
	start := time.Now()
	log := logger.WithCtx(ctx).With("view", p.Name)

	rows, err := p.Store.Select(ctx, p.Query)
	if err != nil {
		metrics.ObserveFetch(p.Name, "error", start)
		return nil, &FetchError{View: p.Name, Table: p.Query.Table, Err: err}
	}

	recs := make([]T, 0, len(rows))
	for _, row := range rows {
		rec, err := p.Decode(row)
		if err != nil {
			metrics.MalformedRows.WithLabelValues(p.Name).Inc()
			log.Warn("livequery: dropping malformed row", "table", p.Query.Table, "id", row["id"], "error", err)
			continue
		}
		recs = append(recs, rec)
	}

	if len(recs) == 0 {
		metrics.ObserveFetch(p.Name, "empty", start)
		return recs, nil
	}

	for _, rel := range p.Relations {
		p.enrich(ctx, log, rel, recs)
	}

	metrics.ObserveFetch(p.Name, "ok", start)
	return recs, nil
}

func (p *Pipeline[T]) enrich(ctx context.Context, log *slog.Logger, rel Relation[T], recs []T) {
	ix := Index{}

	if refs := distinctRefs(rel.Refs, recs); len(refs) > 0 {
		found, err := p.lookup(ctx, rel, refs)
		if err != nil {
			metrics.EnrichmentFailures.WithLabelValues(p.Name, rel.Table).Inc()
			var ee *EnrichmentError
			if !errors.As(err, &ee) {
				err = &EnrichmentError{View: p.Name, Table: rel.Table, Err: err}
			}
			log.Warn("livequery: enrichment lookup failed, using fallbacks", "error", err)
		} else {
			ix = found
		}
	}

	for i := range recs {
		rel.Apply(&recs[i], ix)
	}
}

func (p *Pipeline[T]) lookup(ctx context.Context, rel Relation[T], refs []string) (Index, error) {
	key := rel.Key
	if key == "" {
		key = "id"
	}

	columns := rel.Columns
	if len(columns) > 0 && !slices.Contains(columns, key) {
		columns = append(append([]string(nil), columns...), key)
	}

	rows, err := p.Store.Select(ctx, datastore.Query{
		Table:   rel.Table,
		Columns: columns,
		Where:   []datastore.Cond{datastore.In(key, refs)},
		OrderBy: rel.OrderBy,
	})
	if err != nil {
		return nil, &EnrichmentError{View: p.Name, Table: rel.Table, Err: err}
	}

	ix := make(Index, len(refs))
	for _, row := range rows {
		if k, ok := row.String(key); ok {
			ix[k] = append(ix[k], row)
		}
	}
	return ix, nil
}

func distinctRefs[T any](refs func(T) []string, recs []T) []string {
	if refs == nil {
		return nil
	}
	seen := map[string]struct{}{}
	for _, rec := range recs {
		for _, r := range refs(rec) {
			if r != "" {
				seen[r] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
