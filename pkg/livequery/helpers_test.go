package livequery_test

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/tommyfx/storefront/pkg/datastore"
	"github.com/tommyfx/storefront/pkg/livequery"
)

var errDown = errors.New("connection refused")

// fakeStore is an in-memory datastore.Store that counts selects per table
// and can be told to fail reads or writes.
type fakeStore struct {
	mu       sync.Mutex
	tables   map[string][]datastore.Row
	selects  map[string]int
	failRead map[string]bool
	failNext error
	pub      datastore.Publisher
	gate     chan struct{} // when set, writes wait for it
}

func newFakeStore(pub datastore.Publisher) *fakeStore {
	return &fakeStore{
		tables:   map[string][]datastore.Row{},
		selects:  map[string]int{},
		failRead: map[string]bool{},
		pub:      pub,
	}
}

func (s *fakeStore) seed(table string, rows ...datastore.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[table] = append(s.tables[table], rows...)
}

func (s *fakeStore) selectCount(table string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selects[table]
}

func (s *fakeStore) Select(_ context.Context, q datastore.Query) ([]datastore.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selects[q.Table]++
	if s.failRead[q.Table] {
		return nil, errDown
	}

	var out []datastore.Row
	for _, r := range s.tables[q.Table] {
		if matches(r, q.Where) {
			out = append(out, copyRow(r))
		}
	}
	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			a, _ := out[i].Float(q.OrderBy)
			b, _ := out[j].Float(q.OrderBy)
			if q.Desc {
				return a > b
			}
			return a < b
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *fakeStore) Insert(ctx context.Context, table string, row datastore.Row) error {
	if err := s.write(); err != nil {
		return err
	}
	s.mu.Lock()
	s.tables[table] = append(s.tables[table], copyRow(row))
	s.mu.Unlock()
	return s.publish(ctx, datastore.Change{Table: table, Kind: datastore.KindInsert, New: row})
}

func (s *fakeStore) Update(ctx context.Context, table, id string, changes datastore.Row) error {
	if err := s.write(); err != nil {
		return err
	}
	s.mu.Lock()
	var old, upd datastore.Row
	for _, r := range s.tables[table] {
		if r["id"] == id {
			old = copyRow(r)
			for k, v := range changes {
				r[k] = v
			}
			upd = copyRow(r)
		}
	}
	s.mu.Unlock()
	if old == nil {
		return datastore.ErrNotFound
	}
	return s.publish(ctx, datastore.Change{Table: table, Kind: datastore.KindUpdate, Old: old, New: upd})
}

func (s *fakeStore) Delete(ctx context.Context, table, id string) error {
	if err := s.write(); err != nil {
		return err
	}
	s.mu.Lock()
	var old datastore.Row
	rows := s.tables[table][:0]
	for _, r := range s.tables[table] {
		if r["id"] == id {
			old = r
			continue
		}
		rows = append(rows, r)
	}
	s.tables[table] = rows
	s.mu.Unlock()
	if old == nil {
		return datastore.ErrNotFound
	}
	return s.publish(ctx, datastore.Change{Table: table, Kind: datastore.KindDelete, Old: old})
}

func (s *fakeStore) write() error {
	s.mu.Lock()
	gate := s.gate
	err := s.failNext
	s.failNext = nil
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return err
}

func (s *fakeStore) publish(ctx context.Context, c datastore.Change) error {
	if s.pub == nil {
		return nil
	}
	return s.pub.Publish(ctx, c)
}

func matches(r datastore.Row, where []datastore.Cond) bool {
	for _, c := range where {
		switch c.Op {
		case datastore.OpEq:
			if !datastore.Equal(r[c.Column], c.Value) {
				return false
			}
		case datastore.OpIn:
			found := false
			for _, v := range c.Value.([]string) {
				if datastore.Equal(r[c.Column], v) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func copyRow(r datastore.Row) datastore.Row {
	out := make(datastore.Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// review is a small enriched record used across the tests.
type review struct {
	ID       string
	UserID   string
	Rating   int
	Approved bool
	UserName string
}

func decodeReview(r datastore.Row) (review, error) {
	id, ok := r.String("id")
	if !ok || id == "" {
		return review{}, errors.New("missing id")
	}
	rating, ok := r.Int("rating")
	if !ok {
		return review{}, errors.New("missing rating")
	}
	user, _ := r.String("user_id")
	approved, _ := r.Bool("approved")
	return review{ID: id, UserID: user, Rating: rating, Approved: approved}, nil
}

func reviewPipeline(store datastore.Store) *livequery.Pipeline[review] {
	return &livequery.Pipeline[review]{
		Name:   "reviews",
		Store:  store,
		Query:  datastore.Query{Table: "feedback", OrderBy: "rating", Desc: true},
		Decode: decodeReview,
		Relations: []livequery.Relation[review]{{
			Table:   "profiles",
			Columns: []string{"full_name"},
			Refs:    livequery.Ref(func(r review) string { return r.UserID }),
			Apply: func(r *review, ix livequery.Index) {
				r.UserName = "Anonymous"
				if p, ok := ix.One(r.UserID); ok {
					if n, ok := p.String("full_name"); ok && n != "" {
						r.UserName = n
					}
				}
			},
		}},
	}
}

func reviewKey(r review) string { return r.ID }

func seedReviews(s *fakeStore) {
	s.seed("feedback",
		datastore.Row{"id": "f3", "user_id": "u3", "rating": 3, "approved": false},
		datastore.Row{"id": "f5", "user_id": "u1", "rating": 5, "approved": true},
		datastore.Row{"id": "f4", "user_id": "u2", "rating": 4, "approved": true},
	)
	s.seed("profiles",
		datastore.Row{"id": "u1", "full_name": "Ada"},
		datastore.Row{"id": "u2", "full_name": "Grace"},
	)
}

func ratings(rs []review) []int {
	out := make([]int, len(rs))
	for i, r := range rs {
		out[i] = r.Rating
	}
	return out
}
