// Package datastore is the query side of the storefront's remote data
// source: relational select/insert/update/delete over untyped rows.
//
// Rows cross this boundary as Row maps. Callers decode them into tagged
// record types and reject anything malformed; nothing above the pipeline
// should see a Row.
package datastore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// ErrNotFound is returned by Update and Delete when no row has the key.
var ErrNotFound = errors.New("datastore: row not found")

// Row is one result row keyed by column name.
type Row map[string]any

// Op is a filter operator.
type Op string

const (
	OpEq  Op = "="
	OpNeq Op = "!="
	OpGt  Op = ">"
	OpGte Op = ">="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpIn  Op = "in"
)

// Cond is one predicate in a Query's WHERE clause. Conditions are ANDed.
type Cond struct {
	Column string
	Op     Op
	Value  any
}

func Eq(column string, value any) Cond { return Cond{Column: column, Op: OpEq, Value: value} }

// In builds a batched membership filter (column IN values).
func In(column string, values []string) Cond { return Cond{Column: column, Op: OpIn, Value: values} }

// Query describes a primary or secondary read.
type Query struct {
	Table   string
	Columns []string // empty selects every column
	Where   []Cond
	OrderBy string
	Desc    bool
	Limit   int // <= 0 means unbounded
}

// Store is the relational interface of the remote data source. Keys are
// the "id" column of every table.
type Store interface {
	Select(ctx context.Context, q Query) ([]Row, error)
	Insert(ctx context.Context, table string, row Row) error
	Update(ctx context.Context, table, id string, changes Row) error
	Delete(ctx context.Context, table, id string) error
}

// Kind classifies a change notification.
type Kind string

const (
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Change describes one committed write. New is empty for deletes, Old is
// empty for inserts.
type Change struct {
	Table string    `json:"table"`
	Kind  Kind      `json:"kind"`
	New   Row       `json:"new,omitempty"`
	Old   Row       `json:"old,omitempty"`
	At    time.Time `json:"at"`
}

// Publisher receives every change committed through a Store.
type Publisher interface {
	Publish(ctx context.Context, c Change) error
}

var identRE = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// checkIdent guards every table and column name that ends up in SQL text.
func checkIdent(names ...string) error {
	for _, n := range names {
		if !identRE.MatchString(n) {
			return fmt.Errorf("datastore: invalid identifier %q", n)
		}
	}
	return nil
}

func (q Query) validate() error {
	if err := checkIdent(q.Table); err != nil {
		return err
	}
	if err := checkIdent(q.Columns...); err != nil {
		return err
	}
	for _, c := range q.Where {
		if err := checkIdent(c.Column); err != nil {
			return err
		}
		switch c.Op {
		case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte:
		case OpIn:
			if _, ok := c.Value.([]string); !ok {
				return fmt.Errorf("datastore: %s IN expects []string, got %T", c.Column, c.Value)
			}
		default:
			return fmt.Errorf("datastore: unsupported operator %q", c.Op)
		}
	}
	if q.OrderBy != "" {
		return checkIdent(q.OrderBy)
	}
	return nil
}
