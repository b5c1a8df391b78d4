package datastore

import (
	"context"
	"fmt"
	"time"

	"github.com/tommyfx/storefront/pkg/logger"
	"github.com/tommyfx/storefront/pkg/metrics"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const keyColumn = "id"

// GormStore implements Store on a GORM connection and publishes a Change
// for every write it commits.
type GormStore struct {
	db  *gorm.DB
	pub Publisher
}

// NewGormStore wires db and pub together. pub may be nil, in which case no
// change notifications are produced.
func NewGormStore(db *gorm.DB, pub Publisher) *GormStore {
	return &GormStore{db: db, pub: pub}
}

// DB exposes the underlying connection for migrations and health checks.
func (s *GormStore) DB() *gorm.DB { return s.db }

func (s *GormStore) Select(ctx context.Context, q Query) ([]Row, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	defer metrics.ObserveDBQuery("select", q.Table, time.Now())

	tx := s.db.WithContext(ctx).Table(q.Table)
	if len(q.Columns) > 0 {
		tx = tx.Select(q.Columns)
	}
	for _, c := range q.Where {
		if c.Op == OpIn {
			tx = tx.Where(fmt.Sprintf("%s IN ?", c.Column), c.Value)
			continue
		}
		tx = tx.Where(fmt.Sprintf("%s %s ?", c.Column, c.Op), c.Value)
	}
	if q.OrderBy != "" {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: q.OrderBy}, Desc: q.Desc})
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var raw []map[string]any
	if err := tx.Find(&raw).Error; err != nil {
		return nil, fmt.Errorf("datastore: select %s: %w", q.Table, err)
	}

	rows := make([]Row, len(raw))
	for i, m := range raw {
		rows[i] = Row(m)
	}
	return rows, nil
}

func (s *GormStore) Insert(ctx context.Context, table string, row Row) error {
	if err := checkIdent(table); err != nil {
		return err
	}
	if _, ok := row.String(keyColumn); !ok {
		return fmt.Errorf("datastore: insert %s: missing %s", table, keyColumn)
	}
	start := time.Now()
	err := s.db.WithContext(ctx).Table(table).Create(map[string]any(row)).Error
	metrics.ObserveDBQuery("insert", table, start)
	if err != nil {
		return fmt.Errorf("datastore: insert %s: %w", table, err)
	}

	s.publish(ctx, Change{Table: table, Kind: KindInsert, New: row})
	return nil
}

func (s *GormStore) Update(ctx context.Context, table, id string, changes Row) error {
	if err := checkIdent(table); err != nil {
		return err
	}
	for col := range changes {
		if err := checkIdent(col); err != nil {
			return err
		}
	}

	start := time.Now()
	var old, updated Row
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if old, err = findByKey(tx, table, id); err != nil {
			return err
		}
		if err := tx.Table(table).Where(keyColumn+" = ?", id).Updates(map[string]any(changes)).Error; err != nil {
			return err
		}
		updated, err = findByKey(tx, table, id)
		return err
	})
	metrics.ObserveDBQuery("update", table, start)
	if err != nil {
		return fmt.Errorf("datastore: update %s %s: %w", table, id, err)
	}

	s.publish(ctx, Change{Table: table, Kind: KindUpdate, New: updated, Old: old})
	return nil
}

func (s *GormStore) Delete(ctx context.Context, table, id string) error {
	if err := checkIdent(table); err != nil {
		return err
	}

	start := time.Now()
	var old Row
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if old, err = findByKey(tx, table, id); err != nil {
			return err
		}
		return tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, keyColumn), id).Error
	})
	metrics.ObserveDBQuery("delete", table, start)
	if err != nil {
		return fmt.Errorf("datastore: delete %s %s: %w", table, id, err)
	}

	s.publish(ctx, Change{Table: table, Kind: KindDelete, Old: old})
	return nil
}

func findByKey(tx *gorm.DB, table, id string) (Row, error) {
	var raw []map[string]any
	if err := tx.Table(table).Where(keyColumn+" = ?", id).Limit(1).Find(&raw).Error; err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrNotFound
	}
	return Row(raw[0]), nil
}

// publish logs broker errors; the write is already committed.
func (s *GormStore) publish(ctx context.Context, c Change) {
	if s.pub == nil {
		return
	}
	c.At = time.Now().UTC()
	if err := s.pub.Publish(ctx, c); err != nil {
		logger.WithCtx(ctx).Warn("datastore: publish change failed",
			"table", c.Table, "kind", c.Kind, "error", err)
	}
}
