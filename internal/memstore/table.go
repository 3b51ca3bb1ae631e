// Package memstore implements every domain repository in memory. It backs
// the rule and loader tests and the server's --memory mode. Writes are not
// transactional: a failed logic session keeps the rows it already flushed.
package memstore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/medai/medai/internal/logic"
	"github.com/medai/medai/internal/platform/db"
)

// table holds the rows of one entity keyed by primary key. Rows go in and
// come out as copies so callers never share state with the table.
type table struct {
	mu   sync.RWMutex
	name string
	next int64
	rows map[int64]logic.Row
}

func newTable(name string) *table {
	return &table{name: name, rows: make(map[int64]logic.Row)}
}

func (t *table) insert(row logic.Row) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if row.PrimaryKey() == 0 {
		t.next++
		row.SetPrimaryKey(t.next)
	} else if row.PrimaryKey() > t.next {
		t.next = row.PrimaryKey()
	}
	t.rows[row.PrimaryKey()] = logic.Snapshot(row)
}

func (t *table) get(id int64) (logic.Row, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.rows[id]
	if !ok {
		return nil, fmt.Errorf("%s %d: %w", t.name, id, db.ErrNotFound)
	}
	return logic.Snapshot(r), nil
}

func (t *table) update(row logic.Row) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rows[row.PrimaryKey()]; !ok {
		return fmt.Errorf("%s %d: %w", t.name, row.PrimaryKey(), db.ErrNotFound)
	}
	t.rows[row.PrimaryKey()] = logic.Snapshot(row)
	return nil
}

func (t *table) delete(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rows, id)
}

// scan returns copies of the rows keep accepts, in key order.
func (t *table) scan(keep func(logic.Row) bool) []logic.Row {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]int64, 0, len(t.rows))
	for id, r := range t.rows {
		if keep == nil || keep(r) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]logic.Row, len(ids))
	for i, id := range ids {
		out[i] = logic.Snapshot(t.rows[id])
	}
	return out
}

func scanAs[T logic.Row](t *table, keep func(T) bool) []T {
	rows := t.scan(func(r logic.Row) bool { return keep == nil || keep(r.(T)) })
	out := make([]T, len(rows))
	for i, r := range rows {
		out[i] = r.(T)
	}
	return out
}

func getAs[T logic.Row](t *table, id int64) (T, error) {
	r, err := t.get(id)
	if err != nil {
		var zero T
		return zero, err
	}
	return r.(T), nil
}

// page applies limit and offset to items and reports the unpaged total.
func page[T any](items []T, limit, offset int) ([]T, int) {
	total := len(items)
	if offset >= total {
		return nil, total
	}
	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end], total
}
