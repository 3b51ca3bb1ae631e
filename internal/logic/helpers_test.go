package logic

import (
	"context"
	"fmt"
	"sort"
	"time"
)

type account struct {
	ID      int64      `db:"id"`
	Name    string     `db:"name"`
	Tier    *string    `db:"tier"`
	Rate    *float64   `db:"rate"`
	Opened  *time.Time `db:"opened"`
	Ignored string
}

func (a *account) Entity() string         { return "Account" }
func (a *account) PrimaryKey() int64      { return a.ID }
func (a *account) SetPrimaryKey(id int64) { a.ID = id }

type entry struct {
	ID        int64    `db:"id"`
	AccountID *int64   `db:"account_id"`
	Amount    *float64 `db:"amount"`
	Fee       *float64 `db:"fee"`
	Total     *float64 `db:"total"`
	Tier      *string  `db:"tier"`
	Rated     *float64 `db:"rated"`
	Memo      *string  `db:"memo"`
}

func (e *entry) Entity() string         { return "Entry" }
func (e *entry) PrimaryKey() int64      { return e.ID }
func (e *entry) SetPrimaryKey(id int64) { e.ID = id }

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }
func str(v string) *string   { return &v }

// memStore is an in-memory persister keyed by entity and primary key.
type memStore struct {
	next    int64
	rows    map[string]map[int64]Row
	inserts int
	updates int
	deletes int
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]map[int64]Row)}
}

func (m *memStore) Insert(_ context.Context, row Row) error {
	m.next++
	row.SetPrimaryKey(m.next)
	if m.rows[row.Entity()] == nil {
		m.rows[row.Entity()] = make(map[int64]Row)
	}
	m.rows[row.Entity()][row.PrimaryKey()] = Snapshot(row)
	m.inserts++
	return nil
}

func (m *memStore) Update(_ context.Context, row Row) error {
	if _, ok := m.rows[row.Entity()][row.PrimaryKey()]; !ok {
		return fmt.Errorf("%s %d not found", row.Entity(), row.PrimaryKey())
	}
	m.rows[row.Entity()][row.PrimaryKey()] = Snapshot(row)
	m.updates++
	return nil
}

func (m *memStore) Delete(_ context.Context, row Row) error {
	delete(m.rows[row.Entity()], row.PrimaryKey())
	m.deletes++
	return nil
}

func (m *memStore) get(entity string, id int64) (Row, error) {
	r, ok := m.rows[entity][id]
	if !ok {
		return nil, fmt.Errorf("%s %d not found", entity, id)
	}
	return Snapshot(r), nil
}

func (m *memStore) entriesOf(accountID int64) []Row {
	var ids []int64
	for id, r := range m.rows["Entry"] {
		e := r.(*entry)
		if e.AccountID != nil && *e.AccountID == accountID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]Row, len(ids))
	for i, id := range ids {
		out[i] = Snapshot(m.rows["Entry"][id])
	}
	return out
}

func (m *memStore) relationship() Relationship {
	return Relationship{
		Parent:     "Account",
		Child:      "Entry",
		ForeignKey: "account_id",
		LoadParent: func(_ context.Context, child Row) (Row, error) {
			e := child.(*entry)
			return m.get("Account", *e.AccountID)
		},
		LoadChildren: func(_ context.Context, parent Row) ([]Row, error) {
			return m.entriesOf(parent.PrimaryKey()), nil
		},
	}
}

func floatOr(v any, def float64) float64 {
	if f, ok := v.(float64); ok {
		return f
	}
	return def
}
