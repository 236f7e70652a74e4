package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a map-backed Store used by tests. It honors the same filter
// semantics as the real backends, and its mutex makes conditioned updates
// atomic, so the CAS scenarios are exercisable without a database.
type MemoryStore struct {
	mu     sync.Mutex
	tables map[string][]Row

	// FailTables lists tables whose reads should fail, for degradation tests.
	FailTables map[string]error
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables:     make(map[string][]Row),
		FailTables: make(map[string]error),
	}
}

// Seed inserts rows directly, bypassing context plumbing. Test helper.
func (m *MemoryStore) Seed(table string, rows ...Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.tables[table] = append(m.tables[table], copyRow(r))
	}
}

func (m *MemoryStore) Insert(_ context.Context, table string, record Row) (Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailTables[table]; err != nil {
		return nil, err
	}
	m.tables[table] = append(m.tables[table], copyRow(record))
	return copyRow(record), nil
}

func (m *MemoryStore) Select(_ context.Context, table string, q Query) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailTables[table]; err != nil {
		return nil, err
	}

	var matched []Row
	for _, row := range m.tables[table] {
		if matchesAll(row, q.Filters) {
			matched = append(matched, copyRow(row))
		}
	}

	if q.OrderBy != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			if q.Descending {
				return lessValue(matched[j][q.OrderBy], matched[i][q.OrderBy])
			}
			return lessValue(matched[i][q.OrderBy], matched[j][q.OrderBy])
		})
	}

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[q.Offset:]
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

func (m *MemoryStore) Update(_ context.Context, table string, q Query, patch Row) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailTables[table]; err != nil {
		return nil, err
	}

	var updated []Row
	for i, row := range m.tables[table] {
		if !matchesAll(row, q.Filters) {
			continue
		}
		for k, v := range patch {
			row[k] = v
		}
		m.tables[table][i] = row
		updated = append(updated, copyRow(row))
	}
	if updated == nil {
		updated = []Row{}
	}
	return updated, nil
}

func (m *MemoryStore) Delete(_ context.Context, table string, q Query) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailTables[table]; err != nil {
		return err
	}

	kept := m.tables[table][:0]
	for _, row := range m.tables[table] {
		if !matchesAll(row, q.Filters) {
			kept = append(kept, row)
		}
	}
	m.tables[table] = kept
	return nil
}

func (m *MemoryStore) Upsert(_ context.Context, table string, record Row, conflictColumns ...string) (Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailTables[table]; err != nil {
		return nil, err
	}

	for i, row := range m.tables[table] {
		if len(conflictColumns) == 0 {
			break
		}
		same := true
		for _, c := range conflictColumns {
			if stringify(row[c]) != stringify(record[c]) {
				same = false
				break
			}
		}
		if same {
			merged := copyRow(row)
			for k, v := range record {
				merged[k] = v
			}
			m.tables[table][i] = merged
			return copyRow(merged), nil
		}
	}
	m.tables[table] = append(m.tables[table], copyRow(record))
	return copyRow(record), nil
}

// Count returns the number of rows in a table. Test helper.
func (m *MemoryStore) Count(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tables[table])
}

func lessValue(a, b any) bool {
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Before(bt)
		}
	}
	return stringify(a) < stringify(b)
}

func matchesAll(row Row, filters []Filter) bool {
	for _, f := range filters {
		if !f.Matches(row[f.Field]) {
			return false
		}
	}
	return true
}

func copyRow(r Row) Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
