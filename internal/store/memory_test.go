package store

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSelect(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	m.Seed("items",
		Row{"id": "a", "status": "pending", "created_at": "2026-01-01T00:00:00.000000Z"},
		Row{"id": "b", "status": "approved", "created_at": "2026-01-02T00:00:00.000000Z"},
		Row{"id": "c", "status": "pending", "created_at": "2026-01-03T00:00:00.000000Z"},
	)

	t.Run("filter eq", func(t *testing.T) {
		rows, err := m.Select(ctx, "items", Where(Eq("status", "pending")))
		require.NoError(t, err)
		require.Len(t, rows, 2)
	})

	t.Run("filter in", func(t *testing.T) {
		rows, err := m.Select(ctx, "items", Where(In("id", "a", "c")))
		require.NoError(t, err)
		require.Len(t, rows, 2)
	})

	t.Run("order descending", func(t *testing.T) {
		rows, err := m.Select(ctx, "items", Query{OrderBy: "created_at", Descending: true})
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, "c", rows[0]["id"])
		assert.Equal(t, "a", rows[2]["id"])
	})

	t.Run("limit and offset", func(t *testing.T) {
		rows, err := m.Select(ctx, "items", Query{OrderBy: "created_at", Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "b", rows[0]["id"])
	})

	t.Run("offset past end", func(t *testing.T) {
		rows, err := m.Select(ctx, "items", Query{Offset: 10})
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("rows are copies", func(t *testing.T) {
		rows, err := m.Select(ctx, "items", Where(Eq("id", "a")))
		require.NoError(t, err)
		rows[0]["status"] = "mutated"

		again, err := m.Select(ctx, "items", Where(Eq("id", "a")))
		require.NoError(t, err)
		assert.Equal(t, "pending", again[0]["status"])
	})
}

func TestMemoryStoreUpdate(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	m.Seed("items",
		Row{"id": "a", "status": "pending", "event_version": int64(1)},
	)

	t.Run("conditioned update applies patch", func(t *testing.T) {
		rows, err := m.Update(ctx, "items",
			Where(Eq("id", "a"), Eq("event_version", int64(1))),
			Row{"status": "approved", "event_version": int64(2)})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "approved", rows[0]["status"])
	})

	t.Run("stale condition matches nothing", func(t *testing.T) {
		rows, err := m.Update(ctx, "items",
			Where(Eq("id", "a"), Eq("event_version", int64(1))),
			Row{"status": "rejected"})
		require.NoError(t, err)
		assert.Empty(t, rows, "a missed compare-and-swap returns an empty slice, not an error")

		current, err := SelectOne(ctx, m, "items", Where(Eq("id", "a")))
		require.NoError(t, err)
		assert.Equal(t, "approved", current["status"])
	})
}

func TestMemoryStoreUpsert(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	_, err := m.Upsert(ctx, "items", Row{"id": "a", "reason": "first"}, "id")
	require.NoError(t, err)
	_, err = m.Upsert(ctx, "items", Row{"id": "a", "reason": "second"}, "id")
	require.NoError(t, err)

	assert.Equal(t, 1, m.Count("items"))
	row, err := SelectOne(ctx, m, "items", Where(Eq("id", "a")))
	require.NoError(t, err)
	assert.Equal(t, "second", row["reason"])
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	m.Seed("items", Row{"id": "a"}, Row{"id": "b"})

	require.NoError(t, m.Delete(ctx, "items", Where(Eq("id", "a"))))
	assert.Equal(t, 1, m.Count("items"))
}

func TestMemoryStoreFailTables(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	boom := errors.New("boom")
	m.FailTables["items"] = boom

	_, err := m.Select(ctx, "items", Query{})
	assert.ErrorIs(t, err, boom)
	_, err = m.Insert(ctx, "items", Row{"id": "a"})
	assert.ErrorIs(t, err, boom)
}

func TestSelectOne(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	m.Seed("items", Row{"id": "a"})

	row, err := SelectOne(ctx, m, "items", Where(Eq("id", "a")))
	require.NoError(t, err)
	assert.Equal(t, "a", row["id"])

	_, err = SelectOne(ctx, m, "items", Where(Eq("id", "missing")))
	assert.ErrorIs(t, err, ErrNotFound)
}
