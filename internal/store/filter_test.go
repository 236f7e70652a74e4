package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterString(t *testing.T) {
	assert.Equal(t, "status=eq.pending", Eq("status", "pending").String())
	assert.Equal(t, "status=in.(pending,approved)", In("status", "pending", "approved").String())
	assert.Equal(t, "updated_at=gt.2026-01-02T03:04:05.000000Z",
		Gt("updated_at", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)).String())
	assert.Equal(t, "dispatched=eq.false", Eq("dispatched", false).String())
	assert.Equal(t, "event_version=eq.3", Eq("event_version", int64(3)).String())
}

func TestParseFilter(t *testing.T) {
	t.Run("eq", func(t *testing.T) {
		f, err := ParseFilter("status=eq.pending")
		require.NoError(t, err)
		assert.Equal(t, Filter{Field: "status", Op: OpEq, Values: []string{"pending"}}, f)
	})

	t.Run("in", func(t *testing.T) {
		f, err := ParseFilter("status=in.(pending, approved)")
		require.NoError(t, err)
		assert.Equal(t, Filter{Field: "status", Op: OpIn, Values: []string{"pending", "approved"}}, f)
	})

	t.Run("empty in-list", func(t *testing.T) {
		f, err := ParseFilter("status=in.()")
		require.NoError(t, err)
		assert.Empty(t, f.Values)
	})

	t.Run("round trip", func(t *testing.T) {
		for _, raw := range []string{
			"status=eq.pending",
			"status=in.(a,b)",
			"updated_at=gt.2026-01-01T00:00:00.000000Z",
		} {
			f, err := ParseFilter(raw)
			require.NoError(t, err)
			assert.Equal(t, raw, f.String())
		}
	})

	t.Run("malformed", func(t *testing.T) {
		for _, raw := range []string{
			"",
			"status",
			"=eq.pending",
			"status=pending",
			"status=like.pending",
			"status=in.pending",
		} {
			_, err := ParseFilter(raw)
			assert.Error(t, err, "input %q", raw)
		}
	})
}

func TestFilterMatches(t *testing.T) {
	assert.True(t, Eq("status", "pending").Matches("pending"))
	assert.False(t, Eq("status", "pending").Matches("approved"))
	assert.True(t, Eq("dispatched", false).Matches(false))
	assert.True(t, Eq("event_version", 2).Matches(float64(2)), "json-decoded numbers compare equal to int filters")
	assert.True(t, In("status", "a", "b").Matches("b"))
	assert.False(t, In("status").Matches("a"))

	earlier := FormatTime(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	later := FormatTime(time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC))
	assert.True(t, Gt("updated_at", earlier).Matches(later))
	assert.False(t, Gt("updated_at", later).Matches(earlier))
	assert.False(t, Gt("updated_at", later).Matches(later))
}

func TestFormatTimeLexicographicOrder(t *testing.T) {
	// Fixed-width fractional seconds keep string order chronological even
	// when the fraction has trailing zeros.
	a := FormatTime(time.Date(2026, 3, 1, 12, 0, 0, 500_000_000, time.UTC))
	b := FormatTime(time.Date(2026, 3, 1, 12, 0, 1, 0, time.UTC))
	require.Less(t, a, b)
	assert.Len(t, a, len(b))
}
