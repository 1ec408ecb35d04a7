package tradelog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestAppendAndRecent(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	base := time.Now().Add(-time.Minute)
	for i := 0; i < 3; i++ {
		require.NoError(t, st.Append(ctx, Record{
			TraceID: "trace-" + string(rune('a'+i)),
			UserID:  1,
			OrderID: int64(i + 1),
			Op:      "place_order",
			Detail:  map[string]any{"symbol": "AAPL", "amount": float64(100 * (i + 1))},
			At:      base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, st.Append(ctx, Record{
		TraceID: "trace-err", UserID: 1, Op: "confirm_order", Err: "not found",
	}))
	require.NoError(t, st.Append(ctx, Record{TraceID: "other", UserID: 2, Op: "place_order"}))

	records, err := st.Recent(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, records, 4)

	// Newest first.
	assert.Equal(t, "trace-err", records[0].TraceID)
	assert.Equal(t, "not found", records[0].Err)
	assert.Equal(t, "trace-c", records[1].TraceID)
	assert.Equal(t, "AAPL", records[1].Detail["symbol"])
	assert.InDelta(t, 300, records[1].Detail["amount"].(float64), 0.001)
}

func TestRecentLimit(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, st.Append(ctx, Record{TraceID: "t", UserID: 1, Op: "place_order"}))
	}
	records, err := st.Recent(ctx, 1, 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}
