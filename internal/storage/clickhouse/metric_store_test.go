package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backsim/internal/domain"
	"backsim/internal/storage"
)

func TestMetricStore_InsertBulkAndGetByRunID(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewMetricStore(conn)

	points := []*domain.MetricPoint{
		{RunID: "run-1", Name: "account.equity", TimestampMs: 2000, Value: 100500.25},
		{RunID: "run-1", Name: "account.cash", TimestampMs: 1000, Value: 100000},
		{RunID: "run-1", Name: "account.equity", TimestampMs: 1000, Value: 100000},
		{RunID: "run-2", Name: "account.equity", TimestampMs: 1000, Value: 50000},
	}
	require.NoError(t, store.InsertBulk(ctx, points))

	got, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 3)

	// timestamp ASC, name ASC
	assert.Equal(t, "account.cash", got[0].Name)
	assert.Equal(t, int64(1000), got[0].TimestampMs)
	assert.Equal(t, "account.equity", got[1].Name)
	assert.Equal(t, int64(1000), got[1].TimestampMs)
	assert.Equal(t, "account.equity", got[2].Name)
	assert.Equal(t, int64(2000), got[2].TimestampMs)
	assert.InDelta(t, 100500.25, got[2].Value, 0.0001)
}

func TestMetricStore_GetByName(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewMetricStore(conn)

	require.NoError(t, store.InsertBulk(ctx, []*domain.MetricPoint{
		{RunID: "run-1", Name: "account.equity", TimestampMs: 1000, Value: 1},
		{RunID: "run-1", Name: "account.equity", TimestampMs: 2000, Value: 2},
		{RunID: "run-1", Name: "account.cash", TimestampMs: 1000, Value: 3},
	}))

	got, err := store.GetByName(ctx, "run-1", "account.equity")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1000), got[0].TimestampMs)
	assert.Equal(t, int64(2000), got[1].TimestampMs)
}

func TestMetricStore_DuplicateAgainstExisting(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewMetricStore(conn)

	require.NoError(t, store.InsertBulk(ctx, []*domain.MetricPoint{
		{RunID: "run-1", Name: "account.equity", TimestampMs: 1000, Value: 1},
	}))

	err := store.InsertBulk(ctx, []*domain.MetricPoint{
		{RunID: "run-1", Name: "account.equity", TimestampMs: 1000, Value: 2},
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestMetricStore_IntraBatchDuplicate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewMetricStore(conn)

	err := store.InsertBulk(ctx, []*domain.MetricPoint{
		{RunID: "run-1", Name: "account.equity", TimestampMs: 1000, Value: 1},
		{RunID: "run-1", Name: "account.equity", TimestampMs: 1000, Value: 2},
	})
	require.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, got, "failed batch must not be applied")
}

func TestMetricStore_InvalidInput(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMetricStore(conn)

	err := store.InsertBulk(context.Background(), []*domain.MetricPoint{
		{RunID: "", Name: "account.equity", TimestampMs: 1000},
	})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
