package jobhistory

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))

	return len(p), nil
}

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "history.db")

	store, err := Open(dbPath, testLogger(t))
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})

	return store
}

func TestOpen_AppliesMigrations(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	records, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRecordJobOutcome_ThenRecentReturnsIt(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordJobOutcome(ctx, "job-1", "success"))

	records, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "job-1", records[0].JobID)
	assert.Equal(t, "success", records[0].Outcome)
	assert.NotEmpty(t, records[0].ID)
	assert.WithinDuration(t, time.Now(), records[0].RecordedAt, 5*time.Second)
}

func TestRecent_OrdersNewestFirstAndRespectsLimit(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now()
	store.nowFunc = func() time.Time { return base }
	require.NoError(t, store.RecordJobOutcome(ctx, "job-a", "success"))

	store.nowFunc = func() time.Time { return base.Add(1 * time.Second) }
	require.NoError(t, store.RecordJobOutcome(ctx, "job-b", "lock_taken"))

	store.nowFunc = func() time.Time { return base.Add(2 * time.Second) }
	require.NoError(t, store.RecordJobOutcome(ctx, "job-c", "success"))

	records, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "job-c", records[0].JobID)
	assert.Equal(t, "job-b", records[1].JobID)
}

func TestCountByOutcome(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordJobOutcome(ctx, "job-a", "success"))
	require.NoError(t, store.RecordJobOutcome(ctx, "job-b", "success"))
	require.NoError(t, store.RecordJobOutcome(ctx, "job-c", "lock_taken"))

	n, err := store.CountByOutcome(ctx, "success")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.CountByOutcome(ctx, "lock_taken")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = store.CountByOutcome(ctx, "crashed")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestOpen_ReopenReusesExistingSchema(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "history.db")
	logger := testLogger(t)

	store1, err := Open(dbPath, logger)
	require.NoError(t, err)
	require.NoError(t, store1.RecordJobOutcome(context.Background(), "job-1", "success"))
	require.NoError(t, store1.Close())

	store2, err := Open(dbPath, logger)
	require.NoError(t, err)
	defer store2.Close()

	records, err := store2.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "job-1", records[0].JobID)
}
