package statedb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *StateDB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "state", "porter.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrateSetsSchemaVersion(t *testing.T) {
	db := newTestDB(t)
	v, err := db.GetMeta("schema_version")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
	require.NoError(t, db.Migrate(), "migrate is idempotent")
}

func TestOffsetRoundTripAndMonotonic(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	off, err := db.LoadOffset(ctx, 42)
	require.NoError(t, err)
	assert.Zero(t, off)

	require.NoError(t, db.SaveOffset(ctx, 42, 100))
	require.NoError(t, db.SaveOffset(ctx, 42, 90))
	require.NoError(t, db.SaveOffset(ctx, 7, 5))

	off, err = db.LoadOffset(ctx, 42)
	require.NoError(t, err)
	assert.EqualValues(t, 100, off)

	off, err = db.LoadOffset(ctx, 7)
	require.NoError(t, err)
	assert.EqualValues(t, 5, off)
}

func TestOffsetSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "porter.db")

	db1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db1.Migrate())
	require.NoError(t, db1.SaveOffset(ctx, 1, 12345))
	require.NoError(t, db1.Close())

	db2, err := Open(path)
	require.NoError(t, err)
	defer db2.Close()
	require.NoError(t, db2.Migrate())
	off, err := db2.LoadOffset(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 12345, off)
}

func TestRecentTasksNewestFirst(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	base := time.Now().Add(-time.Hour).Truncate(time.Millisecond)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, db.RecordTask(ctx, TaskRecord{
			ID:         id,
			Kind:       "clone",
			ChatID:     9,
			Source:     "src_pack",
			State:      "completed",
			Total:      3,
			Succeeded:  3 - i,
			Failed:     i,
			StartedAt:  base,
			FinishedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	recs, err := db.RecentTasks(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "c", recs[0].ID)
	assert.Equal(t, "b", recs[1].ID)
	assert.Equal(t, 2, recs[0].Failed)
	assert.True(t, recs[0].FinishedAt.Equal(base.Add(2*time.Minute)))
}
