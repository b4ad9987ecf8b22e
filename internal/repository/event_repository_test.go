package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/abelzeko/reservoir-sim/internal/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// newTestRepository opens a repository backed by a temporary file
func newTestRepository(t *testing.T) *SQLiteEventRepository {
	t.Helper()
	repo, err := NewSQLiteEventRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func event(dir entities.Direction, volume, level float64, at time.Time) *entities.FlowEvent {
	return &entities.FlowEvent{Timestamp: at, Direction: dir, Volume: volume, ResultingLevel: level}
}

func TestAppendAssignsIncreasingIDs(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now()

	first := event(entities.DirectionInflow, 42.5, 542.5, now)
	second := event(entities.DirectionOutflow, 10, 532.5, now)

	require.NoError(t, repo.Append(ctx, first))
	require.NoError(t, repo.Append(ctx, second))

	assert.Greater(t, first.ID, int64(0))
	assert.Greater(t, second.ID, first.ID)
}

func TestRecentReturnsNewestFirst(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2025, time.April, 18, 8, 0, 0, 0, time.Local)

	var appended []*entities.FlowEvent
	for i := 0; i < 5; i++ {
		ev := event(entities.DirectionInflow, float64(i+1), 500+float64(i+1), base.Add(time.Duration(i)*time.Second))
		require.NoError(t, repo.Append(ctx, ev))
		appended = append(appended, ev)
	}

	got, err := repo.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)

	for i, ev := range got {
		want := appended[len(appended)-1-i]
		assert.Equal(t, want.ID, ev.ID)
		assert.Equal(t, want.Direction, ev.Direction)
		assert.InDelta(t, want.Volume, ev.Volume, 1e-9)
		assert.InDelta(t, want.ResultingLevel, ev.ResultingLevel, 1e-9)
		assert.True(t, want.Timestamp.Equal(ev.Timestamp), "timestamp %v != %v", want.Timestamp, ev.Timestamp)
	}
}

func TestRecentDefaultsAndShortLog(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	got, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	for i := 0; i < DefaultHistoryLimit+5; i++ {
		require.NoError(t, repo.Append(ctx, event(entities.DirectionOutflow, 1, 100, time.Now())))
	}

	got, err = repo.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, got, DefaultHistoryLimit)

	got, err = repo.Recent(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, got, DefaultHistoryLimit+5)
}

func TestRowsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")
	ctx := context.Background()

	repo, err := NewSQLiteEventRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.Append(ctx, event(entities.DirectionInflow, 30, 530, time.Now())))
	require.NoError(t, repo.Close())

	reopened, err := NewSQLiteEventRepository(path)
	require.NoError(t, err)
	defer reopened.Close()

	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestPurgeKeepsIdentifiersIncreasing(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	before := event(entities.DirectionInflow, 5, 505, time.Now())
	require.NoError(t, repo.Append(ctx, before))
	require.NoError(t, repo.Purge(ctx))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	after := event(entities.DirectionInflow, 5, 510, time.Now())
	require.NoError(t, repo.Append(ctx, after))
	assert.Greater(t, after.ID, before.ID)
}

func TestAppendOnClosedDatabaseReturnsStorageError(t *testing.T) {
	repo := newTestRepository(t)
	require.NoError(t, repo.Close())

	err := repo.Append(context.Background(), event(entities.DirectionInflow, 1, 1, time.Now()))
	require.Error(t, err)

	var storageErr *StorageError
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, "append", storageErr.Op)

	_, err = repo.Recent(context.Background(), 5)
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, "recent", storageErr.Op)
}

func TestExportXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.xlsx")
	at := time.Date(2025, time.April, 18, 8, 0, 0, 0, time.Local)
	events := []entities.FlowEvent{
		{ID: 2, Timestamp: at, Direction: entities.DirectionOutflow, Volume: 25, ResultingLevel: 475},
		{ID: 1, Timestamp: at, Direction: entities.DirectionInflow, Volume: 50, ResultingLevel: 500},
	}

	require.NoError(t, ExportXLSX(events, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(HistorySheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, exportHeader, rows[0])
	assert.Equal(t, []string{"2", "2025-04-18 08:00:00", "sortie", "25", "475"}, rows[1])
	assert.Equal(t, "entrée", rows[2][2])
}
