package cleanup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vegeteria/ytdownloader/internal/model"
	"github.com/vegeteria/ytdownloader/internal/store"
)

func newTestSweeper(t *testing.T) (*Sweeper, *store.Store, string) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "downloads.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewSweeper(st, zap.NewNop()), st, dir
}

func writeRecord(t *testing.T, st *store.Store, dir, id string, expiry time.Time, withFile bool) string {
	t.Helper()
	path := filepath.Join(dir, id+".mp4")
	if withFile {
		require.NoError(t, os.WriteFile(path, []byte("video data"), 0644))
	}
	require.NoError(t, st.Save(&model.DownloadRecord{
		ID:         id,
		VideoID:    "vid" + id,
		Title:      "Video " + id,
		FilePath:   path,
		DurationS:  60,
		ExpiryUnix: expiry.Unix(),
		Status:     "ready",
		CreatedAt:  time.Now().Unix(),
	}))
	return path
}

func TestRunDeletesExpired(t *testing.T) {
	sweeper, st, dir := newTestSweeper(t)
	now := time.Now()

	expiredPath := writeRecord(t, st, dir, "old", now.Add(-time.Minute), true)
	freshPath := writeRecord(t, st, dir, "new", now.Add(2*time.Hour), true)

	res, err := sweeper.Run(now)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)
	assert.Equal(t, 0, res.Failed)

	_, statErr := os.Stat(expiredPath)
	assert.True(t, os.IsNotExist(statErr), "expired file should be gone")
	_, statErr = os.Stat(freshPath)
	assert.NoError(t, statErr, "fresh file should remain")

	rec, err := st.Get("old")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRunMissingFileStillDeletesRecord(t *testing.T) {
	sweeper, st, dir := newTestSweeper(t)
	now := time.Now()

	writeRecord(t, st, dir, "ghost", now.Add(-time.Hour), false)

	res, err := sweeper.Run(now)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)

	rec, err := st.Get("ghost")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRunNothingExpired(t *testing.T) {
	sweeper, st, dir := newTestSweeper(t)
	now := time.Now()

	writeRecord(t, st, dir, "fresh", now.Add(time.Hour), true)

	res, err := sweeper.Run(now)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestSweepOrphans(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	oldFile := filepath.Join(dir, "task1_leftover.mp4.part")
	require.NoError(t, os.WriteFile(oldFile, []byte("partial"), 0644))
	require.NoError(t, os.Chtimes(oldFile, now.Add(-2*time.Hour), now.Add(-2*time.Hour)))

	newFile := filepath.Join(dir, "task2_active.mp4.part")
	require.NoError(t, os.WriteFile(newFile, []byte("partial"), 0644))

	removed := SweepOrphans(dir, time.Hour, now, zap.NewNop())
	assert.Equal(t, 1, removed)

	_, err := os.Stat(oldFile)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(newFile)
	assert.NoError(t, err)
}

func TestSweepOrphansMissingDir(t *testing.T) {
	removed := SweepOrphans(filepath.Join(t.TempDir(), "nope"), time.Hour, time.Now(), zap.NewNop())
	assert.Equal(t, 0, removed)
}
