package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vegeteria/ytdownloader/internal/metrics"
	"github.com/vegeteria/ytdownloader/internal/model"
	"github.com/vegeteria/ytdownloader/internal/storage"
	"github.com/vegeteria/ytdownloader/internal/store"
	"github.com/vegeteria/ytdownloader/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Logger = zap.NewNop()
	os.Exit(m.Run())
}

// fakeRunner simulates yt-dlp by writing a staged file for the task.
type fakeRunner struct {
	sm       *storage.Manager
	title    string
	duration time.Duration
	failures int32 // remaining runs that should fail
	release  chan struct{} // when non-nil, Run blocks until closed
	runs     int32
	inFlight int32
	peak     int32 // highest concurrent Run count seen

	mu      sync.Mutex
	started []string // task ids in the order Run was entered
}

func (f *fakeRunner) Run(ctx context.Context, task *model.DownloadTask, progress func(int)) (*DownloadOutput, error) {
	atomic.AddInt32(&f.runs, 1)

	cur := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		p := atomic.LoadInt32(&f.peak)
		if cur <= p || atomic.CompareAndSwapInt32(&f.peak, p, cur) {
			break
		}
	}

	f.mu.Lock()
	f.started = append(f.started, task.ID)
	f.mu.Unlock()

	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if atomic.AddInt32(&f.failures, -1) >= 0 {
		return nil, errors.New("simulated yt-dlp failure")
	}

	progress(50)
	progress(100)

	staged := f.sm.StagingPath(task.ID + "_staged_output.mp4")
	if err := os.WriteFile(staged, []byte("fake video payload"), 0644); err != nil {
		return nil, err
	}
	return &DownloadOutput{Title: f.title, Duration: f.duration}, nil
}

type fixture struct {
	svc    *DownloadService
	runner *fakeRunner
	store  *store.Store
	sm     *storage.Manager
}

func newFixture(t *testing.T, workers int) *fixture {
	t.Helper()
	dir := t.TempDir()

	sm := storage.NewManager(&model.StorageConfig{
		StagingDir:       filepath.Join(dir, "downloaded"),
		PublicDir:        filepath.Join(dir, "converted"),
		MaxVideoSizeMB:   100,
		JanitorInterval:  3600,
		OrphanAgeSeconds: 3600,
	})
	require.NoError(t, sm.EnsureDirs())

	st, err := store.Open(filepath.Join(dir, "downloads.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	runner := &fakeRunner{sm: sm, title: "Test Video", duration: 3 * time.Minute}
	met := metrics.New(prometheus.NewRegistry())
	svc := NewDownloadService(runner, sm, st, met, &model.DownloadConfig{
		Workers:        workers,
		TimeoutSeconds: 30,
	})
	return &fixture{svc: svc, runner: runner, store: st, sm: sm}
}

func waitForStatus(t *testing.T, svc *DownloadService, id string, want model.TaskStatus) *model.TaskStatusResponse {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if resp, ok := svc.TaskStatus(id); ok && resp.Status == want {
			return resp
		}
		time.Sleep(10 * time.Millisecond)
	}
	resp, _ := svc.TaskStatus(id)
	t.Fatalf("task %s never reached %s, last status: %+v", id, want, resp)
	return nil
}

func TestStartTaskCompletes(t *testing.T) {
	f := newFixture(t, 1)

	task, err := f.svc.StartTask(&model.DownloadRequest{
		URL:        "https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PL1",
		Quality:    "720p",
		FormatType: "video+audio",
	}, "10.0.0.1")
	require.NoError(t, err)
	assert.Len(t, task.ID, 8)
	assert.Equal(t, "dQw4w9WgXcQ", task.VideoID)
	// Playlist params are stripped before the runner sees the URL.
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", task.URL)

	resp := waitForStatus(t, f.svc, task.ID, model.StatusReady)
	assert.Equal(t, 100, resp.Progress)
	assert.Equal(t, "Test Video", resp.Title)
	assert.Equal(t, task.ID+"_Test Video.mp4", resp.Filename)

	// The staged file was moved into the public dir.
	path, filename, err := f.svc.FileForTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.Filename, filename)
	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)

	// A record with the retention expiry exists: max(2h, 3min) = 2h.
	rec, err := f.store.Get(task.ID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(180), rec.DurationS)
	assert.InDelta(t, time.Now().Add(2*time.Hour).Unix(), rec.ExpiryUnix, 10)
}

func TestStartTaskLongVideoRetention(t *testing.T) {
	f := newFixture(t, 1)
	f.runner.duration = 3 * time.Hour

	task, err := f.svc.StartTask(&model.DownloadRequest{
		URL: "https://youtu.be/dQw4w9WgXcQ",
	}, "10.0.0.1")
	require.NoError(t, err)

	waitForStatus(t, f.svc, task.ID, model.StatusReady)

	rec, err := f.store.Get(task.ID)
	require.NoError(t, err)
	assert.InDelta(t, time.Now().Add(3*time.Hour).Unix(), rec.ExpiryUnix, 10)
}

func TestStartTaskRejectsBadInput(t *testing.T) {
	f := newFixture(t, 1)

	_, err := f.svc.StartTask(&model.DownloadRequest{
		URL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", FormatType: "flac",
	}, "10.0.0.1")
	assert.Error(t, err)

	_, err = f.svc.StartTask(&model.DownloadRequest{
		URL: "https://www.youtube.com/about",
	}, "10.0.0.1")
	assert.Error(t, err)
}

func TestTaskStatusFallsBackToStore(t *testing.T) {
	f := newFixture(t, 1)

	require.NoError(t, f.store.Save(&model.DownloadRecord{
		ID:         "restarted",
		Title:      "Survived Restart",
		FilePath:   "/data/converted/restarted_Survived Restart.mp4",
		ExpiryUnix: time.Now().Add(time.Hour).Unix(),
		Status:     "ready",
	}))

	resp, ok := f.svc.TaskStatus("restarted")
	require.True(t, ok)
	assert.Equal(t, model.StatusReady, resp.Status)
	assert.Equal(t, "Survived Restart", resp.Title)
	assert.Equal(t, "restarted_Survived Restart.mp4", resp.Filename)

	_, ok = f.svc.TaskStatus("unknown")
	assert.False(t, ok)
}

func TestFileForTaskMissingFile(t *testing.T) {
	f := newFixture(t, 1)

	require.NoError(t, f.store.Save(&model.DownloadRecord{
		ID:         "gone",
		FilePath:   filepath.Join(t.TempDir(), "deleted.mp4"),
		ExpiryUnix: time.Now().Add(time.Hour).Unix(),
	}))

	_, _, err := f.svc.FileForTask("gone")
	assert.Error(t, err)
}

func TestQueuedTaskStartsWhenSlotFrees(t *testing.T) {
	f := newFixture(t, 1)
	f.runner.release = make(chan struct{})

	first, err := f.svc.StartTask(&model.DownloadRequest{
		URL: "https://youtu.be/aaaaaaaaaaa",
	}, "10.0.0.1")
	require.NoError(t, err)

	second, err := f.svc.StartTask(&model.DownloadRequest{
		URL: "https://youtu.be/bbbbbbbbbbb",
	}, "10.0.0.1")
	require.NoError(t, err)

	resp, ok := f.svc.TaskStatus(second.ID)
	require.True(t, ok)
	assert.Equal(t, model.StatusQueued, resp.Status)

	close(f.runner.release)

	waitForStatus(t, f.svc, first.ID, model.StatusReady)
	waitForStatus(t, f.svc, second.ID, model.StatusReady)
}

func TestWorkerBoundHolds(t *testing.T) {
	f := newFixture(t, 2)
	f.runner.release = make(chan struct{})

	var tasks []*model.DownloadTask
	for i := 0; i < 20; i++ {
		task, err := f.svc.StartTask(&model.DownloadRequest{
			URL: "https://youtu.be/dQw4w9WgXcQ",
		}, "10.0.0.1")
		require.NoError(t, err)
		tasks = append(tasks, task)
	}

	// Give the admitted goroutines time to reach the runner; the rest must
	// stay queued.
	time.Sleep(100 * time.Millisecond)
	assert.LessOrEqual(t, atomic.LoadInt32(&f.runner.inFlight), int32(2))

	close(f.runner.release)
	for _, task := range tasks {
		waitForStatus(t, f.svc, task.ID, model.StatusReady)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&f.runner.peak), int32(2))
}

func TestQueuedTasksRunInSubmissionOrder(t *testing.T) {
	f := newFixture(t, 1)
	f.runner.release = make(chan struct{})

	var ids []string
	for i := 0; i < 4; i++ {
		task, err := f.svc.StartTask(&model.DownloadRequest{
			URL: "https://youtu.be/dQw4w9WgXcQ",
		}, "10.0.0.1")
		require.NoError(t, err)
		ids = append(ids, task.ID)
	}

	close(f.runner.release)
	for _, id := range ids {
		waitForStatus(t, f.svc, id, model.StatusReady)
	}

	f.runner.mu.Lock()
	started := append([]string(nil), f.runner.started...)
	f.runner.mu.Unlock()
	assert.Equal(t, ids, started)
}

func TestFailedRecordSaveRemovesFile(t *testing.T) {
	f := newFixture(t, 1)
	f.runner.release = make(chan struct{})

	task, err := f.svc.StartTask(&model.DownloadRequest{
		URL: "https://youtu.be/dQw4w9WgXcQ",
	}, "10.0.0.1")
	require.NoError(t, err)

	// Recording the download will fail once the store is closed.
	require.NoError(t, f.store.Close())
	close(f.runner.release)

	waitForStatus(t, f.svc, task.ID, model.StatusError)

	// The moved file must not be left behind where no sweep would find it.
	entries, err := os.ReadDir(f.sm.PublicPath(""))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFinalizeCapsFilenameLength(t *testing.T) {
	f := newFixture(t, 1)
	f.runner.title = strings.Repeat("An Exceedingly Verbose Video Title ", 4)

	task, err := f.svc.StartTask(&model.DownloadRequest{
		URL: "https://youtu.be/dQw4w9WgXcQ",
	}, "10.0.0.1")
	require.NoError(t, err)

	resp := waitForStatus(t, f.svc, task.ID, model.StatusReady)
	assert.LessOrEqual(t, len([]rune(resp.Filename)), maxPublicName)
	assert.True(t, strings.HasSuffix(resp.Filename, ".mp4"))
}

func TestRetryAfterTransientFailure(t *testing.T) {
	f := newFixture(t, 1)
	f.runner.failures = 1

	task, err := f.svc.StartTask(&model.DownloadRequest{
		URL: "https://youtu.be/dQw4w9WgXcQ",
	}, "10.0.0.1")
	require.NoError(t, err)

	waitForStatus(t, f.svc, task.ID, model.StatusReady)
	assert.Equal(t, int32(2), atomic.LoadInt32(&f.runner.runs))
}

func TestFailureAfterRetriesMarksError(t *testing.T) {
	f := newFixture(t, 1)
	f.runner.failures = 2

	task, err := f.svc.StartTask(&model.DownloadRequest{
		URL: "https://youtu.be/dQw4w9WgXcQ",
	}, "10.0.0.1")
	require.NoError(t, err)

	resp := waitForStatus(t, f.svc, task.ID, model.StatusError)
	assert.Contains(t, resp.Error, "simulated yt-dlp failure")
}

func TestPruneFinished(t *testing.T) {
	f := newFixture(t, 1)

	task, err := f.svc.StartTask(&model.DownloadRequest{
		URL: "https://youtu.be/dQw4w9WgXcQ",
	}, "10.0.0.1")
	require.NoError(t, err)
	waitForStatus(t, f.svc, task.ID, model.StatusReady)

	// Too young to prune.
	assert.Equal(t, 0, f.svc.PruneFinished(time.Hour))
	// Old enough.
	assert.Equal(t, 1, f.svc.PruneFinished(0))

	// The store still answers for the pruned task.
	resp, ok := f.svc.TaskStatus(task.ID)
	require.True(t, ok)
	assert.Equal(t, model.StatusReady, resp.Status)
}
