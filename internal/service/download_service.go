package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vegeteria/ytdownloader/internal/metrics"
	"github.com/vegeteria/ytdownloader/internal/model"
	"github.com/vegeteria/ytdownloader/internal/retention"
	"github.com/vegeteria/ytdownloader/internal/storage"
	"github.com/vegeteria/ytdownloader/internal/store"
	"github.com/vegeteria/ytdownloader/pkg/logger"
	"github.com/vegeteria/ytdownloader/pkg/validator"
)

// DownloadOutput is what a runner reports after yt-dlp finishes.
type DownloadOutput struct {
	Title    string
	Duration time.Duration
}

// DownloadRunner performs the actual yt-dlp invocation for a task, writing
// output into the staging directory under the task-id prefix.
type DownloadRunner interface {
	Run(ctx context.Context, task *model.DownloadTask, progress func(percent int)) (*DownloadOutput, error)
}

// DownloadService manages asynchronous download tasks.
type DownloadService struct {
	runner      DownloadRunner
	storage     *storage.Manager
	store       *store.Store
	met         *metrics.Metrics
	taskTimeout time.Duration

	tasks       map[string]*model.DownloadTask
	tasksMutex  sync.RWMutex
	queue       []string // queued task ids in submission order
	maxParallel int
	activeCount int

	onComplete func(task *model.DownloadTask)
}

// NewDownloadService creates a download service.
func NewDownloadService(runner DownloadRunner, sm *storage.Manager, st *store.Store, met *metrics.Metrics, cfg *model.DownloadConfig) *DownloadService {
	return &DownloadService{
		runner:      runner,
		storage:     sm,
		store:       st,
		met:         met,
		taskTimeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		tasks:       make(map[string]*model.DownloadTask),
		maxParallel: cfg.Workers,
	}
}

// SetCompletionCallback registers a callback invoked after a task reaches a
// terminal state. Used for quota accounting.
func (s *DownloadService) SetCompletionCallback(fn func(task *model.DownloadTask)) {
	s.onComplete = fn
}

// StartTask queues a download and returns its task id immediately. clientIP
// identifies the requester for quota accounting.
func (s *DownloadService) StartTask(req *model.DownloadRequest, clientIP string) (*model.DownloadTask, error) {
	formatType := model.FormatType(req.FormatType)
	if req.FormatType == "" {
		formatType = model.FormatVideoAudio
	}
	if !formatType.Valid() {
		return nil, fmt.Errorf("unsupported format type %q", req.FormatType)
	}

	videoID := validator.ExtractVideoID(req.URL)
	if videoID == "" {
		return nil, fmt.Errorf("no video id in url %q", req.URL)
	}

	quality := req.Quality
	if quality == "" {
		quality = "best"
	}

	task := &model.DownloadTask{
		ID:         strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
		URL:        validator.CleanYouTubeURL(req.URL),
		VideoID:    videoID,
		Quality:    quality,
		FormatType: formatType,
		Status:     model.StatusQueued,
		ClientIP:   clientIP,
		CreatedAt:  time.Now(),
	}

	s.tasksMutex.Lock()
	s.tasks[task.ID] = task
	startNow := s.activeCount < s.maxParallel
	if startNow {
		// Claim the slot and the task under the same lock so concurrent
		// submissions cannot oversubscribe the worker bound.
		s.activeCount++
		task.Status = model.StatusDownloading
	} else {
		s.queue = append(s.queue, task.ID)
	}
	s.tasksMutex.Unlock()

	s.met.TasksStarted.Inc()
	logger.Logger.Info("Download task queued",
		zap.String("task_id", task.ID),
		zap.String("video_id", task.VideoID),
		zap.String("quality", task.Quality),
		zap.String("format_type", string(task.FormatType)))

	if startNow {
		go s.run(task)
	}
	return task, nil
}

// TaskStatus answers a status poll. Live tasks come from memory; finished
// downloads from earlier server runs are answered from the store.
func (s *DownloadService) TaskStatus(id string) (*model.TaskStatusResponse, bool) {
	s.tasksMutex.RLock()
	task, ok := s.tasks[id]
	s.tasksMutex.RUnlock()

	if ok {
		resp := &model.TaskStatusResponse{
			Status:   task.Status,
			Progress: task.Progress,
		}
		switch task.Status {
		case model.StatusReady:
			resp.Title = task.Title
			resp.Filename = task.Filename
			resp.Expiry = task.ExpiresAt
		case model.StatusError:
			resp.Error = task.Error
		}
		return resp, true
	}

	rec, err := s.store.Get(id)
	if err != nil || rec == nil {
		return nil, false
	}
	return &model.TaskStatusResponse{
		Status:   model.StatusReady,
		Progress: 100,
		Title:    rec.Title,
		Filename: filepath.Base(rec.FilePath),
		Expiry:   rec.ExpiryUnix,
	}, true
}

// FileForTask resolves the produced file for a ready task, checking memory
// first and falling back to the store.
func (s *DownloadService) FileForTask(id string) (path, filename string, err error) {
	s.tasksMutex.RLock()
	task, ok := s.tasks[id]
	s.tasksMutex.RUnlock()

	if ok && task.FilePath != "" {
		path, filename = task.FilePath, task.Filename
	} else {
		rec, recErr := s.store.Get(id)
		if recErr != nil {
			return "", "", recErr
		}
		if rec == nil {
			return "", "", fmt.Errorf("download %s not found", id)
		}
		path, filename = rec.FilePath, filepath.Base(rec.FilePath)
	}

	if _, err := os.Stat(path); err != nil {
		return "", "", fmt.Errorf("file for %s no longer exists", id)
	}
	return path, filename, nil
}

// PruneFinished drops terminal tasks older than maxAge from memory. Their
// records stay in the store, which keeps answering status and file requests.
func (s *DownloadService) PruneFinished(maxAge time.Duration) int {
	s.tasksMutex.Lock()
	defer s.tasksMutex.Unlock()

	cutoff := time.Now().Add(-maxAge)
	pruned := 0
	for id, task := range s.tasks {
		if task.Status.IsFinished() && task.CreatedAt.Before(cutoff) {
			delete(s.tasks, id)
			pruned++
		}
	}
	return pruned
}

func (s *DownloadService) run(task *model.DownloadTask) {
	s.met.ActiveDownloads.Inc()
	defer func() {
		s.met.ActiveDownloads.Dec()
		s.releaseSlot()
		if s.onComplete != nil {
			s.onComplete(task)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.taskTimeout)
	defer cancel()

	out, err := s.runWithRetry(ctx, task)
	if err != nil {
		s.fail(task, "download", err)
		return
	}

	s.tasksMutex.Lock()
	task.Status = model.StatusConverting
	task.Progress = 100
	s.tasksMutex.Unlock()

	if err := s.finalize(task, out); err != nil {
		s.fail(task, "finalize", err)
		return
	}

	s.met.TasksCompleted.Inc()
	logger.Logger.Info("Download task ready",
		zap.String("task_id", task.ID),
		zap.String("filename", task.Filename),
		zap.Int64("expiry", task.ExpiresAt))
}

func (s *DownloadService) runWithRetry(ctx context.Context, task *model.DownloadTask) (*DownloadOutput, error) {
	progress := func(percent int) {
		s.tasksMutex.Lock()
		task.Progress = percent
		s.tasksMutex.Unlock()
	}

	out, err := s.runner.Run(ctx, task, progress)
	if err == nil {
		return out, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	logger.Logger.Warn("Download attempt failed, retrying",
		zap.String("task_id", task.ID), zap.Error(err))

	select {
	case <-time.After(2 * time.Second):
	case <-ctx.Done():
		return nil, err
	}

	return s.runner.Run(ctx, task, progress)
}

// maxPublicName caps the length of filenames placed in the public directory.
const maxPublicName = 64

// finalize moves the staged file into the public directory, records it for
// cleanup and marks the task ready.
func (s *DownloadService) finalize(task *model.DownloadTask, out *DownloadOutput) error {
	staged, err := s.storage.FindStaged(task.ID)
	if err != nil {
		return err
	}

	info, err := os.Stat(staged)
	if err != nil {
		return fmt.Errorf("stat staged file: %w", err)
	}
	if !s.storage.ValidateFileSize(info.Size()) {
		s.storage.RemoveStaged(task.ID)
		return fmt.Errorf("file size %d exceeds the %d MB limit",
			info.Size(), s.storage.MaxVideoSizeMB())
	}

	finalName := validator.TruncateFilename(fmt.Sprintf("%s_%s.%s", task.ID,
		validator.SafeTitle(out.Title, 50), finalExtension(task.FormatType)), maxPublicName)
	finalPath := s.storage.PublicPath(finalName)

	if err := os.Rename(staged, finalPath); err != nil {
		return fmt.Errorf("move %s to public dir: %w", staged, err)
	}
	s.storage.RemoveStaged(task.ID)

	now := time.Now()
	expiry := retention.ExpiryAt(now, out.Duration)
	rec := &model.DownloadRecord{
		ID:         task.ID,
		VideoID:    task.VideoID,
		Title:      out.Title,
		FilePath:   finalPath,
		DurationS:  int64(out.Duration.Seconds()),
		ExpiryUnix: expiry.Unix(),
		FormatInfo: fmt.Sprintf("%s_%s", task.Quality, task.FormatType),
		Status:     "ready",
		CreatedAt:  now.Unix(),
	}
	if err := s.store.Save(rec); err != nil {
		// An unrecorded file would never expire; drop it rather than leak it.
		if rmErr := os.Remove(finalPath); rmErr != nil && !os.IsNotExist(rmErr) {
			logger.Logger.Warn("Failed to remove unrecorded file",
				zap.String("path", finalPath), zap.Error(rmErr))
		}
		return err
	}

	s.tasksMutex.Lock()
	task.Status = model.StatusReady
	task.Title = out.Title
	task.Filename = finalName
	task.FilePath = finalPath
	task.Size = info.Size()
	task.ExpiresAt = expiry.Unix()
	s.tasksMutex.Unlock()
	return nil
}

func (s *DownloadService) fail(task *model.DownloadTask, stage string, err error) {
	s.tasksMutex.Lock()
	task.Status = model.StatusError
	task.Error = err.Error()
	s.tasksMutex.Unlock()

	s.met.TasksFailed.WithLabelValues(stage).Inc()
	logger.Logger.Error("Download task failed",
		zap.String("task_id", task.ID),
		zap.String("stage", stage),
		zap.Error(err))
}

// releaseSlot frees the finished worker's slot and hands it to the oldest
// queued task, in submission order.
func (s *DownloadService) releaseSlot() {
	s.tasksMutex.Lock()
	defer s.tasksMutex.Unlock()

	s.activeCount--
	for len(s.queue) > 0 && s.activeCount < s.maxParallel {
		id := s.queue[0]
		s.queue = s.queue[1:]

		task, ok := s.tasks[id]
		if !ok || task.Status != model.StatusQueued {
			// Pruned while waiting; try the next one.
			continue
		}
		s.activeCount++
		task.Status = model.StatusDownloading
		go s.run(task)
		return
	}
}

func finalExtension(ft model.FormatType) string {
	switch ft {
	case model.FormatAudioMP3:
		return "mp3"
	case model.FormatAudioM4A:
		return "m4a"
	default:
		return "mp4"
	}
}
