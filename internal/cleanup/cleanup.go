// Package cleanup deletes expired downloads and leftover staging files. The
// server's janitor and the cron binary both run the same sweep; deletions are
// idempotent so overlapping runs are harmless.
package cleanup

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/vegeteria/ytdownloader/internal/model"
	"github.com/vegeteria/ytdownloader/internal/store"
)

// Result summarizes one expired-records sweep.
type Result struct {
	Deleted int
	Failed  int
}

// Sweeper removes expired download records and their files.
type Sweeper struct {
	store *store.Store
	log   *zap.Logger
}

// NewSweeper creates a Sweeper.
func NewSweeper(st *store.Store, log *zap.Logger) *Sweeper {
	return &Sweeper{store: st, log: log}
}

// Run deletes every record expired as of now, together with its file.
// A missing file counts as deleted; a file that cannot be removed keeps its
// record so the next run retries.
func (s *Sweeper) Run(now time.Time) (Result, error) {
	expired, err := s.store.ListExpired(now)
	if err != nil {
		return Result{}, fmt.Errorf("cleanup: %w", err)
	}

	if len(expired) == 0 {
		s.log.Info("No expired files found")
		return Result{}, nil
	}

	var res Result
	for _, rec := range expired {
		s.log.Info("Processing expired download",
			zap.String("id", rec.ID),
			zap.String("title", rec.Title))

		if err := removeFile(rec.FilePath); err != nil {
			s.log.Error("Failed to delete file",
				zap.String("id", rec.ID),
				zap.String("path", rec.FilePath),
				zap.Error(err))
			res.Failed++
			continue
		}

		if err := s.store.Delete(rec.ID); err != nil {
			s.log.Error("Failed to delete record", zap.String("id", rec.ID), zap.Error(err))
			res.Failed++
			continue
		}

		s.log.Info("Deleted expired download",
			zap.String("id", rec.ID),
			zap.String("path", rec.FilePath))
		res.Deleted++
	}

	s.log.Info("Cleanup complete",
		zap.Int("deleted", res.Deleted),
		zap.Int("failed", res.Failed))
	return res, nil
}

// ListExpired returns the records a Run would delete, without touching them.
func (s *Sweeper) ListExpired(now time.Time) ([]*model.DownloadRecord, error) {
	return s.store.ListExpired(now)
}

// SweepOrphans deletes regular files in dir whose mtime is older than maxAge.
// These are intermediate files left behind by failed downloads.
func SweepOrphans(dir string, maxAge time.Duration, now time.Time, log *zap.Logger) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warn("Cannot read staging directory", zap.String("dir", dir), zap.Error(err))
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= maxAge {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			log.Error("Failed to delete orphaned file", zap.String("path", path), zap.Error(err))
			continue
		}
		log.Info("Deleted orphaned file", zap.String("name", entry.Name()))
		removed++
	}

	if removed > 0 {
		log.Info("Orphan sweep complete", zap.Int("removed", removed))
	}
	return removed
}

func removeFile(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
