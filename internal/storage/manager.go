package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vegeteria/ytdownloader/internal/model"
	"github.com/vegeteria/ytdownloader/pkg/logger"
)

// Manager owns the download directories: a staging dir where yt-dlp writes
// in-flight output and a public dir holding finished files until they expire.
type Manager struct {
	cfg      *model.StorageConfig
	quitChan chan struct{}
}

// NewManager creates a new storage manager
func NewManager(cfg *model.StorageConfig) *Manager {
	return &Manager{
		cfg:      cfg,
		quitChan: make(chan struct{}),
	}
}

// EnsureDirs creates the staging and public directories.
func (m *Manager) EnsureDirs() error {
	if err := os.MkdirAll(m.cfg.StagingDir, 0755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	if err := os.MkdirAll(m.cfg.PublicDir, 0755); err != nil {
		return fmt.Errorf("create public dir: %w", err)
	}
	return nil
}

// StartJanitor runs the given jobs on the configured interval until Stop.
func (m *Manager) StartJanitor(jobs ...func()) {
	go func() {
		ticker := time.NewTicker(time.Duration(m.cfg.JanitorInterval) * time.Second)
		defer ticker.Stop()

		logger.Logger.Info("Janitor started",
			zap.Int("interval_seconds", m.cfg.JanitorInterval))

		for {
			select {
			case <-m.quitChan:
				logger.Logger.Info("Janitor stopped")
				return
			case <-ticker.C:
				for _, job := range jobs {
					job()
				}
			}
		}
	}()
}

// Stop stops the janitor.
func (m *Manager) Stop() {
	close(m.quitChan)
}

// StagingPath returns the path of a staging file.
func (m *Manager) StagingPath(name string) string {
	return filepath.Join(m.cfg.StagingDir, name)
}

// PublicPath returns the path of a public file.
func (m *Manager) PublicPath(name string) string {
	return filepath.Join(m.cfg.PublicDir, name)
}

// StagingDir returns the staging directory.
func (m *Manager) StagingDir() string {
	return m.cfg.StagingDir
}

// OrphanAge returns how old a staging file must be to count as abandoned.
func (m *Manager) OrphanAge() time.Duration {
	return time.Duration(m.cfg.OrphanAgeSeconds) * time.Second
}

// FindStaged returns the first staging file with the task-id prefix.
func (m *Manager) FindStaged(taskID string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(m.cfg.StagingDir, taskID+"_*"))
	if err != nil {
		return "", fmt.Errorf("scan staging dir: %w", err)
	}
	for _, match := range matches {
		// yt-dlp leaves .part files while a merge is still running.
		if strings.HasSuffix(match, ".part") || strings.HasSuffix(match, ".ytdl") {
			continue
		}
		return match, nil
	}
	return "", fmt.Errorf("no staged file for task %s", taskID)
}

// RemoveStaged deletes any remaining staging files with the task-id prefix.
func (m *Manager) RemoveStaged(taskID string) {
	matches, err := filepath.Glob(filepath.Join(m.cfg.StagingDir, taskID+"_*"))
	if err != nil {
		return
	}
	for _, match := range matches {
		if err := os.Remove(match); err != nil && !os.IsNotExist(err) {
			logger.Logger.Warn("Failed to remove staging leftover",
				zap.String("path", match), zap.Error(err))
		}
	}
}

// ValidateFileSize checks if file size is within limits
func (m *Manager) ValidateFileSize(sizeBytes int64) bool {
	maxSizeBytes := int64(m.cfg.MaxVideoSizeMB) * 1024 * 1024
	return sizeBytes <= maxSizeBytes
}

// MaxVideoSizeMB returns the configured size limit.
func (m *Manager) MaxVideoSizeMB() int {
	return m.cfg.MaxVideoSizeMB
}
