package service

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vegeteria/ytdownloader/internal/model"
	"github.com/vegeteria/ytdownloader/pkg/logger"
)

// QuotaEntry tracks quota usage per IP
type QuotaEntry struct {
	IP         string
	UsedMB     int64
	ResetTime  time.Time
	LastUpdate time.Time
}

// QuotaService manages user download quotas
type QuotaService struct {
	cfg      *model.QuotaConfig
	quotas   map[string]*QuotaEntry
	mu       sync.RWMutex
	quitChan chan struct{}
}

// NewQuotaService creates a new quota service
func NewQuotaService(cfg *model.QuotaConfig) *QuotaService {
	service := &QuotaService{
		cfg:      cfg,
		quotas:   make(map[string]*QuotaEntry),
		quitChan: make(chan struct{}),
	}

	if cfg.Enabled {
		go service.resetRoutine()
	}

	return service
}

// CheckQuota reports whether the IP still has quota, and how much remains.
func (qs *QuotaService) CheckQuota(ip string) (bool, int64) {
	if !qs.cfg.Enabled {
		return true, qs.cfg.DailyLimitMB
	}

	qs.mu.Lock()
	defer qs.mu.Unlock()

	entry := qs.entryLocked(ip)

	now := time.Now()
	if now.After(entry.ResetTime) {
		entry.UsedMB = 0
		entry.ResetTime = qs.calculateResetTime()
		entry.LastUpdate = now
	}

	remaining := qs.cfg.DailyLimitMB - entry.UsedMB
	if remaining <= 0 {
		logger.Logger.Warn("Quota exhausted",
			zap.String("ip", ip), zap.Int64("limit_mb", qs.cfg.DailyLimitMB))
		return false, 0
	}

	return true, remaining
}

// AddUsage adds to quota usage for an IP
func (qs *QuotaService) AddUsage(ip string, sizeMB int64) {
	if !qs.cfg.Enabled || sizeMB <= 0 {
		return
	}

	qs.mu.Lock()
	defer qs.mu.Unlock()

	entry := qs.entryLocked(ip)
	entry.UsedMB += sizeMB
	entry.LastUpdate = time.Now()

	logger.Logger.Debug("Quota usage updated",
		zap.String("ip", ip),
		zap.Int64("used_mb", entry.UsedMB),
		zap.Int64("limit_mb", qs.cfg.DailyLimitMB))
}

// entryLocked returns the entry for ip, creating it if needed.
// The caller must hold mu.
func (qs *QuotaService) entryLocked(ip string) *QuotaEntry {
	if entry, exists := qs.quotas[ip]; exists {
		return entry
	}
	entry := &QuotaEntry{
		IP:         ip,
		ResetTime:  qs.calculateResetTime(),
		LastUpdate: time.Now(),
	}
	qs.quotas[ip] = entry
	return entry
}

// calculateResetTime calculates next reset time based on config
func (qs *QuotaService) calculateResetTime() time.Time {
	now := time.Now()
	resetTime := time.Date(now.Year(), now.Month(), now.Day(),
		qs.cfg.ResetHour, qs.cfg.ResetMinute, 0, 0, now.Location())

	if resetTime.Before(now) {
		resetTime = resetTime.AddDate(0, 0, 1)
	}

	return resetTime
}

// resetRoutine periodically checks and resets quotas
func (qs *QuotaService) resetRoutine() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-qs.quitChan:
			return
		case <-ticker.C:
			qs.checkAndResetQuotas()
		}
	}
}

// checkAndResetQuotas checks for expired quotas and resets them
func (qs *QuotaService) checkAndResetQuotas() {
	qs.mu.Lock()
	defer qs.mu.Unlock()

	now := time.Now()
	resetCount := 0

	for _, entry := range qs.quotas {
		if now.After(entry.ResetTime) {
			entry.UsedMB = 0
			entry.ResetTime = qs.calculateResetTime()
			entry.LastUpdate = now
			resetCount++
		}
	}

	if resetCount > 0 {
		logger.Logger.Info("Quota reset completed", zap.Int("entries_reset", resetCount))
	}
}

// Stop stops the quota service
func (qs *QuotaService) Stop() {
	if qs.cfg.Enabled {
		close(qs.quitChan)
	}
}
