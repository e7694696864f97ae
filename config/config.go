package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/vegeteria/ytdownloader/internal/model"

	"github.com/joho/godotenv"
)

// Load loads configuration from environment variables
func Load() *model.Config {
	godotenv.Load()

	return &model.Config{
		Server: model.ServerConfig{
			Port:    getEnvInt("SERVER_PORT", 5000),
			Host:    getEnvStr("SERVER_HOST", "0.0.0.0"),
			Timeout: getEnvInt("SERVER_TIMEOUT", 300),
		},
		Storage: model.StorageConfig{
			StagingDir:       getEnvStr("STAGING_DIR", "./downloaded"),
			PublicDir:        getEnvStr("PUBLIC_DIR", "./converted"),
			MaxVideoSizeMB:   getEnvInt("MAX_VIDEO_SIZE_MB", 2048),
			JanitorInterval:  getEnvInt("JANITOR_INTERVAL", 600),
			OrphanAgeSeconds: getEnvInt("ORPHAN_AGE_SECONDS", 3600),
		},
		Tools: model.ToolsConfig{
			YtdlpPath:   getEnvStr("YTDLP_PATH", "yt-dlp"),
			FfmpegDir:   getEnvStr("FFMPEG_DIR", "/usr/bin"),
			CookiesFile: getEnvStr("COOKIES_FILE", "./cookies.txt"),
		},
		Database: model.DatabaseConfig{
			Path: getEnvStr("DATABASE_PATH", "./downloads.db"),
		},
		Download: model.DownloadConfig{
			Workers:        getEnvInt("DOWNLOAD_WORKERS", 3),
			TimeoutSeconds: getEnvInt("DOWNLOAD_TIMEOUT", 1800),
		},
		Logging: model.LoggingConfig{
			Level:          getEnvStr("LOG_LEVEL", "info"),
			FilePath:       getEnvStr("LOG_FILE", "./log/app.log"),
			CleanupLogPath: getEnvStr("CLEANUP_LOG_FILE", "./log/cleanup.log"),
		},
		Security: model.SecurityConfig{
			AllowedDomains: strings.Split(getEnvStr("ALLOWED_DOMAINS", "youtube.com,youtu.be"), ","),
			RequestTimeout: getEnvInt("REQUEST_TIMEOUT", 60),
		},
		Quota: model.QuotaConfig{
			Enabled:      getEnvBool("QUOTA_ENABLED", false),
			DailyLimitMB: getEnvInt64("QUOTA_DAILY_LIMIT_MB", 10240),
			ResetHour:    getEnvInt("QUOTA_RESET_HOUR", 0),
			ResetMinute:  getEnvInt("QUOTA_RESET_MINUTE", 0),
		},
		RateLimit: model.RateLimitConfig{
			Enabled:           getEnvBool("RATELIMIT_ENABLED", true),
			RequestsPerMinute: getEnvInt("RATELIMIT_REQUESTS_PER_MINUTE", 60),
			BurstSize:         getEnvInt("RATELIMIT_BURST_SIZE", 10),
			CleanupInterval:   getEnvInt("RATELIMIT_CLEANUP_INTERVAL", 1800),
		},
	}
}

func getEnvStr(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	valStr := getEnvStr(key, "")
	if val, err := strconv.Atoi(valStr); err == nil {
		return val
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	valStr := getEnvStr(key, "")
	if val, err := strconv.ParseInt(valStr, 10, 64); err == nil {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	valStr := strings.ToLower(getEnvStr(key, ""))
	if valStr == "true" || valStr == "1" || valStr == "yes" {
		return true
	}
	if valStr == "false" || valStr == "0" || valStr == "no" {
		return false
	}
	return defaultVal
}
