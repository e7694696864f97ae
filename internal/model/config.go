package model

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Tools     ToolsConfig
	Database  DatabaseConfig
	Logging   LoggingConfig
	Security  SecurityConfig
	Quota     QuotaConfig
	RateLimit RateLimitConfig
	Download  DownloadConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port    int
	Host    string
	Timeout int // seconds, matches the reverse proxy timeout
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	StagingDir       string // in-flight yt-dlp output
	PublicDir        string // finished files served to users
	MaxVideoSizeMB   int
	JanitorInterval  int // seconds between in-process sweeps
	OrphanAgeSeconds int // staging files older than this are leftovers
}

// ToolsConfig holds paths to external binaries and credentials
type ToolsConfig struct {
	YtdlpPath   string
	FfmpegDir   string // directory containing ffmpeg/ffprobe
	CookiesFile string // exported browser cookies, optional
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string
}

// DownloadConfig holds download worker configuration
type DownloadConfig struct {
	Workers        int // concurrent yt-dlp processes
	TimeoutSeconds int // per-task wall clock limit
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level          string
	FilePath       string
	CleanupLogPath string // separate append-only log for the cron sweep
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	AllowedDomains []string
	RequestTimeout int // seconds
}

// QuotaConfig holds user download quota configuration
type QuotaConfig struct {
	Enabled      bool  // Enable quota limiting
	DailyLimitMB int64 // Daily quota limit in MB per IP
	ResetHour    int   // Hour (0-23) to reset quota (midnight = 0)
	ResetMinute  int   // Minute (0-59) to reset quota
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool // Enable rate limiting
	RequestsPerMinute int  // Max requests per minute per IP
	BurstSize         int  // Max burst size
	CleanupInterval   int  // Interval in seconds to clean up old entries
}
