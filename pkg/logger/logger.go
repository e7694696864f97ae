package logger

import (
	"os"
	"path/filepath"

	"github.com/vegeteria/ytdownloader/internal/model"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Logger *zap.Logger

// Init initializes the global logger writing to the configured file and stdout.
func Init(cfg *model.LoggingConfig) error {
	l, err := build(cfg.Level, cfg.FilePath)
	if err != nil {
		return err
	}
	Logger = l
	return nil
}

// NewCleanupLogger builds a logger for the cron sweep binary. It writes to
// its own append-only file so operators can tail cleanup activity separately
// from request logs.
func NewCleanupLogger(cfg *model.LoggingConfig) (*zap.Logger, error) {
	return build(cfg.Level, cfg.CleanupLogPath)
}

func build(level, filePath string) (*zap.Logger, error) {
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	var logLevel zapcore.Level
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		logLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:       zap.NewAtomicLevelAt(logLevel),
		Development: false,
		Encoding:    "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{filePath, "stdout"},
		ErrorOutputPaths: []string{filePath, "stderr"},
	}

	return config.Build()
}

// Sync flushes the logger
func Sync() error {
	if Logger != nil {
		return Logger.Sync()
	}
	return nil
}
