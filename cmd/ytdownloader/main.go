package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vegeteria/ytdownloader/config"
	"github.com/vegeteria/ytdownloader/internal/cleanup"
	"github.com/vegeteria/ytdownloader/internal/handler"
	"github.com/vegeteria/ytdownloader/internal/metrics"
	"github.com/vegeteria/ytdownloader/internal/model"
	"github.com/vegeteria/ytdownloader/internal/probe"
	"github.com/vegeteria/ytdownloader/internal/service"
	"github.com/vegeteria/ytdownloader/internal/storage"
	"github.com/vegeteria/ytdownloader/internal/store"
	"github.com/vegeteria/ytdownloader/pkg/logger"
	"github.com/vegeteria/ytdownloader/pkg/middleware"
)

func main() {
	cfg := config.Load()

	if err := logger.Init(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Logger.Info("Starting download server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
	)

	storageManager := storage.NewManager(&cfg.Storage)
	if err := storageManager.EnsureDirs(); err != nil {
		logger.Logger.Fatal("Failed to create download directories", zap.Error(err))
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		logger.Logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer st.Close()

	registry := prometheus.NewRegistry()
	met := metrics.New(registry)

	prober := probe.New(&cfg.Tools, time.Duration(cfg.Security.RequestTimeout)*time.Second)
	runner := service.NewYtdlpRunner(&cfg.Tools, storageManager)
	downloadService := service.NewDownloadService(runner, storageManager, st, met, &cfg.Download)

	quotaService := service.NewQuotaService(&cfg.Quota)
	defer quotaService.Stop()

	rateLimitService := service.NewRateLimitService(&cfg.RateLimit)
	defer rateLimitService.Stop()

	// Charge the produced file against the requester's quota.
	downloadService.SetCompletionCallback(func(task *model.DownloadTask) {
		if task.Status == model.StatusReady && task.Size > 0 {
			sizeMB := (task.Size + 1024*1024 - 1) / (1024 * 1024)
			quotaService.AddUsage(task.ClientIP, sizeMB)
		}
	})

	// In-process janitor mirrors the cron sweep so expired files go away even
	// when cron is not configured.
	sweeper := cleanup.NewSweeper(st, logger.Logger)
	storageManager.StartJanitor(
		func() {
			if res, err := sweeper.Run(time.Now()); err == nil {
				met.FilesCleaned.Add(float64(res.Deleted))
			}
		},
		func() {
			removed := cleanup.SweepOrphans(storageManager.StagingDir(),
				storageManager.OrphanAge(), time.Now(), logger.Logger)
			met.OrphansCleaned.Add(float64(removed))
		},
		func() {
			downloadService.PruneFinished(24 * time.Hour)
		},
	)
	defer storageManager.Stop()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinLogger())

	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimitMiddleware(rateLimitService))
		logger.Logger.Info("Rate limiting enabled",
			zap.Int("requests_per_minute", cfg.RateLimit.RequestsPerMinute))
	}

	videoHandler := handler.NewVideoHandler(prober, cfg)
	downloadHandler := handler.NewDownloadHandler(downloadService, quotaService, cfg)

	api := router.Group("/api")
	{
		api.GET("/video/info", videoHandler.GetVideoInfo)
		api.POST("/download", downloadHandler.StartDownload)
		api.GET("/task/:id", downloadHandler.GetTaskStatus)
		api.GET("/file/:id", downloadHandler.GetFile)
		api.GET("/health", videoHandler.HealthCheck)
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.Timeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.Timeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Logger.Info("Server listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal("Server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Logger.Info("Server stopped")
}
