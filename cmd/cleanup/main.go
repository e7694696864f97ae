// Command cleanup removes expired downloads and stale staging files. It is
// meant to run from cron every ten minutes and logs to its own file.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/vegeteria/ytdownloader/config"
	"github.com/vegeteria/ytdownloader/internal/cleanup"
	"github.com/vegeteria/ytdownloader/internal/store"
	"github.com/vegeteria/ytdownloader/pkg/logger"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "list expired downloads without deleting anything")
	flag.Parse()

	cfg := config.Load()

	log, err := logger.NewCleanupLogger(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to open database", zap.Error(err))
		os.Exit(1)
	}
	defer st.Close()

	sweeper := cleanup.NewSweeper(st, log)
	now := time.Now()

	if *dryRun {
		expired, err := sweeper.ListExpired(now)
		if err != nil {
			log.Error("Failed to list expired downloads", zap.Error(err))
			os.Exit(1)
		}
		for _, rec := range expired {
			log.Info("Would delete",
				zap.String("id", rec.ID),
				zap.String("title", rec.Title),
				zap.String("path", rec.FilePath),
				zap.Int64("expired_unix", rec.ExpiryUnix))
		}
		log.Info("Dry run complete", zap.Int("expired", len(expired)))
		return
	}

	log.Info("Starting cleanup")

	res, err := sweeper.Run(now)
	if err != nil {
		log.Error("Cleanup failed", zap.Error(err))
		os.Exit(1)
	}

	orphans := cleanup.SweepOrphans(cfg.Storage.StagingDir,
		time.Duration(cfg.Storage.OrphanAgeSeconds)*time.Second, now, log)

	remaining, err := st.Count()
	if err != nil {
		log.Warn("Failed to count remaining downloads", zap.Error(err))
	}

	log.Info("Cleanup finished",
		zap.Int("deleted", res.Deleted),
		zap.Int("failed", res.Failed),
		zap.Int("orphans_removed", orphans),
		zap.Int("tracked_remaining", remaining))

	if res.Failed > 0 {
		os.Exit(1)
	}
}
