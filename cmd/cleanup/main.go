package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/qs3c/audiosep_server/config"
	"github.com/qs3c/audiosep_server/internal/cleanup"
	"github.com/qs3c/audiosep_server/internal/database"
	"github.com/qs3c/audiosep_server/internal/pkg/logger"
	"github.com/qs3c/audiosep_server/internal/pkg/storage"
	"github.com/qs3c/audiosep_server/internal/repository"
	"github.com/qs3c/audiosep_server/internal/service"
)

var (
	dryRun       = flag.Bool("dry-run", true, "Dry run mode, don't actually delete anything")
	cleanOrphans = flag.Bool("orphans", true, "Delete upload files no job references")
	cleanGuests  = flag.Bool("guests", true, "Delete expired guest identities")
	guestGrace   = flag.Int("guest-grace", 24, "Hours after expiry before a guest is deleted")
)

func main() {
	flag.Parse()

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Log)
	slog.Info("starting cleanup task", "dry_run", *dryRun)

	db, err := database.Open(&cfg.Database)
	if err != nil {
		slog.Error("failed to connect database", "error", err)
		os.Exit(1)
	}

	store, err := storage.New(&cfg.Upload, &cfg.OSS)
	if err != nil {
		slog.Error("failed to init storage", "error", err)
		os.Exit(1)
	}

	jobRepo := repository.NewJobRepository(db)
	guestService := service.NewGuestService(repository.NewGuestRepository(db), jobRepo, cfg)
	svc := cleanup.NewService(jobRepo, guestService, store, cfg.Upload.OrphanExpireHours)

	report := &cleanup.Report{DryRun: *dryRun}
	ctx := context.Background()

	if *cleanOrphans {
		if err := svc.Orphans(ctx, report); err != nil {
			slog.Error("orphan cleanup failed", "error", err)
			os.Exit(1)
		}
	}

	if *cleanGuests {
		if err := svc.Guests(time.Duration(*guestGrace)*time.Hour, report); err != nil {
			slog.Error("guest cleanup failed", "error", err)
			os.Exit(1)
		}
	}

	printSummary(report)
}

func printSummary(r *cleanup.Report) {
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("Cleanup Summary")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Scanned files:  %d\n", r.ScannedFiles)
	fmt.Printf("Orphan files:   %d (%s)\n", r.OrphanFiles, formatSize(r.OrphanBytes))
	fmt.Printf("Deleted files:  %d\n", r.DeletedFiles)
	fmt.Printf("Expired guests: %d\n", r.ExpiredGuests)
	if r.DryRun {
		fmt.Println("\nDRY RUN MODE - nothing was deleted")
		fmt.Println("Run with -dry-run=false to actually delete")
	}
	fmt.Println(strings.Repeat("=", 60))
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
