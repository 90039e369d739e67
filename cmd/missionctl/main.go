package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"missionctl/internal/config"
	"missionctl/internal/database"
	"missionctl/internal/events"
	"missionctl/internal/metrics"
	"missionctl/internal/notify"
	"missionctl/internal/web"
)

func main() {
	configFile := flag.String("config", "config.yaml", "Configuration file path")
	version := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *version {
		fmt.Println("Mission Control v1.0.0")
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	setupLogging(cfg.Logging)

	logrus.WithFields(logrus.Fields{
		"config_file": *configFile,
		"port":        cfg.Server.Port,
		"database":    cfg.Database.Path,
	}).Info("Starting Mission Control")

	// Initialize database
	store, err := database.NewBoltStore(cfg.Database.Path)
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	broker := events.NewBroker()
	metricsCollector := metrics.NewCollector(store)
	notifier := notify.NewNotifier(&cfg.Notifications)

	webServer := web.NewServer(cfg, store, broker, metricsCollector, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go webServer.Start(ctx)
	go compactRoutine(ctx, cfg, store)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logrus.WithField("signal", sig).Info("Received shutdown signal")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := webServer.Stop(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Shutdown error")
	}

	logrus.Info("Shutdown complete")
}

func setupLogging(cfg config.LoggingConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
}

func compactRoutine(ctx context.Context, cfg *config.Config, store database.Store) {
	if cfg.Database.CompactInterval <= 0 {
		return
	}

	ticker := time.NewTicker(cfg.Database.CompactInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.Compact(ctx); err != nil {
				logrus.WithError(err).Error("Scheduled compaction failed")
			}
		}
	}
}
