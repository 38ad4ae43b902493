package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"arkham/apps/arkham/internal/api"
	"arkham/apps/arkham/internal/catalog"
	"arkham/apps/arkham/internal/client"
	"arkham/apps/arkham/internal/config"
	"arkham/apps/arkham/internal/crawler"
	"arkham/apps/arkham/internal/progress"
	"arkham/apps/arkham/internal/repository"
	"arkham/apps/arkham/internal/sink"
)

func main() {
	// Initialize zap logger
	logger, err := zap.NewProduction()
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	// Load configuration from environment variables
	cfg := config.NewConfig()

	logger.Info("Starting application with configuration",
		zap.String("db_host", cfg.DbHost),
		zap.String("db_name", cfg.DbName),
		zap.String("tags_file", cfg.TagsFile),
		zap.String("output_file", cfg.OutputFile),
		zap.String("progress_file", cfg.ProgressFile),
		zap.String("base_url", cfg.BaseURL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Int("max_pages", cfg.MaxPages),
		zap.Int("api_port", cfg.APIPort),
	)

	// The reference file is required; its absence is a fatal startup error.
	tagCatalog, err := catalog.Load(cfg.TagsFile)
	if err != nil {
		logger.Fatal("Failed to load tag catalog", zap.Error(err))
	}
	logger.Info("Loaded tag catalog", zap.Int("tags", tagCatalog.Len()))

	// Connect to database
	db, err := sql.Open("postgres", cfg.DbURL())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatal("Failed to ping database", zap.Error(err))
	}

	// Initialize database tables
	if err := repository.InitMigration(db); err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	addressRepository := repository.NewAddressRepository(db, logger)

	tracker := progress.NewTracker(cfg.ProgressFile, logger)
	if err := tracker.Load(); err != nil {
		logger.Fatal("Failed to load progress", zap.Error(err))
	}

	resultsSink, err := sink.NewResultsSink(cfg.OutputFile, logger)
	if err != nil {
		logger.Fatal("Failed to open results file", zap.Error(err))
	}
	defer resultsSink.Close()

	arkhamClient := client.NewArkhamClient(cfg, logger)

	// Start the read-only API server in the background
	apiServer := api.NewServer(cfg.APIPort, addressRepository, tracker, logger)
	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Fatal("API server failed", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Run the crawl loop in the foreground; its result decides the exit code
	tagCrawler := crawler.NewTagCrawler(cfg, tagCatalog, arkhamClient, addressRepository, resultsSink, tracker, logger)

	crawlDone := make(chan error, 1)
	go func() {
		crawlDone <- tagCrawler.Run(ctx)
	}()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case err := <-crawlDone:
		if err != nil {
			logger.Error("Crawl failed", zap.Error(err))
			exitCode = 1
		} else {
			logger.Info("Crawl finished cleanly")
		}
	case sig := <-sigChan:
		logger.Info("Received shutdown signal, starting graceful shutdown...",
			zap.String("signal", sig.String()))
		cancel()
		// The in-flight page either commits or is re-fetched on restart
		<-crawlDone
	}

	// Shutdown API server gracefully
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error shutting down API server", zap.Error(err))
	}

	logger.Info("Application shutdown complete")
	if exitCode != 0 {
		logger.Sync()
		os.Exit(exitCode)
	}
}
