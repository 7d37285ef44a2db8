package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aizhuhelper/recipevision/internal/api"
	"github.com/aizhuhelper/recipevision/internal/api/handler"
	"github.com/aizhuhelper/recipevision/internal/config"
	"github.com/aizhuhelper/recipevision/internal/cookies"
	"github.com/aizhuhelper/recipevision/internal/downloader"
	"github.com/aizhuhelper/recipevision/internal/extractor"
	"github.com/aizhuhelper/recipevision/internal/llm"
	"github.com/aizhuhelper/recipevision/internal/parser"
	"github.com/aizhuhelper/recipevision/internal/pipeline"
	"github.com/aizhuhelper/recipevision/internal/thumbnail"
	"github.com/aizhuhelper/recipevision/internal/worker"
	"github.com/aizhuhelper/recipevision/pkg/ffmpeg"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("recipevision %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting recipevision",
		"version", Version,
		"build_time", BuildTime,
	)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.Storage.TempPath, 0755); err != nil {
		logger.Error("failed to create temp directory", "error", err)
		os.Exit(1)
	}

	proc, err := ffmpeg.NewProcessor()
	if err != nil {
		logger.Error("ffmpeg not available", "error", err)
		os.Exit(1)
	}
	if v, err := ffmpeg.Version(); err == nil {
		logger.Info("ffmpeg available", "version", v)
	}

	manager, err := llm.NewManager(cfg.LLM, logger)
	if err != nil {
		logger.Error("failed to initialize vision providers", "error", err)
		os.Exit(1)
	}
	logger.Info("vision provider chain ready", "providers", manager.Providers())

	// Initialize dependencies
	credStore := cookies.NewStore(cfg.Cookies, cfg.Storage.TempPath, logger)
	dl := downloader.New(cfg.Download, downloader.ExecRunner{}, credStore, logger)
	sampler := extractor.NewSampler(cfg.Extraction, proc, logger)
	recipeParser := parser.New(logger)

	opts := pipeline.Options{
		Acquirer: dl,
		Resolver: dl,
		Prober:   proc,
		Sampler:  sampler,
		Analyzer: manager,
		Parser:   recipeParser,
		Grabber:  proc,
		BaseDir:  cfg.Storage.TempPath,
		Logger:   logger,
	}

	uploader := thumbnail.NewHTTPUploader(cfg.Thumbnail, logger)
	proxy := thumbnail.NewProxy(cfg.Thumbnail, uploader, cfg.Storage.TempPath, logger)
	opts.Fetcher = proxy
	if uploader.Configured() {
		opts.Uploader = uploader
		opts.Rehoster = proxy
	} else {
		logger.Warn("thumbnail storage not configured, thumbnails will keep CDN URLs")
	}

	pipe := pipeline.New(opts)

	// Initialize handlers
	analyzeHandler := handler.NewAnalyzeHandler(pipe, cfg.Storage.TempPath, logger)
	healthHandler := handler.NewHealthHandler(*cfg, Version)

	// Setup router
	router := api.NewRouter(analyzeHandler, healthHandler, cfg.Server.APIKey)

	// Start the active-mode poller when configured
	var poller *worker.Poller
	if cfg.Worker.Active && cfg.Worker.BackendURL != "" {
		poller = worker.New(worker.Config{
			BackendURL:    cfg.Worker.BackendURL,
			PollInterval:  cfg.Worker.PollInterval,
			JobLimit:      cfg.Worker.JobLimit,
			ResetInterval: cfg.Worker.ResetInterval,
		}, pipe, logger)
		poller.Start()
	}

	// Setup HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if poller != nil {
		if err := poller.Stop(25 * time.Second); err != nil {
			logger.Error("poller shutdown error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
