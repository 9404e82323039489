package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/david/grant-extractor/internal/api"
	"github.com/david/grant-extractor/internal/app"
	"github.com/david/grant-extractor/internal/config"
	"github.com/david/grant-extractor/internal/ingest"
	"github.com/david/grant-extractor/internal/logging"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.RequireCredential(); err != nil {
		logger.Fatal("cannot start without LLM credentials", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize services", zap.Error(err))
	}
	defer a.Close()

	srv, err := api.NewServer(a.Pipeline, a.Runs, func() ([]string, error) {
		return ingest.LoadSources(cfg.Pipeline.SourcesPath)
	}, api.Options{
		AdminSecret: cfg.Server.AdminSecret,
		CORSOrigins: cfg.Server.CORSOrigins,
	}, logger.Named("api"))
	if err != nil {
		logger.Fatal("failed to build server", zap.Error(err))
	}

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	// A running job needs time to write its metrics row after cancellation.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
