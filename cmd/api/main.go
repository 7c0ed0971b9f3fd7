package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"courierdispatch/internal/api"
	"courierdispatch/internal/config"
	"courierdispatch/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Errorw("config load failed", "error", err)
		os.Exit(1)
	}
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	defer logger.Sync()

	srvDeps, err := api.NewServer(cfg)
	if err != nil {
		logger.Errorw("failed to init server", "error", err)
		os.Exit(1)
	}
	defer func() { _ = srvDeps.Close() }()

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           srvDeps.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          logger.StdLogger(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	logger.Infow("API listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorw("server error", "error", err)
		os.Exit(1)
	}
}
