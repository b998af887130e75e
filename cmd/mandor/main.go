package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mandor/internal/auth"
	"mandor/internal/config"
	"mandor/internal/server"
	"mandor/internal/storage/sqlite"
	"mandor/internal/util"
)

func main() {
	configFlag := flag.String("config", util.EnvOrDefault("MANDOR_CONFIG", ""), "Path to YAML config file")
	addrFlag := flag.String("addr", "", "HTTP listen address (overrides config)")
	dbFlag := flag.String("db", "", "Path to sqlite database file (overrides config)")
	staticFlag := flag.String("static", "", "Directory with built frontend (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		slog.Error("unable to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if *addrFlag != "" {
		cfg.Server.Addr = *addrFlag
	}
	if *dbFlag != "" {
		cfg.Database.Path = *dbFlag
	}
	if *staticFlag != "" {
		cfg.Server.StaticDir = *staticFlag
	}
	if err := cfg.Finalize(); err != nil {
		slog.Error("invalid config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := cfg.Logging.NewLogger()
	logger.Info("Mandor project management backend", slog.String("db", cfg.Database.Path))

	store, err := sqlite.Open(cfg.Database.Path, logger)
	if err != nil {
		logger.Error("unable to open database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	tokens := auth.NewTokens([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	srv := server.New(store, tokens, logger, server.Options{
		StaticDir:   cfg.Server.StaticDir,
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped unexpectedly", slog.String("error", err.Error()))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown server", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}
