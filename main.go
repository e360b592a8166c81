package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/RobbyV2/caldav-ics-sync/config"
	"github.com/RobbyV2/caldav-ics-sync/internal/api"
	"github.com/RobbyV2/caldav-ics-sync/internal/icsserver"
	"github.com/RobbyV2/caldav-ics-sync/internal/scheduler"
	"github.com/RobbyV2/caldav-ics-sync/internal/store/sqlite"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Server.LogLevel)
	defer logger.Sync()

	logger.Info("starting caldav-ics-sync",
		zap.String("version", "1.0.0"),
		zap.String("addr", cfg.Addr()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := sqlite.New(cfg.Data.DSN, logger.Named("store"))
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer st.Close()

	sched := scheduler.New(st, logger.Named("scheduler"))
	if err := sched.RegisterAll(ctx); err != nil {
		logger.Fatal("failed to register scheduled tasks", zap.Error(err))
	}

	apiHandler := api.NewHandler(st, sched, logger.Named("api"))
	icsHandler := icsserver.New(st, logger.Named("icsserver"))

	r := chi.NewRouter()
	r.Mount("/api", api.Routes(apiHandler, cfg.Server.AllowedOrigins))

	r.With(icsserver.RequireAuth(st, cfg.Auth.Username, cfg.Auth.Password, cfg.Auth.PasswordIsHash, logger.Named("icsserver"))).
		Get("/ics/*", icsHandler.ServePath)
	r.Get("/ics/public/*", icsHandler.ServePublicPath)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.HTTPTimeout,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Info("starting HTTP server", zap.String("addr", cfg.Addr()))
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
}

func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	logger, _ := cfg.Build()
	return logger
}
