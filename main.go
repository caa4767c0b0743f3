package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"csgo-floatdb/internal/api"
	"csgo-floatdb/internal/config"
	"csgo-floatdb/internal/database"
	"csgo-floatdb/internal/logger"
	"csgo-floatdb/internal/metrics"
	"csgo-floatdb/internal/services/floatdb"
	"csgo-floatdb/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	log := logger.WithComponent("main")

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	if err := logger.Configure(cfg.LogLevel, cfg.LogFormat, cfg.LogOutput); err != nil {
		log.WithError(err).Fatal("invalid logging configuration")
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	mode, err := floatdb.ParseMode(cfg.IngestMode)
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	db, err := database.Initialize(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}

	svc := floatdb.NewService(store.NewGormStore(db), floatdb.Config{
		Mode:              mode,
		FlushInterval:     cfg.FlushInterval,
		ZeroFloatDefIndex: cfg.ZeroFloatDefIndex,
		RankLimit:         cfg.RankLimit,
	}, metrics.New(prometheus.DefaultRegisterer))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	// the queue outlives the signal; Stop drains it after the server is down
	svc.Start(context.Background())

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: api.NewRouter(svc, prometheus.DefaultGatherer),
	}
	go func() {
		log.WithFields(logger.Fields{"port": cfg.Port, "mode": mode.String()}).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	// drains the ingest backlog
	svc.Stop()

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}
