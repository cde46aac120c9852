package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/weichen-dev/taosync/internal/api"
	"github.com/weichen-dev/taosync/internal/config"
	"github.com/weichen-dev/taosync/internal/credentials"
	"github.com/weichen-dev/taosync/internal/history"
	"github.com/weichen-dev/taosync/internal/models"
	"github.com/weichen-dev/taosync/internal/scraper"
	"github.com/weichen-dev/taosync/internal/uploader"
	"github.com/weichen-dev/taosync/web"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := newLogger(cfg.Logging.Level)
	slog.SetDefault(logger)

	credStore := credentials.NewStore(cfg.Credentials.Path)

	scr := scraper.New(scraper.Options{
		Timeout:    cfg.Scraper.Timeout,
		UserAgents: cfg.Scraper.UserAgents,
		CacheSize:  cfg.Scraper.CacheSize,
	}, logger)

	histStore := newHistoryStore(cfg, logger)

	factory := func(creds models.Credentials) api.Uploader {
		return uploader.New(creds, uploader.Options{
			Timeout:        cfg.Uploader.Timeout,
			ExternalImages: cfg.Uploader.ExternalImages,
		}, logger)
	}

	handlers := api.NewHandlers(scr, credStore, factory, histStore, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.WriteTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Mount("/", handlers.Routes(web.Handler()))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("server starting", "addr", addr, "ui", "http://"+addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	logger.Info("server stopped")
}

// newHistoryStore picks the Redis backend when an address is configured and
// reachable, and falls back to in-memory history otherwise.
func newHistoryStore(cfg *config.Config, logger *slog.Logger) history.Store {
	if cfg.Redis.Addr == "" {
		return history.NewMemoryStore()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, using in-memory history", "addr", cfg.Redis.Addr, "error", err)
		return history.NewMemoryStore()
	}

	logger.Info("history persisted to redis", "addr", cfg.Redis.Addr)
	return history.NewRedisStore(client)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
