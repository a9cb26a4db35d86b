package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/brightpath/lms/internal/config"
	"github.com/brightpath/lms/internal/entitlement"
	"github.com/brightpath/lms/internal/es"
	"github.com/brightpath/lms/internal/events"
	"github.com/brightpath/lms/internal/handlers"
	"github.com/brightpath/lms/internal/logging"
	authmw "github.com/brightpath/lms/internal/middleware/auth"
	"github.com/brightpath/lms/internal/repo"
	"github.com/brightpath/lms/internal/session"
	"github.com/brightpath/lms/internal/tokens"
	httpserver "github.com/brightpath/lms/internal/transport/http"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("db init: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("redis: %v", err)
	}

	producer := events.NewProducer([]string{cfg.KafkaAddress})
	defer producer.Close()

	esClient, err := es.NewClient(cfg)
	if err != nil {
		log.Fatalf("elasticsearch: %v", err)
	}

	codec := &tokens.Codec{
		AccessSecret:  tokens.AccessSecret(cfg.AccessSecret),
		RefreshSecret: tokens.RefreshSecret(cfg.RefreshSecret),
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
	}
	store := session.NewRedisStore(rdb)
	manager := &session.Manager{Codec: codec, Store: store, Events: producer}
	gormRepo := &repo.GormRepo{DB: db}
	resolver := &entitlement.Resolver{Repo: gormRepo}
	gate := &authmw.Gate{Codec: codec, Manager: manager, Repo: gormRepo}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())

	deps := httpserver.Deps{
		Gate:          gate,
		AuthHandler:   &handlers.AuthHandler{Repo: gormRepo, Sessions: manager, Events: producer},
		CourseHandler: &handlers.CourseHandler{Repo: gormRepo, Resolver: resolver},
		SearchHandler: &handlers.SearchHandler{ES: esClient, Index: "courses", Resolver: resolver},
	}
	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()
	logger.Info("server started", "addr", cfg.HTTPAddr, "env", cfg.AppEnv)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
