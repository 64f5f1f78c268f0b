package main

import (
	"context"
	"log"
	"matchchat/backend/internal/api/handler"
	"matchchat/backend/internal/app"
	"matchchat/backend/internal/chathub"
	"matchchat/backend/internal/cleanup"
	"matchchat/backend/internal/config"
	"matchchat/backend/internal/logger"
	"matchchat/backend/internal/notify"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	zl, err := logger.New(cfg.Log.Development)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Setup(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("setup dependencies", zap.Error(err))
	}
	defer deps.Close()
	zl.Info("dependencies ready", zap.String("bus", cfg.Bus.Driver))

	hub := chathub.NewManagerService(
		chathub.ChatFrames{Chats: deps.Chats},
		chathub.Presence(deps.Chats, deps.Bus, zl),
		zl,
	)
	subscriber := notify.NewSubscriber(deps.Source, hub, zl)

	scheduler := cleanup.NewScheduler(deps.Runner, zl)
	if err := deps.Schedule(scheduler); err != nil {
		zl.Fatal("schedule cleanup", zap.Error(err))
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := subscriber.Run(ctx); err != nil {
			zl.Error("subscriber stopped", zap.Error(err))
			stop()
		}
	}()
	go func() {
		defer wg.Done()
		if err := scheduler.Run(ctx); err != nil {
			zl.Error("scheduler stopped", zap.Error(err))
			stop()
		}
	}()

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), handler.RequestLogger(zl.Named("http")))
	h := handler.NewHandler(hub, deps.Chats, deps.Matches, deps.Complaints, handler.NewAuth(cfg.JWT), zl)
	h.Register(r)

	server := &http.Server{
		Addr:           cfg.HTTP.Addr,
		Handler:        r,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
	go func() {
		zl.Info("http listening", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("http server", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zl.Warn("http shutdown", zap.Error(err))
	}
	wg.Wait()
}
