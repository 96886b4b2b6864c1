package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/suPer8Hu/genie-chat/internal/auth"
	"github.com/suPer8Hu/genie-chat/internal/config"
	"github.com/suPer8Hu/genie-chat/internal/db"
	"github.com/suPer8Hu/genie-chat/internal/httpapi"
	"github.com/suPer8Hu/genie-chat/internal/httpapi/handlers"
	"github.com/suPer8Hu/genie-chat/internal/logging"
	"github.com/suPer8Hu/genie-chat/internal/store/rabbitmq"
	"github.com/suPer8Hu/genie-chat/internal/store/redisstore"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	log := logging.Must(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = log.Sync() }()

	gdb := db.Connect(cfg.DBDSN, log)

	// Refresh tokens live in Redis when it answers, in process memory otherwise.
	var refresh auth.RefreshStore = auth.NewMemoryRefreshStore()
	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := rds.Ping(pingCtx); err != nil {
		log.Warn("redis unavailable, using in-memory refresh tokens", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		_ = rds.Close()
	} else {
		refresh = rds
		defer func() { _ = rds.Close() }()
	}
	cancel()

	var jobs handlers.JobPublisher
	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Warn("rabbitmq unavailable, async replies disabled", zap.Error(err))
	} else {
		jobs = pub
		defer func() { _ = pub.Close() }()
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(gdb, cfg, refresh, jobs, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("server started", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("server shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", zap.Error(err))
	}
}
