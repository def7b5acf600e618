package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LJTian/SentimentHub/internal/api"
	"github.com/LJTian/SentimentHub/internal/collector"
	"github.com/LJTian/SentimentHub/internal/config"
	"github.com/LJTian/SentimentHub/internal/logger"
	"github.com/LJTian/SentimentHub/internal/processor"
	"github.com/LJTian/SentimentHub/internal/publisher"
	"github.com/LJTian/SentimentHub/internal/scheduler"
	"github.com/LJTian/SentimentHub/internal/sentiment"
	"github.com/LJTian/SentimentHub/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load config failed: %v", err)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	store, err := storage.Open(cfg.DatabaseDSN, cfg.RedisAddr, logger.Component(log, "storage"))
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}
	if err := store.Init(); err != nil {
		log.Fatalf("init schema failed: %v", err)
	}

	coll, err := collector.FromSources(cfg.Sources, cfg.FetchTimeout, logger.Component(log, "collector"))
	if err != nil {
		log.Fatalf("init collector failed: %v", err)
	}
	proc := processor.New(sentiment.NewClassifier(cfg.Lexicon))
	metrics := logger.NewMetrics()

	opts := []scheduler.Option{
		scheduler.WithMetrics(metrics),
		scheduler.WithLogger(logger.Component(log, "scheduler")),
	}

	// 配置了 RABBITMQ_URL 时，每轮新入库的文章同时推送到队列
	var pub *publisher.AMQPPublisher
	if cfg.RabbitMQURL != "" {
		pub, err = publisher.NewAMQPPublisher(cfg.RabbitMQURL, cfg.RabbitMQQueue, logger.Component(log, "publisher"))
		if err != nil {
			log.WithError(err).Warn("rabbitmq unavailable, publishing disabled")
		} else {
			opts = append(opts, scheduler.WithPublisher(pub))
		}
	}

	s, err := scheduler.New(cfg.FetchInterval, coll, proc, store, opts...)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}
	s.Start()

	// API
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), api.RequestLogger(logger.Component(log, "http")))
	// 若配置了全局访问密码，则启用 Basic Auth 保护（/health 仍然免认证）
	if cfg.BasicAuthUser != "" && cfg.BasicAuthPass != "" {
		r.Use(api.BasicAuth(cfg.BasicAuthUser, cfg.BasicAuthPass))
	}

	apiServer := api.NewServer(store, metrics, logger.Component(log, "api"))
	apiServer.RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Infof("starting api server at %s ...", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server exit: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown")
	}
	if err := s.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("scheduler did not stop in time")
	}
	metrics.Log(log)

	if pub != nil {
		if err := pub.Close(); err != nil {
			log.WithError(err).Warn("close publisher")
		}
	}
	if err := store.Close(); err != nil {
		log.WithError(err).Warn("close store")
	}
	log.Info("bye")
}
