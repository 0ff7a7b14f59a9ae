package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/LJTian/MediaMon/internal/aggregator"
	"github.com/LJTian/MediaMon/internal/api"
	"github.com/LJTian/MediaMon/internal/apikey"
	"github.com/LJTian/MediaMon/internal/collector"
	"github.com/LJTian/MediaMon/internal/config"
	"github.com/LJTian/MediaMon/internal/processor"
	"github.com/LJTian/MediaMon/internal/ratelimit"
	"github.com/LJTian/MediaMon/internal/scheduler"
	"github.com/LJTian/MediaMon/internal/sentiment"
	"github.com/LJTian/MediaMon/internal/storage"
	"github.com/LJTian/MediaMon/internal/token"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()

	docs := openDocumentStore(cfg)
	articles := storage.NewArticleStore(docs)

	scorer := sentiment.NewScorer(nil)
	normalizer := processor.NewNormalizer(scorer)
	normalizer.ContentHashIDs = cfg.ContentHashIDs

	agg := aggregator.New(buildFetchers(cfg), normalizer, articles)
	agg.Timeout = cfg.FetchTimeout
	agg.Workers = cfg.FetchWorkers
	agg.Caps = aggregator.MergeCaps(cfg.Caps)

	var limiter ratelimit.Limiter = ratelimit.NewMemoryLimiter()
	if cfg.RedisAddr != "" {
		limiter = ratelimit.NewRedisLimiter(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	} else {
		log.Printf("REDIS_ADDR not set, rate limiting in process")
	}

	s, err := scheduler.New(cfg.CronSpec, agg)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}
	s.Start()

	r := gin.Default()
	apiServer := api.NewServer(api.Deps{
		Aggregator: agg,
		Articles:   articles,
		Keys:       apikey.NewManager(docs),
		Limiter:    limiter,
		Tokens:     token.NewIssuer(cfg.JWTSecret, cfg.TokenTTL),
		Scorer:     scorer,
		MasterKey:  cfg.MasterAPIKey,
	})
	apiServer.RegisterRoutes(r)

	addr := ":" + cfg.AppPort
	srv := &http.Server{Addr: addr, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("starting api server at %s ...", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server exit: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down ...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	// 等待进行中的定时采集结束
	select {
	case <-s.Stop().Done():
	case <-shutdownCtx.Done():
		log.Println("collect job still running, exit anyway")
	}
}

func openDocumentStore(cfg *config.Config) storage.DocumentStore {
	if cfg.PostgresDSN == "" {
		log.Printf("POSTGRES_DSN not set, using in-process document store")
		return storage.NewMemoryStore()
	}
	pg, err := storage.NewPostgresStore(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}
	return pg
}

func buildFetchers(cfg *config.Config) []collector.Fetcher {
	return []collector.Fetcher{
		collector.NewFeedFetcher(cfg.Feeds),
		collector.NewTwitterFetcher(cfg.Twitter, cfg.TwitterDefaultQuery),
		collector.NewPageFetcher(cfg.FacebookEmail, cfg.FacebookPassword, cfg.FacebookPages),
		collector.NewPhotoFetcher(cfg.InstagramUsername, cfg.InstagramPassword, cfg.InstagramAccounts),
	}
}
