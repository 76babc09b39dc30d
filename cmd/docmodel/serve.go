package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/gogotex/docmodel/internal/config"
	"github.com/gogotex/docmodel/internal/database"
	"github.com/gogotex/docmodel/internal/document"
	"github.com/gogotex/docmodel/internal/document/handler"
	"github.com/gogotex/docmodel/internal/document/repository"
	"github.com/gogotex/docmodel/internal/document/service"
	"github.com/gogotex/docmodel/internal/storage"
	"github.com/gogotex/docmodel/pkg/logger"
	"github.com/gogotex/docmodel/pkg/metrics"
	"github.com/gogotex/docmodel/pkg/middleware"
	"github.com/gogotex/docmodel/pkg/odm"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API for the declared document classes.

The store backend, Redis, MinIO archive and rate limiting are configured
from the environment (or a .env file): STORE_BACKEND, MONGODB_URI,
REDIS_HOST, ARCHIVE_ENDPOINT, RATE_LIMIT_*.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

var startTime = time.Now()

// pinger is implemented by repositories backed by a remote store.
type pinger interface {
	Ping(ctx context.Context) error
}

// app holds the wired dependencies of the server.
type app struct {
	cfg     *config.Config
	catalog *document.Catalog
	repo    repository.Repository
	svc     *service.Service
	redis   *redis.Client
	closers []func(context.Context) error
}

func (a *app) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.Warnf("shutdown: %v", err)
		}
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.Init(cfg.Log.Level)
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	odm.SetObserver(metrics.Observer{})
	metrics.RegisterCollectors(prometheus.DefaultRegisterer)

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	r := a.router()
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Starting docmodel on %s (store=%s, routes=%v)", addr, cfg.Store.Backend, a.catalog.Routes())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Infof("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

// newApp loads the declarations and connects the configured backends.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	classes, err := loadModels(cfg.Models.Path)
	if err != nil {
		return nil, err
	}
	cat, err := document.NewCatalog()
	if err != nil {
		return nil, err
	}
	for _, c := range classes {
		if c.Kind() != odm.KindDocument {
			continue
		}
		if err := cat.Add(c); err != nil {
			return nil, err
		}
	}

	a := &app{cfg: cfg, catalog: cat}
	if cfg.Redis.Host != "" && (cfg.Store.Backend == config.BackendRedis || cfg.RateLimit.UseRedis) {
		client, err := database.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		logger.Infof("Connected to Redis: %s", cfg.Redis.Addr())
		a.redis = client
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
	}

	switch cfg.Store.Backend {
	case config.BackendMongo:
		db, err := database.OpenMongo(ctx, cfg.MongoDB, 5)
		if err != nil {
			a.close(ctx)
			return nil, err
		}
		logger.Infof("Connected to MongoDB database %s", cfg.MongoDB.Database)
		a.closers = append(a.closers, db.Client().Disconnect)
		a.repo = repository.NewMongoRepo(db)
	case config.BackendRedis:
		a.repo = repository.NewRedisRepo(a.redis, cfg.Redis.KeyPrefix)
	default:
		a.repo = repository.NewMemoryRepo()
	}

	var opts []service.Option
	if cfg.Archive.Endpoint != "" {
		arch, err := storage.NewArchive(ctx, storage.Config{
			Endpoint:  cfg.Archive.Endpoint,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			UseSSL:    cfg.Archive.UseSSL,
			Bucket:    cfg.Archive.Bucket,
		})
		if err != nil {
			a.close(ctx)
			return nil, err
		}
		logger.Infof("Archiving records to bucket %s", cfg.Archive.Bucket)
		opts = append(opts, service.WithArchive(arch))
	}
	a.svc = service.New(a.repo, opts...)

	for _, name := range cat.Routes() {
		c, _ := cat.Class(name)
		created, err := a.svc.CreateIndexes(ctx, c)
		if err != nil {
			logger.Warnf("create indexes for %s: %v", name, err)
			continue
		}
		if len(created) > 0 {
			logger.Infof("indexes for %s: %v", name, created)
		}
	}
	return a, nil
}

// router builds the gin engine with health, readiness, the collection API
// and its OpenAPI description.
func (a *app) router() *gin.Engine {
	r := gin.New()
	// Global middlewares: logging + recovery
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness: 200 only when the store answers
	r.GET("/ready", func(c *gin.Context) {
		deps := map[string]bool{"store": true}
		if p, ok := a.repo.(pinger); ok {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			deps["store"] = p.Ping(ctx) == nil
		}
		if a.redis != nil {
			deps["redis"] = a.redis.Ping(c.Request.Context()).Err() == nil
		}
		status, code := "ready", http.StatusOK
		for _, ok := range deps {
			if !ok {
				status, code = "not_ready", http.StatusServiceUnavailable
			}
		}
		c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	var mw []gin.HandlerFunc
	if rl := a.cfg.RateLimit; rl.Enabled {
		if rl.UseRedis && a.redis != nil {
			mw = append(mw, middleware.RedisRateLimitMiddleware(a.redis, rl.RPS, rl.Burst, rl.Window))
		} else {
			mw = append(mw, middleware.RateLimitMiddleware(rl.RPS, rl.Burst))
		}
	}
	handler.RegisterDocumentRoutes(r, a.catalog, a.svc, mw...)
	handler.RegisterSwagger(r, a.catalog)
	return r
}
