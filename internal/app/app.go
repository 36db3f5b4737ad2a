package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/marks/internal/config"
	"github.com/MrSnakeDoc/marks/internal/enrichment"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/queue"
	"github.com/MrSnakeDoc/marks/internal/redis"
	"github.com/MrSnakeDoc/marks/internal/store"
	"github.com/MrSnakeDoc/marks/internal/store/memstore"
	"github.com/MrSnakeDoc/marks/internal/store/sqlstore"
	"github.com/MrSnakeDoc/marks/internal/tags"
	"github.com/MrSnakeDoc/marks/internal/utils"
)

// MemoryURL selects the in-process store. Data is lost on exit.
const MemoryURL = "memory://"

// App holds the infrastructure shared by every command: the store, the
// Redis-backed queue, the metrics registry and the tag reconciler.
type App struct {
	cfg         *config.Config
	logger      logger.Logger
	store       store.Store
	redisClient *goredis.Client
	queue       *queue.Queue
	registry    *prometheus.Registry
	metrics     *enrichment.Metrics
	tags        *tags.Reconciler
}

// Options selects which infrastructure New connects.
type Options struct {
	Redis bool // connect Redis and build the queue
}

// New opens the store (running migrations when AutoMigrate is set) and,
// when requested, connects Redis. Callers must Close the App.
func New(ctx context.Context, cfg *config.Config, log logger.Logger, opts Options) (*App, error) {
	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a := &App{
		cfg:      cfg,
		logger:   log,
		store:    st,
		registry: registry,
		metrics:  enrichment.NewMetrics(registry),
		tags:     tags.NewReconciler(st, log),
	}

	if opts.Redis {
		// Initialize Redis early - fail fast if unavailable
		log.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		client, err := redis.New(ctx, redisOptions(cfg), log)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.redisClient = client
		a.queue = queue.New(client, queue.Options{
			Prefix:    cfg.QueuePrefix,
			Worker:    cfg.WorkerName,
			DedupeTTL: cfg.StaleAfter,
		})
		log.Info("Redis initialized successfully")
	}

	return a, nil
}

// Store exposes the repository for one-shot commands.
func (a *App) Store() store.Store { return a.store }

// Close releases Redis and the database, in that order.
func (a *App) Close() {
	if a.redisClient != nil {
		utils.CloseLogged(a.redisClient, "redis", a.logger)
	}
	if a.store != nil {
		utils.CloseLogged(a.store, "database", a.logger)
	}
}

func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (store.Store, error) {
	if strings.HasPrefix(cfg.DatabaseURL, MemoryURL) {
		log.Warn("using the in-memory store, data will not survive a restart")
		return memstore.New(), nil
	}

	if cfg.AutoMigrate {
		if err := sqlstore.MigrateUp(cfg.DatabaseURL, log); err != nil {
			return nil, err
		}
	}

	st, err := sqlstore.Open(ctx, cfg.DatabaseURL, sqlstore.Options{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	log.Info("database ready")
	return st, nil
}

func redisOptions(cfg *config.Config) redis.ConnectOptions {
	return redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}
}
