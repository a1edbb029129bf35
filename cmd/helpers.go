package cmd

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/meganet/portal/internal/audit"
	"github.com/meganet/portal/internal/authz"
	"github.com/meganet/portal/internal/cache"
	"github.com/meganet/portal/internal/chatbox"
	"github.com/meganet/portal/internal/config"
	"github.com/meganet/portal/internal/db"
	"github.com/meganet/portal/internal/flows"
	"github.com/meganet/portal/internal/logging"
	"github.com/meganet/portal/internal/metrics"
)

// app holds the services shared by the server, walk and mcp commands.
type app struct {
	cfg       *config.Config
	log       *logging.Logger
	db        *db.DB
	redis     *redis.Client
	metrics   *metrics.Metrics
	tokens    *authz.Tokens
	audit     *audit.Store
	flowStore *flows.Store
	flows     *flows.Service
	engine    *flows.Engine
	registry  *chatbox.Registry
}

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `portal init` to create a config file", err)
	}
	if verbose {
		cfg.Log.Mode = config.LogDevelopment
	}
	return cfg, nil
}

// openApp opens the database and wires every service from cfg. The Redis
// step cache is optional: when it cannot be reached the app runs without it.
func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log, err := logging.New(string(cfg.Log.Mode))
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	a := &app{cfg: cfg, log: log, db: database}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.New()
	}
	if cfg.Auth.JWTSecret != "" {
		a.tokens = authz.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	}

	opts := []flows.Option{flows.WithLogger(log.With("component", "flows"))}
	if a.metrics != nil {
		opts = append(opts, flows.WithObserver(a.metrics))
	}
	if cfg.Cache.RedisAddr != "" {
		client, err := cache.Dial(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			log.Warn("step cache disabled", "addr", cfg.Cache.RedisAddr, "err", err)
		} else {
			a.redis = client
			steps := cache.New[flows.Step](client, cache.WithPrefix(cfg.Cache.Prefix), cache.WithTTL(cfg.Cache.TTL))
			opts = append(opts, flows.WithCache(steps))
		}
	}

	policy := authz.NewPolicy(cfg.Auth.AdminRole)
	a.audit = audit.NewStore(database)
	opts = append(opts, flows.WithAuditor(a.audit))

	a.flowStore = flows.NewStore(database)
	a.registry = chatbox.NewRegistry(chatbox.NewStore(database), policy, a.audit, log.With("component", "chatbox"))
	a.flows = flows.NewService(a.flowStore, policy, a.registry, opts...)
	a.engine = flows.NewEngine(a.flowStore, opts...)

	return a, nil
}

// Close releases the database and cache connections.
func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	a.db.Close()
	a.log.Sync()
}
