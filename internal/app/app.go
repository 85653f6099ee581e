package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rrapp/rentchat/internal/broker/redisrelay"
	"github.com/rrapp/rentchat/internal/config"
	"github.com/rrapp/rentchat/internal/core"
	"github.com/rrapp/rentchat/internal/store"
	"github.com/rrapp/rentchat/internal/store/sqlite"
	transporthttp "github.com/rrapp/rentchat/internal/transport/http"
)

const redisPingTimeout = 3 * time.Second

// App wires together store, registry and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	registry        *core.Registry
	relay           *redisrelay.Relay
	redis           *redis.Client
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	a := &App{
		shutdownTimeout: cfg.ShutdownTimeout,
		registry:        core.NewRegistry(logger),
		store:           st,
		log:             logger,
	}

	if cfg.Broker.Mode == config.BrokerRedis {
		if err := a.initRelay(cfg.Broker); err != nil {
			a.cleanup()
			return nil, err
		}
	}

	a.server = transporthttp.NewServer(a.registry, st, cfg, logger)
	return a, nil
}

func (a *App) initRelay(cfg config.BrokerConfig) error {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
	}

	a.redis = client
	a.relay = redisrelay.New(client, a.registry, cfg.ChannelPrefix, a.log)
	a.registry.UseRelay(a.relay)
	a.log.Info().Str("redis_addr", cfg.RedisAddr).Msg("redis relay enabled")
	return nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() stdhttp.Handler {
	return a.server.Handler
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	g, ctx := errgroup.WithContext(ctx)

	if a.relay != nil {
		g.Go(func() error {
			return a.relay.Run(ctx)
		})
	}

	g.Go(func() error {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close redis client")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
