package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Black-And-White-Club/shardboard/app/eventbus"
	"github.com/Black-And-White-Club/shardboard/app/modules/discovery"
	"github.com/Black-And-White-Club/shardboard/app/modules/leaderboard"
	leaderboardservice "github.com/Black-And-White-Club/shardboard/app/modules/leaderboard/application"
	"github.com/Black-And-White-Club/shardboard/app/modules/player"
	playerservice "github.com/Black-And-White-Club/shardboard/app/modules/player/application"
	playerdomain "github.com/Black-And-White-Club/shardboard/app/modules/player/domain"
	"github.com/Black-And-White-Club/shardboard/app/modules/shard"
	shardservice "github.com/Black-And-White-Club/shardboard/app/modules/shard/application"
	"github.com/Black-And-White-Club/shardboard/app/observability"
	"github.com/Black-And-White-Club/shardboard/app/observability/attr"
	"github.com/Black-And-White-Club/shardboard/app/server"
	"github.com/Black-And-White-Club/shardboard/app/shared/apperrors"
	"github.com/Black-And-White-Club/shardboard/app/shared/handlerwrapper"
	"github.com/Black-And-White-Club/shardboard/config"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/uptrace/bun"
)

const (
	TestEnvironmentFlag  = "APP_ENV"
	TestEnvironmentValue = "test"
)

// App wires the partition modules onto one event bus and one router.
type App struct {
	Config        *config.Config
	Observability observability.Observability
	EventBus      eventbus.EventBus
	Router        *message.Router
	DB            *bun.DB

	DiscoveryModule   *discovery.Module
	ShardModule       *shard.Module
	LeaderboardModule *leaderboard.Module
	PlayerModule      *player.Module
	Server            *server.Server

	wg sync.WaitGroup
}

// Options carries collaborators that do not come from config.
type Options struct {
	// Engine plays moves for ApplyMove. Nil refuses moves.
	Engine playerdomain.Engine
	// Migrate applies schema migrations before the modules start.
	Migrate bool
}

// New builds every module from cfg. Nothing runs until Run.
func New(ctx context.Context, cfg *config.Config, obs observability.Observability, opts Options) (*App, error) {
	logger := obs.Provider.Logger
	a := &App{Config: cfg, Observability: obs}

	if cfg.Backends.Storage == config.BackendPostgres || cfg.Backends.Discovery == config.BackendPostgres {
		db, err := OpenDB(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		a.DB = db
		if opts.Migrate {
			if err := MigrateAll(ctx, db, cfg.Postgres.DSN, logger); err != nil {
				a.Close()
				return nil, err
			}
		}
	}

	if err := a.initEventBus(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initRouter(); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initModules(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}

	a.Server = server.New(logger, obs.Provider.Prometheus, a.LeaderboardModule, a.ShardModule, a.PlayerModule, server.Options{
		Address:   cfg.HTTP.Address,
		RateLimit: cfg.HTTP.RateLimit,
		RateBurst: cfg.HTTP.RateBurst,
	})

	logger.InfoContext(ctx, "Application initialized",
		attr.String("storage", cfg.Backends.Storage),
		attr.String("transport", cfg.Backends.Transport),
		attr.String("discovery", cfg.Backends.Discovery),
	)
	return a, nil
}

func (a *App) initEventBus(ctx context.Context) error {
	logger := a.Observability.Provider.Logger
	switch a.Config.Backends.Transport {
	case config.BackendNATS:
		bus, err := eventbus.NewJetStream(ctx, a.Config.NATS.URL, logger)
		if err != nil {
			return fmt.Errorf("failed to create event bus: %w", err)
		}
		a.EventBus = bus
	default:
		a.EventBus = eventbus.NewGoChannel(logger)
	}
	return nil
}

// initRouter builds the shared watermill router. Only state errors are
// retried; anything else is acked by the handler wrapper.
func (a *App) initRouter() error {
	logger := a.Observability.Provider.Logger

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, watermill.NewSlogLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create watermill router: %w", err)
	}

	if os.Getenv(TestEnvironmentFlag) != TestEnvironmentValue {
		builder := metrics.NewPrometheusMetricsBuilder(a.Observability.Provider.Prometheus, "", "")
		builder.AddPrometheusRouterMetrics(router)
	}

	router.AddMiddleware(
		middleware.CorrelationID,
		middleware.Recoverer,
		handlerwrapper.AckAfterRetries(logger),
		middleware.Retry{
			MaxRetries:      3,
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     2 * time.Second,
			Multiplier:      2,
			Logger:          watermill.NewSlogLogger(logger),
			ShouldRetry: func(params middleware.RetryParams) bool {
				return apperrors.IsRetryable(params.Err)
			},
		}.Middleware,
	)

	a.Router = router
	return nil
}

func (a *App) initModules(ctx context.Context, opts Options) error {
	cfg := a.Config
	obs := a.Observability

	js := a.EventBus.JetStream()
	discoveryModule, err := discovery.NewDiscoveryModule(ctx, obs, discovery.Options{
		Backend: cfg.Backends.Discovery,
		Bucket:  cfg.Discovery.Bucket,
		MaxScan: cfg.Discovery.MaxScan,
		DB:      a.DB,
		JS:      js,
	})
	if err != nil {
		return fmt.Errorf("failed to create discovery module: %w", err)
	}
	a.DiscoveryModule = discoveryModule

	var storage *bun.DB
	if cfg.Backends.Storage == config.BackendPostgres {
		storage = a.DB
	}

	a.ShardModule, err = shard.NewShardModule(ctx, obs, a.EventBus, a.Router, discoveryModule.Channel, storage, shard.Options{
		Service: shardservice.Config{
			FlushFactor:         cfg.Shard.FlushFactor,
			WorkloadSampleEvery: cfg.Shard.WorkloadSampleEvery,
		},
		IdleTimeout: cfg.Partition.IdleTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create shard module: %w", err)
	}

	a.LeaderboardModule, err = leaderboard.NewLeaderboardModule(ctx, obs, a.EventBus, a.Router, discoveryModule.Channel, storage, leaderboard.Options{
		Service: leaderboardservice.Config{
			TriggerInterval: cfg.Leaderboard.TriggerInterval,
			PromoteAfter:    cfg.Leaderboard.PromoteAfter,
			PoolCapacity:    cfg.Leaderboard.PoolCapacity,
		},
		IdleTimeout: cfg.Partition.IdleTimeout,
		DSN:         cfg.Postgres.DSN,
	})
	if err != nil {
		return fmt.Errorf("failed to create leaderboard module: %w", err)
	}

	a.PlayerModule, err = player.NewPlayerModule(ctx, obs, a.EventBus, a.Router, discoveryModule.Channel, storage, player.Options{
		Service:         playerservice.Config{TriggerInterval: cfg.Leaderboard.TriggerInterval},
		IdleTimeout:     cfg.Partition.IdleTimeout,
		TriggerTick:     cfg.Player.TriggerTick,
		TickConcurrency: cfg.Player.TickConcurrency,
		Engine:          opts.Engine,
		Shards:          a.ShardModule,
	})
	if err != nil {
		return fmt.Errorf("failed to create player module: %w", err)
	}
	return nil
}

// Run starts the router, the modules and the HTTP server, and blocks until
// ctx is cancelled or the router stops.
func (a *App) Run(ctx context.Context) error {
	logger := a.Observability.Provider.Logger

	if js := a.EventBus.JetStream(); js != nil {
		if err := eventbus.InitializeStreams(ctx, js, logger); err != nil {
			return err
		}
	}

	routerErr := make(chan error, 1)
	go func() {
		routerErr <- a.Router.Run(ctx)
	}()

	select {
	case <-a.Router.Running():
	case err := <-routerErr:
		return fmt.Errorf("watermill router stopped during startup: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}

	a.wg.Add(4)
	go a.ShardModule.Run(ctx, &a.wg)
	go a.LeaderboardModule.Run(ctx, &a.wg)
	go a.PlayerModule.Run(ctx, &a.wg)
	go a.Server.Run(ctx, &a.wg)

	logger.InfoContext(ctx, "Application running", attr.String("http_address", a.Config.HTTP.Address))

	select {
	case <-ctx.Done():
		return nil
	case err := <-routerErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("watermill router stopped: %w", err)
		}
		return nil
	}
}

// Close stops the modules, then the router and the transport.
func (a *App) Close() error {
	logger := a.Observability.Provider.Logger
	logger.Info("Shutting down application")

	var errs []error
	if a.Server != nil {
		if err := a.Server.Close(); err != nil {
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
	}
	if a.PlayerModule != nil {
		errs = append(errs, a.PlayerModule.Close())
	}
	if a.ShardModule != nil {
		errs = append(errs, a.ShardModule.Close())
	}
	if a.LeaderboardModule != nil {
		errs = append(errs, a.LeaderboardModule.Close())
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn("Timed out waiting for module goroutines")
	}

	if a.Router != nil {
		if err := a.Router.Close(); err != nil {
			errs = append(errs, fmt.Errorf("router: %w", err))
		}
	}
	if a.EventBus != nil {
		if err := a.EventBus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("event bus: %w", err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	return errors.Join(errs...)
}
