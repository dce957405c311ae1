package shard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Black-And-White-Club/shardboard/app/eventbus"
	"github.com/Black-And-White-Club/shardboard/app/events"
	discoveryservice "github.com/Black-And-White-Club/shardboard/app/modules/discovery/application"
	shardservice "github.com/Black-And-White-Club/shardboard/app/modules/shard/application"
	shardhandlers "github.com/Black-And-White-Club/shardboard/app/modules/shard/infrastructure/handlers"
	sharddb "github.com/Black-And-White-Club/shardboard/app/modules/shard/infrastructure/repositories"
	shardrouter "github.com/Black-And-White-Club/shardboard/app/modules/shard/infrastructure/router"
	"github.com/Black-And-White-Club/shardboard/app/observability"
	"github.com/Black-And-White-Club/shardboard/app/shared/partition"
	"github.com/Black-And-White-Club/shardboard/app/shared/results"
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/uptrace/bun"
)

// Module represents the shard module.
type Module struct {
	ShardService  shardservice.Service
	ShardRouter   *shardrouter.ShardRouter
	mailboxes     *partition.Dispatcher[events.ShardMessage]
	cancelFunc    context.CancelFunc
	observability observability.Observability
}

// Options carries the tunables the module reads from config.
type Options struct {
	Service     shardservice.Config
	IdleTimeout time.Duration
}

// NewShardModule creates and initializes a new shard module. A nil db keeps
// shard state in memory.
func NewShardModule(
	ctx context.Context,
	obs observability.Observability,
	eventBus eventbus.EventBus,
	router *message.Router,
	discovery discoveryservice.ReadWriter,
	db *bun.DB,
	opts Options,
) (*Module, error) {
	logger := obs.Provider.Logger
	tracer := obs.Registry.Tracer
	metrics := obs.Registry.ShardMetrics

	logger.InfoContext(ctx, "shard.NewShardModule initializing")

	// 1. Initialize Repository
	var repo sharddb.Repository
	if db != nil {
		repo = sharddb.NewRepository(db)
	} else {
		repo = sharddb.NewMemoryRepository()
	}

	// 2. Initialize Service
	sender := eventbus.NewPartitionSender(eventBus, logger)
	service := shardservice.NewShardService(repo, sender, discovery, discovery, logger, metrics, tracer, db, opts.Service)

	// 3. One mailbox per shard id
	mailboxes := partition.NewDispatcher("shard",
		func(ctx context.Context, id string, msg events.ShardMessage) error {
			return service.Route(ctx, sharedtypes.ShardID(id), msg)
		},
		logger,
		partition.Options{IdleTimeout: opts.IdleTimeout},
	)

	// 4. Initialize Handlers
	handlers := shardhandlers.NewShardHandlers(mailboxes, logger, tracer)

	// 5. Initialize Router
	shardRouter := shardrouter.NewShardRouter(logger, router, eventBus, eventBus, tracer, metrics)
	if err := shardRouter.Configure(ctx, handlers); err != nil {
		mailboxes.Close()
		return nil, fmt.Errorf("failed to configure shard router: %w", err)
	}

	return &Module{
		ShardService:  service,
		ShardRouter:   shardRouter,
		mailboxes:     mailboxes,
		observability: obs,
	}, nil
}

// CreateShard runs CreateShard on the shard's mailbox.
func (m *Module) CreateShard(ctx context.Context, spec shardservice.ShardSpec) (*sharddb.ShardState, error) {
	var state *sharddb.ShardState
	err := m.mailboxes.Do(ctx, spec.ShardID.String(), func(ctx context.Context) error {
		var err error
		state, err = results.Unwrap(m.ShardService.CreateShard(ctx, spec))
		return err
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// ProvisionShard creates shardID for tournamentID unless it already exists.
// Players call it when a tournament has no shards yet.
func (m *Module) ProvisionShard(ctx context.Context, shardID sharedtypes.ShardID, tournamentID sharedtypes.TournamentID, now sharedtypes.Timestamp) error {
	_, err := m.CreateShard(ctx, shardservice.ShardSpec{
		ShardID:      shardID,
		TournamentID: tournamentID,
		Now:          now,
	})
	return err
}

// Run blocks until ctx is cancelled.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	logger := m.observability.Provider.Logger
	logger.InfoContext(ctx, "Starting shard module")

	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if wg != nil {
		defer wg.Done()
	}

	<-ctx.Done()
	logger.InfoContext(ctx, "Shard module goroutine stopped")
}

// Close drains every shard mailbox.
func (m *Module) Close() error {
	logger := m.observability.Provider.Logger
	logger.Info("Stopping shard module")

	if m.cancelFunc != nil {
		m.cancelFunc()
	}
	m.mailboxes.Close()

	logger.Info("Shard module stopped")
	return nil
}
