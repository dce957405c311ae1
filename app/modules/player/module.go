package player

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Black-And-White-Club/shardboard/app/eventbus"
	"github.com/Black-And-White-Club/shardboard/app/events"
	discoveryservice "github.com/Black-And-White-Club/shardboard/app/modules/discovery/application"
	playerservice "github.com/Black-And-White-Club/shardboard/app/modules/player/application"
	playerdomain "github.com/Black-And-White-Club/shardboard/app/modules/player/domain"
	playerhandlers "github.com/Black-And-White-Club/shardboard/app/modules/player/infrastructure/handlers"
	playerdb "github.com/Black-And-White-Club/shardboard/app/modules/player/infrastructure/repositories"
	playerrouter "github.com/Black-And-White-Club/shardboard/app/modules/player/infrastructure/router"
	"github.com/Black-And-White-Club/shardboard/app/observability"
	"github.com/Black-And-White-Club/shardboard/app/observability/attr"
	"github.com/Black-And-White-Club/shardboard/app/shared/partition"
	"github.com/Black-And-White-Club/shardboard/app/shared/results"
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/uptrace/bun"
	"golang.org/x/sync/errgroup"
)

// DefaultTickConcurrency bounds how many player mailboxes one tick feeds at
// a time.
const DefaultTickConcurrency = 32

// Module represents the player module.
type Module struct {
	PlayerService playerservice.Service
	PlayerRouter  *playerrouter.PlayerRouter
	repo          playerdb.Repository
	mailboxes     *partition.Dispatcher[events.PlayerMessage]
	tick          time.Duration
	concurrency   int
	cancelFunc    context.CancelFunc
	observability observability.Observability
}

// Options carries the tunables the module reads from config.
type Options struct {
	Service     playerservice.Config
	IdleTimeout time.Duration
	// TriggerTick is how often pool members check whether to trigger. Zero
	// disables the ticker.
	TriggerTick     time.Duration
	TickConcurrency int
	// Engine plays moves. Without one ApplyMove is refused.
	Engine playerdomain.Engine
	// Shards provisions the fallback shard of a tournament that has none.
	Shards playerservice.ShardProvisioner
}

// NewPlayerModule creates and initializes a new player module. A nil db
// keeps player state in memory.
func NewPlayerModule(
	ctx context.Context,
	obs observability.Observability,
	eventBus eventbus.EventBus,
	router *message.Router,
	discovery discoveryservice.Reader,
	db *bun.DB,
	opts Options,
) (*Module, error) {
	logger := obs.Provider.Logger
	tracer := obs.Registry.Tracer
	metrics := obs.Registry.PlayerMetrics

	logger.InfoContext(ctx, "player.NewPlayerModule initializing")

	// 1. Initialize Repository
	var repo playerdb.Repository
	if db != nil {
		repo = playerdb.NewRepository(db)
	} else {
		repo = playerdb.NewMemoryRepository()
	}

	// 2. Initialize Service
	sender := eventbus.NewPartitionSender(eventBus, logger)
	service := playerservice.NewPlayerService(repo, sender, discovery, opts.Engine, opts.Shards, logger, metrics, tracer, db, opts.Service)

	// 3. One mailbox per player id
	mailboxes := partition.NewDispatcher("player",
		func(ctx context.Context, id string, msg events.PlayerMessage) error {
			return service.Route(ctx, sharedtypes.PlayerID(id), msg)
		},
		logger,
		partition.Options{IdleTimeout: opts.IdleTimeout},
	)

	// 4. Initialize Handlers
	handlers := playerhandlers.NewPlayerHandlers(mailboxes, logger, tracer)

	// 5. Initialize Router
	playerRouter := playerrouter.NewPlayerRouter(logger, router, eventBus, eventBus, tracer, metrics)
	if err := playerRouter.Configure(ctx, handlers); err != nil {
		mailboxes.Close()
		return nil, fmt.Errorf("failed to configure player router: %w", err)
	}

	concurrency := opts.TickConcurrency
	if concurrency <= 0 {
		concurrency = DefaultTickConcurrency
	}

	return &Module{
		PlayerService: service,
		PlayerRouter:  playerRouter,
		repo:          repo,
		mailboxes:     mailboxes,
		tick:          opts.TriggerTick,
		concurrency:   concurrency,
		observability: obs,
	}, nil
}

// CreateGame runs CreateGame on the player's mailbox.
func (m *Module) CreateGame(ctx context.Context, player sharedtypes.PlayerID, tournamentID sharedtypes.TournamentID) (playerservice.GameResult, error) {
	var out playerservice.GameResult
	err := m.mailboxes.Do(ctx, player.String(), func(ctx context.Context) error {
		var err error
		out, err = results.Unwrap(m.PlayerService.CreateGame(ctx, player, tournamentID, 0))
		return err
	})
	return out, err
}

// ReportScore runs ReportScore on the player's mailbox.
func (m *Module) ReportScore(ctx context.Context, player sharedtypes.PlayerID, board sharedtypes.BoardID, score uint64, isFinal bool) (*playerdb.Game, error) {
	return m.exec(ctx, player, func(ctx context.Context) (*playerdb.Game, error) {
		return results.Unwrap(m.PlayerService.ReportScore(ctx, player, board, score, isFinal, 0))
	})
}

// ApplyMove runs ApplyMove on the player's mailbox.
func (m *Module) ApplyMove(ctx context.Context, player sharedtypes.PlayerID, board sharedtypes.BoardID, dir playerdomain.Direction) (*playerdb.Game, error) {
	return m.exec(ctx, player, func(ctx context.Context) (*playerdb.Game, error) {
		return results.Unwrap(m.PlayerService.ApplyMove(ctx, player, board, dir, 0))
	})
}

func (m *Module) exec(
	ctx context.Context,
	player sharedtypes.PlayerID,
	fn func(ctx context.Context) (*playerdb.Game, error),
) (*playerdb.Game, error) {
	var game *playerdb.Game
	err := m.mailboxes.Do(ctx, player.String(), func(ctx context.Context) error {
		var err error
		game, err = fn(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return game, nil
}

// Tick delivers a TriggerTick to every player with an open game.
func (m *Module) Tick(ctx context.Context, now sharedtypes.Timestamp) error {
	players, err := m.repo.ListActive(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to list active players: %w", err)
	}

	logger := m.observability.Provider.Logger
	tick := events.TriggerTick{Now: now}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for _, id := range players {
		g.Go(func() error {
			if err := m.mailboxes.Deliver(gctx, id.String(), tick); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.WarnContext(gctx, "Trigger tick failed",
					attr.PlayerID("player_id", id),
					attr.Error(err),
				)
			}
			return nil
		})
	}
	return g.Wait()
}

// Run drives the trigger ticker and blocks until ctx is cancelled.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	logger := m.observability.Provider.Logger
	logger.InfoContext(ctx, "Starting player module")

	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if wg != nil {
		defer wg.Done()
	}

	if m.tick <= 0 {
		<-ctx.Done()
		logger.InfoContext(ctx, "Player module goroutine stopped")
		return
	}

	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.InfoContext(ctx, "Player module goroutine stopped")
			return
		case t := <-ticker.C:
			if err := m.Tick(ctx, sharedtypes.TimestampFrom(t)); err != nil && ctx.Err() == nil {
				logger.ErrorContext(ctx, "Trigger tick round failed", attr.Error(err))
			}
		}
	}
}

// Close stops the ticker and drains every player mailbox.
func (m *Module) Close() error {
	logger := m.observability.Provider.Logger
	logger.Info("Stopping player module")

	if m.cancelFunc != nil {
		m.cancelFunc()
	}
	m.mailboxes.Close()

	logger.Info("Player module stopped")
	return nil
}
