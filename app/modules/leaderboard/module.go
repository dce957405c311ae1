package leaderboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Black-And-White-Club/shardboard/app/eventbus"
	"github.com/Black-And-White-Club/shardboard/app/events"
	discoveryservice "github.com/Black-And-White-Club/shardboard/app/modules/discovery/application"
	leaderboardservice "github.com/Black-And-White-Club/shardboard/app/modules/leaderboard/application"
	leaderboardhandlers "github.com/Black-And-White-Club/shardboard/app/modules/leaderboard/infrastructure/handlers"
	leaderboardqueue "github.com/Black-And-White-Club/shardboard/app/modules/leaderboard/infrastructure/queue"
	leaderboarddb "github.com/Black-And-White-Club/shardboard/app/modules/leaderboard/infrastructure/repositories"
	leaderboardrouter "github.com/Black-And-White-Club/shardboard/app/modules/leaderboard/infrastructure/router"
	"github.com/Black-And-White-Club/shardboard/app/observability"
	"github.com/Black-And-White-Club/shardboard/app/shared/partition"
	"github.com/Black-And-White-Club/shardboard/app/shared/results"
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/uptrace/bun"
)

// Module represents the leaderboard module.
type Module struct {
	LeaderboardService leaderboardservice.Service
	LeaderboardRouter  *leaderboardrouter.LeaderboardRouter
	Scheduler          leaderboardqueue.Scheduler
	mailboxes          *partition.Dispatcher[events.LeaderboardMessage]
	cancelFunc         context.CancelFunc
	observability      observability.Observability
}

// Options carries the tunables the module reads from config.
type Options struct {
	Service     leaderboardservice.Config
	IdleTimeout time.Duration
	// DSN enables the River scheduler when db is set.
	DSN string
}

// NewLeaderboardModule creates and initializes a new leaderboard module. A
// nil db keeps tournament state in memory and schedules lifecycle jobs on
// in-process timers.
func NewLeaderboardModule(
	ctx context.Context,
	obs observability.Observability,
	eventBus eventbus.EventBus,
	router *message.Router,
	discovery discoveryservice.Writer,
	db *bun.DB,
	opts Options,
) (*Module, error) {
	logger := obs.Provider.Logger
	tracer := obs.Registry.Tracer
	metrics := obs.Registry.LeaderboardMetrics

	logger.InfoContext(ctx, "leaderboard.NewLeaderboardModule initializing")

	sender := eventbus.NewPartitionSender(eventBus, logger)

	// 1. Initialize Repository and Scheduler
	var (
		repo      leaderboarddb.Repository
		scheduler leaderboardqueue.Scheduler
	)
	if db != nil {
		repo = leaderboarddb.NewRepository(db)
	} else {
		repo = leaderboarddb.NewMemoryRepository()
	}
	if db != nil && opts.DSN != "" {
		riverScheduler, err := leaderboardqueue.NewRiverScheduler(ctx, db, logger, opts.DSN, metrics, sender)
		if err != nil {
			return nil, fmt.Errorf("failed to create lifecycle scheduler: %w", err)
		}
		scheduler = riverScheduler
	} else {
		scheduler = leaderboardqueue.NewTimerScheduler(logger, sender)
	}

	// 2. Initialize Service
	service := leaderboardservice.NewLeaderboardService(repo, sender, discovery, scheduler, logger, metrics, tracer, db, opts.Service)

	// 3. One mailbox per tournament id
	mailboxes := partition.NewDispatcher("leaderboard",
		func(ctx context.Context, id string, msg events.LeaderboardMessage) error {
			_, err := service.Route(ctx, sharedtypes.TournamentID(id), msg)
			return err
		},
		logger,
		partition.Options{IdleTimeout: opts.IdleTimeout},
	)

	m := &Module{
		LeaderboardService: service,
		Scheduler:          scheduler,
		mailboxes:          mailboxes,
		observability:      obs,
	}

	// 4. Initialize Handlers
	handlers := leaderboardhandlers.NewLeaderboardHandlers(m, logger, tracer)

	// 5. Initialize Router
	m.LeaderboardRouter = leaderboardrouter.NewLeaderboardRouter(logger, router, eventBus, eventBus, tracer, metrics)
	if err := m.LeaderboardRouter.Configure(ctx, handlers); err != nil {
		mailboxes.Close()
		return nil, fmt.Errorf("failed to configure leaderboard router: %w", err)
	}

	return m, nil
}

// Deliver hands msg to the tournament's mailbox. A trigger request runs
// inline so its response comes back to the caller.
func (m *Module) Deliver(ctx context.Context, id string, msg events.LeaderboardMessage) (*events.TriggerAggregationResponse, error) {
	req, ok := msg.(events.TriggerAggregationRequest)
	if !ok {
		return nil, m.mailboxes.Deliver(ctx, id, msg)
	}

	var resp *events.TriggerAggregationResponse
	err := m.mailboxes.Do(ctx, id, func(ctx context.Context) error {
		var err error
		resp, err = m.LeaderboardService.Route(ctx, sharedtypes.TournamentID(id), req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// CreateTournament runs CreateTournament on the tournament's mailbox.
func (m *Module) CreateTournament(ctx context.Context, spec leaderboardservice.TournamentSpec) (*leaderboarddb.LeaderboardState, error) {
	return m.exec(ctx, spec.ID, func(ctx context.Context) (*leaderboarddb.LeaderboardState, error) {
		return results.Unwrap(m.LeaderboardService.CreateTournament(ctx, spec))
	})
}

// UpdateTournament runs UpdateTournament on the tournament's mailbox.
func (m *Module) UpdateTournament(ctx context.Context, id sharedtypes.TournamentID, name, description string) (*leaderboarddb.LeaderboardState, error) {
	return m.exec(ctx, id, func(ctx context.Context) (*leaderboarddb.LeaderboardState, error) {
		return results.Unwrap(m.LeaderboardService.UpdateTournament(ctx, id, name, description, 0))
	})
}

// TogglePin runs TogglePin on the tournament's mailbox.
func (m *Module) TogglePin(ctx context.Context, id sharedtypes.TournamentID) (*leaderboarddb.LeaderboardState, error) {
	return m.exec(ctx, id, func(ctx context.Context) (*leaderboarddb.LeaderboardState, error) {
		return results.Unwrap(m.LeaderboardService.TogglePin(ctx, id, 0))
	})
}

// EndTournament runs EndTournament on the tournament's mailbox.
func (m *Module) EndTournament(ctx context.Context, id sharedtypes.TournamentID) (*leaderboarddb.LeaderboardState, error) {
	return m.exec(ctx, id, func(ctx context.Context) (*leaderboarddb.LeaderboardState, error) {
		return results.Unwrap(m.LeaderboardService.EndTournament(ctx, id, 0))
	})
}

func (m *Module) exec(
	ctx context.Context,
	id sharedtypes.TournamentID,
	fn func(ctx context.Context) (*leaderboarddb.LeaderboardState, error),
) (*leaderboarddb.LeaderboardState, error) {
	var state *leaderboarddb.LeaderboardState
	err := m.mailboxes.Do(ctx, id.String(), func(ctx context.Context) error {
		var err error
		state, err = fn(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// Run starts the lifecycle scheduler and blocks until ctx is cancelled.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	logger := m.observability.Provider.Logger
	logger.InfoContext(ctx, "Starting leaderboard module")

	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if wg != nil {
		defer wg.Done()
	}

	if err := m.Scheduler.Start(ctx); err != nil {
		logger.ErrorContext(ctx, "Failed to start lifecycle scheduler", "error", err)
	}

	<-ctx.Done()
	logger.InfoContext(ctx, "Leaderboard module goroutine stopped")
}

// Close stops the scheduler and drains every tournament mailbox.
func (m *Module) Close() error {
	logger := m.observability.Provider.Logger
	logger.Info("Stopping leaderboard module")

	if m.cancelFunc != nil {
		m.cancelFunc()
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.Scheduler.Stop(stopCtx); err != nil {
		logger.Error("Failed to stop lifecycle scheduler", "error", err)
	}
	m.mailboxes.Close()

	logger.Info("Leaderboard module stopped")
	return nil
}
