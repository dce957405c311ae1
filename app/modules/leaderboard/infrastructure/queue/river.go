package leaderboardqueue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/shardboard/app/eventbus"
	"github.com/Black-And-White-Club/shardboard/app/observability"
	"github.com/Black-And-White-Club/shardboard/app/observability/attr"
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/uptrace/bun"
)

// QueueName is the River queue lifecycle jobs run on.
const QueueName = "tournament"

// Ensure RiverScheduler implements Scheduler
var _ Scheduler = (*RiverScheduler)(nil)

// RiverScheduler schedules lifecycle jobs in Postgres using River.
type RiverScheduler struct {
	client  *river.Client[pgx.Tx]
	pool    *pgxpool.Pool
	logger  *slog.Logger
	db      *bun.DB
	metrics observability.OperationMetrics
}

// NewRiverScheduler creates a River client on its own pgx pool.
func NewRiverScheduler(ctx context.Context, bunDB *bun.DB, logger *slog.Logger, dsn string, metrics observability.OperationMetrics, sender eventbus.Sender) (*RiverScheduler, error) {
	ctxLogger := logger.With(
		attr.String("operation", "new_tournament_scheduler"),
		attr.String("component", "river_queue"),
	)

	start := time.Now()
	metrics.RecordOperationAttempt(ctx, "initialize_scheduler", "river")

	ctxLogger.Info("Initializing tournament scheduler")

	// River requires pgx, not database/sql
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		ctxLogger.Error("Failed to parse DSN for River", attr.Error(err))
		metrics.RecordOperationFailure(ctx, "initialize_scheduler", "river")
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		ctxLogger.Error("Failed to create pgx pool for River", attr.Error(err))
		metrics.RecordOperationFailure(ctx, "initialize_scheduler", "river")
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		ctxLogger.Error("Failed to ping database for River", attr.Error(err))
		metrics.RecordOperationFailure(ctx, "initialize_scheduler", "river")
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, NewTournamentStartWorker(ctxLogger, sender))
	river.AddWorker(workers, NewTournamentEndWorker(ctxLogger, sender))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
			QueueName:          {MaxWorkers: 25},
		},
		Workers: workers,
	})
	if err != nil {
		pool.Close()
		ctxLogger.Error("Failed to create River client", attr.Error(err))
		metrics.RecordOperationFailure(ctx, "initialize_scheduler", "river")
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	metrics.RecordOperationSuccess(ctx, "initialize_scheduler", "river")
	metrics.RecordOperationDuration(ctx, "initialize_scheduler", "river", time.Since(start))

	ctxLogger.Info("Tournament scheduler initialized successfully")
	return &RiverScheduler{
		client:  riverClient,
		pool:    pool,
		logger:  ctxLogger,
		db:      bunDB,
		metrics: metrics,
	}, nil
}

// Start starts the River client.
func (s *RiverScheduler) Start(ctx context.Context) error {
	s.metrics.RecordOperationAttempt(ctx, "start_scheduler", "river")
	if err := s.client.Start(ctx); err != nil {
		s.logger.Error("Failed to start River client", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "start_scheduler", "river")
		return fmt.Errorf("failed to start River client: %w", err)
	}
	s.metrics.RecordOperationSuccess(ctx, "start_scheduler", "river")
	s.logger.Info("Tournament scheduler started")
	return nil
}

// Stop stops the River client and closes its pool.
func (s *RiverScheduler) Stop(ctx context.Context) error {
	s.metrics.RecordOperationAttempt(ctx, "stop_scheduler", "river")
	defer s.pool.Close()
	if err := s.client.Stop(ctx); err != nil {
		s.logger.Error("Failed to stop River client", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "stop_scheduler", "river")
		return fmt.Errorf("failed to stop River client: %w", err)
	}
	s.metrics.RecordOperationSuccess(ctx, "stop_scheduler", "river")
	s.logger.Info("Tournament scheduler stopped")
	return nil
}

// ScheduleLifecycle inserts start and end jobs for the window bounds that
// still lie ahead. Jobs are unique by args, so scheduling twice is harmless.
func (s *RiverScheduler) ScheduleLifecycle(ctx context.Context, tournamentID sharedtypes.TournamentID, window sharedtypes.Window) error {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, "schedule_lifecycle", "river")

	ctxLogger := s.logger.With(
		attr.TournamentID("tournament_id", tournamentID),
		attr.String("operation", "schedule_lifecycle"),
	)

	var jobs []river.JobArgs
	var at []time.Time
	if due(window.Start, start, minLead) {
		jobs = append(jobs, TournamentStartJob{TournamentID: tournamentID, StartsAt: window.Start})
		at = append(at, window.Start.Time())
	}
	if due(window.End, start, minLead) {
		jobs = append(jobs, TournamentEndJob{TournamentID: tournamentID, EndsAt: window.End})
		at = append(at, window.End.Time())
	}

	for i, job := range jobs {
		res, err := s.client.Insert(ctx, job, &river.InsertOpts{
			Queue:       QueueName,
			ScheduledAt: at[i],
			UniqueOpts: river.UniqueOpts{
				ByArgs: true,
			},
		})
		if err != nil {
			ctxLogger.Error("Failed to schedule lifecycle job", attr.String("kind", job.Kind()), attr.Error(err))
			s.metrics.RecordOperationFailure(ctx, "schedule_lifecycle", "river")
			return fmt.Errorf("failed to schedule %s job: %w", job.Kind(), err)
		}
		ctxLogger.Info("Lifecycle job scheduled",
			attr.String("kind", job.Kind()),
			attr.Time("scheduled_at", at[i]),
			attr.Int64("job_id", res.Job.ID),
		)
	}

	s.metrics.RecordOperationSuccess(ctx, "schedule_lifecycle", "river")
	s.metrics.RecordOperationDuration(ctx, "schedule_lifecycle", "river", time.Since(start))
	return nil
}

// CancelTournamentJobs cancels every pending lifecycle job of a tournament.
func (s *RiverScheduler) CancelTournamentJobs(ctx context.Context, tournamentID sharedtypes.TournamentID) error {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, "cancel_tournament_jobs", "river")

	ctxLogger := s.logger.With(
		attr.TournamentID("tournament_id", tournamentID),
		attr.String("operation", "cancel_tournament_jobs"),
	)

	jobs, err := s.pendingJobs(ctx, tournamentID)
	if err != nil {
		ctxLogger.Error("Failed to query jobs for cancellation", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "cancel_tournament_jobs", "river")
		return err
	}

	cancelled := 0
	for _, job := range jobs {
		if _, err := s.client.JobCancel(ctx, job.ID); err != nil {
			ctxLogger.Warn("Failed to cancel job",
				attr.Int64("job_id", job.ID),
				attr.String("job_kind", job.Kind),
				attr.Error(err),
			)
			continue
		}
		cancelled++
	}

	if cancelled == len(jobs) {
		s.metrics.RecordOperationSuccess(ctx, "cancel_tournament_jobs", "river")
	} else {
		s.metrics.RecordOperationFailure(ctx, "cancel_tournament_jobs", "river")
	}
	s.metrics.RecordOperationDuration(ctx, "cancel_tournament_jobs", "river", time.Since(start))

	ctxLogger.Info("Jobs cancellation completed",
		attr.Int("total_found", len(jobs)),
		attr.Int("cancelled_count", cancelled),
	)
	return nil
}

// ScheduledJobs lists the pending lifecycle jobs of a tournament.
func (s *RiverScheduler) ScheduledJobs(ctx context.Context, tournamentID sharedtypes.TournamentID) ([]JobInfo, error) {
	jobs, err := s.pendingJobs(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	out := make([]JobInfo, len(jobs))
	for i, job := range jobs {
		scheduledAt := ""
		if job.ScheduledAt != nil {
			scheduledAt = job.ScheduledAt.Format(time.RFC3339)
		}
		out[i] = JobInfo{
			ID:           job.ID,
			Kind:         job.Kind,
			TournamentID: tournamentID.String(),
			State:        job.State,
			ScheduledAt:  scheduledAt,
		}
	}
	return out, nil
}

type riverJobRow struct {
	ID          int64      `bun:"id"`
	Kind        string     `bun:"kind"`
	State       string     `bun:"state"`
	ScheduledAt *time.Time `bun:"scheduled_at"`
}

func (s *RiverScheduler) pendingJobs(ctx context.Context, tournamentID sharedtypes.TournamentID) ([]riverJobRow, error) {
	var jobs []riverJobRow
	err := s.db.NewSelect().
		Table("river_job").
		Column("id", "kind", "state", "scheduled_at").
		Where("kind IN (?, ?)", KindTournamentStart, KindTournamentEnd).
		Where("state IN (?, ?)", "available", "scheduled").
		Where("args->>'tournament_id' = ?", tournamentID.String()).
		Order("scheduled_at ASC").
		Scan(ctx, &jobs)
	if err != nil {
		return nil, fmt.Errorf("failed to query lifecycle jobs: %w", err)
	}
	return jobs, nil
}
