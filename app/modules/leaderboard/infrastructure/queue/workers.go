package leaderboardqueue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/shardboard/app/eventbus"
	"github.com/Black-And-White-Club/shardboard/app/observability/attr"
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
	"github.com/riverqueue/river"
)

// TournamentStartWorker opens a tournament.
type TournamentStartWorker struct {
	river.WorkerDefaults[TournamentStartJob]
	logger *slog.Logger
	sender eventbus.Sender
}

// NewTournamentStartWorker creates a worker for tournament_start jobs.
func NewTournamentStartWorker(logger *slog.Logger, sender eventbus.Sender) *TournamentStartWorker {
	return &TournamentStartWorker{logger: logger, sender: sender}
}

func (w *TournamentStartWorker) Work(ctx context.Context, job *river.Job[TournamentStartJob]) error {
	w.logger.InfoContext(ctx, "Tournament start job fired",
		attr.TournamentID("tournament_id", job.Args.TournamentID),
		attr.Timestamp("starts_at", job.Args.StartsAt),
	)
	if err := sendLifecycle(ctx, w.sender, job.Args.TournamentID, sharedtypes.TournamentStatusActive, time.Now()); err != nil {
		return fmt.Errorf("failed to send tournament start: %w", err)
	}
	return nil
}

// TournamentEndWorker closes a tournament.
type TournamentEndWorker struct {
	river.WorkerDefaults[TournamentEndJob]
	logger *slog.Logger
	sender eventbus.Sender
}

// NewTournamentEndWorker creates a worker for tournament_end jobs.
func NewTournamentEndWorker(logger *slog.Logger, sender eventbus.Sender) *TournamentEndWorker {
	return &TournamentEndWorker{logger: logger, sender: sender}
}

func (w *TournamentEndWorker) Work(ctx context.Context, job *river.Job[TournamentEndJob]) error {
	w.logger.InfoContext(ctx, "Tournament end job fired",
		attr.TournamentID("tournament_id", job.Args.TournamentID),
		attr.Timestamp("ends_at", job.Args.EndsAt),
	)
	if err := sendLifecycle(ctx, w.sender, job.Args.TournamentID, sharedtypes.TournamentStatusEnded, time.Now()); err != nil {
		return fmt.Errorf("failed to send tournament end: %w", err)
	}
	return nil
}
