package leaderboardqueue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Black-And-White-Club/shardboard/app/eventbus"
	"github.com/Black-And-White-Club/shardboard/app/observability/attr"
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
)

// Ensure TimerScheduler implements Scheduler
var _ Scheduler = (*TimerScheduler)(nil)

// TimerScheduler fires lifecycle transitions from in-process timers. Jobs do
// not survive a restart; it backs the memory storage mode.
type TimerScheduler struct {
	logger *slog.Logger
	sender eventbus.Sender
	now    func() time.Time
	lead   time.Duration

	mu      sync.Mutex
	ctx     context.Context
	timers  map[sharedtypes.TournamentID][]*time.Timer
	stopped bool
	wg      sync.WaitGroup
}

// NewTimerScheduler creates an in-process scheduler.
func NewTimerScheduler(logger *slog.Logger, sender eventbus.Sender) *TimerScheduler {
	return &TimerScheduler{
		logger: logger,
		sender: sender,
		now:    time.Now,
		lead:   minLead,
		ctx:    context.Background(),
		timers: make(map[sharedtypes.TournamentID][]*time.Timer),
	}
}

// Start records ctx as the parent of every send.
func (s *TimerScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = context.WithoutCancel(ctx)
	return nil
}

// Stop cancels all pending timers and waits for running sends.
func (s *TimerScheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	s.stopped = true
	for id, timers := range s.timers {
		for _, t := range timers {
			if t.Stop() {
				s.wg.Done()
			}
		}
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

func (s *TimerScheduler) ScheduleLifecycle(_ context.Context, tournamentID sharedtypes.TournamentID, window sharedtypes.Window) error {
	now := s.now()
	if due(window.Start, now, s.lead) {
		s.schedule(tournamentID, window.Start.Time().Sub(now), sharedtypes.TournamentStatusActive)
	}
	if due(window.End, now, s.lead) {
		s.schedule(tournamentID, window.End.Time().Sub(now), sharedtypes.TournamentStatusEnded)
	}
	return nil
}

func (s *TimerScheduler) schedule(id sharedtypes.TournamentID, delay time.Duration, status sharedtypes.TournamentStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	s.wg.Add(1)
	t := time.AfterFunc(delay, func() {
		defer s.wg.Done()
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()

		if err := sendLifecycle(ctx, s.sender, id, status, s.now()); err != nil {
			s.logger.ErrorContext(ctx, "Failed to send lifecycle transition",
				attr.TournamentID("tournament_id", id),
				attr.String("status", string(status)),
				attr.Error(err),
			)
			return
		}
		s.logger.InfoContext(ctx, "Lifecycle transition sent",
			attr.TournamentID("tournament_id", id),
			attr.String("status", string(status)),
		)
	})
	s.timers[id] = append(s.timers[id], t)
	s.logger.Info("Lifecycle timer scheduled",
		attr.TournamentID("tournament_id", id),
		attr.String("status", string(status)),
		attr.Duration("delay", delay),
	)
}

// CancelTournamentJobs stops the pending timers of a tournament.
func (s *TimerScheduler) CancelTournamentJobs(_ context.Context, tournamentID sharedtypes.TournamentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.timers[tournamentID] {
		if t.Stop() {
			s.wg.Done()
		}
	}
	delete(s.timers, tournamentID)
	return nil
}
