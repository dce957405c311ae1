package leaderboardservice

import (
	"context"
	"sync"

	"github.com/Black-And-White-Club/shardboard/app/eventbus"
	discoveryservice "github.com/Black-And-White-Club/shardboard/app/modules/discovery/application"
	discoverydb "github.com/Black-And-White-Club/shardboard/app/modules/discovery/infrastructure/repositories"
	leaderboardqueue "github.com/Black-And-White-Club/shardboard/app/modules/leaderboard/infrastructure/queue"
	leaderboarddb "github.com/Black-And-White-Club/shardboard/app/modules/leaderboard/infrastructure/repositories"
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
	"github.com/uptrace/bun"
)

// ------------------------
// Fake Sender
// ------------------------

type sentMessage struct {
	Topic       string
	PartitionID string
	Payload     any
}

type FakeSender struct {
	mu   sync.Mutex
	sent []sentMessage

	SendFunc func(ctx context.Context, topic, partitionID string, payload any) error
}

func NewFakeSender() *FakeSender {
	return &FakeSender{}
}

func (f *FakeSender) Send(ctx context.Context, topic string, partitionID string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendFunc != nil {
		if err := f.SendFunc(ctx, topic, partitionID, payload); err != nil {
			return err
		}
	}
	f.sent = append(f.sent, sentMessage{Topic: topic, PartitionID: partitionID, Payload: payload})
	return nil
}

func (f *FakeSender) Sent(topic string) []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMessage
	for _, m := range f.sent {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

var _ eventbus.Sender = (*FakeSender)(nil)

// ------------------------
// Fake Discovery Writer
// ------------------------

type published struct {
	Key    discoverydb.Key
	Cursor uint64
	Value  any
}

type FakeWriter struct {
	published []published

	PublishFunc func(ctx context.Context, key discoverydb.Key, cursor uint64, value any) (uint64, error)
}

func NewFakeWriter() *FakeWriter {
	return &FakeWriter{}
}

func (f *FakeWriter) Publish(ctx context.Context, key discoverydb.Key, cursor uint64, value any) (uint64, error) {
	if f.PublishFunc != nil {
		return f.PublishFunc(ctx, key, cursor, value)
	}
	f.published = append(f.published, published{Key: key, Cursor: cursor, Value: value})
	return cursor + 1, nil
}

func (f *FakeWriter) Published() []published {
	out := make([]published, len(f.published))
	copy(out, f.published)
	return out
}

var _ discoveryservice.Writer = (*FakeWriter)(nil)

// ------------------------
// Fake Scheduler
// ------------------------

type FakeScheduler struct {
	trace []string

	ScheduleFunc func(ctx context.Context, id sharedtypes.TournamentID, window sharedtypes.Window) error
}

func NewFakeScheduler() *FakeScheduler {
	return &FakeScheduler{trace: []string{}}
}

func (f *FakeScheduler) ScheduleLifecycle(ctx context.Context, id sharedtypes.TournamentID, window sharedtypes.Window) error {
	f.trace = append(f.trace, "ScheduleLifecycle:"+id.String())
	if f.ScheduleFunc != nil {
		return f.ScheduleFunc(ctx, id, window)
	}
	return nil
}

func (f *FakeScheduler) CancelTournamentJobs(_ context.Context, id sharedtypes.TournamentID) error {
	f.trace = append(f.trace, "CancelTournamentJobs:"+id.String())
	return nil
}

func (f *FakeScheduler) Start(context.Context) error { return nil }
func (f *FakeScheduler) Stop(context.Context) error  { return nil }

func (f *FakeScheduler) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

var _ leaderboardqueue.Scheduler = (*FakeScheduler)(nil)

// ------------------------
// Fake Leaderboard Repo
// ------------------------

// FakeLeaderboardRepo delegates to a memory repository unless a Func is set.
type FakeLeaderboardRepo struct {
	inner *leaderboarddb.MemoryRepository
	trace []string

	CreateFunc func(ctx context.Context, db bun.IDB, state *leaderboarddb.LeaderboardState) error
	SaveFunc   func(ctx context.Context, db bun.IDB, state *leaderboarddb.LeaderboardState) error
}

func NewFakeLeaderboardRepo() *FakeLeaderboardRepo {
	return &FakeLeaderboardRepo{
		inner: leaderboarddb.NewMemoryRepository(),
		trace: []string{},
	}
}

func (f *FakeLeaderboardRepo) Get(ctx context.Context, db bun.IDB, id sharedtypes.TournamentID) (*leaderboarddb.LeaderboardState, error) {
	f.trace = append(f.trace, "Get")
	return f.inner.Get(ctx, db, id)
}

func (f *FakeLeaderboardRepo) Create(ctx context.Context, db bun.IDB, state *leaderboarddb.LeaderboardState) error {
	f.trace = append(f.trace, "Create")
	if f.CreateFunc != nil {
		return f.CreateFunc(ctx, db, state)
	}
	return f.inner.Create(ctx, db, state)
}

func (f *FakeLeaderboardRepo) Delete(ctx context.Context, db bun.IDB, id sharedtypes.TournamentID) error {
	f.trace = append(f.trace, "Delete")
	return f.inner.Delete(ctx, db, id)
}

func (f *FakeLeaderboardRepo) Save(ctx context.Context, db bun.IDB, state *leaderboarddb.LeaderboardState) error {
	f.trace = append(f.trace, "Save")
	if f.SaveFunc != nil {
		return f.SaveFunc(ctx, db, state)
	}
	return f.inner.Save(ctx, db, state)
}

func (f *FakeLeaderboardRepo) List(ctx context.Context, db bun.IDB) ([]*leaderboarddb.LeaderboardState, error) {
	f.trace = append(f.trace, "List")
	return f.inner.List(ctx, db)
}

func (f *FakeLeaderboardRepo) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

var _ leaderboarddb.Repository = (*FakeLeaderboardRepo)(nil)
