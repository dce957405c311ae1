package shardservice

import (
	"context"
	"sync"

	"github.com/Black-And-White-Club/shardboard/app/eventbus"
	discoveryservice "github.com/Black-And-White-Club/shardboard/app/modules/discovery/application"
	discoverydb "github.com/Black-And-White-Club/shardboard/app/modules/discovery/infrastructure/repositories"
	sharddb "github.com/Black-And-White-Club/shardboard/app/modules/shard/infrastructure/repositories"
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
	mu    sync.Mutex
	sent  []sentMessage
	trace []string

	SendFunc func(ctx context.Context, topic, partitionID string, payload any) error
}

func NewFakeSender() *FakeSender {
	return &FakeSender{trace: []string{}}
}

func (f *FakeSender) Send(ctx context.Context, topic string, partitionID string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, topic)
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

func (f *FakeSender) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.trace))
	copy(out, f.trace)
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
// Fake Shard Repo
// ------------------------

// FakeShardRepo delegates to a memory repository unless a Func is set.
type FakeShardRepo struct {
	inner *sharddb.MemoryRepository
	trace []string

	GetFunc  func(ctx context.Context, db bun.IDB, shardID sharedtypes.ShardID) (*sharddb.ShardState, error)
	SaveFunc func(ctx context.Context, db bun.IDB, state *sharddb.ShardState) error
}

func NewFakeShardRepo() *FakeShardRepo {
	return &FakeShardRepo{
		inner: sharddb.NewMemoryRepository(),
		trace: []string{},
	}
}

func (f *FakeShardRepo) record(step string) {
	f.trace = append(f.trace, step)
}

func (f *FakeShardRepo) Get(ctx context.Context, db bun.IDB, shardID sharedtypes.ShardID) (*sharddb.ShardState, error) {
	f.record("Get")
	if f.GetFunc != nil {
		return f.GetFunc(ctx, db, shardID)
	}
	return f.inner.Get(ctx, db, shardID)
}

func (f *FakeShardRepo) Save(ctx context.Context, db bun.IDB, state *sharddb.ShardState) error {
	f.record("Save")
	if f.SaveFunc != nil {
		return f.SaveFunc(ctx, db, state)
	}
	return f.inner.Save(ctx, db, state)
}

func (f *FakeShardRepo) Delete(ctx context.Context, db bun.IDB, shardID sharedtypes.ShardID) error {
	f.record("Delete")
	return f.inner.Delete(ctx, db, shardID)
}

func (f *FakeShardRepo) ListByTournament(ctx context.Context, db bun.IDB, tournamentID sharedtypes.TournamentID) ([]*sharddb.ShardState, error) {
	f.record("ListByTournament")
	return f.inner.ListByTournament(ctx, db, tournamentID)
}

func (f *FakeShardRepo) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

var _ sharddb.Repository = (*FakeShardRepo)(nil)
