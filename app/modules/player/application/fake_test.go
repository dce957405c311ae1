package playerservice

import (
	"context"
	"sync"

	"github.com/Black-And-White-Club/shardboard/app/eventbus"
	playerdomain "github.com/Black-And-White-Club/shardboard/app/modules/player/domain"
	playerdb "github.com/Black-And-White-Club/shardboard/app/modules/player/infrastructure/repositories"
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
// Fake Engine
// ------------------------

// FakeEngine adds one to the board per move and scores ten per move. The
// game is over once the board reaches OverAt.
type FakeEngine struct {
	OverAt playerdomain.Board

	ApplyFunc func(board playerdomain.Board, dir playerdomain.Direction) (playerdomain.Board, uint64, bool, error)
}

func (f *FakeEngine) ApplyMove(board playerdomain.Board, dir playerdomain.Direction) (playerdomain.Board, uint64, bool, error) {
	if f.ApplyFunc != nil {
		return f.ApplyFunc(board, dir)
	}
	next := board + 1
	return next, uint64(next) * 10, f.OverAt != 0 && next >= f.OverAt, nil
}

var _ playerdomain.Engine = (*FakeEngine)(nil)

// ------------------------
// Fake Shard Provisioner
// ------------------------

type FakeShardProvisioner struct {
	trace []string

	ProvisionFunc func(ctx context.Context, shardID sharedtypes.ShardID, tournamentID sharedtypes.TournamentID, now sharedtypes.Timestamp) error
}

func (f *FakeShardProvisioner) ProvisionShard(ctx context.Context, shardID sharedtypes.ShardID, tournamentID sharedtypes.TournamentID, now sharedtypes.Timestamp) error {
	f.trace = append(f.trace, "ProvisionShard:"+shardID.String()+"@"+tournamentID.String())
	if f.ProvisionFunc != nil {
		return f.ProvisionFunc(ctx, shardID, tournamentID, now)
	}
	return nil
}

func (f *FakeShardProvisioner) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

var _ ShardProvisioner = (*FakeShardProvisioner)(nil)

// ------------------------
// Fake Player Repo
// ------------------------

// FakePlayerRepo delegates to a memory repository unless a Func is set.
type FakePlayerRepo struct {
	inner *playerdb.MemoryRepository
	trace []string

	SaveFunc func(ctx context.Context, db bun.IDB, state *playerdb.PlayerState) error
}

func NewFakePlayerRepo() *FakePlayerRepo {
	return &FakePlayerRepo{
		inner: playerdb.NewMemoryRepository(),
		trace: []string{},
	}
}

func (f *FakePlayerRepo) Get(ctx context.Context, db bun.IDB, id sharedtypes.PlayerID) (*playerdb.PlayerState, error) {
	f.trace = append(f.trace, "Get")
	return f.inner.Get(ctx, db, id)
}

func (f *FakePlayerRepo) Save(ctx context.Context, db bun.IDB, state *playerdb.PlayerState) error {
	f.trace = append(f.trace, "Save")
	if f.SaveFunc != nil {
		return f.SaveFunc(ctx, db, state)
	}
	return f.inner.Save(ctx, db, state)
}

func (f *FakePlayerRepo) ListActive(ctx context.Context, db bun.IDB) ([]sharedtypes.PlayerID, error) {
	f.trace = append(f.trace, "ListActive")
	return f.inner.ListActive(ctx, db)
}

func (f *FakePlayerRepo) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

var _ playerdb.Repository = (*FakePlayerRepo)(nil)
