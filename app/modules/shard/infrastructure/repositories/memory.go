package sharddb

import (
	"context"
	"sort"
	"sync"

	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
	"github.com/uptrace/bun"
)

// MemoryRepository keeps shard states in process memory. Reads and writes
// go through deep copies, matching the isolation of a database row.
type MemoryRepository struct {
	mu     sync.RWMutex
	states map[sharedtypes.ShardID]*ShardState
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{states: make(map[sharedtypes.ShardID]*ShardState)}
}

func (r *MemoryRepository) Get(_ context.Context, _ bun.IDB, shardID sharedtypes.ShardID) (*ShardState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.states[shardID]
	if !ok {
		return nil, ErrNotFound
	}
	return state.Clone(), nil
}

func (r *MemoryRepository) Save(_ context.Context, _ bun.IDB, state *ShardState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[state.ShardID] = state.Clone()
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, _ bun.IDB, shardID sharedtypes.ShardID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, shardID)
	return nil
}

func (r *MemoryRepository) ListByTournament(_ context.Context, _ bun.IDB, tournamentID sharedtypes.TournamentID) ([]*ShardState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*ShardState
	for _, s := range r.states {
		if s.TournamentID == tournamentID {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ShardID < out[j].ShardID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

var _ Repository = (*MemoryRepository)(nil)
