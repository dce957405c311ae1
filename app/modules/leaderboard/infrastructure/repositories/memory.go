package leaderboarddb

import (
	"context"
	"sort"
	"sync"

	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
	"github.com/uptrace/bun"
)

// MemoryRepository keeps leaderboard states in process memory behind deep
// copies.
type MemoryRepository struct {
	mu     sync.RWMutex
	states map[sharedtypes.TournamentID]*LeaderboardState
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{states: make(map[sharedtypes.TournamentID]*LeaderboardState)}
}

func (r *MemoryRepository) Get(_ context.Context, _ bun.IDB, id sharedtypes.TournamentID) (*LeaderboardState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.states[id]
	if !ok {
		return nil, ErrNotFound
	}
	return state.Clone(), nil
}

func (r *MemoryRepository) Create(_ context.Context, _ bun.IDB, state *LeaderboardState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.states[state.TournamentID]; ok {
		return ErrAlreadyExists
	}
	r.states[state.TournamentID] = state.Clone()
	return nil
}

func (r *MemoryRepository) Save(_ context.Context, _ bun.IDB, state *LeaderboardState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.states[state.TournamentID]; !ok {
		return ErrNotFound
	}
	r.states[state.TournamentID] = state.Clone()
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, _ bun.IDB, id sharedtypes.TournamentID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, id)
	return nil
}

func (r *MemoryRepository) List(_ context.Context, _ bun.IDB) ([]*LeaderboardState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*LeaderboardState, 0, len(r.states))
	for _, s := range r.states {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pinned != out[j].Pinned {
			return out[i].Pinned
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].TournamentID < out[j].TournamentID
	})
	return out, nil
}

var _ Repository = (*MemoryRepository)(nil)
