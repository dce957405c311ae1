package playerdb

import (
	"context"
	"slices"
	"sync"

	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
	"github.com/uptrace/bun"
)

// MemoryRepository keeps player states in process memory behind deep copies.
type MemoryRepository struct {
	mu     sync.RWMutex
	states map[sharedtypes.PlayerID]*PlayerState
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{states: make(map[sharedtypes.PlayerID]*PlayerState)}
}

func (r *MemoryRepository) Get(_ context.Context, _ bun.IDB, id sharedtypes.PlayerID) (*PlayerState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.states[id]
	if !ok {
		return nil, ErrNotFound
	}
	return state.Clone(), nil
}

func (r *MemoryRepository) Save(_ context.Context, _ bun.IDB, state *PlayerState) error {
	state.Ensure()
	state.CountActive()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[state.PlayerID] = state.Clone()
	return nil
}

func (r *MemoryRepository) ListActive(_ context.Context, _ bun.IDB) ([]sharedtypes.PlayerID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []sharedtypes.PlayerID
	for id, s := range r.states {
		if s.ActiveGames > 0 {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out, nil
}

var _ Repository = (*MemoryRepository)(nil)
