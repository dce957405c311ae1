package discoveryservice

import (
	"context"

	discoverydb "github.com/Black-And-White-Club/shardboard/app/modules/discovery/infrastructure/repositories"
)

// ------------------------
// Fake Store
// ------------------------

// FakeStore wraps a memory store and lets tests inject failures.
type FakeStore struct {
	inner *discoverydb.MemoryStore
	trace []string
	gets  int

	PutFunc func(ctx context.Context, key discoverydb.Key, index uint64, value []byte) error
	GetFunc func(ctx context.Context, key discoverydb.Key, index uint64) ([]byte, error)
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		inner: discoverydb.NewMemoryStore(),
		trace: []string{},
	}
}

func (f *FakeStore) record(step string) {
	f.trace = append(f.trace, step)
}

func (f *FakeStore) Put(ctx context.Context, key discoverydb.Key, index uint64, value []byte) error {
	f.record("Put")
	if f.PutFunc != nil {
		return f.PutFunc(ctx, key, index, value)
	}
	return f.inner.Put(ctx, key, index, value)
}

func (f *FakeStore) Get(ctx context.Context, key discoverydb.Key, index uint64) ([]byte, error) {
	f.record("Get")
	f.gets++
	if f.GetFunc != nil {
		return f.GetFunc(ctx, key, index)
	}
	return f.inner.Get(ctx, key, index)
}

// --- Accessors for assertions ---

func (f *FakeStore) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *FakeStore) Gets() int { return f.gets }

var _ discoverydb.Store = (*FakeStore)(nil)
