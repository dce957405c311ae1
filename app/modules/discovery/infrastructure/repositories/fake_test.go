package discoverydb

import (
	"context"

	"github.com/nats-io/nats.go/jetstream"
)

// ------------------------
// Fake KeyValue
// ------------------------

type FakeKeyValue struct {
	jetstream.KeyValue // Embed to satisfy interface
	data               map[string][]byte
	trace              []string

	GetErr error
}

func NewFakeKeyValue() *FakeKeyValue {
	return &FakeKeyValue{
		data:  make(map[string][]byte),
		trace: []string{},
	}
}

func (f *FakeKeyValue) Create(ctx context.Context, key string, value []byte, opts ...jetstream.KVCreateOpt) (uint64, error) {
	f.trace = append(f.trace, "Create")
	if _, ok := f.data[key]; ok {
		return 0, jetstream.ErrKeyExists
	}
	f.data[key] = value
	return uint64(len(f.data)), nil
}

func (f *FakeKeyValue) Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error) {
	f.trace = append(f.trace, "Get")
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	val, ok := f.data[key]
	if !ok {
		return nil, jetstream.ErrKeyNotFound
	}
	return &FakeKeyValueEntry{value: val, key: key}, nil
}

func (f *FakeKeyValue) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

type FakeKeyValueEntry struct {
	jetstream.KeyValueEntry
	value []byte
	key   string
}

func (f *FakeKeyValueEntry) Value() []byte { return f.value }
func (f *FakeKeyValueEntry) Key() string   { return f.key }
