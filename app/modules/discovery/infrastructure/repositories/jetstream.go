package discoverydb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nats-io/nats.go/jetstream"
)

// DefaultBucket is the JetStream key-value bucket holding discovery entries.
const DefaultBucket = "discovery"

// KVStore stores discovery entries in a JetStream key-value bucket under
// "<publisher>.<topic>.<index>".
type KVStore struct {
	kv jetstream.KeyValue
}

// NewKVStore wraps an existing bucket.
func NewKVStore(kv jetstream.KeyValue) *KVStore {
	return &KVStore{kv: kv}
}

// OpenKVStore creates the bucket if needed and returns a store on it.
func OpenKVStore(ctx context.Context, js jetstream.JetStream, bucket string) (*KVStore, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "shardboard discovery channels",
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open discovery bucket %s: %w", bucket, err)
	}
	return NewKVStore(kv), nil
}

// Put uses Create so an occupied key fails instead of being overwritten.
func (s *KVStore) Put(ctx context.Context, key Key, index uint64, value []byte) error {
	if _, err := s.kv.Create(ctx, kvKey(key, index), value); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return ErrIndexTaken
		}
		return fmt.Errorf("failed to create discovery key: %w", err)
	}
	return nil
}

func (s *KVStore) Get(ctx context.Context, key Key, index uint64) ([]byte, error) {
	entry, err := s.kv.Get(ctx, kvKey(key, index))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotPresent
		}
		return nil, fmt.Errorf("failed to get discovery key: %w", err)
	}
	return entry.Value(), nil
}

func kvKey(key Key, index uint64) string {
	return kvToken(string(key.Publisher)) + "." + kvToken(key.Topic) + "." + strconv.FormatUint(index, 10)
}

// kvToken escapes everything outside the JetStream key alphabet, and dots,
// so a token never spans key segments.
func kvToken(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '/':
			b.WriteRune(r)
		default:
			fmt.Fprintf(&b, "_%X_", r)
		}
	}
	return b.String()
}

var _ Store = (*KVStore)(nil)
