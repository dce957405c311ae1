package discoverydb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	key := Key{Publisher: "shard-1", Topic: "workload"}

	_, err := s.Get(ctx, key, 0)
	assert.ErrorIs(t, err, ErrNotPresent)

	require.NoError(t, s.Put(ctx, key, 0, []byte("a")))
	assert.ErrorIs(t, s.Put(ctx, key, 0, []byte("b")), ErrIndexTaken)

	got, err := s.Get(ctx, key, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), got)

	// Same index under another topic is independent.
	require.NoError(t, s.Put(ctx, Key{Publisher: "shard-1", Topic: "other"}, 0, []byte("c")))
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	key := Key{Publisher: "p", Topic: "t"}

	value := []byte("abc")
	require.NoError(t, s.Put(ctx, key, 0, value))
	value[0] = 'z'

	got, err := s.Get(ctx, key, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}
