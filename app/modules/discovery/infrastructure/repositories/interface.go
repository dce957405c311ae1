package discoverydb

import (
	"context"
	"errors"

	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
)

var (
	// ErrNotPresent is returned when nothing was published at an index yet.
	ErrNotPresent = errors.New("discovery entry not present")

	// ErrIndexTaken is returned when a publisher writes to an index that
	// already holds a value.
	ErrIndexTaken = errors.New("discovery index already taken")
)

// Key names one discovery channel: a publisher and a topic.
type Key struct {
	Publisher sharedtypes.PartitionID
	Topic     string
}

func (k Key) String() string {
	return string(k.Publisher) + "/" + k.Topic
}

// Store is the append-only backing storage of discovery channels. Entries are
// immutable once written.
type Store interface {
	// Put writes value at index. It fails with ErrIndexTaken when the index
	// is already occupied.
	Put(ctx context.Context, key Key, index uint64, value []byte) error

	// Get returns the value at index or ErrNotPresent.
	Get(ctx context.Context, key Key, index uint64) ([]byte, error)
}
