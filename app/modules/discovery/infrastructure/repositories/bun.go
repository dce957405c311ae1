package discoverydb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// Impl stores discovery entries in Postgres through bun.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a bun-backed Store.
func NewRepository(db bun.IDB) *Impl {
	return &Impl{db: db}
}

// Put inserts the entry. A conflicting primary key means the index is taken.
func (r *Impl) Put(ctx context.Context, key Key, index uint64, value []byte) error {
	entry := &Entry{
		Publisher: string(key.Publisher),
		Topic:     key.Topic,
		Index:     index,
		Value:     value,
		CreatedAt: time.Now().UTC(),
	}
	res, err := r.db.NewInsert().
		Model(entry).
		On("CONFLICT (publisher, topic, idx) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert discovery entry: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrIndexTaken
	}
	return nil
}

// Get loads the entry at index.
func (r *Impl) Get(ctx context.Context, key Key, index uint64) ([]byte, error) {
	entry := new(Entry)
	err := r.db.NewSelect().
		Model(entry).
		Where("publisher = ?", string(key.Publisher)).
		Where("topic = ?", key.Topic).
		Where("idx = ?", index).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotPresent
		}
		return nil, fmt.Errorf("failed to get discovery entry: %w", err)
	}
	return entry.Value, nil
}

var _ Store = (*Impl)(nil)
