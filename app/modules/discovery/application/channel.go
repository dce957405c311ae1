package discoveryservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	discoverydb "github.com/Black-And-White-Club/shardboard/app/modules/discovery/infrastructure/repositories"
	"github.com/Black-And-White-Club/shardboard/app/observability"
	"github.com/Black-And-White-Club/shardboard/app/observability/attr"
	"github.com/Black-And-White-Club/shardboard/app/shared/apperrors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultMaxScan bounds the storage reads of one TryReadLatest call.
	DefaultMaxScan = 64
	// DefaultMaxSkip bounds how far Publish walks past taken indices.
	DefaultMaxSkip = 16
)

// Latest is the newest value a reader found.
type Latest struct {
	Value []byte
	// Index is where Value was read from.
	Index uint64
	// Cursor is where the next read should start.
	Cursor uint64
}

// Writer appends facts to a publisher's channel.
type Writer interface {
	// Publish writes value at cursor and returns the cursor to use next.
	Publish(ctx context.Context, key discoverydb.Key, cursor uint64, value any) (uint64, error)
}

// Reader polls a channel for its most recent fact.
type Reader interface {
	// TryReadLatest returns the newest value at or after cursor. ok is false
	// when nothing new was published; that is not an error.
	TryReadLatest(ctx context.Context, key discoverydb.Key, cursor uint64) (Latest, bool, error)
}

// ReadWriter both publishes and polls.
type ReadWriter interface {
	Writer
	Reader
}

// Channel implements Writer and Reader on a Store.
//
// A publisher writes indices 0, 1, 2, ... without gaps, so the present
// indices of a channel always form a prefix. Readers rely on that to find
// the newest entry with a galloping search instead of a linear walk.
type Channel struct {
	store   discoverydb.Store
	logger  *slog.Logger
	metrics observability.DiscoveryMetrics
	tracer  trace.Tracer
	maxScan int
	maxSkip int
}

// NewChannel creates a Channel. Zero limits take the defaults.
func NewChannel(
	store discoverydb.Store,
	logger *slog.Logger,
	metrics observability.DiscoveryMetrics,
	tracer trace.Tracer,
	maxScan int,
) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	if maxScan <= 0 {
		maxScan = DefaultMaxScan
	}
	return &Channel{
		store:   store,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
		maxScan: maxScan,
		maxSkip: DefaultMaxSkip,
	}
}

// Publish JSON-encodes value and stores it at cursor. If the index is taken
// (a previous attempt wrote it before its partition state was saved) it
// moves forward so indices keep increasing.
func (c *Channel) Publish(ctx context.Context, key discoverydb.Key, cursor uint64, value any) (uint64, error) {
	ctx, span := c.tracer.Start(ctx, "Discovery.Publish", trace.WithAttributes(
		attribute.String("discovery.key", key.String()),
		attribute.Int64("discovery.cursor", int64(cursor)),
	))
	defer span.End()

	if key.Publisher == "" || key.Topic == "" {
		return cursor, apperrors.Validation("discovery key %q is incomplete", key.String())
	}

	data, err := json.Marshal(value)
	if err != nil {
		return cursor, fmt.Errorf("failed to encode discovery value: %w", err)
	}

	for attempt := 0; attempt <= c.maxSkip; attempt++ {
		index := cursor + uint64(attempt)
		err := c.store.Put(ctx, key, index, data)
		if err == nil {
			if c.metrics != nil {
				c.metrics.RecordPublish(ctx, key.Topic)
			}
			return index + 1, nil
		}
		if !errors.Is(err, discoverydb.ErrIndexTaken) {
			span.RecordError(err)
			return cursor, apperrors.State("discovery put", err)
		}
		c.logger.WarnContext(ctx, "Discovery index taken, skipping forward",
			attr.String("key", key.String()),
			attr.Uint64("index", index),
		)
	}

	return cursor, apperrors.State("discovery put", fmt.Errorf("no free index within %d of %d", c.maxSkip, cursor))
}

// TryReadLatest finds the newest value at or after cursor.
func (c *Channel) TryReadLatest(ctx context.Context, key discoverydb.Key, cursor uint64) (Latest, bool, error) {
	ctx, span := c.tracer.Start(ctx, "Discovery.TryReadLatest", trace.WithAttributes(
		attribute.String("discovery.key", key.String()),
		attribute.Int64("discovery.cursor", int64(cursor)),
	))
	defer span.End()

	scanned := 0
	get := func(index uint64) ([]byte, bool, error) {
		scanned++
		v, err := c.store.Get(ctx, key, index)
		if errors.Is(err, discoverydb.ErrNotPresent) {
			return nil, false, nil
		}
		if err != nil {
			span.RecordError(err)
			return nil, false, apperrors.State("discovery get", err)
		}
		return v, true, nil
	}

	record := func(found bool) {
		if c.metrics != nil {
			c.metrics.RecordRead(ctx, key.Topic, found, scanned)
		}
	}

	value, ok, err := get(cursor)
	if err != nil {
		return Latest{Cursor: cursor}, false, err
	}
	if !ok {
		record(false)
		return Latest{Cursor: cursor}, false, nil
	}

	// Gallop forward until a miss, then binary search back to the last hit.
	lo, loValue := cursor, value
	var hi uint64
	bounded := false
	for step := uint64(1); scanned < c.maxScan; step *= 2 {
		probe := lo + step
		v, ok, err := get(probe)
		if err != nil {
			return Latest{Cursor: cursor}, false, err
		}
		if !ok {
			hi, bounded = probe, true
			break
		}
		lo, loValue = probe, v
	}

	for bounded && hi-lo > 1 && scanned < c.maxScan {
		mid := lo + (hi-lo)/2
		v, ok, err := get(mid)
		if err != nil {
			return Latest{Cursor: cursor}, false, err
		}
		if ok {
			lo, loValue = mid, v
		} else {
			hi = mid
		}
	}

	record(true)
	return Latest{Value: loValue, Index: lo, Cursor: lo + 1}, true, nil
}

// ReadLatest is TryReadLatest with the value decoded into T.
func ReadLatest[T any](ctx context.Context, r Reader, key discoverydb.Key, cursor uint64) (T, uint64, bool, error) {
	var out T
	latest, ok, err := r.TryReadLatest(ctx, key, cursor)
	if err != nil || !ok {
		return out, latest.Cursor, false, err
	}
	if err := json.Unmarshal(latest.Value, &out); err != nil {
		return out, cursor, false, apperrors.State("discovery decode", err)
	}
	return out, latest.Cursor, true, nil
}

var (
	_ Writer = (*Channel)(nil)
	_ Reader = (*Channel)(nil)

	_ ReadWriter = (*Channel)(nil)
)
