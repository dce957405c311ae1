package playerservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/shardboard/app/eventbus"
	discoveryservice "github.com/Black-And-White-Club/shardboard/app/modules/discovery/application"
	playerdomain "github.com/Black-And-White-Club/shardboard/app/modules/player/domain"
	playerdb "github.com/Black-And-White-Club/shardboard/app/modules/player/infrastructure/repositories"
	"github.com/Black-And-White-Club/shardboard/app/observability"
	"github.com/Black-And-White-Club/shardboard/app/observability/attr"
	"github.com/Black-And-White-Club/shardboard/app/shared/results"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTriggerInterval matches the leaderboard's default cooldown.
const DefaultTriggerInterval = 5 * time.Second

// PlayerService implements the Service interface.
type PlayerService struct {
	repo    playerdb.Repository
	sender  eventbus.Sender
	reader  discoveryservice.Reader
	engine  playerdomain.Engine
	shards  ShardProvisioner
	logger  *slog.Logger
	metrics observability.PlayerMetrics
	tracer  trace.Tracer
	db      *bun.DB
	cfg     Config
}

// NewPlayerService creates a new PlayerService. engine may be nil, in which
// case ApplyMove is refused. Without shards a tournament with no shards
// refuses new games.
func NewPlayerService(
	repo playerdb.Repository,
	sender eventbus.Sender,
	reader discoveryservice.Reader,
	engine playerdomain.Engine,
	shards ShardProvisioner,
	logger *slog.Logger,
	metrics observability.PlayerMetrics,
	tracer trace.Tracer,
	db *bun.DB,
	cfg Config,
) *PlayerService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TriggerInterval <= 0 {
		cfg.TriggerInterval = DefaultTriggerInterval
	}
	return &PlayerService{
		repo:    repo,
		sender:  sender,
		reader:  reader,
		engine:  engine,
		shards:  shards,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
		db:      db,
		cfg:     cfg,
	}
}

// Config returns the effective configuration.
func (s *PlayerService) Config() Config {
	return s.cfg
}

// -----------------------------------------------------------------------------
// Generic Helpers (Defined as functions because methods cannot have type params)
// -----------------------------------------------------------------------------

// operationFunc is the generic signature for service operation functions.
type operationFunc[S any, F any] func(ctx context.Context) (results.OperationResult[S, F], error)

// withTelemetry wraps a service operation with tracing, metrics, and panic recovery.
func withTelemetry[S any, F any](
	s *PlayerService,
	ctx context.Context,
	operationName string,
	identifier string,
	op operationFunc[S, F],
) (result results.OperationResult[S, F], err error) {
	var span trace.Span
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operationName, trace.WithAttributes(
			attribute.String("operation", operationName),
			attribute.String("player_id", identifier),
		))
	} else {
		span = trace.SpanFromContext(ctx)
	}
	defer span.End()

	if s.metrics != nil {
		s.metrics.RecordOperationAttempt(ctx, operationName, "PlayerService")
	}

	startTime := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordOperationDuration(ctx, operationName, "PlayerService", time.Since(startTime))
		}
	}()

	s.logger.DebugContext(ctx, "Operation triggered", attr.ExtractCorrelationID(ctx), attr.String("operation", operationName))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				attr.ExtractCorrelationID(ctx),
				attr.String("player_id", identifier),
				attr.Error(err),
			)
			if s.metrics != nil {
				s.metrics.RecordOperationFailure(ctx, operationName, "PlayerService")
			}
			span.RecordError(err)
			result = results.OperationResult[S, F]{}
		}
	}()

	result, err = op(ctx)

	if err != nil {
		wrappedErr := fmt.Errorf("%s: %w", operationName, err)
		s.logger.ErrorContext(ctx, "Operation failed with error",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("player_id", identifier),
			attr.Error(wrappedErr),
		)
		if s.metrics != nil {
			s.metrics.RecordOperationFailure(ctx, operationName, "PlayerService")
		}
		span.RecordError(wrappedErr)
		return result, wrappedErr
	}

	if result.IsFailure() {
		s.logger.WarnContext(ctx, "Operation returned failure result",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("player_id", identifier),
			attr.Any("failure_payload", *result.Failure),
		)
	}

	if s.metrics != nil {
		s.metrics.RecordOperationSuccess(ctx, operationName, "PlayerService")
	}

	return result, nil
}

// runInTx ensures the operation runs within a transaction.
func runInTx[S any, F any](
	s *PlayerService,
	ctx context.Context,
	fn func(ctx context.Context, db bun.IDB) (results.OperationResult[S, F], error),
) (results.OperationResult[S, F], error) {
	if s.db == nil {
		return fn(ctx, nil)
	}

	var result results.OperationResult[S, F]

	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var txErr error
		result, txErr = fn(ctx, tx)
		if txErr == nil && result.IsFailure() {
			return errFailureRollback
		}
		return txErr
	})
	if errors.Is(err, errFailureRollback) {
		return result, nil
	}

	return result, err
}

var errFailureRollback = errors.New("operation failed, rolling back")

// unwrap turns an operation result into a plain error.
func unwrap[S any](result results.OperationResult[S, error], err error) (S, error) {
	return results.Unwrap(result, err)
}
