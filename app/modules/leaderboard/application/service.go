package leaderboardservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/shardboard/app/eventbus"
	discoveryservice "github.com/Black-And-White-Club/shardboard/app/modules/discovery/application"
	leaderboarddomain "github.com/Black-And-White-Club/shardboard/app/modules/leaderboard/domain"
	leaderboardqueue "github.com/Black-And-White-Club/shardboard/app/modules/leaderboard/infrastructure/queue"
	leaderboarddb "github.com/Black-And-White-Club/shardboard/app/modules/leaderboard/infrastructure/repositories"
	"github.com/Black-And-White-Club/shardboard/app/observability"
	"github.com/Black-And-White-Club/shardboard/app/observability/attr"
	"github.com/Black-And-White-Club/shardboard/app/shared/results"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTriggerInterval is the cooldown between accepted trigger requests.
const DefaultTriggerInterval = 5 * time.Second

// LeaderboardService implements the Service interface.
type LeaderboardService struct {
	repo      leaderboarddb.Repository
	sender    eventbus.Sender
	discovery discoveryservice.Writer
	scheduler leaderboardqueue.Scheduler
	logger    *slog.Logger
	metrics   observability.LeaderboardMetrics
	tracer    trace.Tracer
	db        *bun.DB
	cfg       Config
}

// NewLeaderboardService creates a new LeaderboardService.
func NewLeaderboardService(
	repo leaderboarddb.Repository,
	sender eventbus.Sender,
	discovery discoveryservice.Writer,
	scheduler leaderboardqueue.Scheduler,
	logger *slog.Logger,
	metrics observability.LeaderboardMetrics,
	tracer trace.Tracer,
	db *bun.DB,
	cfg Config,
) *LeaderboardService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TriggerInterval <= 0 {
		cfg.TriggerInterval = DefaultTriggerInterval
	}
	switch {
	case cfg.PromoteAfter == 0:
		cfg.PromoteAfter = 3 * cfg.TriggerInterval
	case cfg.PromoteAfter < 0:
		cfg.PromoteAfter = 0
	}
	if cfg.PoolCapacity <= 0 {
		cfg.PoolCapacity = leaderboarddomain.DefaultPoolCapacity
	}
	return &LeaderboardService{
		repo:      repo,
		sender:    sender,
		discovery: discovery,
		scheduler: scheduler,
		logger:    logger,
		metrics:   metrics,
		tracer:    tracer,
		db:        db,
		cfg:       cfg,
	}
}

// Config returns the effective configuration.
func (s *LeaderboardService) Config() Config {
	return s.cfg
}

// -----------------------------------------------------------------------------
// Generic Helpers (Defined as functions because methods cannot have type params)
// -----------------------------------------------------------------------------

// operationFunc is the generic signature for service operation functions.
type operationFunc[S any, F any] func(ctx context.Context) (results.OperationResult[S, F], error)

// withTelemetry wraps a service operation with tracing, metrics, and panic recovery.
func withTelemetry[S any, F any](
	s *LeaderboardService,
	ctx context.Context,
	operationName string,
	identifier string,
	op operationFunc[S, F],
) (result results.OperationResult[S, F], err error) {
	var span trace.Span
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operationName, trace.WithAttributes(
			attribute.String("operation", operationName),
			attribute.String("tournament_id", identifier),
		))
	} else {
		span = trace.SpanFromContext(ctx)
	}
	defer span.End()

	if s.metrics != nil {
		s.metrics.RecordOperationAttempt(ctx, operationName, "LeaderboardService")
	}

	startTime := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordOperationDuration(ctx, operationName, "LeaderboardService", time.Since(startTime))
		}
	}()

	s.logger.DebugContext(ctx, "Operation triggered", attr.ExtractCorrelationID(ctx), attr.String("operation", operationName))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				attr.ExtractCorrelationID(ctx),
				attr.String("tournament_id", identifier),
				attr.Error(err),
			)
			if s.metrics != nil {
				s.metrics.RecordOperationFailure(ctx, operationName, "LeaderboardService")
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
			attr.String("tournament_id", identifier),
			attr.Error(wrappedErr),
		)
		if s.metrics != nil {
			s.metrics.RecordOperationFailure(ctx, operationName, "LeaderboardService")
		}
		span.RecordError(wrappedErr)
		return result, wrappedErr
	}

	if result.IsFailure() {
		s.logger.WarnContext(ctx, "Operation returned failure result",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("tournament_id", identifier),
			attr.Any("failure_payload", *result.Failure),
		)
	}

	if s.metrics != nil {
		s.metrics.RecordOperationSuccess(ctx, operationName, "LeaderboardService")
	}

	return result, nil
}

// runInTx ensures the operation runs within a transaction.
func runInTx[S any, F any](
	s *LeaderboardService,
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
