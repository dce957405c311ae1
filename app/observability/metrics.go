package observability

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// OperationMetrics records the lifecycle of a service operation.
type OperationMetrics interface {
	RecordOperationAttempt(ctx context.Context, operation, service string)
	RecordOperationSuccess(ctx context.Context, operation, service string)
	RecordOperationFailure(ctx context.Context, operation, service string)
	RecordOperationDuration(ctx context.Context, operation, service string, duration time.Duration)
}

// ShardMetrics covers shard buffering and flush.
type ShardMetrics interface {
	OperationMetrics
	RecordFlush(ctx context.Context, reason string, entries int)
	RecordFlushFailure(ctx context.Context)
	RecordWorkloadSample(ctx context.Context)
	RecordRejectedMessage(ctx context.Context, kind string)
}

// LeaderboardMetrics covers merge, registry and the triggerer pool.
type LeaderboardMetrics interface {
	OperationMetrics
	RecordMerge(ctx context.Context, improved, ignored int)
	RecordTriggerDecision(ctx context.Context, accepted bool, reason string)
	RecordPromotion(ctx context.Context)
	RecordDescriptorPublished(ctx context.Context)
	RecordRejectedMessage(ctx context.Context, kind string)
}

// PlayerMetrics covers shard selection and the triggerer client.
type PlayerMetrics interface {
	OperationMetrics
	RecordShardSelection(ctx context.Context, strategy string)
	RecordTriggerSent(ctx context.Context)
	RecordRejectedMessage(ctx context.Context, kind string)
}

// DiscoveryMetrics covers discovery channel reads and writes.
type DiscoveryMetrics interface {
	RecordPublish(ctx context.Context, topic string)
	RecordRead(ctx context.Context, topic string, found bool, scanned int)
}

// PrometheusMetrics implements every module metrics interface on one registry.
type PrometheusMetrics struct {
	operationAttempts  *prometheus.CounterVec
	operationSuccesses *prometheus.CounterVec
	operationFailures  *prometheus.CounterVec
	operationDuration  *prometheus.HistogramVec

	flushes          *prometheus.CounterVec
	flushEntries     prometheus.Histogram
	flushFailures    prometheus.Counter
	workloadSamples  prometheus.Counter
	rejectedMessages *prometheus.CounterVec

	mergeEntries        *prometheus.CounterVec
	triggerDecisions    *prometheus.CounterVec
	promotions          prometheus.Counter
	descriptorPublishes prometheus.Counter

	shardSelections *prometheus.CounterVec
	triggersSent    prometheus.Counter

	discoveryPublishes *prometheus.CounterVec
	discoveryReads     *prometheus.CounterVec
	discoveryScanned   prometheus.Histogram
}

// NewPrometheusMetrics registers the service collectors on reg.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	f := promauto.With(reg)
	return &PrometheusMetrics{
		operationAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shardboard",
			Name:      "operation_attempts_total",
			Help:      "Service operations started.",
		}, []string{"operation", "service"}),
		operationSuccesses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shardboard",
			Name:      "operation_successes_total",
			Help:      "Service operations that completed.",
		}, []string{"operation", "service"}),
		operationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shardboard",
			Name:      "operation_failures_total",
			Help:      "Service operations that returned an error.",
		}, []string{"operation", "service"}),
		operationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shardboard",
			Name:      "operation_duration_seconds",
			Help:      "Service operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "service"}),
		flushes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shardboard",
			Subsystem: "shard",
			Name:      "flushes_total",
			Help:      "Flush reports handed to the leaderboard, by reason.",
		}, []string{"reason"}),
		flushEntries: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "shardboard",
			Subsystem: "shard",
			Name:      "flush_entries",
			Help:      "Players carried per flush report.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		flushFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: "shardboard",
			Subsystem: "shard",
			Name:      "flush_failures_total",
			Help:      "Flushes that could not be handed to the outbound sender.",
		}),
		workloadSamples: f.NewCounter(prometheus.CounterOpts{
			Namespace: "shardboard",
			Subsystem: "shard",
			Name:      "workload_samples_total",
			Help:      "Workload samples published.",
		}),
		rejectedMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shardboard",
			Name:      "rejected_messages_total",
			Help:      "Partition messages dropped at the handler boundary.",
		}, []string{"kind"}),
		mergeEntries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shardboard",
			Subsystem: "leaderboard",
			Name:      "merge_entries_total",
			Help:      "Flush entries merged, split by whether they improved a best score.",
		}, []string{"outcome"}),
		triggerDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shardboard",
			Subsystem: "leaderboard",
			Name:      "trigger_decisions_total",
			Help:      "Aggregation trigger requests by outcome.",
		}, []string{"accepted", "reason"}),
		promotions: f.NewCounter(prometheus.CounterOpts{
			Namespace: "shardboard",
			Subsystem: "leaderboard",
			Name:      "triggerer_promotions_total",
			Help:      "Backups promoted to primary triggerer.",
		}),
		descriptorPublishes: f.NewCounter(prometheus.CounterOpts{
			Namespace: "shardboard",
			Subsystem: "leaderboard",
			Name:      "descriptor_publishes_total",
			Help:      "Tournament descriptors written to discovery.",
		}),
		shardSelections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shardboard",
			Subsystem: "player",
			Name:      "shard_selections_total",
			Help:      "Shard selections by strategy.",
		}, []string{"strategy"}),
		triggersSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: "shardboard",
			Subsystem: "player",
			Name:      "trigger_requests_sent_total",
			Help:      "Aggregation trigger requests sent by pool members.",
		}),
		discoveryPublishes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shardboard",
			Subsystem: "discovery",
			Name:      "publishes_total",
			Help:      "Values appended to discovery channels.",
		}, []string{"topic"}),
		discoveryReads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shardboard",
			Subsystem: "discovery",
			Name:      "reads_total",
			Help:      "Latest-value reads by whether anything new was found.",
		}, []string{"topic", "found"}),
		discoveryScanned: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "shardboard",
			Subsystem: "discovery",
			Name:      "read_scanned_entries",
			Help:      "Entries ascended per latest-value read.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
}

func (m *PrometheusMetrics) RecordOperationAttempt(_ context.Context, operation, service string) {
	m.operationAttempts.WithLabelValues(operation, service).Inc()
}

func (m *PrometheusMetrics) RecordOperationSuccess(_ context.Context, operation, service string) {
	m.operationSuccesses.WithLabelValues(operation, service).Inc()
}

func (m *PrometheusMetrics) RecordOperationFailure(_ context.Context, operation, service string) {
	m.operationFailures.WithLabelValues(operation, service).Inc()
}

func (m *PrometheusMetrics) RecordOperationDuration(_ context.Context, operation, service string, duration time.Duration) {
	m.operationDuration.WithLabelValues(operation, service).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordFlush(_ context.Context, reason string, entries int) {
	m.flushes.WithLabelValues(reason).Inc()
	m.flushEntries.Observe(float64(entries))
}

func (m *PrometheusMetrics) RecordFlushFailure(_ context.Context) { m.flushFailures.Inc() }

func (m *PrometheusMetrics) RecordWorkloadSample(_ context.Context) { m.workloadSamples.Inc() }

func (m *PrometheusMetrics) RecordRejectedMessage(_ context.Context, kind string) {
	m.rejectedMessages.WithLabelValues(kind).Inc()
}

func (m *PrometheusMetrics) RecordMerge(_ context.Context, improved, ignored int) {
	m.mergeEntries.WithLabelValues("improved").Add(float64(improved))
	m.mergeEntries.WithLabelValues("ignored").Add(float64(ignored))
}

func (m *PrometheusMetrics) RecordTriggerDecision(_ context.Context, accepted bool, reason string) {
	m.triggerDecisions.WithLabelValues(strconv.FormatBool(accepted), reason).Inc()
}

func (m *PrometheusMetrics) RecordPromotion(_ context.Context) { m.promotions.Inc() }

func (m *PrometheusMetrics) RecordDescriptorPublished(_ context.Context) { m.descriptorPublishes.Inc() }

func (m *PrometheusMetrics) RecordShardSelection(_ context.Context, strategy string) {
	m.shardSelections.WithLabelValues(strategy).Inc()
}

func (m *PrometheusMetrics) RecordTriggerSent(_ context.Context) { m.triggersSent.Inc() }

func (m *PrometheusMetrics) RecordPublish(_ context.Context, topic string) {
	m.discoveryPublishes.WithLabelValues(topic).Inc()
}

func (m *PrometheusMetrics) RecordRead(_ context.Context, topic string, found bool, scanned int) {
	m.discoveryReads.WithLabelValues(topic, strconv.FormatBool(found)).Inc()
	m.discoveryScanned.Observe(float64(scanned))
}

// NoopMetrics discards everything. Used by tests and when metrics are off.
type NoopMetrics struct{}

// NewNoop returns a metrics sink that records nothing.
func NewNoop() *NoopMetrics { return &NoopMetrics{} }

func (*NoopMetrics) RecordOperationAttempt(context.Context, string, string)                 {}
func (*NoopMetrics) RecordOperationSuccess(context.Context, string, string)                 {}
func (*NoopMetrics) RecordOperationFailure(context.Context, string, string)                 {}
func (*NoopMetrics) RecordOperationDuration(context.Context, string, string, time.Duration) {}
func (*NoopMetrics) RecordFlush(context.Context, string, int)                               {}
func (*NoopMetrics) RecordFlushFailure(context.Context)                                     {}
func (*NoopMetrics) RecordWorkloadSample(context.Context)                                   {}
func (*NoopMetrics) RecordRejectedMessage(context.Context, string)                          {}
func (*NoopMetrics) RecordMerge(context.Context, int, int)                                  {}
func (*NoopMetrics) RecordTriggerDecision(context.Context, bool, string)                    {}
func (*NoopMetrics) RecordPromotion(context.Context)                                        {}
func (*NoopMetrics) RecordDescriptorPublished(context.Context)                              {}
func (*NoopMetrics) RecordShardSelection(context.Context, string)                           {}
func (*NoopMetrics) RecordTriggerSent(context.Context)                                      {}
func (*NoopMetrics) RecordPublish(context.Context, string)                                  {}
func (*NoopMetrics) RecordRead(context.Context, string, bool, int)                          {}

var (
	_ ShardMetrics       = (*PrometheusMetrics)(nil)
	_ LeaderboardMetrics = (*PrometheusMetrics)(nil)
	_ PlayerMetrics      = (*PrometheusMetrics)(nil)
	_ DiscoveryMetrics   = (*PrometheusMetrics)(nil)
	_ ShardMetrics       = (*NoopMetrics)(nil)
	_ LeaderboardMetrics = (*NoopMetrics)(nil)
	_ PlayerMetrics      = (*NoopMetrics)(nil)
	_ DiscoveryMetrics   = (*NoopMetrics)(nil)
)
