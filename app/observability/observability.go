package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerName is the instrumentation scope for every span the service opens.
const TracerName = "github.com/Black-And-White-Club/shardboard"

// Config selects how logs and metrics are produced.
type Config struct {
	ServiceName string
	Environment string
	LogLevel    string
	LogFormat   string // json|text
	Output      io.Writer
}

// Provider owns the process-wide sinks.
type Provider struct {
	Logger     *slog.Logger
	Prometheus *prometheus.Registry
}

// Registry hands module constructors their tracer and metrics.
type Registry struct {
	Tracer             trace.Tracer
	ShardMetrics       ShardMetrics
	LeaderboardMetrics LeaderboardMetrics
	PlayerMetrics      PlayerMetrics
	DiscoveryMetrics   DiscoveryMetrics
}

// Observability bundles logging, metrics and tracing for module wiring.
type Observability struct {
	Provider *Provider
	Registry *Registry
}

// Init builds the logger and a fresh prometheus registry. Spans go to the
// global otel provider, which is a no-op unless the binary installs one.
func Init(cfg Config) Observability {
	logger := NewLogger(cfg)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := NewPrometheusMetrics(reg)

	return Observability{
		Provider: &Provider{
			Logger:     logger,
			Prometheus: reg,
		},
		Registry: &Registry{
			Tracer:             otel.Tracer(TracerName),
			ShardMetrics:       metrics,
			LeaderboardMetrics: metrics,
			PlayerMetrics:      metrics,
			DiscoveryMetrics:   metrics,
		},
	}
}

// NewNoopObservability discards logs, metrics and spans.
func NewNoopObservability() Observability {
	metrics := NewNoop()
	return Observability{
		Provider: &Provider{
			Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
			Prometheus: prometheus.NewRegistry(),
		},
		Registry: &Registry{
			Tracer:             noop.NewTracerProvider().Tracer("noop"),
			ShardMetrics:       metrics,
			LeaderboardMetrics: metrics,
			PlayerMetrics:      metrics,
			DiscoveryMetrics:   metrics,
		},
	}
}

// NewLogger builds the service logger. Development environments get text
// output, everything else JSON.
func NewLogger(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}

	var handler slog.Handler
	format := strings.ToLower(cfg.LogFormat)
	if format == "" && (cfg.Environment == "development" || cfg.Environment == "dev") {
		format = "text"
	}
	if format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	logger := slog.New(handler)
	if cfg.ServiceName != "" {
		logger = logger.With(slog.String("service", cfg.ServiceName))
	}
	if cfg.Environment != "" {
		logger = logger.With(slog.String("environment", cfg.Environment))
	}
	return logger
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
