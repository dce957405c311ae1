package discovery

import (
	"context"
	"fmt"

	discoveryservice "github.com/Black-And-White-Club/shardboard/app/modules/discovery/application"
	discoverydb "github.com/Black-And-White-Club/shardboard/app/modules/discovery/infrastructure/repositories"
	"github.com/Black-And-White-Club/shardboard/app/observability"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/uptrace/bun"
)

// Backend names accepted by NewDiscoveryModule.
const (
	BackendMemory    = "memory"
	BackendPostgres  = "postgres"
	BackendJetStream = "jetstream"
)

// Module exposes the discovery channel to the partition modules.
type Module struct {
	Channel *discoveryservice.Channel
	Store   discoverydb.Store
}

// Options selects and tunes the backing store.
type Options struct {
	Backend string
	Bucket  string
	MaxScan int
	DB      *bun.DB
	JS      jetstream.JetStream
}

// NewDiscoveryModule builds the store for opts.Backend and a channel on it.
func NewDiscoveryModule(ctx context.Context, obs observability.Observability, opts Options) (*Module, error) {
	logger := obs.Provider.Logger

	var store discoverydb.Store
	switch opts.Backend {
	case "", BackendMemory:
		store = discoverydb.NewMemoryStore()
	case BackendPostgres:
		if opts.DB == nil {
			return nil, fmt.Errorf("discovery backend %q needs a database", opts.Backend)
		}
		store = discoverydb.NewRepository(opts.DB)
	case BackendJetStream:
		if opts.JS == nil {
			return nil, fmt.Errorf("discovery backend %q needs a JetStream context", opts.Backend)
		}
		kvStore, err := discoverydb.OpenKVStore(ctx, opts.JS, opts.Bucket)
		if err != nil {
			return nil, err
		}
		store = kvStore
	default:
		return nil, fmt.Errorf("unknown discovery backend %q", opts.Backend)
	}

	logger.InfoContext(ctx, "discovery.NewDiscoveryModule initialized", "backend", opts.Backend)

	return &Module{
		Channel: discoveryservice.NewChannel(store, logger, obs.Registry.DiscoveryMetrics, obs.Registry.Tracer, opts.MaxScan),
		Store:   store,
	}, nil
}
