package discovery

import (
	"context"
	"testing"

	"github.com/Black-And-White-Club/shardboard/app/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDiscoveryModule(t *testing.T) {
	obs := observability.NewNoopObservability()

	m, err := NewDiscoveryModule(context.Background(), obs, Options{Backend: BackendMemory})
	require.NoError(t, err)
	assert.NotNil(t, m.Channel)

	_, err = NewDiscoveryModule(context.Background(), obs, Options{Backend: BackendPostgres})
	assert.Error(t, err)

	_, err = NewDiscoveryModule(context.Background(), obs, Options{Backend: BackendJetStream})
	assert.Error(t, err)

	_, err = NewDiscoveryModule(context.Background(), obs, Options{Backend: "etcd"})
	assert.Error(t, err)
}
