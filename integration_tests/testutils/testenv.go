//go:build integration

// Package testutils shares one Postgres and one NATS container per test
// binary.
package testutils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Black-And-White-Club/shardboard/app"
	"github.com/Black-And-White-Club/shardboard/integration_tests/containers"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/uptrace/bun"
)

// TestEnvironment holds the containers and the connections to them.
type TestEnvironment struct {
	Ctx           context.Context
	PgContainer   *postgres.PostgresContainer
	NatsContainer testcontainers.Container
	DSN           string
	NatsURL       string
	DB            *bun.DB
	NatsConn      *nats.Conn
	JetStream     jetstream.JetStream
}

var (
	sharedEnv     *TestEnvironment
	sharedEnvErr  error
	sharedEnvOnce sync.Once
)

// GetOrCreateTestEnv starts the containers on first use and migrates the
// schema. Later calls return the same environment.
func GetOrCreateTestEnv(t *testing.T) *TestEnvironment {
	t.Helper()
	sharedEnvOnce.Do(func() {
		sharedEnv, sharedEnvErr = newTestEnvironment(context.Background())
	})
	if sharedEnvErr != nil {
		t.Fatalf("failed to set up test environment: %v", sharedEnvErr)
	}
	return sharedEnv
}

func newTestEnvironment(ctx context.Context) (*TestEnvironment, error) {
	env := &TestEnvironment{Ctx: ctx}

	pgContainer, dsn, err := containers.SetupPostgresContainer(ctx)
	if err != nil {
		return nil, err
	}
	env.PgContainer, env.DSN = pgContainer, dsn

	natsContainer, natsURL, err := containers.SetupNatsContainer(ctx)
	if err != nil {
		env.Shutdown(ctx)
		return nil, err
	}
	env.NatsContainer, env.NatsURL = natsContainer, natsURL

	db, err := app.OpenDB(ctx, dsn)
	if err != nil {
		env.Shutdown(ctx)
		return nil, err
	}
	env.DB = db

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := app.MigrateAll(ctx, db, dsn, logger); err != nil {
		env.Shutdown(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	nc, err := nats.Connect(natsURL, nats.Timeout(10*time.Second))
	if err != nil {
		env.Shutdown(ctx)
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	env.NatsConn = nc

	js, err := jetstream.New(nc)
	if err != nil {
		env.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	env.JetStream = js
	return env, nil
}

// ResetDatabase empties every module table.
func (env *TestEnvironment) ResetDatabase(t *testing.T) {
	t.Helper()
	_, err := env.DB.ExecContext(env.Ctx,
		"TRUNCATE shard_states, leaderboard_states, player_states, discovery_entries")
	if err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
}

// ResetJetStream deletes every stream and key-value bucket.
func (env *TestEnvironment) ResetJetStream(t *testing.T) {
	t.Helper()
	streams := env.JetStream.StreamNames(env.Ctx)
	var names []string
	for name := range streams.Name() {
		names = append(names, name)
	}
	for _, name := range names {
		if err := env.JetStream.DeleteStream(env.Ctx, name); err != nil {
			t.Fatalf("failed to delete stream %s: %v", name, err)
		}
	}
}

// Shutdown closes connections and terminates the containers.
func (env *TestEnvironment) Shutdown(ctx context.Context) {
	if env == nil {
		return
	}
	if env.NatsConn != nil {
		env.NatsConn.Close()
	}
	if env.DB != nil {
		_ = env.DB.Close()
	}
	if env.NatsContainer != nil {
		_ = env.NatsContainer.Terminate(ctx)
	}
	if env.PgContainer != nil {
		_ = env.PgContainer.Terminate(ctx)
	}
}

// ShutdownShared tears down the shared environment. Call it from TestMain.
func ShutdownShared(ctx context.Context) {
	sharedEnv.Shutdown(ctx)
}
