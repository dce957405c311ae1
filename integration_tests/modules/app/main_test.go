//go:build integration

package app_test

import (
	"context"
	"os"
	"testing"

	"github.com/Black-And-White-Club/shardboard/integration_tests/testutils"
)

func TestMain(m *testing.M) {
	code := m.Run()
	testutils.ShutdownShared(context.Background())
	os.Exit(code)
}
