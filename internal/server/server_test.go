package server_test

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tommyfx/storefront/config"
	_ "github.com/tommyfx/storefront/database/migrations"
	"github.com/tommyfx/storefront/internal/server"
)

func useMemory(t *testing.T) {
	t.Helper()
	config.Set("DB_DRIVER", "sqlite")
	config.Set("DATABASE_DSN", "file::memory:")
	config.Set("REALTIME_DRIVER", "memory")
	config.Set("APP_PORT", "0")
	config.Set("GRPC_PORT", "0")
}

func TestRun_StopsOnCancel(t *testing.T) {
	useMemory(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- server.Run(ctx) }()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(server.ShutdownTimeout + 5*time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_PortInUse(t *testing.T) {
	useMemory(t)
	lis, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer lis.Close()
	config.Set("APP_PORT", strconv.Itoa(lis.Addr().(*net.TCPAddr).Port))
	t.Cleanup(func() { config.Set("APP_PORT", "0") })

	err = server.Run(context.Background())
	assert.ErrorContains(t, err, "server: http")
}
