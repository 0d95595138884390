package redis_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/finlit/platform/internal/accounts/store"
	otpredis "github.com/finlit/platform/internal/accounts/store/drivers/redis"
	"github.com/finlit/platform/internal/accounts/store/storetest"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer starts a throwaway Redis and returns a client for it.
func setupRedisContainer(t *testing.T) *redis.Client {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForLog("Ready to accept connections").
			WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)
	host, err := container.Host(ctx)
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, mappedPort.Port())})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestChallengesRedisContainer(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	client := setupRedisContainer(t)

	storetest.RunOTPChallenges(t, storetest.Harness{
		New: func(t *testing.T) store.OTPChallenges {
			s := otpredis.NewChallenges(client)
			s.Prefix = "otp-" + newIdentityID(t)
			return s
		},
		NewIdentity: newIdentityID,
	})
}
