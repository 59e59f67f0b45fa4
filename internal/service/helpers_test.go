package service

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prperemyshlev/identity-gateway/internal/repository/repotest"
	"github.com/prperemyshlev/identity-gateway/internal/utils"
	"github.com/prperemyshlev/identity-gateway/pkg/database"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-that-is-at-least-32-characters-long"

func newTestRedis(t *testing.T) (*database.Redis, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return &database.Redis{Client: client}, mr
}

func newTestTokenManager() *utils.TokenManager {
	return utils.NewTokenManager(testSecret, 7*24*time.Hour, 10*time.Minute)
}

func newTestCredentials(t *testing.T, store *repotest.Store) *CredentialStore {
	t.Helper()

	creds, err := NewCredentialStore(store.Repositories().Account, 4)
	require.NoError(t, err)
	return creds
}

func strPtr(s string) *string {
	return &s
}
