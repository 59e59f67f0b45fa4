package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateNonceStore_Consume(t *testing.T) {
	ctx := context.Background()
	redis, mr := newTestRedis(t)
	store := NewStateNonceStore(redis)

	first, err := store.Consume(ctx, "nonce-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := store.Consume(ctx, "nonce-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, again)

	other, err := store.Consume(ctx, "nonce-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, other)

	assert.True(t, mr.Exists("oauth:state:nonce-1"))
	assert.Equal(t, time.Minute, mr.TTL("oauth:state:nonce-1"))
}

func TestStateNonceStore_ExpiredState(t *testing.T) {
	redis, mr := newTestRedis(t)
	store := NewStateNonceStore(redis)

	ok, err := store.Consume(context.Background(), "nonce-1", 0)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("oauth:state:nonce-1"))
}

func TestStateNonceStore_RedisDown(t *testing.T) {
	redis, mr := newTestRedis(t)
	store := NewStateNonceStore(redis)
	mr.Close()

	_, err := store.Consume(context.Background(), "nonce-1", time.Minute)
	assert.Error(t, err)
}
