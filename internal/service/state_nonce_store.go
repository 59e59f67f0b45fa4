package service

import (
	"context"
	"fmt"
	"time"

	"github.com/prperemyshlev/identity-gateway/pkg/database"
)

// NonceStore records OAuth state nonces so each state token is accepted once
type NonceStore interface {
	// Consume marks nonce as used and reports whether this call was the first
	Consume(ctx context.Context, nonce string, ttl time.Duration) (bool, error)
}

// StateNonceStore keeps consumed nonces in Redis until their state token would have expired anyway
type StateNonceStore struct {
	redis *database.Redis
}

// NewStateNonceStore creates a new Redis-backed nonce store
func NewStateNonceStore(redis *database.Redis) *StateNonceStore {
	return &StateNonceStore{redis: redis}
}

func (s *StateNonceStore) Consume(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, nil
	}

	key := fmt.Sprintf("oauth:state:%s", nonce)
	ok, err := s.redis.Client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to consume state nonce: %w", err)
	}
	return ok, nil
}
