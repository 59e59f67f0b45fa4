package service

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	verificationCodeDigits = 8
	// VerificationCodeTTL is how long a development code stays redeemable
	VerificationCodeTTL = 15 * time.Minute
	maxPendingCodes     = 10000
)

// VerificationCodeStore issues and redeems one-time email verification codes.
// It exists for local development only, where no email provider is wired.
type VerificationCodeStore interface {
	Issue(email string) (string, error)
	// Redeem reports whether code matches; a matching code is removed
	Redeem(email, code string) bool
}

type memoryCodeStore struct {
	codes *expirable.LRU[string, string]
}

// NewMemoryCodeStore creates a process-local code store whose entries expire after ttl
func NewMemoryCodeStore(ttl time.Duration) VerificationCodeStore {
	return &memoryCodeStore{
		codes: expirable.NewLRU[string, string](maxPendingCodes, nil, ttl),
	}
}

func (s *memoryCodeStore) Issue(email string) (string, error) {
	code, err := randomDigits(verificationCodeDigits)
	if err != nil {
		return "", err
	}
	s.codes.Add(email, code)
	return code, nil
}

func (s *memoryCodeStore) Redeem(email, code string) bool {
	stored, ok := s.codes.Get(email)
	if !ok {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return false
	}
	return s.codes.Remove(email)
}

func randomDigits(n int) (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < n; i++ {
		limit.Mul(limit, big.NewInt(10))
	}

	v, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", n, v), nil
}
