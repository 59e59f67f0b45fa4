package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prperemyshlev/identity-gateway/internal/domain"
)

var (
	// ErrTokenExpired is returned when a token was valid but its exp has passed
	ErrTokenExpired = errors.New("token is expired")

	// ErrTokenInvalid is returned for malformed, tampered or mis-typed tokens
	ErrTokenInvalid = errors.New("token is invalid")
)

type sessionClaims struct {
	Email        string `json:"email"`
	PlatformRole string `json:"platformRole,omitempty"`
	jwt.RegisteredClaims
}

type stateClaims struct {
	UserID  string `json:"userId"`
	Purpose string `json:"purpose,omitempty"`
	Nonce   string `json:"nonce"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies session and OAuth-state tokens with one HMAC key
type TokenManager struct {
	secret        []byte
	sessionExpiry time.Duration
	stateExpiry   time.Duration
	now           func() time.Time
}

// NewTokenManager creates a new token manager
func NewTokenManager(secret string, sessionExpiry, stateExpiry time.Duration) *TokenManager {
	return &TokenManager{
		secret:        []byte(secret),
		sessionExpiry: sessionExpiry,
		stateExpiry:   stateExpiry,
		now:           time.Now,
	}
}

// WithClock replaces the time source, for tests
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	m.now = now
	return m
}

// SessionExpiry returns the lifetime of session tokens
func (m *TokenManager) SessionExpiry() time.Duration {
	return m.sessionExpiry
}

// IssueSession mints a session token for the account
func (m *TokenManager) IssueSession(accountID, email string, role *domain.PlatformRole) (string, error) {
	now := m.now()
	claims := sessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.sessionExpiry)),
		},
	}
	if role != nil {
		claims.PlatformRole = string(*role)
	}

	return m.sign(claims)
}

// VerifySession validates a session token and returns its claims
func (m *TokenManager) VerifySession(tokenString string) (*domain.SessionClaims, error) {
	claims := &sessionClaims{}
	if err := m.parse(tokenString, claims); err != nil {
		return nil, err
	}

	if claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, fmt.Errorf("missing subject or expiry: %w", ErrTokenInvalid)
	}

	result := &domain.SessionClaims{
		Subject:   claims.Subject,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.PlatformRole != "" {
		role, err := domain.ParsePlatformRole(claims.PlatformRole)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, ErrTokenInvalid)
		}
		result.PlatformRole = &role
	}

	return result, nil
}

// IssueState mints a short-lived state token carrying userID through an OAuth redirect.
// userID is empty for sign-in flows. Every state token gets a fresh nonce so it can be
// consumed exactly once.
func (m *TokenManager) IssueState(userID, purpose string) (string, error) {
	now := m.now()
	return m.sign(stateClaims{
		UserID:  userID,
		Purpose: purpose,
		Nonce:   uuid.New().String(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.stateExpiry)),
		},
	})
}

// VerifyState validates a state token issued for purpose
func (m *TokenManager) VerifyState(tokenString, purpose string) (*domain.StateClaims, error) {
	claims := &stateClaims{}
	if err := m.parse(tokenString, claims); err != nil {
		return nil, err
	}

	if claims.Nonce == "" || claims.ExpiresAt == nil {
		return nil, fmt.Errorf("not a state token: %w", ErrTokenInvalid)
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("state issued for %q, expected %q: %w", claims.Purpose, purpose, ErrTokenInvalid)
	}

	return &domain.StateClaims{
		UserID:    claims.UserID,
		Purpose:   claims.Purpose,
		Nonce:     claims.Nonce,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (m *TokenManager) sign(claims jwt.Claims) (string, error) {
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

func (m *TokenManager) parse(tokenString string, claims jwt.Claims) error {
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return fmt.Errorf("%v: %w", err, ErrTokenInvalid)
	}
	return nil
}
