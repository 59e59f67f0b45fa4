package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prperemyshlev/identity-gateway/internal/config"
	"go.uber.org/zap"
)

// ExternalClaims are the fields read from a Supabase access token
type ExternalClaims struct {
	Subject string
	Email   string
}

type supabaseClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenVerifier validates Supabase-issued access tokens. The remote key set is
// tried first; the shared HMAC secret is the fallback.
type TokenVerifier struct {
	keySet    oidc.KeySet
	secret    []byte
	clockSkew time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewTokenVerifier builds a verifier from whatever Supabase settings are present.
// ctx bounds the background key fetches of the remote key set.
func NewTokenVerifier(ctx context.Context, cfg config.SupabaseConfig, logger *zap.Logger) *TokenVerifier {
	v := &TokenVerifier{
		clockSkew: cfg.ClockSkew.Duration,
		now:       time.Now,
		logger:    logger,
	}
	if url := cfg.JWKSURL(); url != "" {
		v.keySet = oidc.NewRemoteKeySet(ctx, url)
	}
	if cfg.JWTSecret != "" {
		v.secret = []byte(cfg.JWTSecret)
	}
	return v
}

// Configured reports whether any verification method is available
func (v *TokenVerifier) Configured() bool {
	return v.keySet != nil || v.secret != nil
}

// Verify validates raw and returns its subject and email
func (v *TokenVerifier) Verify(ctx context.Context, raw string) (*ExternalClaims, error) {
	if !v.Configured() {
		return nil, NewNotConfiguredError([]string{"SUPABASE_URL", "SUPABASE_JWT_SECRET"})
	}

	expired := false

	if v.keySet != nil {
		claims, err := v.verifyWithKeySet(ctx, raw)
		if err == nil {
			return claims, nil
		}
		if errors.Is(err, jwt.ErrTokenExpired) {
			expired = true
		} else {
			v.logger.Debug("Key set verification failed", zap.Error(err))
		}
	}

	if v.secret != nil && !expired {
		claims, err := v.verifyWithSecret(raw)
		if err == nil {
			return claims, nil
		}
		if errors.Is(err, jwt.ErrTokenExpired) {
			expired = true
		} else {
			v.logger.Debug("Shared secret verification failed", zap.Error(err))
		}
	}

	if expired {
		return nil, NewTokenExpiredError()
	}
	return nil, NewTokenInvalidError()
}

func (v *TokenVerifier) verifyWithKeySet(ctx context.Context, raw string) (*ExternalClaims, error) {
	payload, err := v.keySet.VerifySignature(ctx, raw)
	if err != nil {
		return nil, err
	}

	var claims struct {
		Subject   string  `json:"sub"`
		Email     string  `json:"email"`
		ExpiresAt float64 `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, err
	}

	if claims.ExpiresAt == 0 {
		return nil, jwt.ErrTokenRequiredClaimMissing
	}
	expiresAt := time.Unix(int64(claims.ExpiresAt), 0)
	if v.now().After(expiresAt.Add(v.clockSkew)) {
		return nil, jwt.ErrTokenExpired
	}

	return validClaims(claims.Subject, claims.Email)
}

func (v *TokenVerifier) verifyWithSecret(raw string) (*ExternalClaims, error) {
	claims := &supabaseClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.clockSkew),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, err
	}

	return validClaims(claims.Subject, claims.Email)
}

func validClaims(subject, email string) (*ExternalClaims, error) {
	if subject == "" || email == "" {
		return nil, jwt.ErrTokenRequiredClaimMissing
	}
	return &ExternalClaims{Subject: subject, Email: email}, nil
}
