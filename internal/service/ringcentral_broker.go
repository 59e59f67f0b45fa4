package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prperemyshlev/identity-gateway/internal/config"
	"github.com/prperemyshlev/identity-gateway/internal/domain"
	"github.com/prperemyshlev/identity-gateway/internal/repository"
	"github.com/prperemyshlev/identity-gateway/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Used when the token endpoint omits expires_in
const defaultTokenLifetime = time.Hour

// Redirect error codes reported to the frontend by OAuth callbacks
const (
	RedirectMissingCode        = "missing_code"
	RedirectMissingState       = "missing_state"
	RedirectInvalidState       = "invalid_state"
	RedirectNoTokens           = "no_tokens"
	RedirectRingCentralFailed  = "ringcentral_failed"
	RedirectGoogleAuthFailed   = "google_auth_failed"
	RedirectAccountDeactivated = "account_deactivated"
	RedirectNotConfigured      = "not_configured"
)

// RedirectError is a callback failure that is reported as ?error=<Code>
type RedirectError struct {
	Code string
	Err  error
}

func (e *RedirectError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *RedirectError) Unwrap() error {
	return e.Err
}

func redirectError(code string, err error) *RedirectError {
	return &RedirectError{Code: code, Err: err}
}

// RingCentralBroker acquires, stores and refreshes RingCentral tokens per user
type RingCentralBroker struct {
	cfg        config.RingCentralConfig
	oauth      *oauth2.Config
	tokens     repository.IntegrationTokenRepository
	tokenMgr   *utils.TokenManager
	nonces     NonceStore
	stateTTL   time.Duration
	httpClient *http.Client
	refreshes  singleflight.Group
	metrics    *Metrics
	now        func() time.Time
	logger     *zap.Logger
}

// NewRingCentralBroker creates a new broker. httpClient may be nil to use the default client.
func NewRingCentralBroker(
	cfg config.RingCentralConfig,
	tokens repository.IntegrationTokenRepository,
	tokenMgr *utils.TokenManager,
	nonces NonceStore,
	stateTTL time.Duration,
	httpClient *http.Client,
	metrics *Metrics,
	logger *zap.Logger,
) *RingCentralBroker {
	server := strings.TrimRight(cfg.ServerURL, "/")

	return &RingCentralBroker{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:   server + "/restapi/oauth/authorize",
				TokenURL:  server + "/restapi/oauth/token",
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		tokens:     tokens,
		tokenMgr:   tokenMgr,
		nonces:     nonces,
		stateTTL:   stateTTL,
		httpClient: httpClient,
		metrics:    metrics,
		now:        time.Now,
		logger:     logger,
	}
}

// Missing lists the unset RingCentral variables
func (b *RingCentralBroker) Missing() []string {
	return b.cfg.Missing()
}

// AuthorizationURL returns the provider consent URL with a state token bound to userID
func (b *RingCentralBroker) AuthorizationURL(userID string) (string, error) {
	if missing := b.Missing(); len(missing) > 0 {
		return "", NewNotConfiguredError(missing)
	}

	state, err := b.tokenMgr.IssueState(userID, domain.StatePurposeRingCentral)
	if err != nil {
		return "", NewInternalError(err)
	}

	return b.oauth.AuthCodeURL(state), nil
}

// CompleteAuthorization handles the provider callback and stores the tokens.
// It returns the user the state token was issued to. Every error is a *RedirectError.
func (b *RingCentralBroker) CompleteAuthorization(ctx context.Context, code, state string) (string, error) {
	if code == "" {
		return "", redirectError(RedirectMissingCode, nil)
	}
	if state == "" {
		return "", redirectError(RedirectMissingState, nil)
	}
	if len(b.Missing()) > 0 {
		return "", redirectError(RedirectNotConfigured, nil)
	}

	claims, err := b.tokenMgr.VerifyState(state, domain.StatePurposeRingCentral)
	if err != nil {
		return "", redirectError(RedirectInvalidState, err)
	}
	if claims.UserID == "" {
		return "", redirectError(RedirectInvalidState, errors.New("state carries no user"))
	}

	first, err := b.nonces.Consume(ctx, claims.Nonce, claims.ExpiresAt.Sub(b.now()))
	if err != nil {
		return "", redirectError(RedirectRingCentralFailed, err)
	}
	if !first {
		return "", redirectError(RedirectInvalidState, errors.New("state already used"))
	}

	tok, err := b.oauth.Exchange(b.clientContext(ctx), code)
	if err != nil {
		return "", redirectError(RedirectRingCentralFailed, fmt.Errorf("code exchange failed: %w", err))
	}
	if tok.AccessToken == "" || tok.RefreshToken == "" {
		return "", redirectError(RedirectNoTokens, nil)
	}

	if err := b.store(ctx, claims.UserID, tok, ""); err != nil {
		return "", redirectError(RedirectRingCentralFailed, err)
	}

	b.logger.Info("RingCentral connected", zap.String("user_id", claims.UserID))
	return claims.UserID, nil
}

// GetValidAccessToken returns a usable access token for userID, refreshing it
// when it expires within the refresh buffer. It returns false when the user is
// not connected or the refresh failed; the caller should ask the user to reconnect.
func (b *RingCentralBroker) GetValidAccessToken(ctx context.Context, userID string) (string, bool) {
	stored, err := b.tokens.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			b.logger.Error("Failed to load RingCentral token", zap.String("user_id", userID), zap.Error(err))
		}
		return "", false
	}

	if stored.ExpiresAt.Sub(b.now()) > b.cfg.RefreshBuffer.Duration {
		return stored.AccessToken, true
	}

	v, err, _ := b.refreshes.Do(userID, func() (interface{}, error) {
		ctx := context.WithoutCancel(ctx)
		// another caller may have refreshed since stored was read
		current, err := b.tokens.Get(ctx, userID)
		if err != nil {
			return "", fmt.Errorf("failed to reload token: %w", err)
		}
		if current.ExpiresAt.Sub(b.now()) > b.cfg.RefreshBuffer.Duration {
			return current.AccessToken, nil
		}
		return b.refresh(ctx, current)
	})
	if err != nil {
		b.logger.Warn("RingCentral token refresh failed", zap.String("user_id", userID), zap.Error(err))
		return "", false
	}

	return v.(string), true
}

// IsConnected reports whether userID has a usable RingCentral token
func (b *RingCentralBroker) IsConnected(ctx context.Context, userID string) bool {
	_, ok := b.GetValidAccessToken(ctx, userID)
	return ok
}

// Disconnect revokes the stored refresh token at the provider, best effort, and forgets the tokens
func (b *RingCentralBroker) Disconnect(ctx context.Context, userID string) error {
	stored, err := b.tokens.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return NewInternalError(err)
	}

	if len(b.Missing()) == 0 {
		if err := b.revoke(ctx, stored.RefreshToken); err != nil {
			b.logger.Warn("RingCentral revoke failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	if err := b.tokens.Delete(ctx, userID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return NewInternalError(err)
	}

	b.logger.Info("RingCentral disconnected", zap.String("user_id", userID))
	return nil
}

func (b *RingCentralBroker) refresh(ctx context.Context, stored *domain.IntegrationToken) (string, error) {
	if len(b.Missing()) > 0 {
		return "", errors.New("ringcentral is not configured")
	}

	tok, err := b.oauth.TokenSource(b.clientContext(ctx), &oauth2.Token{RefreshToken: stored.RefreshToken}).Token()
	b.metrics.RecordRefresh(ctx, err)
	if err != nil {
		return "", fmt.Errorf("refresh grant failed: %w", err)
	}

	if err := b.store(ctx, stored.UserID, tok, stored.RefreshToken); err != nil {
		return "", err
	}

	return tok.AccessToken, nil
}

func (b *RingCentralBroker) store(ctx context.Context, userID string, tok *oauth2.Token, previousRefresh string) error {
	expiresAt := tok.Expiry
	if expiresAt.IsZero() {
		expiresAt = b.now().Add(defaultTokenLifetime)
	}

	refreshToken := tok.RefreshToken
	if refreshToken == "" {
		refreshToken = previousRefresh
	}

	err := b.tokens.Upsert(ctx, &domain.IntegrationToken{
		UserID:       userID,
		AccessToken:  tok.AccessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	})
	if err != nil {
		return fmt.Errorf("failed to store ringcentral token: %w", err)
	}
	return nil
}

func (b *RingCentralBroker) revoke(ctx context.Context, token string) error {
	revokeURL := strings.TrimRight(b.cfg.ServerURL, "/") + "/restapi/oauth/revoke"
	form := url.Values{"token": {token}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(b.cfg.ClientID, b.cfg.ClientSecret)

	resp, err := b.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("revoke returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (b *RingCentralBroker) client() *http.Client {
	if b.httpClient != nil {
		return b.httpClient
	}
	return http.DefaultClient
}

func (b *RingCentralBroker) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, b.client())
}
