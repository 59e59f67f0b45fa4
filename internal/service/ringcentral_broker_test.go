package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prperemyshlev/identity-gateway/internal/config"
	"github.com/prperemyshlev/identity-gateway/internal/domain"
	"github.com/prperemyshlev/identity-gateway/internal/repository"
	"github.com/prperemyshlev/identity-gateway/internal/repository/repotest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRingCentral struct {
	server       *httptest.Server
	refreshCalls atomic.Int32
	exchangeCode atomic.Value
	revoked      atomic.Value
	failRefresh  atomic.Bool
	omitRefresh  atomic.Bool
	// refreshDelay holds refresh responses so concurrent callers overlap
	refreshDelay time.Duration
}

func newFakeRingCentral(t *testing.T) *fakeRingCentral {
	t.Helper()

	f := &fakeRingCentral{}
	mux := http.NewServeMux()

	mux.HandleFunc("/restapi/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); !ok || user != "rc-client" || pass != "rc-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		require.NoError(t, r.ParseForm())

		resp := map[string]interface{}{"token_type": "bearer", "expires_in": 3600}
		switch r.PostForm.Get("grant_type") {
		case "authorization_code":
			f.exchangeCode.Store(r.PostForm.Get("code"))
			resp["access_token"] = "access-from-code"
			if !f.omitRefresh.Load() {
				resp["refresh_token"] = "refresh-from-code"
			}
		case "refresh_token":
			f.refreshCalls.Add(1)
			time.Sleep(f.refreshDelay)
			if f.failRefresh.Load() {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			resp["access_token"] = "access-refreshed"
			resp["refresh_token"] = "refresh-rotated"
		default:
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	mux.HandleFunc("/restapi/oauth/revoke", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		f.revoked.Store(r.PostForm.Get("token"))
		w.WriteHeader(http.StatusOK)
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeRingCentral) config() config.RingCentralConfig {
	return config.RingCentralConfig{
		ClientID:      "rc-client",
		ClientSecret:  "rc-secret",
		ServerURL:     f.server.URL,
		RedirectURI:   "http://localhost:8080/auth/ringcentral/callback",
		RefreshBuffer: config.Duration{Duration: 5 * time.Minute},
	}
}

func newTestBroker(t *testing.T, cfg config.RingCentralConfig, store *repotest.Store) *RingCentralBroker {
	t.Helper()

	redis, _ := newTestRedis(t)
	return NewRingCentralBroker(
		cfg,
		store.Repositories().IntegrationToken,
		newTestTokenManager(),
		NewStateNonceStore(redis),
		10*time.Minute,
		nil,
		nil,
		zap.NewNop(),
	)
}

func seedToken(t *testing.T, store *repotest.Store, userID string, expiresIn time.Duration) {
	t.Helper()

	err := store.Repositories().IntegrationToken.Upsert(context.Background(), &domain.IntegrationToken{
		UserID:       userID,
		AccessToken:  "access-stored",
		RefreshToken: "refresh-stored",
		ExpiresAt:    time.Now().Add(expiresIn),
	})
	require.NoError(t, err)
}

func TestRingCentralBroker_ReturnsCachedTokenOutsideBuffer(t *testing.T) {
	rc := newFakeRingCentral(t)
	store := repotest.New()
	broker := newTestBroker(t, rc.config(), store)
	seedToken(t, store, "user-1", 10*time.Minute)

	token, ok := broker.GetValidAccessToken(context.Background(), "user-1")

	assert.True(t, ok)
	assert.Equal(t, "access-stored", token)
	assert.Zero(t, rc.refreshCalls.Load())
}

func TestRingCentralBroker_RefreshesInsideBuffer(t *testing.T) {
	ctx := context.Background()
	rc := newFakeRingCentral(t)
	store := repotest.New()
	broker := newTestBroker(t, rc.config(), store)
	seedToken(t, store, "user-1", time.Minute)

	token, ok := broker.GetValidAccessToken(ctx, "user-1")

	require.True(t, ok)
	assert.Equal(t, "access-refreshed", token)
	assert.EqualValues(t, 1, rc.refreshCalls.Load())

	stored, err := store.Repositories().IntegrationToken.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "access-refreshed", stored.AccessToken)
	assert.Equal(t, "refresh-rotated", stored.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), stored.ExpiresAt, time.Minute)
}

func TestRingCentralBroker_RefreshFailureIsNotConnected(t *testing.T) {
	rc := newFakeRingCentral(t)
	rc.failRefresh.Store(true)
	store := repotest.New()
	broker := newTestBroker(t, rc.config(), store)
	seedToken(t, store, "user-1", time.Minute)

	token, ok := broker.GetValidAccessToken(context.Background(), "user-1")

	assert.False(t, ok)
	assert.Empty(t, token)
	assert.EqualValues(t, 1, rc.refreshCalls.Load())
}

func TestRingCentralBroker_NotConnected(t *testing.T) {
	rc := newFakeRingCentral(t)
	broker := newTestBroker(t, rc.config(), repotest.New())

	_, ok := broker.GetValidAccessToken(context.Background(), "nobody")
	assert.False(t, ok)
	assert.False(t, broker.IsConnected(context.Background(), "nobody"))
}

func TestRingCentralBroker_ConcurrentRefreshIsShared(t *testing.T) {
	rc := newFakeRingCentral(t)
	rc.refreshDelay = 100 * time.Millisecond
	store := repotest.New()
	broker := newTestBroker(t, rc.config(), store)
	seedToken(t, store, "user-1", time.Minute)

	const n = 5
	var wg sync.WaitGroup
	tokens := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], _ = broker.GetValidAccessToken(context.Background(), "user-1")
		}(i)
	}
	wg.Wait()

	for _, tok := range tokens {
		assert.Equal(t, "access-refreshed", tok)
	}
	assert.EqualValues(t, 1, rc.refreshCalls.Load())
}

// staleFirstRead answers the first Get with snapshot, as if another caller
// refreshed the token right after it was read
type staleFirstRead struct {
	repository.IntegrationTokenRepository
	snapshot domain.IntegrationToken
	served   atomic.Bool
}

func (r *staleFirstRead) Get(ctx context.Context, userID string) (*domain.IntegrationToken, error) {
	if r.served.CompareAndSwap(false, true) {
		tok := r.snapshot
		return &tok, nil
	}
	return r.IntegrationTokenRepository.Get(ctx, userID)
}

func TestRingCentralBroker_SkipsRefreshAlreadyDoneByAnotherCaller(t *testing.T) {
	ctx := context.Background()
	rc := newFakeRingCentral(t)
	store := repotest.New()
	require.NoError(t, store.Repositories().IntegrationToken.Upsert(ctx, &domain.IntegrationToken{
		UserID:       "user-1",
		AccessToken:  "access-fresh",
		RefreshToken: "refresh-fresh",
		ExpiresAt:    time.Now().Add(time.Hour),
	}))

	tokens := &staleFirstRead{
		IntegrationTokenRepository: store.Repositories().IntegrationToken,
		snapshot: domain.IntegrationToken{
			UserID:       "user-1",
			AccessToken:  "access-stored",
			RefreshToken: "refresh-stored",
			ExpiresAt:    time.Now().Add(time.Minute),
		},
	}
	redis, _ := newTestRedis(t)
	broker := NewRingCentralBroker(rc.config(), tokens, newTestTokenManager(), NewStateNonceStore(redis),
		10*time.Minute, nil, nil, zap.NewNop())

	token, ok := broker.GetValidAccessToken(ctx, "user-1")

	require.True(t, ok)
	assert.Equal(t, "access-fresh", token)
	assert.Zero(t, rc.refreshCalls.Load(), "the old refresh token must not be replayed")
}

func TestRingCentralBroker_AuthorizationFlow(t *testing.T) {
	ctx := context.Background()
	rc := newFakeRingCentral(t)
	store := repotest.New()
	broker := newTestBroker(t, rc.config(), store)

	authURL, err := broker.AuthorizationURL("user-1")
	require.NoError(t, err)

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, "/restapi/oauth/authorize", parsed.Path)
	assert.Equal(t, "rc-client", parsed.Query().Get("client_id"))
	state := parsed.Query().Get("state")
	require.NotEmpty(t, state)

	userID, err := broker.CompleteAuthorization(ctx, "the-code", state)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	assert.Equal(t, "the-code", rc.exchangeCode.Load())

	stored, err := store.Repositories().IntegrationToken.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "access-from-code", stored.AccessToken)
	assert.Equal(t, "refresh-from-code", stored.RefreshToken)

	t.Run("replayed state", func(t *testing.T) {
		_, err := broker.CompleteAuthorization(ctx, "the-code", state)
		assertRedirectCode(t, err, RedirectInvalidState)
	})
}

func TestRingCentralBroker_CallbackFailures(t *testing.T) {
	ctx := context.Background()
	rc := newFakeRingCentral(t)
	broker := newTestBroker(t, rc.config(), repotest.New())

	validState := func() string {
		state, err := newTestTokenManager().IssueState("user-1", domain.StatePurposeRingCentral)
		require.NoError(t, err)
		return state
	}

	_, err := broker.CompleteAuthorization(ctx, "", validState())
	assertRedirectCode(t, err, RedirectMissingCode)

	_, err = broker.CompleteAuthorization(ctx, "code", "")
	assertRedirectCode(t, err, RedirectMissingState)

	_, err = broker.CompleteAuthorization(ctx, "code", "forged")
	assertRedirectCode(t, err, RedirectInvalidState)

	googleState, err := newTestTokenManager().IssueState("user-1", domain.StatePurposeGoogle)
	require.NoError(t, err)
	_, err = broker.CompleteAuthorization(ctx, "code", googleState)
	assertRedirectCode(t, err, RedirectInvalidState)

	rc.omitRefresh.Store(true)
	_, err = broker.CompleteAuthorization(ctx, "code", validState())
	assertRedirectCode(t, err, RedirectNoTokens)

	unconfigured := newTestBroker(t, config.RingCentralConfig{}, repotest.New())
	_, err = unconfigured.CompleteAuthorization(ctx, "code", validState())
	assertRedirectCode(t, err, RedirectNotConfigured)
}

func TestRingCentralBroker_AuthorizationURLNotConfigured(t *testing.T) {
	broker := newTestBroker(t, config.RingCentralConfig{ServerURL: "https://platform.ringcentral.com"}, repotest.New())

	_, err := broker.AuthorizationURL("user-1")
	require.Equal(t, KindNotConfigured, KindOf(err))

	var svcErr *Error
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, []string{"RINGCENTRAL_CLIENT_ID", "RINGCENTRAL_CLIENT_SECRET", "RINGCENTRAL_REDIRECT_URI"}, svcErr.Details["missing"])
}

func TestRingCentralBroker_Disconnect(t *testing.T) {
	ctx := context.Background()
	rc := newFakeRingCentral(t)
	store := repotest.New()
	broker := newTestBroker(t, rc.config(), store)
	seedToken(t, store, "user-1", time.Hour)

	require.NoError(t, broker.Disconnect(ctx, "user-1"))

	assert.Equal(t, "refresh-stored", rc.revoked.Load())
	_, err := store.Repositories().IntegrationToken.Get(ctx, "user-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.NoError(t, broker.Disconnect(ctx, "user-1"), "disconnecting twice is fine")
}

func assertRedirectCode(t *testing.T, err error, code string) {
	t.Helper()

	var redirectErr *RedirectError
	if assert.True(t, errors.As(err, &redirectErr), "expected *RedirectError, got %v", err) {
		assert.Equal(t, code, redirectErr.Code)
	}
}
