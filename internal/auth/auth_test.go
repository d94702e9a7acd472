package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/widgetstore/wsq/internal/config"
	"github.com/widgetstore/wsq/internal/models"
	"github.com/widgetstore/wsq/internal/output"
	"github.com/widgetstore/wsq/internal/session"
)

type managerFixture struct {
	mgr    *Manager
	store  *session.Store
	cfg    *config.Config
	notice *bytes.Buffer
	opened []string
}

func newFixture(t *testing.T) *managerFixture {
	t.Helper()

	cfg := config.Default()
	cfg.DataDir = t.TempDir()

	store := session.NewStore(cfg.DataDir)
	notice := &bytes.Buffer{}

	f := &managerFixture{
		store:  store,
		cfg:    cfg,
		notice: notice,
	}
	f.mgr = NewManager(cfg, store, &http.Client{Timeout: 5 * time.Second}, output.NewNotifierTo(notice))
	f.mgr.openURL = func(u string) error {
		f.opened = append(f.opened, u)
		return nil
	}
	return f
}

func (f *managerFixture) settings(t *testing.T) *session.Settings {
	t.Helper()
	s, err := f.store.Load()
	require.NoError(t, err, "Load failed")
	return s
}

func (f *managerFixture) seedTokens(t *testing.T, tok *models.TokenPair, uid string) {
	t.Helper()
	require.NoError(t, f.store.Update(func(s *session.Settings) error {
		s.AuthToken = tok
		s.UID = uid
		return nil
	}))
}

// userInfoServer serves a user/info endpoint returning the given profile.
func userInfoServer(t *testing.T, user *models.User, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		if r.URL.Path != "/user/info" {
			http.NotFound(w, r)
			return
		}
		if user == nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": user})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerateState(t *testing.T) {
	a := GenerateState()
	b := GenerateState()

	assert.Len(t, a, 32, "state should be 32 hex chars")
	assert.NotEqual(t, a, b, "states must be unique")
	for _, c := range a {
		assert.Contains(t, "0123456789abcdef", string(c), "state must be lowercase hex")
	}
}

func TestStartLoginStoresNonceAndOpensBrowser(t *testing.T) {
	f := newFixture(t)

	loginURL, err := f.mgr.StartLogin(context.Background(), LoginOptions{})
	require.NoError(t, err)

	settings := f.settings(t)
	require.NotEmpty(t, settings.OAuthState, "pending nonce must be persisted")
	assert.Contains(t, loginURL, "/#/auth/obsidian?state="+settings.OAuthState)

	require.Len(t, f.opened, 1, "browser should be opened once")
	assert.Equal(t, loginURL, f.opened[0])
}

func TestStartLoginOverwritesPriorNonce(t *testing.T) {
	f := newFixture(t)

	_, err := f.mgr.StartLogin(context.Background(), LoginOptions{})
	require.NoError(t, err)
	first := f.settings(t).OAuthState

	_, err = f.mgr.StartLogin(context.Background(), LoginOptions{})
	require.NoError(t, err)
	second := f.settings(t).OAuthState

	assert.NotEqual(t, first, second, "a new attempt replaces the pending nonce")
}

func TestStartLoginNoBrowser(t *testing.T) {
	f := newFixture(t)

	loginURL, err := f.mgr.StartLogin(context.Background(), LoginOptions{NoBrowser: true})
	require.NoError(t, err)

	assert.Empty(t, f.opened, "browser must not be opened")
	assert.Contains(t, f.notice.String(), loginURL, "URL should be surfaced to the user")
}

func TestStartLoginBrowserFailureFallsBackToNotice(t *testing.T) {
	f := newFixture(t)
	f.mgr.openURL = func(string) error { return assert.AnError }

	loginURL, err := f.mgr.StartLogin(context.Background(), LoginOptions{})
	require.NoError(t, err, "browser failure is not a login failure")
	assert.Contains(t, f.notice.String(), loginURL)
}

func TestHandleCallbackSuccess(t *testing.T) {
	f := newFixture(t)
	srv := userInfoServer(t, &models.User{UserID: "u1", Nickname: "Ann"}, nil)
	f.cfg.APIURLOverride = srv.URL

	require.NoError(t, f.store.Update(func(s *session.Settings) error {
		s.OAuthState = "abc123"
		return nil
	}))

	ok := f.mgr.HandleCallback(context.Background(), &Callback{
		State:        "abc123",
		UID:          "u1",
		RefreshToken: "r1",
		AccessToken:  "a1",
	})
	require.True(t, ok, "matching callback should sign in")

	settings := f.settings(t)
	assert.Empty(t, settings.OAuthState, "nonce is single-use")
	require.NotNil(t, settings.AuthToken)
	assert.Equal(t, "r1", settings.AuthToken.RefreshToken)
	assert.Equal(t, "a1", settings.AuthToken.AccessToken)
	assert.Equal(t, "u1", settings.UID)
	require.NotNil(t, settings.User)
	assert.Equal(t, "Ann", settings.User.Nickname)
	assert.Contains(t, f.notice.String(), "Welcome Ann")
}

func TestHandleCallbackStateMismatch(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.store.Update(func(s *session.Settings) error {
		s.OAuthState = "expected"
		return nil
	}))

	ok := f.mgr.HandleCallback(context.Background(), &Callback{
		State:        "forged",
		UID:          "u1",
		RefreshToken: "r1",
	})
	assert.False(t, ok)

	settings := f.settings(t)
	assert.Equal(t, "expected", settings.OAuthState, "mismatch must not consume the nonce")
	assert.Nil(t, settings.AuthToken, "mismatch must not store tokens")
	assert.Contains(t, f.notice.String(), "invalid state")
}

func TestHandleCallbackNoPendingNonceAnonymous(t *testing.T) {
	f := newFixture(t)

	ok := f.mgr.HandleCallback(context.Background(), &Callback{
		State:        "whatever",
		UID:          "u1",
		RefreshToken: "r1",
	})
	assert.False(t, ok, "no pending attempt and not signed in: reject")
	assert.Nil(t, f.settings(t).AuthToken)
}

func TestHandleCallbackReplayRefreshesAuthenticatedSession(t *testing.T) {
	f := newFixture(t)
	srv := userInfoServer(t, &models.User{UserID: "u1", Nickname: "Ann"}, nil)
	f.cfg.APIURLOverride = srv.URL

	require.NoError(t, f.store.Update(func(s *session.Settings) error {
		s.OAuthState = "abc123"
		return nil
	}))

	cb := &Callback{State: "abc123", UID: "u1", RefreshToken: "r1"}
	require.True(t, f.mgr.HandleCallback(context.Background(), cb))

	// Replay with fresh tokens: the nonce is gone but the session is
	// authenticated, so the delivery is treated as an idempotent refresh.
	ok := f.mgr.HandleCallback(context.Background(), &Callback{
		State:        "abc123",
		UID:          "u1",
		RefreshToken: "r2",
	})
	require.True(t, ok)
	assert.Equal(t, "r2", f.settings(t).AuthToken.RefreshToken)
}

func TestHandleCallbackProfileFetchFailureKeepsTokens(t *testing.T) {
	f := newFixture(t)
	srv := userInfoServer(t, nil, nil) // 500s every profile fetch
	f.cfg.APIURLOverride = srv.URL

	require.NoError(t, f.store.Update(func(s *session.Settings) error {
		s.OAuthState = "abc123"
		return nil
	}))

	ok := f.mgr.HandleCallback(context.Background(), &Callback{
		State:        "abc123",
		UID:          "u1",
		RefreshToken: "r1",
	})
	assert.False(t, ok, "profile failure reports false")

	settings := f.settings(t)
	require.NotNil(t, settings.AuthToken, "tokens persist even when the profile fetch fails")
	assert.Equal(t, "r1", settings.AuthToken.RefreshToken)
	assert.True(t, settings.Authenticated())
	assert.Nil(t, settings.User)
}

func TestHandleCallbackEnvNameAdopted(t *testing.T) {
	f := newFixture(t)
	srv := userInfoServer(t, &models.User{UserID: "u1"}, nil)
	f.cfg.APIURLOverride = srv.URL

	require.NoError(t, f.store.Update(func(s *session.Settings) error {
		s.OAuthState = "abc123"
		return nil
	}))

	f.mgr.HandleCallback(context.Background(), &Callback{
		State:        "abc123",
		UID:          "u1",
		RefreshToken: "r1",
		EnvName:      "other-env",
	})

	settings := f.settings(t)
	assert.Equal(t, "other-env", settings.EnvName)
	assert.Equal(t, "other-env", settings.AuthToken.EnvName)
}

func TestAccessTokenNotAuthenticatedNoNetwork(t *testing.T) {
	var calls atomic.Int64
	f := newFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	f.cfg.RefreshURLOverride = srv.URL

	_, err := f.mgr.AccessToken(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Zero(t, calls.Load(), "no network call without a refresh token")
}

func TestAccessTokenCachedWhileUnexpired(t *testing.T) {
	var calls atomic.Int64
	f := newFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	f.cfg.RefreshURLOverride = srv.URL

	f.seedTokens(t, &models.TokenPair{
		AccessToken:         "cached",
		RefreshToken:        "r1",
		AccessTokenExpireAt: time.Now().UnixMilli() + 60_000,
	}, "u1")

	token, err := f.mgr.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cached", token)
	assert.Zero(t, calls.Load(), "unexpired token must be returned without a refresh")
}

func TestAccessTokenRefreshesExpired(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "r1", body["refresh_token"])
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "a2", "expires_in": 3600})
	}))
	defer srv.Close()
	f.cfg.RefreshURLOverride = srv.URL

	f.seedTokens(t, &models.TokenPair{
		AccessToken:         "stale",
		RefreshToken:        "r1",
		AccessTokenExpireAt: time.Now().UnixMilli() - 1,
	}, "u1")

	before := time.Now().UnixMilli()
	token, err := f.mgr.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a2", token)

	tok := f.settings(t).AuthToken
	assert.Equal(t, "a2", tok.AccessToken)
	assert.GreaterOrEqual(t, tok.AccessTokenExpireAt, before+3_600_000, "expiry is now + expires_in seconds")
	assert.LessOrEqual(t, tok.AccessTokenExpireAt, time.Now().UnixMilli()+3_600_000)
}

func TestRefreshUnauthorizedLogsOut(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	f.cfg.RefreshURLOverride = srv.URL

	f.seedTokens(t, &models.TokenPair{RefreshToken: "dead"}, "u1")

	_, err := f.mgr.RefreshAccessToken(context.Background())
	require.Error(t, err)
	assert.False(t, f.mgr.IsAuthenticated(), "401 on refresh invalidates the session")
	assert.Nil(t, f.settings(t).AuthToken)
}

func TestRefreshServerErrorKeepsSession(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	f.cfg.RefreshURLOverride = srv.URL

	f.seedTokens(t, &models.TokenPair{RefreshToken: "r1"}, "u1")

	_, err := f.mgr.RefreshAccessToken(context.Background())
	require.Error(t, err)
	assert.True(t, f.mgr.IsAuthenticated(), "transient failure must not sign the user out")
	assert.Equal(t, "r1", f.settings(t).AuthToken.RefreshToken)
}

func TestLogoutIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seedTokens(t, &models.TokenPair{RefreshToken: "r1"}, "u1")
	require.NoError(t, f.store.Update(func(s *session.Settings) error {
		s.User = &models.User{UserID: "u1"}
		return nil
	}))

	require.NoError(t, f.mgr.Logout())
	settings := f.settings(t)
	assert.Nil(t, settings.AuthToken)
	assert.Nil(t, settings.User)
	assert.Equal(t, "u1", settings.UID, "uid survives logout")

	require.NoError(t, f.mgr.Logout(), "second logout must not error")
}

func TestHeaders(t *testing.T) {
	f := newFixture(t)
	f.seedTokens(t, &models.TokenPair{
		AccessToken:         "a1",
		RefreshToken:        "r1",
		AccessTokenExpireAt: time.Now().UnixMilli() + 60_000,
	}, "u1")

	h := f.mgr.Headers(context.Background())
	assert.Equal(t, "application/json", h["Content-Type"])
	assert.Equal(t, "Bearer a1", h["Authorization"])
	assert.Equal(t, "u1", h["x-cloudbase-uid"])
	assert.Equal(t, f.cfg.Env(), h["x-cloudbase-env"])
}

func TestHeadersAnonymous(t *testing.T) {
	f := newFixture(t)

	h := f.mgr.Headers(context.Background())
	assert.Equal(t, "application/json", h["Content-Type"])
	_, hasBearer := h["Authorization"]
	assert.False(t, hasBearer, "no bearer without a usable token")
	_, hasUID := h["x-cloudbase-uid"]
	assert.False(t, hasUID)
	assert.Equal(t, f.cfg.Env(), h["x-cloudbase-env"])
}

func TestFetchUserUnauthorizedInvalidatesSession(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/user/info") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()
	f.cfg.APIURLOverride = srv.URL

	f.seedTokens(t, &models.TokenPair{
		AccessToken:         "a1",
		RefreshToken:        "r1",
		AccessTokenExpireAt: time.Now().UnixMilli() + 60_000,
	}, "u1")

	_, err := f.mgr.FetchUser(context.Background())
	require.Error(t, err)
	assert.False(t, f.mgr.IsAuthenticated())
}
