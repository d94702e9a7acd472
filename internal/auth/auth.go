// Package auth implements the browser-delegated login handshake and the
// session/token lifecycle for the widget service.
//
// The flow is out-of-band: StartLogin opens the external browser and returns
// immediately; the provider later invokes the host application's protocol
// handler, whose payload is validated by ParseCallback and consumed by
// HandleCallback. A one-time state nonce binds the two halves together.
package auth

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/widgetstore/wsq/internal/config"
	"github.com/widgetstore/wsq/internal/models"
	"github.com/widgetstore/wsq/internal/output"
	"github.com/widgetstore/wsq/internal/session"
)

// ErrNotAuthenticated is returned by AccessToken when no refresh token is
// stored. No network call is made in that case.
var ErrNotAuthenticated = errors.New("not authenticated")

// Manager owns the authentication lifecycle: nonce generation, login-URL
// construction, callback validation, token storage, expiry-aware token
// retrieval, and refresh-token exchange. It is the exclusive owner of the
// session's auth fields; the settings store is its durable backing.
type Manager struct {
	cfg        *config.Config
	store      *session.Store
	httpClient *http.Client
	notify     output.Notifier

	// openURL is swappable for tests.
	openURL func(string) error

	// mu serializes token refresh so concurrent calls don't race the
	// exchange endpoint with the same refresh token.
	mu sync.Mutex
}

// NewManager creates a new auth manager.
func NewManager(cfg *config.Config, store *session.Store, httpClient *http.Client, notify output.Notifier) *Manager {
	return &Manager{
		cfg:        cfg,
		store:      store,
		httpClient: httpClient,
		notify:     notify,
		openURL:    openBrowser,
	}
}

// GenerateState produces the one-time nonce binding a login attempt to its
// callback: 16 bytes from crypto/rand, lowercase hex.
func GenerateState() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// LoginOptions configures the login flow.
type LoginOptions struct {
	NoBrowser bool // If true, don't auto-open the browser, just return the URL
}

// StartLogin generates a nonce, persists it as the pending login state
// (overwriting any prior one — only one attempt may be outstanding), and
// hands off to the external browser. It returns the authorization URL and
// does not block; completion arrives later via the callback.
func (m *Manager) StartLogin(ctx context.Context, opts LoginOptions) (string, error) {
	state := GenerateState()

	if err := m.store.Update(func(s *session.Settings) error {
		s.OAuthState = state
		return nil
	}); err != nil {
		return "", err
	}

	loginURL := m.cfg.LoginURL(state)

	if opts.NoBrowser {
		m.notify.Notify("Open this URL in your browser to sign in:\n" + loginURL)
		return loginURL, nil
	}

	if err := m.openURL(loginURL); err != nil {
		m.notify.Notify("Couldn't open the browser. Open this URL to sign in:\n" + loginURL)
		return loginURL, nil
	}

	m.notify.Notify("Complete the sign-in in your browser")
	return loginURL, nil
}

// HandleCallback consumes a validated login callback and reports whether the
// session ended up signed in with a known profile.
//
// The pending nonce may have been written by a separate invocation of the
// host process, so the durable session is always re-read before comparing.
// The nonce is single-use: it is cleared on a match before anything else, so
// a replay with the same state falls into the already-consumed branch. In
// that branch an authenticated session still adopts the callback's tokens —
// the provider may deliver the same login twice — while an anonymous one
// rejects the payload.
//
// Tokens persist even when the subsequent profile fetch fails; the session
// is then authenticated but the profile unknown, and the call reports false.
func (m *Manager) HandleCallback(ctx context.Context, cb *Callback) bool {
	settings, err := m.store.Load()
	if err != nil {
		return false
	}

	if settings.OAuthState == "" {
		if !settings.Authenticated() {
			return false
		}
		if err := m.storeTokens(cb); err != nil {
			return false
		}
		return m.adoptProfile(ctx)
	}

	if settings.OAuthState != cb.State {
		m.notify.Notify("Sign-in failed: invalid state")
		return false
	}

	if err := m.store.Update(func(s *session.Settings) error {
		s.OAuthState = ""
		return nil
	}); err != nil {
		return false
	}

	if err := m.storeTokens(cb); err != nil {
		return false
	}
	return m.adoptProfile(ctx)
}

func (m *Manager) storeTokens(cb *Callback) error {
	env := cb.EnvName
	if env == "" {
		env = m.cfg.Env()
	}
	return m.store.Update(func(s *session.Settings) error {
		s.AuthToken = &models.TokenPair{
			AccessToken:         cb.AccessToken,
			RefreshToken:        cb.RefreshToken,
			AccessTokenExpireAt: cb.AccessTokenExpire,
			EnvName:             env,
		}
		s.UID = cb.UID
		if cb.EnvName != "" {
			s.EnvName = cb.EnvName
		}
		return nil
	})
}

// adoptProfile fetches the remote profile and stores it, greeting the user
// on success.
func (m *Manager) adoptProfile(ctx context.Context) bool {
	user, err := m.FetchUser(ctx)
	if err != nil || user == nil {
		return false
	}

	if err := m.store.Update(func(s *session.Settings) error {
		s.User = user
		return nil
	}); err != nil {
		return false
	}

	m.notify.Notify("Signed in. Welcome " + user.DisplayName())
	return true
}

// FetchUser retrieves the current user's profile from the service.
// A 401 means the credentials no longer work and invalidates the session.
func (m *Manager) FetchUser(ctx context.Context) (*models.User, error) {
	settings, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	if !settings.Authenticated() {
		return nil, output.ErrAuth("Not signed in")
	}

	body, err := json.Marshal(map[string]string{"uid": settings.UID})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.APIURL()+"/user/info", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, v := range m.Headers(ctx) {
		req.Header.Set(k, v)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, output.ErrNetwork(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		_ = m.Logout()
		return nil, output.ErrAuth("Session expired")
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, output.ErrAPI(resp.StatusCode, fmt.Sprintf("user info failed: %s", string(respBody)))
	}

	var result struct {
		Success bool         `json:"success"`
		Data    *models.User `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if !result.Success || result.Data == nil {
		return nil, output.ErrAPI(resp.StatusCode, "user info returned no data")
	}

	return result.Data, nil
}

// AccessToken returns a usable bearer token: the cached one while its expiry
// is strictly in the future, otherwise the result of a refresh exchange.
// Returns ErrNotAuthenticated without any network call when no refresh token
// is stored.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	settings, err := m.store.Load()
	if err != nil {
		return "", err
	}
	tok := settings.AuthToken
	if tok == nil || tok.RefreshToken == "" {
		return "", ErrNotAuthenticated
	}

	if tok.AccessToken != "" && tok.AccessTokenExpireAt > 0 && time.Now().UnixMilli() < tok.AccessTokenExpireAt {
		return tok.AccessToken, nil
	}

	return m.refreshLocked(ctx, tok)
}

// RefreshAccessToken forces a refresh exchange regardless of cached expiry.
func (m *Manager) RefreshAccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	settings, err := m.store.Load()
	if err != nil {
		return "", err
	}
	tok := settings.AuthToken
	if tok == nil || tok.RefreshToken == "" {
		return "", ErrNotAuthenticated
	}

	return m.refreshLocked(ctx, tok)
}

// refreshLocked exchanges the refresh token for a new access token.
// An authorization failure from the exchange invalidates the whole session;
// any other failure is transient and leaves state untouched.
func (m *Manager) refreshLocked(ctx context.Context, tok *models.TokenPair) (string, error) {
	body, err := json.Marshal(map[string]string{"refresh_token": tok.RefreshToken})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.RefreshURL(), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", output.ErrNetwork(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// The refresh token itself no longer works; sign the user out.
		_ = m.Logout()
		return "", output.ErrAuth("Session expired, sign in again")
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", output.ErrAPI(resp.StatusCode, fmt.Sprintf("token refresh failed: %s", string(respBody)))
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", output.ErrAPI(resp.StatusCode, "malformed refresh response")
	}
	if result.AccessToken == "" {
		return "", output.ErrAPI(resp.StatusCode, "refresh returned no access token")
	}

	expireAt := time.Now().UnixMilli() + result.ExpiresIn*1000

	if err := m.store.Update(func(s *session.Settings) error {
		if s.AuthToken == nil {
			s.AuthToken = tok
		}
		s.AuthToken.AccessToken = result.AccessToken
		s.AuthToken.AccessTokenExpireAt = expireAt
		return nil
	}); err != nil {
		return "", err
	}

	return result.AccessToken, nil
}

// Logout clears the credential and profile fields from the session and
// persists the change. Idempotent.
func (m *Manager) Logout() error {
	if err := m.store.Update(func(s *session.Settings) error {
		s.AuthToken = nil
		s.User = nil
		return nil
	}); err != nil {
		return err
	}
	m.notify.Notify("Signed out")
	return nil
}

// IsAuthenticated reports whether a refresh token is stored. Local, offline
// check only.
func (m *Manager) IsAuthenticated() bool {
	settings, err := m.store.Load()
	if err != nil {
		return false
	}
	return settings.Authenticated()
}

// UID returns the stored user id, or "".
func (m *Manager) UID() string {
	settings, err := m.store.Load()
	if err != nil {
		return ""
	}
	return settings.UID
}

// User returns the stored profile snapshot, or nil.
func (m *Manager) User() *models.User {
	settings, err := m.store.Load()
	if err != nil {
		return nil
	}
	return settings.User
}

// Headers builds the request headers every outbound API call must use.
// No call may construct auth headers independently. The bearer header is
// present only when a usable access token could be produced.
func (m *Manager) Headers(ctx context.Context) map[string]string {
	h := map[string]string{"Content-Type": "application/json"}

	if token, err := m.AccessToken(ctx); err == nil && token != "" {
		h["Authorization"] = "Bearer " + token
	}

	if settings, err := m.store.Load(); err == nil && settings.UID != "" {
		h["x-cloudbase-uid"] = settings.UID
	}
	h["x-cloudbase-env"] = m.cfg.Env()

	return h
}
