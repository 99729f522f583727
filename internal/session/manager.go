// Package session owns the authentication state: who is logged in and
// what credential outgoing requests carry. It is the api.Client's token
// source and the sole writer of persisted credentials.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/orchid-cli/orchid/internal/api"
	"github.com/orchid-cli/orchid/internal/models"
	"github.com/orchid-cli/orchid/internal/notify"
	"github.com/orchid-cli/orchid/internal/store"
)

// ErrNotAuthenticated is returned by operations that need a live session.
var ErrNotAuthenticated = errors.New("not logged in")

// Manager is the single source of truth for the current session. All
// state-changing operations write through to the store together with the
// in-memory update, so a restart never observes the two out of sync.
type Manager struct {
	store  store.Store
	notify notify.Notifier

	mu           sync.RWMutex
	client       *api.Client
	accessToken  string
	refreshToken string
	user         *models.User
}

// NewManager creates a Manager over the given store. Attach the api
// client with AttachClient before calling network operations.
func NewManager(st store.Store, n notify.Notifier) *Manager {
	if n == nil {
		n = notify.Nop{}
	}
	return &Manager{store: st, notify: n}
}

// AttachClient wires the api client to this manager: the manager becomes
// its auth-failure hook. The client should already use the manager as its
// TokenSource.
func (m *Manager) AttachClient(c *api.Client) {
	m.mu.Lock()
	m.client = c
	m.mu.Unlock()
	// Any 401, from any operation, is session-fatal. The clear is
	// idempotent; concurrent rejections are safe.
	c.OnAuthFailure(m.clear)
}

// Token implements api.TokenSource.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accessToken
}

// Authenticated reports whether a session is live.
func (m *Manager) Authenticated() bool {
	return m.Token() != ""
}

// User returns a copy of the current user record, or nil when logged out.
func (m *Manager) User() *models.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

func (m *Manager) apiClient() *api.Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client
}

// Restore loads persisted credentials into memory without any network
// call (trust-on-read; a stale token surfaces as a 401 on first use).
// Malformed or partial storage is cleared and the session starts
// unauthenticated. Restore never fails the startup path.
func (m *Manager) Restore(ctx context.Context) {
	creds, err := m.store.LoadCredentials(ctx)
	if err != nil {
		_ = m.store.ClearCredentials(ctx)
		return
	}
	if creds == nil {
		return
	}
	m.mu.Lock()
	m.accessToken = creds.AccessToken
	m.refreshToken = creds.RefreshToken
	u := creds.User
	m.user = &u
	m.mu.Unlock()
}

// setSession persists the credentials and then installs them in memory.
func (m *Manager) setSession(ctx context.Context, accessToken, refreshToken string, user models.User) error {
	creds := &store.Credentials{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}
	if err := m.store.SaveCredentials(ctx, creds); err != nil {
		return err
	}
	m.mu.Lock()
	m.accessToken = accessToken
	m.refreshToken = refreshToken
	m.user = &user
	m.mu.Unlock()
	return nil
}

// clear drops in-memory and persisted credentials. Idempotent.
func (m *Manager) clear() {
	m.mu.Lock()
	m.accessToken = ""
	m.refreshToken = ""
	m.user = nil
	m.mu.Unlock()
	_ = m.store.ClearCredentials(context.Background())
}

// Login authenticates with email and password. On failure the session is
// left untouched and the server's message is surfaced verbatim.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return errors.New("email and password are required")
	}
	resp, err := m.apiClient().Login(ctx, email, password)
	if err != nil {
		m.notify.Error("Login failed: %v", err)
		return err
	}
	if err := m.setSession(ctx, resp.AccessToken, resp.RefreshToken, resp.User); err != nil {
		return err
	}
	m.notify.Success("Logged in as %s", resp.User.DisplayName())
	return nil
}

// Register creates an account; the response is treated exactly like a
// login.
func (m *Manager) Register(ctx context.Context, req api.RegisterRequest) error {
	if req.Email == "" || req.Password == "" {
		return errors.New("email and password are required")
	}
	resp, err := m.apiClient().Register(ctx, req)
	if err != nil {
		m.notify.Error("Registration failed: %v", err)
		return err
	}
	if err := m.setSession(ctx, resp.AccessToken, resp.RefreshToken, resp.User); err != nil {
		return err
	}
	m.notify.Success("Registered as %s", resp.User.DisplayName())
	return nil
}

// GoogleLogin exchanges a Google ID token for a session.
func (m *Manager) GoogleLogin(ctx context.Context, idToken string) error {
	if idToken == "" {
		return errors.New("google token is required")
	}
	resp, err := m.apiClient().GoogleLogin(ctx, idToken)
	if err != nil {
		m.notify.Error("Google login failed: %v", err)
		return err
	}
	if err := m.setSession(ctx, resp.AccessToken, resp.RefreshToken, resp.User); err != nil {
		return err
	}
	m.notify.Success("Logged in as %s", resp.User.DisplayName())
	return nil
}

// Logout best-effort invalidates the session server-side, then
// unconditionally clears local state. A network failure never blocks
// logout.
func (m *Manager) Logout(ctx context.Context) {
	if m.Authenticated() {
		_ = m.apiClient().Logout(ctx)
	}
	m.clear()
	m.notify.Success("Logged out")
}

// UpdateProfile applies a partial profile update. The server's returned
// record replaces the local user; on failure the session is untouched.
func (m *Manager) UpdateProfile(ctx context.Context, fields map[string]any) error {
	if !m.Authenticated() {
		return ErrNotAuthenticated
	}
	user, err := m.apiClient().UpdateProfile(ctx, fields)
	if err != nil {
		m.notify.Error("Profile update failed: %v", err)
		return err
	}
	if err := m.persistUser(ctx, *user); err != nil {
		return err
	}
	m.notify.Success("Profile updated")
	return nil
}

// RefreshProfile re-fetches the user record and replaces the stored copy
// wholesale.
func (m *Manager) RefreshProfile(ctx context.Context) error {
	if !m.Authenticated() {
		return ErrNotAuthenticated
	}
	user, err := m.apiClient().Me(ctx)
	if err != nil {
		return err
	}
	return m.persistUser(ctx, *user)
}

func (m *Manager) persistUser(ctx context.Context, user models.User) error {
	m.mu.RLock()
	access, refresh := m.accessToken, m.refreshToken
	m.mu.RUnlock()
	return m.setSession(ctx, access, refresh, user)
}

// RefreshToken exchanges the stored refresh token for a new access token.
// Any failure is session-fatal: a dead refresh token must not leave the
// client half-authenticated, so the whole session is logged out.
func (m *Manager) RefreshToken(ctx context.Context) error {
	m.mu.RLock()
	rt := m.refreshToken
	m.mu.RUnlock()
	if rt == "" {
		m.clear()
		return errors.New("no refresh token")
	}

	resp, err := m.apiClient().Refresh(ctx, rt)
	if err != nil {
		m.Logout(ctx)
		return err
	}

	// The refresh response may rotate the refresh token; keep the old
	// one when it does not.
	newRefresh := resp.RefreshToken
	if newRefresh == "" {
		newRefresh = rt
	}
	user := resp.User
	if user.ID == "" {
		if u := m.User(); u != nil {
			user = *u
		}
	}
	return m.setSession(ctx, resp.AccessToken, newRefresh, user)
}
