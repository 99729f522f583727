package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orchid-cli/orchid/internal/api"
	"github.com/orchid-cli/orchid/internal/models"
	"github.com/orchid-cli/orchid/internal/store"
)

// memStore is an in-memory store.Store for session tests. It is
// mutex-guarded like the real SQLite store: the 401 hook can clear
// credentials from several request goroutines at once.
type memStore struct {
	mu       sync.Mutex
	creds    *store.Credentials
	loadErr  error
	saveErr  error
	clears   int
	snapshot map[string][]byte
}

func (m *memStore) SaveCredentials(_ context.Context, c *store.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	cp := *c
	m.creds = &cp
	return nil
}

func (m *memStore) LoadCredentials(context.Context) (*store.Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.creds == nil {
		return nil, nil
	}
	cp := *m.creds
	return &cp, nil
}

func (m *memStore) ClearCredentials(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = nil
	m.clears++
	return nil
}

func (m *memStore) Credentials() *store.Credentials {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.creds == nil {
		return nil
	}
	cp := *m.creds
	return &cp
}

func (m *memStore) Clears() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clears
}

func (m *memStore) SaveSnapshot(_ context.Context, collection string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshot == nil {
		m.snapshot = map[string][]byte{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	m.snapshot[collection] = data
	return nil
}

func (m *memStore) LoadSnapshot(_ context.Context, collection string, out any) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.snapshot[collection]
	if !ok {
		return time.Time{}, nil
	}
	return time.Now(), json.Unmarshal(data, out)
}

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Close() error                  { return nil }

func newTestManager(t *testing.T, handler http.HandlerFunc) (*Manager, *memStore) {
	t.Helper()
	ms := &memStore{}
	mgr := NewManager(ms, nil)

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	client := api.New(ts.URL, 5*time.Second, mgr)
	mgr.AttachClient(client)
	return mgr, ms
}

func authResponse(token, refresh, userID string) map[string]any {
	return map[string]any{
		"access_token":  token,
		"refresh_token": refresh,
		"user":          map[string]any{"id": userID, "email": "a@b.c", "username": "ab"},
	}
}

func TestRestore_Empty(t *testing.T) {
	mgr, _ := newTestManager(t, nil)
	mgr.Restore(context.Background())

	assert.False(t, mgr.Authenticated())
	assert.Nil(t, mgr.User())
}

func TestRestore_PersistedSession(t *testing.T) {
	mgr, ms := newTestManager(t, nil)
	ms.creds = &store.Credentials{
		AccessToken:  "at",
		RefreshToken: "rt",
		User:         models.User{ID: "u1"},
	}

	mgr.Restore(context.Background())

	assert.True(t, mgr.Authenticated())
	assert.Equal(t, "at", mgr.Token())
	require.NotNil(t, mgr.User())
	assert.Equal(t, "u1", mgr.User().ID)
}

func TestRestore_CorruptStorageCleared(t *testing.T) {
	mgr, ms := newTestManager(t, nil)
	ms.loadErr = errors.New("partial credentials in storage")

	mgr.Restore(context.Background())

	assert.False(t, mgr.Authenticated())
	assert.Equal(t, 1, ms.clears, "corrupt storage must be cleared")
}

func TestLogin_Success(t *testing.T) {
	mgr, ms := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/login", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@b.c", body["email"])
		_ = json.NewEncoder(w).Encode(authResponse("at", "rt", "u1"))
	})

	err := mgr.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)

	assert.True(t, mgr.Authenticated())
	require.NotNil(t, ms.creds, "credentials must be persisted")
	assert.Equal(t, "at", ms.creds.AccessToken)
	assert.Equal(t, "rt", ms.creds.RefreshToken)
	assert.Equal(t, "u1", ms.creds.User.ID)
}

func TestLogin_MissingFields(t *testing.T) {
	mgr, _ := newTestManager(t, nil)
	assert.Error(t, mgr.Login(context.Background(), "", "pw"))
	assert.Error(t, mgr.Login(context.Background(), "a@b.c", ""))
	assert.False(t, mgr.Authenticated())
}

func TestLogin_ServerRejection(t *testing.T) {
	mgr, ms := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Invalid credentials"})
	})

	err := mgr.Login(context.Background(), "a@b.c", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Invalid credentials", err.Error())
	assert.False(t, mgr.Authenticated())
	assert.Nil(t, ms.creds)
}

func TestRegister_AuthenticatesImmediately(t *testing.T) {
	mgr, _ := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/register", r.URL.Path)
		_ = json.NewEncoder(w).Encode(authResponse("at", "rt", "u2"))
	})

	err := mgr.Register(context.Background(), api.RegisterRequest{
		Username: "ab", Email: "a@b.c", Password: "pw",
	})
	require.NoError(t, err)
	assert.True(t, mgr.Authenticated())
}

func TestLogout_ClearsDespiteRemoteFailure(t *testing.T) {
	mgr, ms := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/login" {
			_ = json.NewEncoder(w).Encode(authResponse("at", "rt", "u1"))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	})

	require.NoError(t, mgr.Login(context.Background(), "a@b.c", "pw"))
	mgr.Logout(context.Background())

	assert.False(t, mgr.Authenticated())
	assert.Nil(t, mgr.User())
	assert.Nil(t, ms.creds)
}

func TestAuthFailure_ClearsSession(t *testing.T) {
	mgr, ms := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/login" {
			_ = json.NewEncoder(w).Encode(authResponse("stale", "rt", "u1"))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Token expired"})
	})

	require.NoError(t, mgr.Login(context.Background(), "a@b.c", "pw"))
	require.True(t, mgr.Authenticated())

	// Any authenticated call that comes back 401 is session-fatal.
	err := mgr.RefreshProfile(context.Background())
	require.Error(t, err)
	assert.True(t, api.IsAuthError(err))
	assert.False(t, mgr.Authenticated())
	assert.Nil(t, ms.creds)
}

func TestAuthFailure_ConcurrentRejections(t *testing.T) {
	mgr, ms := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/login" {
			_ = json.NewEncoder(w).Encode(authResponse("stale", "rt", "u1"))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Token expired"})
	})

	require.NoError(t, mgr.Login(context.Background(), "a@b.c", "pw"))

	// Several in-flight calls can all come back 401 at once; each fires
	// the session-fatal hook. Clearing is idempotent, so this must not
	// crash or leave a half session.
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// A call that starts after another's clear lands sees
			// ErrNotAuthenticated instead of the 401; both are failures.
			err := mgr.RefreshProfile(context.Background())
			assert.Error(t, err)
		}()
	}
	wg.Wait()

	assert.False(t, mgr.Authenticated())
	assert.Nil(t, mgr.User())
	assert.Nil(t, ms.Credentials())
	assert.GreaterOrEqual(t, ms.Clears(), 1)
}

func TestRefreshToken_NoToken(t *testing.T) {
	mgr, ms := newTestManager(t, nil)

	err := mgr.RefreshToken(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, ms.clears)
}

func TestRefreshToken_Success_KeepsUnrotatedRefreshToken(t *testing.T) {
	mgr, ms := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			_ = json.NewEncoder(w).Encode(authResponse("old-at", "rt-keep", "u1"))
		case "/auth/refresh":
			assert.Equal(t, "Bearer rt-keep", r.Header.Get("Authorization"))
			// No refresh_token and no user in the response.
			_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "new-at"})
		}
	})

	require.NoError(t, mgr.Login(context.Background(), "a@b.c", "pw"))
	require.NoError(t, mgr.RefreshToken(context.Background()))

	assert.Equal(t, "new-at", mgr.Token())
	assert.Equal(t, "rt-keep", ms.creds.RefreshToken, "unrotated refresh token survives")
	assert.Equal(t, "u1", ms.creds.User.ID, "user record survives a token-only response")
}

func TestRefreshToken_FailureLogsOut(t *testing.T) {
	mgr, ms := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			_ = json.NewEncoder(w).Encode(authResponse("at", "rt-dead", "u1"))
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Refresh token revoked"})
		}
	})

	require.NoError(t, mgr.Login(context.Background(), "a@b.c", "pw"))
	err := mgr.RefreshToken(context.Background())
	require.Error(t, err)

	assert.False(t, mgr.Authenticated(), "a dead refresh token must not leave a half session")
	assert.Nil(t, ms.creds)
}

func TestUpdateProfile_ReplacesUserWholesale(t *testing.T) {
	mgr, ms := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			_ = json.NewEncoder(w).Encode(authResponse("at", "rt", "u1"))
		case "/auth/update-profile":
			require.Equal(t, http.MethodPut, r.Method)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"user": map[string]any{"id": "u1", "first_name": "Ada", "email": "a@b.c"},
			})
		}
	})

	require.NoError(t, mgr.Login(context.Background(), "a@b.c", "pw"))
	require.NoError(t, mgr.UpdateProfile(context.Background(), map[string]any{"first_name": "Ada"}))

	u := mgr.User()
	require.NotNil(t, u)
	assert.Equal(t, "Ada", u.FirstName)
	assert.Equal(t, "", u.Username, "server record replaces the old one field for field")
	assert.Equal(t, "Ada", ms.creds.User.FirstName, "persisted copy follows memory")
}

func TestUpdateProfile_RequiresSession(t *testing.T) {
	mgr, _ := newTestManager(t, nil)
	err := mgr.UpdateProfile(context.Background(), map[string]any{"first_name": "x"})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}
