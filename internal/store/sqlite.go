package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Fixed storage keys for the credentials table.
const (
	keyAccessToken  = "auth_token"
	keyRefreshToken = "refresh_token"
	keyUser         = "user"
)

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Limiting to a single
	// connection serializes all DB access through Go's connection pool,
	// preventing "database is locked" errors from concurrent operations.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout so concurrent writes wait instead of failing immediately
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) setValue(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO credentials (key, value, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value)
	return err
}

func (s *SQLiteStore) getValue(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM credentials WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SaveCredentials writes token, refresh token, and user record together.
func (s *SQLiteStore) SaveCredentials(ctx context.Context, creds *Credentials) error {
	userJSON, err := json.Marshal(creds.User)
	if err != nil {
		return fmt.Errorf("encode user record: %w", err)
	}
	if err := s.setValue(ctx, keyAccessToken, creds.AccessToken); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	if err := s.setValue(ctx, keyRefreshToken, creds.RefreshToken); err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	if err := s.setValue(ctx, keyUser, string(userJSON)); err != nil {
		return fmt.Errorf("save user record: %w", err)
	}
	return nil
}

// LoadCredentials reads the persisted session. Both the token and the
// user record must be present; anything partial or unparsable is an
// error so the caller can clear and start unauthenticated.
func (s *SQLiteStore) LoadCredentials(ctx context.Context) (*Credentials, error) {
	token, haveToken, err := s.getValue(ctx, keyAccessToken)
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}
	userJSON, haveUser, err := s.getValue(ctx, keyUser)
	if err != nil {
		return nil, fmt.Errorf("load user record: %w", err)
	}

	if !haveToken && !haveUser {
		return nil, nil
	}
	if !haveToken || !haveUser || token == "" {
		return nil, errors.New("partial credentials in storage")
	}

	creds := &Credentials{AccessToken: token}
	if err := json.Unmarshal([]byte(userJSON), &creds.User); err != nil {
		return nil, fmt.Errorf("decode user record: %w", err)
	}

	rt, haveRefresh, err := s.getValue(ctx, keyRefreshToken)
	if err != nil {
		return nil, fmt.Errorf("load refresh token: %w", err)
	}
	if haveRefresh {
		creds.RefreshToken = rt
	}
	return creds, nil
}

// ClearCredentials removes all persisted session state. Clearing an
// already-empty store is a no-op.
func (s *SQLiteStore) ClearCredentials(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM credentials WHERE key IN (?, ?, ?)",
		keyAccessToken, keyRefreshToken, keyUser)
	return err
}

// SaveSnapshot stores a JSON-encoded copy of a collection.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, collection string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", collection, err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO snapshots (collection, payload, synced_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(collection) DO UPDATE SET payload = excluded.payload, synced_at = excluded.synced_at`,
		collection, string(data))
	return err
}

// LoadSnapshot decodes the named snapshot into out.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context, collection string, out any) (time.Time, error) {
	var payload, syncedAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT payload, synced_at FROM snapshots WHERE collection = ?", collection).
		Scan(&payload, &syncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return time.Time{}, fmt.Errorf("decode snapshot %s: %w", collection, err)
	}
	t, err := time.Parse("2006-01-02 15:04:05", syncedAt)
	if err != nil {
		t = time.Time{}
	}
	return t, nil
}
