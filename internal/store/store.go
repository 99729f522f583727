package store

import (
	"context"
	"time"

	"github.com/orchid-cli/orchid/internal/models"
)

// Snapshot collection names. Fixed keys: a snapshot is always saved and
// loaded under the same name.
const (
	SnapshotTasks     = "tasks"
	SnapshotAgents    = "agents"
	SnapshotContent   = "content"
	SnapshotTaskStats = "task_stats"
	SnapshotOrchTasks = "orch_tasks"
)

// Credentials is the persisted session: bearer token, optional refresh
// token, and the serialized user record. The three are written and
// cleared together, never independently.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	User         models.User
}

// Store is the durable local storage behind the session manager and the
// offline snapshot cache.
type Store interface {
	// Credentials
	SaveCredentials(ctx context.Context, creds *Credentials) error
	// LoadCredentials returns (nil, nil) when nothing is persisted. A
	// malformed record returns an error; the caller is expected to clear
	// and continue unauthenticated.
	LoadCredentials(ctx context.Context) (*Credentials, error)
	ClearCredentials(ctx context.Context) error

	// Snapshots cache the last server-acknowledged collections for
	// offline listing. They are read-only copies, never reconciled back.
	SaveSnapshot(ctx context.Context, collection string, payload any) error
	// LoadSnapshot decodes the named snapshot into out and returns when
	// it was synced. A missing snapshot returns a zero time and nil error.
	LoadSnapshot(ctx context.Context, collection string, out any) (time.Time, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
