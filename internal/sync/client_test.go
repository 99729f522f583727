package sync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orchid-cli/orchid/internal/api"
	"github.com/orchid-cli/orchid/internal/models"
	"github.com/orchid-cli/orchid/internal/store"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

// memStore implements store.Store for snapshot tests. Guarded because
// LoadInitial snapshots concurrently.
type memStore struct {
	mu       sync.Mutex
	snapshot map[string][]byte
}

func (m *memStore) SaveCredentials(context.Context, *store.Credentials) error { return nil }
func (m *memStore) LoadCredentials(context.Context) (*store.Credentials, error) {
	return nil, nil
}
func (m *memStore) ClearCredentials(context.Context) error { return nil }

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

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return New(api.New(ts.URL, 5*time.Second, staticToken("tok")), nil, nil)
}

func taskJSON(id, title, status string) map[string]any {
	return map[string]any{"id": id, "title": title, "status": status, "task_type": "research"}
}

func writeTask(w http.ResponseWriter, id, title, status string) {
	_ = json.NewEncoder(w).Encode(map[string]any{"task": taskJSON(id, title, status)})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func seedTasks(t *testing.T, c *Client, tasks ...map[string]any) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := json.Marshal(tasks)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &c.tasks))
}

func TestLoadTasks_ReplacesWholesale(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tasks", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"tasks": []map[string]any{taskJSON("t1", "one", "pending")},
		})
	})
	seedTasks(t, c, taskJSON("old", "stale", "completed"))

	tasks, err := c.LoadTasks(context.Background(), api.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "t1", tasks[0].ID, "previous contents are discarded, not merged")
}

func TestLoadTasks_FailureKeepsCollection(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusInternalServerError, "boom")
	})
	seedTasks(t, c, taskJSON("t1", "keep me", "pending"))

	_, err := c.LoadTasks(context.Background(), api.TaskFilter{})
	require.Error(t, err)

	tasks := c.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "t1", tasks[0].ID)
}

func TestCreateTask_ValidatesBeforeNetwork(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for an invalid draft")
	})

	_, err := c.CreateTask(context.Background(), models.TaskDraft{Type: "research"})
	assert.ErrorContains(t, err, "title")

	_, err = c.CreateTask(context.Background(), models.TaskDraft{Title: "x"})
	assert.ErrorContains(t, err, "type")
}

func TestCreateTask_PrependsServerRecord(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		// Server assigns the id and the initial status.
		writeTask(w, "t9", "new task", "pending")
	})
	seedTasks(t, c, taskJSON("t4", "a", "running"), taskJSON("t3", "b", "completed"))

	task, err := c.CreateTask(context.Background(), models.TaskDraft{Title: "new task", Type: "research"})
	require.NoError(t, err)
	assert.Equal(t, "t9", task.ID)

	tasks := c.Tasks()
	require.Len(t, tasks, 3)
	assert.Equal(t, []string{"t9", "t4", "t3"}, []string{tasks[0].ID, tasks[1].ID, tasks[2].ID})
}

func TestCreateTask_FailureLeavesCollection(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusPaymentRequired, "Insufficient credits")
	})
	seedTasks(t, c, taskJSON("t1", "only", "pending"))

	_, err := c.CreateTask(context.Background(), models.TaskDraft{Title: "x", Type: "research"})
	require.Error(t, err)
	assert.Equal(t, "Insufficient credits", err.Error())

	tasks := c.Tasks()
	require.Len(t, tasks, 1, "the draft is never inserted")
	assert.Equal(t, "t1", tasks[0].ID)
}

func TestUpdateTask_ReplacesMatchingEntry(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		writeTask(w, "t1", "renamed", "pending")
	})
	seedTasks(t, c, taskJSON("t1", "old name", "pending"), taskJSON("t2", "other", "running"))

	_, err := c.UpdateTask(context.Background(), "t1", map[string]any{"title": "renamed"})
	require.NoError(t, err)

	tasks := c.Tasks()
	assert.Equal(t, "renamed", tasks[0].Title)
	assert.Equal(t, "other", tasks[1].Title)
}

func TestUpdateTask_UnknownIDDropped(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeTask(w, "ghost", "phantom", "pending")
	})
	seedTasks(t, c, taskJSON("t1", "a", "pending"))

	_, err := c.UpdateTask(context.Background(), "ghost", map[string]any{"title": "phantom"})
	require.NoError(t, err)

	tasks := c.Tasks()
	require.Len(t, tasks, 1, "an update never promotes an unseen record")
	assert.Equal(t, "t1", tasks[0].ID)
}

func TestDeleteTask(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		_ = json.NewEncoder(w).Encode(map[string]any{"message": "deleted"})
	})
	seedTasks(t, c, taskJSON("t1", "a", "pending"), taskJSON("t2", "b", "pending"))

	require.NoError(t, c.DeleteTask(context.Background(), "t1"))

	tasks := c.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "t2", tasks[0].ID)

	// Deleting an id the collection no longer has is a local no-op.
	require.NoError(t, c.DeleteTask(context.Background(), "t1"))
	assert.Len(t, c.Tasks(), 1)
}

func TestDeleteTask_FailureKeepsEntry(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Task not found")
	})
	seedTasks(t, c, taskJSON("t1", "a", "pending"))

	require.Error(t, c.DeleteTask(context.Background(), "t1"))
	assert.Len(t, c.Tasks(), 1)
}

func TestCancelTask_ServerDecidesStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tasks/t1/cancel", r.URL.Path)
		writeTask(w, "t1", "a", "cancelled")
	})
	seedTasks(t, c, taskJSON("t1", "a", "running"))

	task, err := c.CancelTask(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCancelled, task.Status)
	assert.Equal(t, models.TaskStatusCancelled, c.Tasks()[0].Status)
}

func TestCancelTask_RejectionKeepsLocalStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusBadRequest, "Task cannot be cancelled")
	})
	seedTasks(t, c, taskJSON("t1", "a", "completed"))

	_, err := c.CancelTask(context.Background(), "t1")
	require.Error(t, err)
	assert.Equal(t, models.TaskStatusCompleted, c.Tasks()[0].Status, "no speculative local transition")
}

func TestUploadContent_Prepends(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/content/upload", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": map[string]any{"id": "c2", "filename": "new.txt"},
		})
	})
	c.mu.Lock()
	c.content = []models.ContentItem{{ID: "c1", Filename: "old.txt"}}
	c.mu.Unlock()

	item, err := c.UploadContent(context.Background(), strings.NewReader("data"), "new.txt", "text/plain", "")
	require.NoError(t, err)
	assert.Equal(t, "c2", item.ID)

	content := c.Content()
	require.Len(t, content, 2)
	assert.Equal(t, "c2", content[0].ID)
}

func TestUploadContent_FailureLeavesCollection(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusRequestEntityTooLarge, "File too large")
	})

	_, err := c.UploadContent(context.Background(), strings.NewReader("data"), "big.bin", "application/octet-stream", "")
	require.Error(t, err)
	assert.Empty(t, c.Content())
}

func TestLoadTaskStats_Wholesale(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tasks/stats", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"stats": map[string]any{"total": 7, "completed": 5, "credits_used": 120},
		})
	})

	stats, err := c.LoadTaskStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, stats.Total)
	assert.Equal(t, 5, stats.Completed)
	assert.Equal(t, 120, stats.CreditsUsed)
	assert.Equal(t, stats, c.Stats())
}

func TestLoadInitial_CollectsAllErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tasks":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"tasks": []map[string]any{taskJSON("t1", "a", "pending")},
			})
		case "/agents":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"agents": []map[string]any{{"id": "a1", "name": "Researcher"}},
			})
		case "/content":
			writeError(w, http.StatusInternalServerError, "content store down")
		case "/tasks/stats":
			_ = json.NewEncoder(w).Encode(map[string]any{"stats": map[string]any{"total": 1}})
		}
	})

	err := c.LoadInitial(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content store down")

	// The loads that succeeded still landed.
	assert.Len(t, c.Tasks(), 1)
	assert.Len(t, c.Agents(), 1)
	assert.Empty(t, c.Content())
	require.NotNil(t, c.Stats())
}

func TestSnapshots_WrittenAndReadBack(t *testing.T) {
	ms := &memStore{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tasks":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"tasks": []map[string]any{taskJSON("t1", "synced", "pending")},
			})
		case "/agents":
			_ = json.NewEncoder(w).Encode(map[string]any{"agents": []any{}})
		case "/content":
			_ = json.NewEncoder(w).Encode(map[string]any{"content": []any{}})
		}
	}))
	t.Cleanup(ts.Close)

	online := New(api.New(ts.URL, 5*time.Second, staticToken("tok")), ms, nil)
	_, err := online.LoadTasks(context.Background(), api.TaskFilter{})
	require.NoError(t, err)

	// A fresh client over the same store sees the snapshot without any
	// network calls.
	offline := New(nil, ms, nil)
	require.NoError(t, offline.LoadCached(context.Background()))

	tasks := offline.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "synced", tasks[0].Title)
}

func TestLoadCached_NoStore(t *testing.T) {
	c := New(nil, nil, nil)
	assert.Error(t, c.LoadCached(context.Background()))
}

func TestAccessors_ReturnCopies(t *testing.T) {
	c := newTestClient(t, nil)
	seedTasks(t, c, taskJSON("t1", "a", "pending"))

	tasks := c.Tasks()
	tasks[0].Title = "mutated"
	assert.Equal(t, "a", c.Tasks()[0].Title, "callers cannot mutate internal state")
}

func TestAccessors_DeepCopyReferenceFields(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tasks":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"tasks": []map[string]any{{
					"id": "t1", "title": "a", "status": "pending", "task_type": "research",
					"input_data": map[string]any{"region": "EMEA"},
				}},
			})
		case "/tasks/stats":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"stats": map[string]any{
					"total":   2,
					"by_type": map[string]int{"research": 2},
				},
			})
		}
	})
	ctx := context.Background()

	_, err := c.LoadTasks(ctx, api.TaskFilter{})
	require.NoError(t, err)
	returned, err := c.LoadTaskStats(ctx)
	require.NoError(t, err)

	// Mutating maps on returned records must not reach the collection.
	tasks := c.Tasks()
	tasks[0].InputData["region"] = "APAC"
	assert.Equal(t, "EMEA", c.Tasks()[0].InputData["region"])

	stats := c.Stats()
	stats.ByType["research"] = 99
	returned.ByType["research"] = 99
	assert.Equal(t, 2, c.Stats().ByType["research"])
}
