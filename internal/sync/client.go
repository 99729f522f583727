// Package sync keeps the local task, agent, and content collections
// consistent with the remote API. Every mutating operation is
// call-first: the server must acknowledge before any local state moves,
// and the new collection is computed as a pure function of the old one
// and the server's payload. A failed call leaves the collections exactly
// as they were.
package sync

import (
	"context"
	"errors"
	"io"
	"maps"
	"slices"
	"sync"

	"github.com/orchid-cli/orchid/internal/api"
	"github.com/orchid-cli/orchid/internal/models"
	"github.com/orchid-cli/orchid/internal/notify"
	"github.com/orchid-cli/orchid/internal/reconcile"
	"github.com/orchid-cli/orchid/internal/store"
)

func taskID(t models.Task) string           { return t.ID }
func contentID(c models.ContentItem) string { return c.ID }

// Client owns the in-memory collections backed by the remote API. The
// store, when present, receives read-only snapshots for offline listing;
// it is never a write path back to the server.
type Client struct {
	api    *api.Client
	store  store.Store
	notify notify.Notifier

	mu      sync.RWMutex
	tasks   []models.Task
	agents  []models.Agent
	content []models.ContentItem
	stats   *models.TaskStats
}

// New creates a sync client. st may be nil to disable snapshot caching;
// n may be nil for a silent client.
func New(apiClient *api.Client, st store.Store, n notify.Notifier) *Client {
	if n == nil {
		n = notify.Nop{}
	}
	return &Client{api: apiClient, store: st, notify: n}
}

// Tasks returns a copy of the current task collection. The copy is deep
// through the record's maps: mutating a returned task can never reach
// back into the collection.
func (c *Client) Tasks() []models.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Task, len(c.tasks))
	for i, t := range c.tasks {
		t.InputData = maps.Clone(t.InputData)
		t.OutputData = maps.Clone(t.OutputData)
		out[i] = t
	}
	return out
}

// Agents returns a copy of the current agent collection.
func (c *Client) Agents() []models.Agent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Agent, len(c.agents))
	for i, a := range c.agents {
		a.Capabilities = slices.Clone(a.Capabilities)
		out[i] = a
	}
	return out
}

// Content returns a copy of the current content collection.
func (c *Client) Content() []models.ContentItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.ContentItem, len(c.content))
	copy(out, c.content)
	return out
}

// Stats returns the cached task aggregate, or nil before the first load.
func (c *Client) Stats() *models.TaskStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.stats == nil {
		return nil
	}
	s := *c.stats
	s.ByType = maps.Clone(s.ByType)
	return &s
}

func (c *Client) snapshot(collection string, payload any) {
	if c.store == nil {
		return
	}
	// Best-effort cache; a full disk never blocks a successful sync.
	_ = c.store.SaveSnapshot(context.Background(), collection, payload)
}

// LoadTasks fetches a filtered, paged task list and replaces the local
// collection wholesale. Each load is authoritative for its filter set.
func (c *Client) LoadTasks(ctx context.Context, filter api.TaskFilter) ([]models.Task, error) {
	page, err := c.api.ListTasks(ctx, filter)
	if err != nil {
		c.notify.Error("Failed to load tasks: %v", err)
		return nil, err
	}
	c.mu.Lock()
	c.tasks = page.Tasks
	c.mu.Unlock()
	c.snapshot(store.SnapshotTasks, page.Tasks)
	return c.Tasks(), nil
}

// CreateTask validates the draft locally, posts it, and prepends the
// server's returned record. The local draft is never inserted; only the
// server's copy is.
func (c *Client) CreateTask(ctx context.Context, draft models.TaskDraft) (*models.Task, error) {
	if draft.Title == "" {
		return nil, errors.New("task title is required")
	}
	if draft.Type == "" {
		return nil, errors.New("task type is required")
	}

	task, err := c.api.CreateTask(ctx, draft)
	if err != nil {
		c.notify.Error("%v", err)
		return nil, err
	}

	c.mu.Lock()
	c.tasks = reconcile.Prepend(c.tasks, *task)
	tasks := c.tasks
	c.mu.Unlock()

	c.snapshot(store.SnapshotTasks, tasks)
	c.notify.Success("Task created: %s", task.Title)
	return task, nil
}

// UpdateTask applies a partial update and replaces the matching local
// entry. A returned task whose id is not in the collection is dropped.
func (c *Client) UpdateTask(ctx context.Context, id string, patch map[string]any) (*models.Task, error) {
	task, err := c.api.UpdateTask(ctx, id, patch)
	if err != nil {
		c.notify.Error("%v", err)
		return nil, err
	}
	c.replaceTask(id, *task)
	c.notify.Success("Task updated")
	return task, nil
}

// DeleteTask removes the task remotely, then locally. A locally absent id
// is a no-op.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	if err := c.api.DeleteTask(ctx, id); err != nil {
		c.notify.Error("%v", err)
		return err
	}
	c.mu.Lock()
	c.tasks = reconcile.RemoveByID(c.tasks, id, taskID)
	tasks := c.tasks
	c.mu.Unlock()
	c.snapshot(store.SnapshotTasks, tasks)
	c.notify.Success("Task deleted")
	return nil
}

// CancelTask requests cancellation. Modeled as a restricted update: only
// the server decides the resulting status; the whole returned record
// replaces the local one.
func (c *Client) CancelTask(ctx context.Context, id string) (*models.Task, error) {
	task, err := c.api.CancelTask(ctx, id)
	if err != nil {
		c.notify.Error("%v", err)
		return nil, err
	}
	c.replaceTask(id, *task)
	c.notify.Success("Task cancelled")
	return task, nil
}

// ExecuteTask queues a pending task for execution, same discipline as
// CancelTask.
func (c *Client) ExecuteTask(ctx context.Context, id string) (*models.Task, error) {
	task, err := c.api.ExecuteTask(ctx, id)
	if err != nil {
		c.notify.Error("%v", err)
		return nil, err
	}
	c.replaceTask(id, *task)
	c.notify.Success("Task queued for execution")
	return task, nil
}

func (c *Client) replaceTask(id string, task models.Task) {
	c.mu.Lock()
	c.tasks = reconcile.ReplaceByID(c.tasks, id, task, taskID)
	tasks := c.tasks
	c.mu.Unlock()
	c.snapshot(store.SnapshotTasks, tasks)
}

// LoadAgents replaces the agent collection wholesale. Agents are never
// mutated locally, so there is no partial reconciliation.
func (c *Client) LoadAgents(ctx context.Context) ([]models.Agent, error) {
	agents, err := c.api.ListAgents(ctx)
	if err != nil {
		c.notify.Error("Failed to load agents: %v", err)
		return nil, err
	}
	c.mu.Lock()
	c.agents = agents
	c.mu.Unlock()
	c.snapshot(store.SnapshotAgents, agents)
	return c.Agents(), nil
}

// GetAgentRecommendations is stateless: the result goes to the caller and
// no collection changes.
func (c *Client) GetAgentRecommendations(ctx context.Context, description, taskType string) ([]models.Agent, error) {
	agents, err := c.api.RecommendAgents(ctx, description, taskType)
	if err != nil {
		c.notify.Error("Failed to get agent recommendations: %v", err)
		return nil, err
	}
	return agents, nil
}

// LoadContent replaces the content collection wholesale.
func (c *Client) LoadContent(ctx context.Context, filter api.ContentFilter) ([]models.ContentItem, error) {
	page, err := c.api.ListContent(ctx, filter)
	if err != nil {
		c.notify.Error("Failed to load content: %v", err)
		return nil, err
	}
	c.mu.Lock()
	c.content = page.Content
	c.mu.Unlock()
	c.snapshot(store.SnapshotContent, page.Content)
	return c.Content(), nil
}

// UploadContent uploads a file and prepends the server's returned item.
func (c *Client) UploadContent(ctx context.Context, file io.Reader, filename, contentType, taskID string) (*models.ContentItem, error) {
	if filename == "" {
		return nil, errors.New("filename is required")
	}
	item, err := c.api.UploadContent(ctx, file, filename, contentType, taskID)
	if err != nil {
		c.notify.Error("%v", err)
		return nil, err
	}
	c.mu.Lock()
	c.content = reconcile.Prepend(c.content, *item)
	content := c.content
	c.mu.Unlock()
	c.snapshot(store.SnapshotContent, content)
	c.notify.Success("Uploaded %s", item.Filename)
	return item, nil
}

// DeleteContent removes the item remotely, then locally.
func (c *Client) DeleteContent(ctx context.Context, id string) error {
	if err := c.api.DeleteContent(ctx, id); err != nil {
		c.notify.Error("%v", err)
		return err
	}
	c.mu.Lock()
	c.content = reconcile.RemoveByID(c.content, id, contentID)
	content := c.content
	c.mu.Unlock()
	c.snapshot(store.SnapshotContent, content)
	c.notify.Success("Content deleted")
	return nil
}

// LoadTaskStats replaces the cached aggregate wholesale; it is an opaque
// server-side read model, never merged field by field.
func (c *Client) LoadTaskStats(ctx context.Context) (*models.TaskStats, error) {
	stats, err := c.api.TaskStats(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.stats = stats
	c.mu.Unlock()
	c.snapshot(store.SnapshotTaskStats, stats)
	s := *stats
	s.ByType = maps.Clone(s.ByType)
	return &s, nil
}

// ContentStats is a stateless passthrough for the content aggregate.
func (c *Client) ContentStats(ctx context.Context) (*models.ContentStats, error) {
	stats, err := c.api.ContentStats(ctx)
	if err != nil {
		c.notify.Error("Failed to load content stats: %v", err)
		return nil, err
	}
	return stats, nil
}

// LoadInitial fires the startup loads concurrently and waits for all of
// them. Each load reconciles a disjoint collection, so there is no
// cross-operation race; completion order is unspecified.
func (c *Client) LoadInitial(ctx context.Context) error {
	var wg sync.WaitGroup
	errs := make([]error, 4)

	run := func(i int, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = fn()
		}()
	}

	run(0, func() error { _, err := c.LoadTasks(ctx, api.TaskFilter{}); return err })
	run(1, func() error { _, err := c.LoadAgents(ctx); return err })
	run(2, func() error { _, err := c.LoadContent(ctx, api.ContentFilter{}); return err })
	run(3, func() error { _, err := c.LoadTaskStats(ctx); return err })

	wg.Wait()
	return errors.Join(errs...)
}

// LoadCached populates the collections from the snapshot store without
// touching the network. Used for offline listing; cached data is
// display-only and the next successful load replaces it.
func (c *Client) LoadCached(ctx context.Context) error {
	if c.store == nil {
		return errors.New("no snapshot store configured")
	}
	var (
		tasks   []models.Task
		agents  []models.Agent
		content []models.ContentItem
		stats   models.TaskStats
	)
	if _, err := c.store.LoadSnapshot(ctx, store.SnapshotTasks, &tasks); err != nil {
		return err
	}
	if _, err := c.store.LoadSnapshot(ctx, store.SnapshotAgents, &agents); err != nil {
		return err
	}
	if _, err := c.store.LoadSnapshot(ctx, store.SnapshotContent, &content); err != nil {
		return err
	}
	haveStats := false
	if t, err := c.store.LoadSnapshot(ctx, store.SnapshotTaskStats, &stats); err == nil && !t.IsZero() {
		haveStats = true
	}

	c.mu.Lock()
	c.tasks = tasks
	c.agents = agents
	c.content = content
	if haveStats {
		c.stats = &stats
	}
	c.mu.Unlock()
	return nil
}
