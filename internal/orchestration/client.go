// Package orchestration maintains the local view of the orchestration
// queue. It follows the same call-first discipline as the task sync
// layer but over its own collection: orchestrated tasks are a separate
// remote resource with a separate status vocabulary, and the two
// collections never mix.
package orchestration

import (
	"context"
	"errors"
	"sync"

	"github.com/orchid-cli/orchid/internal/api"
	"github.com/orchid-cli/orchid/internal/models"
	"github.com/orchid-cli/orchid/internal/notify"
	"github.com/orchid-cli/orchid/internal/reconcile"
	"github.com/orchid-cli/orchid/internal/store"
)

func orchTaskID(t models.OrchTask) string { return t.ID }

// Client owns the orchestrated-task collection.
type Client struct {
	api    *api.Client
	store  store.Store
	notify notify.Notifier

	mu    sync.RWMutex
	tasks []models.OrchTask
}

// New creates an orchestration client. st may be nil to disable snapshot
// caching; n may be nil for a silent client.
func New(apiClient *api.Client, st store.Store, n notify.Notifier) *Client {
	if n == nil {
		n = notify.Nop{}
	}
	return &Client{api: apiClient, store: st, notify: n}
}

// Tasks returns a copy of the current orchestrated-task collection.
func (c *Client) Tasks() []models.OrchTask {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.OrchTask, len(c.tasks))
	copy(out, c.tasks)
	return out
}

func (c *Client) snapshot(tasks []models.OrchTask) {
	if c.store == nil {
		return
	}
	_ = c.store.SaveSnapshot(context.Background(), store.SnapshotOrchTasks, tasks)
}

// Templates fetches the predefined workflow templates. Stateless.
func (c *Client) Templates(ctx context.Context) (map[string]models.OrchTemplate, error) {
	templates, err := c.api.OrchTemplates(ctx)
	if err != nil {
		c.notify.Error("Failed to load templates: %v", err)
		return nil, err
	}
	return templates, nil
}

// Load replaces the collection wholesale from the server.
func (c *Client) Load(ctx context.Context) ([]models.OrchTask, error) {
	tasks, err := c.api.OrchListTasks(ctx)
	if err != nil {
		c.notify.Error("Failed to load orchestrated tasks: %v", err)
		return nil, err
	}
	c.mu.Lock()
	c.tasks = tasks
	c.mu.Unlock()
	c.snapshot(tasks)
	return c.Tasks(), nil
}

// Get fetches a single orchestrated task with its steps.
func (c *Client) Get(ctx context.Context, id string) (*models.OrchTask, error) {
	task, err := c.api.OrchGetTask(ctx, id)
	if err != nil {
		c.notify.Error("%v", err)
		return nil, err
	}
	return task, nil
}

// Status fetches just a task's current status.
func (c *Client) Status(ctx context.Context, id string) (models.OrchStatus, error) {
	return c.api.OrchTaskStatus(ctx, id)
}

// CreateFromTemplate instantiates a template. The create endpoint returns
// only an id, so the full record is fetched before the prepend; the local
// collection never holds a speculative placeholder.
func (c *Client) CreateFromTemplate(ctx context.Context, templateName string, parameters map[string]any) (*models.OrchTask, error) {
	if templateName == "" {
		return nil, errors.New("template name is required")
	}
	id, err := c.api.OrchCreateFromTemplate(ctx, templateName, parameters)
	if err != nil {
		c.notify.Error("%v", err)
		return nil, err
	}
	return c.adoptCreated(ctx, id)
}

// CreateCustom creates a custom orchestrated task, same discipline as
// CreateFromTemplate.
func (c *Client) CreateCustom(ctx context.Context, task api.OrchCustomTask) (*models.OrchTask, error) {
	if task.Title == "" {
		return nil, errors.New("task title is required")
	}
	if len(task.Steps) == 0 {
		return nil, errors.New("at least one step is required")
	}
	id, err := c.api.OrchCreateCustom(ctx, task)
	if err != nil {
		c.notify.Error("%v", err)
		return nil, err
	}
	return c.adoptCreated(ctx, id)
}

func (c *Client) adoptCreated(ctx context.Context, id string) (*models.OrchTask, error) {
	task, err := c.api.OrchGetTask(ctx, id)
	if err != nil {
		// Created but unreadable: report the id so the caller can still
		// find it on the next Load.
		c.notify.Error("Task %s created but could not be fetched: %v", id, err)
		return nil, err
	}
	c.mu.Lock()
	c.tasks = reconcile.Prepend(c.tasks, *task)
	tasks := c.tasks
	c.mu.Unlock()
	c.snapshot(tasks)
	c.notify.Success("Task created: %s", task.Title)
	return task, nil
}

// Cancel requests cancellation, then refetches the record and replaces
// the local entry. The endpoint returns no task body, so the refetch is
// what keeps local state server-derived.
func (c *Client) Cancel(ctx context.Context, id string) (*models.OrchTask, error) {
	return c.transition(ctx, id, c.api.OrchCancelTask, "Task cancelled")
}

// Pause pauses a running orchestrated task.
func (c *Client) Pause(ctx context.Context, id string) (*models.OrchTask, error) {
	return c.transition(ctx, id, c.api.OrchPauseTask, "Task paused")
}

// Resume resumes a paused orchestrated task.
func (c *Client) Resume(ctx context.Context, id string) (*models.OrchTask, error) {
	return c.transition(ctx, id, c.api.OrchResumeTask, "Task resumed")
}

func (c *Client) transition(ctx context.Context, id string, op func(context.Context, string) error, success string) (*models.OrchTask, error) {
	if err := op(ctx, id); err != nil {
		c.notify.Error("%v", err)
		return nil, err
	}
	task, err := c.api.OrchGetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.tasks = reconcile.ReplaceByID(c.tasks, id, *task, orchTaskID)
	tasks := c.tasks
	c.mu.Unlock()
	c.snapshot(tasks)
	c.notify.Success("%s", success)
	return task, nil
}

// QueueStatus fetches the orchestrator's queue snapshot. Stateless.
func (c *Client) QueueStatus(ctx context.Context) (*models.QueueStatus, error) {
	status, err := c.api.OrchQueueStatus(ctx)
	if err != nil {
		c.notify.Error("Failed to load queue status: %v", err)
		return nil, err
	}
	return status, nil
}

// LoadCached populates the collection from the snapshot store without
// touching the network.
func (c *Client) LoadCached(ctx context.Context) error {
	if c.store == nil {
		return errors.New("no snapshot store configured")
	}
	var tasks []models.OrchTask
	if _, err := c.store.LoadSnapshot(ctx, store.SnapshotOrchTasks, &tasks); err != nil {
		return err
	}
	c.mu.Lock()
	c.tasks = tasks
	c.mu.Unlock()
	return nil
}
