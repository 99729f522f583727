package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/orchid-cli/orchid/internal/models"
)

// TaskFilter narrows and pages a task listing. Zero values are omitted
// from the query string.
type TaskFilter struct {
	Status  models.TaskStatus
	Type    string
	Page    int
	PerPage int
}

func (f TaskFilter) query() url.Values {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Type != "" {
		q.Set("task_type", f.Type)
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(f.PerPage))
	}
	return q
}

// Pagination describes the server's paging of a list response.
type Pagination struct {
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	Total   int  `json:"total"`
	Pages   int  `json:"pages"`
	HasNext bool `json:"has_next"`
	HasPrev bool `json:"has_prev"`
}

// TaskList is one page of tasks.
type TaskList struct {
	Tasks      []models.Task `json:"tasks"`
	Pagination Pagination    `json:"pagination"`
}

type taskEnvelope struct {
	Task models.Task `json:"task"`
}

type statsEnvelope struct {
	Stats models.TaskStats `json:"stats"`
}

// ListTasks fetches a filtered, paged task list.
func (c *Client) ListTasks(ctx context.Context, filter TaskFilter) (*TaskList, error) {
	var out TaskList
	if err := c.do(ctx, http.MethodGet, "/tasks", filter.query(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTask fetches a single task by id.
func (c *Client) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var out taskEnvelope
	if err := c.do(ctx, http.MethodGet, "/tasks/"+id, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.Task, nil
}

// CreateTask posts a draft and returns the server's task record, which is
// the authoritative copy (server-assigned id, status, credits).
func (c *Client) CreateTask(ctx context.Context, draft models.TaskDraft) (*models.Task, error) {
	var out taskEnvelope
	if err := c.do(ctx, http.MethodPost, "/tasks", nil, draft, &out); err != nil {
		return nil, err
	}
	return &out.Task, nil
}

// UpdateTask applies a partial update and returns the updated record.
func (c *Client) UpdateTask(ctx context.Context, id string, patch map[string]any) (*models.Task, error) {
	var out taskEnvelope
	if err := c.do(ctx, http.MethodPut, "/tasks/"+id, nil, patch, &out); err != nil {
		return nil, err
	}
	return &out.Task, nil
}

// DeleteTask removes a task server-side.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/tasks/"+id, nil, nil, nil)
}

// CancelTask requests cancellation and returns the updated record.
func (c *Client) CancelTask(ctx context.Context, id string) (*models.Task, error) {
	var out taskEnvelope
	if err := c.do(ctx, http.MethodPost, "/tasks/"+id+"/cancel", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.Task, nil
}

// ExecuteTask queues a pending task for execution and returns the updated
// record.
func (c *Client) ExecuteTask(ctx context.Context, id string) (*models.Task, error) {
	var out taskEnvelope
	if err := c.do(ctx, http.MethodPost, "/tasks/"+id+"/execute", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.Task, nil
}

// TaskStats fetches the server-computed task aggregate.
func (c *Client) TaskStats(ctx context.Context) (*models.TaskStats, error) {
	var out statsEnvelope
	if err := c.do(ctx, http.MethodGet, "/tasks/stats", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.Stats, nil
}
