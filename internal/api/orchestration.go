package api

import (
	"context"
	"net/http"

	"github.com/orchid-cli/orchid/internal/models"
)

// The /orchestration/tasks surface is a separate remote resource from
// /tasks: its own ids, its own status vocabulary (including paused), and
// success-envelope responses.

type orchTemplatesEnvelope struct {
	Templates map[string]models.OrchTemplate `json:"templates"`
}

type orchTasksEnvelope struct {
	Tasks []models.OrchTask `json:"tasks"`
	Total int               `json:"total"`
}

type orchTaskEnvelope struct {
	Task models.OrchTask `json:"task"`
}

type orchCreatedEnvelope struct {
	TaskID  string `json:"task_id"`
	Message string `json:"message"`
}

type orchStatusEnvelope struct {
	Status models.OrchStatus `json:"status"`
}

type queueStatusEnvelope struct {
	QueueStatus models.QueueStatus `json:"queue_status"`
}

// OrchTemplates fetches the predefined workflow templates, keyed by
// template name.
func (c *Client) OrchTemplates(ctx context.Context) (map[string]models.OrchTemplate, error) {
	var out orchTemplatesEnvelope
	if err := c.do(ctx, http.MethodGet, "/orchestration/tasks/templates", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Templates, nil
}

// OrchCreateFromTemplate instantiates a template and returns the new
// task's id.
func (c *Client) OrchCreateFromTemplate(ctx context.Context, templateName string, parameters map[string]any) (string, error) {
	body := map[string]any{
		"template_name": templateName,
		"parameters":    parameters,
	}
	var out orchCreatedEnvelope
	if err := c.do(ctx, http.MethodPost, "/orchestration/tasks/create-from-template", nil, body, &out); err != nil {
		return "", err
	}
	return out.TaskID, nil
}

// OrchCustomTask is the payload for a custom orchestrated task.
type OrchCustomTask struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Type        string           `json:"task_type,omitempty"`
	Priority    string           `json:"priority,omitempty"`
	Steps       []map[string]any `json:"steps"`
}

// OrchCreateCustom creates a custom orchestrated task and returns its id.
func (c *Client) OrchCreateCustom(ctx context.Context, task OrchCustomTask) (string, error) {
	var out orchCreatedEnvelope
	if err := c.do(ctx, http.MethodPost, "/orchestration/tasks/create-custom", nil, task, &out); err != nil {
		return "", err
	}
	return out.TaskID, nil
}

// OrchListTasks fetches the user's orchestrated tasks, newest first.
func (c *Client) OrchListTasks(ctx context.Context) ([]models.OrchTask, error) {
	var out orchTasksEnvelope
	if err := c.do(ctx, http.MethodGet, "/orchestration/tasks", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// OrchGetTask fetches one orchestrated task with its steps.
func (c *Client) OrchGetTask(ctx context.Context, id string) (*models.OrchTask, error) {
	var out orchTaskEnvelope
	if err := c.do(ctx, http.MethodGet, "/orchestration/tasks/"+id, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.Task, nil
}

// OrchTaskStatus fetches just the status of an orchestrated task.
func (c *Client) OrchTaskStatus(ctx context.Context, id string) (models.OrchStatus, error) {
	var out orchStatusEnvelope
	if err := c.do(ctx, http.MethodGet, "/orchestration/tasks/"+id+"/status", nil, nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

// OrchCancelTask requests cancellation of an orchestrated task.
func (c *Client) OrchCancelTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/orchestration/tasks/"+id+"/cancel", nil, nil, nil)
}

// OrchPauseTask pauses a running orchestrated task.
func (c *Client) OrchPauseTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/orchestration/tasks/"+id+"/pause", nil, nil, nil)
}

// OrchResumeTask resumes a paused orchestrated task.
func (c *Client) OrchResumeTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/orchestration/tasks/"+id+"/resume", nil, nil, nil)
}

// OrchQueueStatus fetches the orchestrator's queue snapshot.
func (c *Client) OrchQueueStatus(ctx context.Context) (*models.QueueStatus, error) {
	var out queueStatusEnvelope
	if err := c.do(ctx, http.MethodGet, "/orchestration/queue/status", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.QueueStatus, nil
}
