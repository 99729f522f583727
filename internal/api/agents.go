package api

import (
	"context"
	"net/http"

	"github.com/orchid-cli/orchid/internal/models"
)

type agentsEnvelope struct {
	Agents     []models.Agent `json:"agents"`
	TotalCount int            `json:"total_count"`
}

type agentEnvelope struct {
	Agent models.Agent `json:"agent"`
}

type recommendEnvelope struct {
	RecommendedAgents []models.Agent `json:"recommended_agents"`
	Reasoning         string         `json:"reasoning"`
}

// ListAgents fetches all agents available to the current user.
func (c *Client) ListAgents(ctx context.Context) ([]models.Agent, error) {
	var out agentsEnvelope
	if err := c.do(ctx, http.MethodGet, "/agents", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Agents, nil
}

// GetAgent fetches a single agent by id.
func (c *Client) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	var out agentEnvelope
	if err := c.do(ctx, http.MethodGet, "/agents/"+id, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.Agent, nil
}

// RecommendAgents asks the server which agents fit a task description.
// Stateless: the result is returned to the caller, never cached.
func (c *Client) RecommendAgents(ctx context.Context, description, taskType string) ([]models.Agent, error) {
	body := map[string]string{
		"task_description": description,
		"task_type":        taskType,
	}
	var out recommendEnvelope
	if err := c.do(ctx, http.MethodPost, "/agents/recommend", nil, body, &out); err != nil {
		return nil, err
	}
	return out.RecommendedAgents, nil
}
