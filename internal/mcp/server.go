// Package mcp exposes the task workspace as MCP tools so an editor
// assistant can inspect and drive the same collections the CLI uses.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/orchid-cli/orchid/internal/api"
	"github.com/orchid-cli/orchid/internal/models"
	"github.com/orchid-cli/orchid/internal/sync"
)

// Server wraps the sync layer and exposes it as MCP tools. All tools go
// through the same call-first sync client as the CLI, so MCP-driven
// mutations obey the same reconciliation rules.
type Server struct {
	sync *sync.Client
}

// NewServer creates the MCP server wrapper.
func NewServer(sc *sync.Client) *Server {
	return &Server{sync: sc}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("orchid", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.listTasksTool())
	srv.AddTool(s.createTaskTool())
	srv.AddTool(s.cancelTaskTool())
	srv.AddTool(s.executeTaskTool())
	srv.AddTool(s.taskStatsTool())
	srv.AddTool(s.listAgentsTool())
	srv.AddTool(s.recommendAgentsTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// orchid_list_tasks
func (s *Server) listTasksTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("orchid_list_tasks",
		mcp.WithDescription("List the user's tasks, optionally filtered by status and/or type. Returns a JSON array of tasks with id, title, status (pending/running/completed/failed/cancelled), type, priority, progress, and agent_name."),
		mcp.WithString("status", mcp.Description("Status filter: pending, running, completed, failed, cancelled")),
		mcp.WithString("type", mcp.Description("Task type filter, e.g. research, analysis, content")),
	)
	return tool, s.handleListTasks
}

func (s *Server) handleListTasks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := api.TaskFilter{
		Status: models.TaskStatus(request.GetString("status", "")),
		Type:   request.GetString("type", ""),
	}
	tasks, err := s.sync.LoadTasks(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list tasks: %v", err)), nil
	}

	type taskOut struct {
		ID        string `json:"id"`
		Title     string `json:"title"`
		Status    string `json:"status"`
		Type      string `json:"type"`
		Priority  string `json:"priority"`
		Progress  int    `json:"progress"`
		AgentName string `json:"agent_name,omitempty"`
		CreatedAt string `json:"created_at,omitempty"`
	}

	out := make([]taskOut, len(tasks))
	for i, t := range tasks {
		out[i] = taskOut{
			ID:        t.ID,
			Title:     t.Title,
			Status:    string(t.Status),
			Type:      t.Type,
			Priority:  t.Priority,
			Progress:  t.Progress,
			AgentName: t.AgentName,
			CreatedAt: t.CreatedAt,
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal tasks: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// orchid_create_task
func (s *Server) createTaskTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("orchid_create_task",
		mcp.WithDescription("Create a new task for an agent to execute. Returns the created task as JSON."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
		mcp.WithString("type", mcp.Required(), mcp.Description("Task type, e.g. research, analysis, content")),
		mcp.WithString("description", mcp.Description("Task description")),
		mcp.WithString("priority", mcp.Description("Priority: low, medium, high (default: medium)")),
	)
	return tool, s.handleCreateTask
}

func (s *Server) handleCreateTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: title"), nil
	}
	taskType, err := request.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: type"), nil
	}

	draft := models.TaskDraft{
		Title:       title,
		Type:        taskType,
		Description: request.GetString("description", ""),
		Priority:    request.GetString("priority", "medium"),
	}

	task, err := s.sync.CreateTask(ctx, draft)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create task: %v", err)), nil
	}

	result := map[string]any{
		"id":         task.ID,
		"title":      task.Title,
		"type":       task.Type,
		"priority":   task.Priority,
		"status":     string(task.Status),
		"created_at": task.CreatedAt,
	}

	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal task: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// orchid_cancel_task
func (s *Server) cancelTaskTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("orchid_cancel_task",
		mcp.WithDescription("Cancel a pending or running task. Returns the task with its server-decided status."),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task ID to cancel")),
	)
	return tool, s.handleCancelTask
}

func (s *Server) handleCancelTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: task_id"), nil
	}
	task, err := s.sync.CancelTask(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to cancel task: %v", err)), nil
	}
	data, _ := json.Marshal(map[string]any{
		"id":     task.ID,
		"status": string(task.Status),
	})
	return mcp.NewToolResultText(string(data)), nil
}

// orchid_execute_task
func (s *Server) executeTaskTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("orchid_execute_task",
		mcp.WithDescription("Queue a pending task for execution. Returns the task with its server-decided status."),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task ID to execute")),
	)
	return tool, s.handleExecuteTask
}

func (s *Server) handleExecuteTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: task_id"), nil
	}
	task, err := s.sync.ExecuteTask(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to execute task: %v", err)), nil
	}
	data, _ := json.Marshal(map[string]any{
		"id":     task.ID,
		"status": string(task.Status),
	})
	return mcp.NewToolResultText(string(data)), nil
}

// orchid_task_stats
func (s *Server) taskStatsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("orchid_task_stats",
		mcp.WithDescription("Get the user's aggregate task statistics: totals by status, credits used, success rate."),
	)
	return tool, s.handleTaskStats
}

func (s *Server) handleTaskStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.sync.LoadTaskStats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load stats: %v", err)), nil
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal stats: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// orchid_list_agents
func (s *Server) listAgentsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("orchid_list_agents",
		mcp.WithDescription("List the available agents with their capabilities, model, and success rate."),
	)
	return tool, s.handleListAgents
}

func (s *Server) handleListAgents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agents, err := s.sync.LoadAgents(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list agents: %v", err)), nil
	}
	data, err := json.Marshal(agents)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal agents: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// orchid_recommend_agents
func (s *Server) recommendAgentsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("orchid_recommend_agents",
		mcp.WithDescription("Recommend agents for a task described in natural language. Returns a JSON array of matching agents, best first."),
		mcp.WithString("description", mcp.Required(), mcp.Description("What the task should accomplish")),
		mcp.WithString("type", mcp.Description("Task type hint, e.g. research, analysis, content")),
	)
	return tool, s.handleRecommendAgents
}

func (s *Server) handleRecommendAgents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	description, err := request.RequireString("description")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: description"), nil
	}
	agents, err := s.sync.GetAgentRecommendations(ctx, description, request.GetString("type", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to recommend agents: %v", err)), nil
	}
	data, err := json.Marshal(agents)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal agents: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
