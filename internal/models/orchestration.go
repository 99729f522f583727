package models

// OrchStatus is the status vocabulary of the /orchestration/tasks surface.
// It is deliberately distinct from TaskStatus: the orchestration queue
// supports pausing, the direct task API does not.
type OrchStatus string

const (
	OrchStatusPending   OrchStatus = "pending"
	OrchStatusRunning   OrchStatus = "running"
	OrchStatusPaused    OrchStatus = "paused"
	OrchStatusCompleted OrchStatus = "completed"
	OrchStatusFailed    OrchStatus = "failed"
	OrchStatusCancelled OrchStatus = "cancelled"
)

// OrchStep is a single step of an orchestrated task's workflow.
type OrchStep struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	AgentID      string         `json:"agent_id"`
	Action       string         `json:"action"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty"`
	Status       OrchStatus     `json:"status"`
	Result       any            `json:"result,omitempty"`
	Error        string         `json:"error,omitempty"`
	Progress     float64        `json:"progress"`
	StartedAt    string         `json:"started_at,omitempty"`
	CompletedAt  string         `json:"completed_at,omitempty"`
}

// OrchTask is a task on the orchestration queue. It is a different remote
// resource from Task even though the two overlap in shape.
type OrchTask struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description,omitempty"`
	Type              string     `json:"task_type"`
	Priority          int        `json:"priority"`
	Status            OrchStatus `json:"status"`
	Progress          float64    `json:"progress"`
	Result            any        `json:"result,omitempty"`
	Error             string     `json:"error,omitempty"`
	EstimatedDuration int        `json:"estimated_duration,omitempty"`
	ActualDuration    int        `json:"actual_duration,omitempty"`
	StepsCount        int        `json:"steps_count,omitempty"`
	CompletedSteps    int        `json:"completed_steps,omitempty"`
	Steps             []OrchStep `json:"steps,omitempty"`
	CreatedAt         string     `json:"created_at,omitempty"`
	StartedAt         string     `json:"started_at,omitempty"`
	CompletedAt       string     `json:"completed_at,omitempty"`
}

// OrchTemplateStep is one step of a predefined workflow template.
type OrchTemplateStep struct {
	Name         string   `json:"name"`
	AgentID      string   `json:"agent_id"`
	Action       string   `json:"action"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// OrchTemplate is a predefined workflow the server can instantiate.
type OrchTemplate struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Steps       []OrchTemplateStep `json:"steps,omitempty"`
}

// QueueStatus is the orchestrator's queue snapshot.
type QueueStatus struct {
	PendingTasks  int  `json:"pending_tasks"`
	RunningTasks  int  `json:"running_tasks"`
	MaxConcurrent int  `json:"max_concurrent"`
	IsRunning     bool `json:"is_running"`
}
