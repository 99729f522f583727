package models

// TaskStatus represents the server-reported state of a task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Cancellable reports whether cancel is meaningful for this status.
// The server owns the status machine; this only gates which operations
// the UI offers.
func (s TaskStatus) Cancellable() bool {
	return s == TaskStatusPending || s == TaskStatusRunning
}

// Terminal reports whether the task has reached a final state.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// Task is a server-owned task record. The client never fabricates one;
// every Task held locally came out of an acknowledged API response.
// Timestamps stay as the server's ISO strings; they are display values,
// never used for local ordering.
type Task struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	Type         string         `json:"task_type"`
	Priority     string         `json:"priority,omitempty"`
	Status       TaskStatus     `json:"status"`
	Progress     int            `json:"progress"`
	InputData    map[string]any `json:"input_data,omitempty"`
	OutputData   map[string]any `json:"output_data,omitempty"`
	CreditsUsed  int            `json:"credits_used"`
	AgentName    string         `json:"agent_name,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    string         `json:"created_at,omitempty"`
	StartedAt    string         `json:"started_at,omitempty"`
	CompletedAt  string         `json:"completed_at,omitempty"`
}

// TaskDraft is the client-side payload for creating a task.
type TaskDraft struct {
	Title       string         `json:"title" yaml:"title"`
	Description string         `json:"description,omitempty" yaml:"description"`
	Type        string         `json:"task_type" yaml:"type"`
	Priority    string         `json:"priority,omitempty" yaml:"priority"`
	InputData   map[string]any `json:"input_data,omitempty" yaml:"input"`
}

// TaskStats is a server-computed aggregate. The client refreshes it
// wholesale and never derives or merges it locally.
type TaskStats struct {
	Total          int            `json:"total"`
	Pending        int            `json:"pending"`
	Running        int            `json:"running"`
	Completed      int            `json:"completed"`
	Failed         int            `json:"failed"`
	Cancelled      int            `json:"cancelled"`
	CreditsUsed    int            `json:"credits_used"`
	ByType         map[string]int `json:"by_type"`
	RecentActivity int            `json:"recent_activity"`
}
