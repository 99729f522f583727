package models

// Agent describes a remote execution agent. Agents are read-only from
// the client's perspective: loaded, displayed, never mutated.
type Agent struct {
	ID           string   `json:"id"`
	Type         string   `json:"type,omitempty"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities"`
	Model        string   `json:"model,omitempty"`
	SuccessRate  float64  `json:"success_rate,omitempty"`
	Status       string   `json:"status"`
}
