package models

// ContentItem is an uploaded file tracked by the content service.
type ContentItem struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	FileSize    int64  `json:"file_size"`
	TaskID      string `json:"task_id,omitempty"`
	URL         string `json:"url,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// ContentTypeStats is the per-type slice of the content aggregate.
type ContentTypeStats struct {
	Count int   `json:"count"`
	Size  int64 `json:"size"`
}

// ContentStats is the server-computed content aggregate.
type ContentStats struct {
	TotalFiles    int                         `json:"total_files"`
	TotalSize     int64                       `json:"total_size"`
	ByType        map[string]ContentTypeStats `json:"by_type"`
	RecentUploads int                         `json:"recent_uploads"`
}
