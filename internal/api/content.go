package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/orchid-cli/orchid/internal/models"
)

// ContentFilter narrows and pages a content listing.
type ContentFilter struct {
	ContentType string
	TaskID      string
	Page        int
	PerPage     int
}

func (f ContentFilter) query() url.Values {
	q := url.Values{}
	if f.ContentType != "" {
		q.Set("content_type", f.ContentType)
	}
	if f.TaskID != "" {
		q.Set("task_id", f.TaskID)
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(f.PerPage))
	}
	return q
}

// ContentList is one page of content items.
type ContentList struct {
	Content    []models.ContentItem `json:"content"`
	Pagination Pagination           `json:"pagination"`
}

type contentEnvelope struct {
	Content models.ContentItem `json:"content"`
}

type contentStatsEnvelope struct {
	Stats models.ContentStats `json:"stats"`
}

// ListContent fetches a filtered, paged content listing.
func (c *Client) ListContent(ctx context.Context, filter ContentFilter) (*ContentList, error) {
	var out ContentList
	if err := c.do(ctx, http.MethodGet, "/content", filter.query(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadContent uploads a file as a multipart form. The multipart writer
// sets the Content-Type header (including the boundary) itself; forcing it
// to JSON or a fixed boundary breaks the request. taskID is optional.
func (c *Client) UploadContent(ctx context.Context, file io.Reader, filename, contentType, taskID string) (*models.ContentItem, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("read upload file: %w", err)
	}
	if err := w.WriteField("content_type", contentType); err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}
	if taskID != "" {
		if err := w.WriteField("task_id", taskID); err != nil {
			return nil, fmt.Errorf("build upload form: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/content/upload", nil, &buf, "")
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var out contentEnvelope
	if err := c.send(req, &out); err != nil {
		return nil, err
	}
	return &out.Content, nil
}

// DeleteContent removes an uploaded item server-side.
func (c *Client) DeleteContent(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/content/"+id, nil, nil, nil)
}

// ContentStats fetches the server-computed content aggregate.
func (c *Client) ContentStats(ctx context.Context) (*models.ContentStats, error) {
	var out contentStatsEnvelope
	if err := c.do(ctx, http.MethodGet, "/content/stats", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.Stats, nil
}
