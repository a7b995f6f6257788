// Package client is a typed HTTP client for the meridian REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/meridian-works/meridian/api/rest/controller/deadline"
	planctrl "github.com/meridian-works/meridian/api/rest/controller/plan"
	"github.com/meridian-works/meridian/internal/models"
	"github.com/meridian-works/meridian/internal/schedule"
	"github.com/meridian-works/meridian/pkg/plan"
	"github.com/pkg/errors"
)

// DefaultTimeout bounds every request made with the default http.Client.
const DefaultTimeout = 30 * time.Second

// Error is a non-2xx response from the API.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("meridian: %d %s", e.StatusCode, e.Message)
}

type Client struct {
	base  string
	token string
	http  *http.Client
}

type Option func(*Client)

// WithToken sends token as a bearer credential.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// New returns a client for the server at baseURL, e.g.
// http://localhost:8080.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimSuffix(baseURL, "/"),
		http: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health returns the reported server status.
func (c *Client) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, "", &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// Projects lists the projects visible to the caller. q carries the usual
// list parameters (limit, offset, order_by, status).
func (c *Client) Projects(ctx context.Context, q url.Values) ([]models.Project, error) {
	var projects []models.Project
	if err := c.do(ctx, http.MethodGet, withQuery("/v1/projects", q), nil, "", &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (c *Client) Tasks(ctx context.Context, projectID uint) ([]models.Task, error) {
	q := url.Values{"project": {strconv.FormatUint(uint64(projectID), 10)}}

	var tasks []models.Task
	if err := c.do(ctx, http.MethodGet, withQuery("/v1/tasks", q), nil, "", &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Escalations lists the newest escalations, optionally for one project.
func (c *Client) Escalations(ctx context.Context, projectID uint, limit int) ([]models.EscalationLog, error) {
	q := url.Values{}
	if projectID != 0 {
		q.Set("project", strconv.FormatUint(uint64(projectID), 10))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var logs []models.EscalationLog
	if err := c.do(ctx, http.MethodGet, withQuery("/v1/deadline/escalations", q), nil, "", &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

func (c *Client) CriticalPath(ctx context.Context, projectID uint) (*deadline.CriticalPathResponse, error) {
	q := url.Values{"project": {strconv.FormatUint(uint64(projectID), 10)}}

	resp := &deadline.CriticalPathResponse{}
	if err := c.do(ctx, http.MethodGet, withQuery("/v1/deadline/critical-path", q), nil, "", resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Impact asks how delaying a task by delayDays moves its project's
// critical path.
func (c *Client) Impact(ctx context.Context, taskID uint, delayDays int) (*schedule.Impact, error) {
	q := url.Values{
		"task":       {strconv.FormatUint(uint64(taskID), 10)},
		"delay_days": {strconv.Itoa(delayDays)},
	}

	resp := &schedule.Impact{}
	if err := c.do(ctx, http.MethodGet, withQuery("/v1/deadline/impact", q), nil, "", resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ApplyPlan uploads the raw plan manifest data.
func (c *Client) ApplyPlan(ctx context.Context, data []byte, format plan.Format, dryRun bool) (*planctrl.ApplyResponse, error) {
	contentType := "application/yaml"
	if format == plan.FormatTOML {
		contentType = "application/toml"
	}

	path := "/v1/plans/apply"
	if dryRun {
		path += "?dry_run=true"
	}

	resp := &planctrl.ApplyResponse{}
	if err := c.do(ctx, http.MethodPost, path, bytes.NewReader(data), contentType, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp.StatusCode, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(data, out), "failed to decode response")
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

func decodeError(status int, data []byte) error {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.Message == "" {
		body.Message = strings.TrimSpace(string(data))
	}
	if body.Message == "" {
		body.Message = http.StatusText(status)
	}
	return &Error{StatusCode: status, Message: body.Message}
}
