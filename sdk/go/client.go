package taskboardsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Taskboard HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	ProjectID   string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, projectID string) *Client {
	return &Client{
		BaseURL:   baseURL,
		BasePath:  "/v1",
		ProjectID: projectID,
		Timeout:   10 * time.Second,
	}
}

type Section struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
	Order     int    `json:"order"`
	IsDefault bool   `json:"isDefault"`
}

type UserInfo struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	PhotoURL  string `json:"photoUrl,omitempty"`
}

type HistoryEntry struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	ChangedBy string `json:"changedBy"`
}

// Task represents the API task model (partial).
type Task struct {
	ID            string         `json:"id"`
	ProjectID     string         `json:"projectId"`
	SectionID     *string        `json:"sectionId"`
	Title         string         `json:"title"`
	Description   string         `json:"description,omitempty"`
	Assignee      []string       `json:"assignee"`
	AssigneeInfo  []UserInfo     `json:"assigneeInfo"`
	Status        string         `json:"status"`
	StatusHistory []HistoryEntry `json:"statusHistory"`
	Order         int            `json:"order"`
	Priority      string         `json:"priority,omitempty"`
	DueDate       *string        `json:"dueDate,omitempty"`
}

type BoardSection struct {
	Section
	Tasks []Task `json:"tasks"`
}

type Board struct {
	ProjectID string         `json:"projectId"`
	Sections  []BoardSection `json:"sections"`
}

// NewTask holds create parameters; zero values are omitted.
type NewTask struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	SectionID   string   `json:"sectionId,omitempty"`
	Assignee    []string `json:"assignee,omitempty"`
	Status      string   `json:"status,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	DueDate     string   `json:"dueDate,omitempty"`
}

// TaskPatch holds update parameters; nil fields are left untouched.
type TaskPatch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Assignee    *[]string `json:"assignee,omitempty"`
	Status      *string   `json:"status,omitempty"`
	Priority    *string   `json:"priority,omitempty"`
	DueDate     *string   `json:"dueDate,omitempty"`
}

// APIError wraps non-2xx responses. Code and Message come from the error
// envelope when the body carries one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]any
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// IsCode reports whether err is an APIError with the given envelope code.
func IsCode(err error, code string) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Code == code
}

// Board returns the project board.
func (c *Client) Board(ctx context.Context) (Board, error) {
	var resp Board
	err := c.do(ctx, http.MethodGet, c.projectPath("board"), nil, &resp)
	return resp, err
}

func (c *Client) Sections(ctx context.Context) ([]Section, error) {
	var resp struct {
		Sections []Section `json:"sections"`
	}
	err := c.do(ctx, http.MethodGet, c.projectPath("sections"), nil, &resp)
	return resp.Sections, err
}

func (c *Client) CreateSection(ctx context.Context, name string) (Section, error) {
	var resp struct {
		Section Section `json:"section"`
	}
	err := c.do(ctx, http.MethodPost, c.projectPath("sections"), map[string]any{"name": name}, &resp)
	return resp.Section, err
}

func (c *Client) DeleteSection(ctx context.Context, sectionID string) error {
	return c.do(ctx, http.MethodDelete, c.apiPath("sections/"+url.PathEscape(sectionID)), nil, nil)
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, in NewTask) (Task, error) {
	var resp struct {
		Task Task `json:"task"`
	}
	err := c.do(ctx, http.MethodPost, c.projectPath("tasks"), in, &resp)
	return resp.Task, err
}

// UpdateTask patches task fields.
func (c *Client) UpdateTask(ctx context.Context, taskID string, patch TaskPatch) (Task, error) {
	body := struct {
		TaskID string `json:"taskId"`
		TaskPatch
	}{TaskID: taskID, TaskPatch: patch}
	var resp struct {
		Task Task `json:"task"`
	}
	err := c.do(ctx, http.MethodPatch, c.projectPath("tasks"), body, &resp)
	return resp.Task, err
}

// MoveTask places a task at order in sectionID. An empty sectionID keeps the
// task in its current section.
func (c *Client) MoveTask(ctx context.Context, taskID, sectionID string, order int) (Task, error) {
	body := map[string]any{"order": order, "projectId": c.ProjectID}
	if sectionID != "" {
		body["sectionId"] = sectionID
	}
	var resp struct {
		Task Task `json:"task"`
	}
	err := c.do(ctx, http.MethodPatch, c.apiPath("tasks/"+url.PathEscape(taskID)+"/move"), body, &resp)
	return resp.Task, err
}

func (c *Client) History(ctx context.Context, taskID string) ([]HistoryEntry, error) {
	var resp struct {
		History []HistoryEntry `json:"history"`
	}
	err := c.do(ctx, http.MethodGet, c.apiPath("tasks/"+url.PathEscape(taskID)+"/history"), nil, &resp)
	return resp.History, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return decodeAPIError(resp.StatusCode, b)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: string(body)}
	var env struct {
		Error struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &env) == nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
		apiErr.Details = env.Error.Details
	}
	return apiErr
}

func (c *Client) projectPath(p string) string {
	return c.apiPath(fmt.Sprintf("projects/%s/%s", url.PathEscape(c.ProjectID), strings.TrimLeft(p, "/")))
}

func (c *Client) apiPath(p string) string {
	prefix := strings.Trim(c.BasePath, "/")
	if prefix == "" {
		return p
	}
	return prefix + "/" + p
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
