package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kode4food/miniscript/pkg/api"
)

type (
	// Client calls the HTTP API of a miniscript server
	Client struct {
		httpClient *http.Client
		baseURL    string
	}

	// Error is a non-success response. It unwraps to the error taxonomy
	// sentinel matching Kind, so errors.Is works across the wire
	Error struct {
		Vars    api.Vars
		Message string
		Kind    api.ErrorKind
		RunID   api.RunID
		Status  int
	}
)

const (
	DefaultServerURL = "http://localhost:8080"

	routeHealth    = "/health"
	routeTasks     = "/engine/task"
	routeLanguages = "/engine/language"
	routeRun       = "/engine/run"
	routeCheck     = "/engine/check"
)

var ErrUnexpectedStatus = errors.New("unexpected response status")

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Run executes a script on the server. A run that fails after starting
// returns an *Error carrying the run ID and variables at the failure
func (c *Client) Run(
	ctx context.Context, req *api.RunRequest,
) (*api.RunResult, error) {
	var res api.RunResult
	if err := c.do(ctx, http.MethodPost, routeRun, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Check statically validates a script on the server
func (c *Client) Check(
	ctx context.Context, req *api.RunRequest,
) (*api.CheckResponse, error) {
	var res api.CheckResponse
	if err := c.do(ctx, http.MethodPost, routeCheck, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListTasks returns the task catalog of the server
func (c *Client) ListTasks(
	ctx context.Context,
) (*api.TasksListResponse, error) {
	var res api.TasksListResponse
	if err := c.do(ctx, http.MethodGet, routeTasks, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListLanguages returns the template languages the server supports
func (c *Client) ListLanguages(
	ctx context.Context,
) (*api.LanguagesResponse, error) {
	var res api.LanguagesResponse
	err := c.do(ctx, http.MethodGet, routeLanguages, nil, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Health reports the service health
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var res api.HealthResponse
	if err := c.do(ctx, http.MethodGet, routeHealth, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) do(
	ctx context.Context, method, route string, body, out any,
) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(route), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) url(route string) string {
	return c.baseURL + route
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var res api.ErrorResponse
	if err := json.Unmarshal(body, &res); err != nil || res.Error == "" {
		return fmt.Errorf("%w: status %d, body: %s",
			ErrUnexpectedStatus, resp.StatusCode, string(body))
	}
	return &Error{
		Message: res.Error,
		Kind:    res.Kind,
		RunID:   res.RunID,
		Vars:    res.Vars,
		Status:  resp.StatusCode,
	}
}

func (e *Error) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Kind.Err()
}
