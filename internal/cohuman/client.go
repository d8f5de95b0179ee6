// Package cohuman is a small client for the Cohuman project API.
package cohuman

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dghubble/oauth1"
	"golang.org/x/time/rate"

	"github.com/nhle/showbot/internal/model"
)

// requestTimeout bounds a single API round trip.
const requestTimeout = 30 * time.Second

// Client calls the Cohuman REST API. Every request carries format=json.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewClient creates a client that sends requests through httpClient.
// rps caps the request rate; zero or less means unlimited.
func NewClient(
	httpClient *http.Client, baseURL string, rps float64, logger *log.Logger,
) *Client {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
	}
}

// NewOAuthClient creates a client that signs requests with the consumer
// key and access token from cfg.
func NewOAuthClient(
	ctx context.Context, cfg model.CohumanConfig, logger *log.Logger,
) *Client {
	consumer := oauth1.NewConfig(cfg.APIKey, cfg.APISecret)
	token := oauth1.NewToken(cfg.AccessToken, cfg.AccessSecret)

	httpClient := consumer.Client(ctx, token)
	httpClient.Timeout = requestTimeout

	return NewClient(httpClient, cfg.BaseURL, cfg.RequestsPerSecond, logger)
}

// Projects returns the user's favorite projects.
func (c *Client) Projects(ctx context.Context) ([]ProjectRef, error) {
	var resp projectsResponse
	if err := c.get(ctx, "/projects", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Projects.Favorites, nil
}

// Project returns a project with its tasks and members.
func (c *Client) Project(ctx context.Context, id ID) (*Project, error) {
	return c.ProjectByPath(ctx, "/project/"+id.String())
}

// ProjectByPath returns the project at an API path as listed by Projects.
func (c *Client) ProjectByPath(ctx context.Context, path string) (*Project, error) {
	var resp projectResponse
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Project, nil
}

// AddMember invites addresses (comma separated) to a project.
func (c *Client) AddMember(ctx context.Context, projectID ID, addresses string) error {
	params := url.Values{"addresses": {addresses}}
	return c.post(ctx, "/project/"+projectID.String()+"/member", params, nil)
}

// CreateTask creates a task and returns it.
func (c *Client) CreateTask(ctx context.Context, t NewTask) (*Task, error) {
	params := url.Values{
		"name":       {t.Name},
		"project_id": {t.ProjectID.String()},
		"owner_id":   {t.OwnerID.String()},
	}
	var resp taskResponse
	if err := c.post(ctx, "/task", params, &resp); err != nil {
		return nil, err
	}
	return &resp.Task, nil
}

// AddComment posts a comment on a task.
func (c *Client) AddComment(ctx context.Context, taskID ID, text string) (*Comment, error) {
	params := url.Values{"text": {text}}
	var resp commentResponse
	if err := c.post(ctx, "/task/"+taskID.String()+"/comment", params, &resp); err != nil {
		return nil, err
	}
	return &resp.Comment, nil
}

// AddFollower adds addresses (comma separated) as followers of a task.
func (c *Client) AddFollower(ctx context.Context, taskID ID, addresses string) error {
	params := url.Values{"addresses": {addresses}}
	return c.post(ctx, "/task/"+taskID.String()+"/follower", params, nil)
}

// FinishTask marks a task finished.
func (c *Client) FinishTask(ctx context.Context, taskID ID) error {
	return c.post(ctx, "/task/"+taskID.String()+"/activity/finish", nil, nil)
}

// Logout ends the API session tied to the access token.
func (c *Client) Logout(ctx context.Context) error {
	return c.post(ctx, "/logout", nil, nil)
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	return c.call(ctx, http.MethodGet, path, params, out)
}

func (c *Client) post(ctx context.Context, path string, params url.Values, out any) error {
	return c.call(ctx, http.MethodPost, path, params, out)
}

// call performs one request. A response that cannot be decoded into out
// is reported as an APIError carrying the raw body.
func (c *Client) call(
	ctx context.Context, method, path string, params url.Values, out any,
) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for cohuman rate limit: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("format", "json")

	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")

	var body io.Reader
	if method == http.MethodGet {
		endpoint += "?" + params.Encode()
	} else {
		body = strings.NewReader(params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("building cohuman request %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cohuman %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading cohuman response %s %s: %w", method, path, err)
	}

	c.logger.Debug("cohuman call", "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			Method: method, Path: path,
			Status: resp.StatusCode, Body: string(raw),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &APIError{
			Method: method, Path: path,
			Status: resp.StatusCode, Body: string(raw), Err: err,
		}
	}
	return nil
}
