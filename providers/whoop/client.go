// ABOUTME: Whoop developer API client for workouts, sleep, and recovery
// ABOUTME: Follows nextToken pagination over collection endpoints
package whoop

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.prod.whoop.com/developer/v1"
	AuthURL        = "https://api.prod.whoop.com/oauth/oauth2/auth"
	TokenURL       = "https://api.prod.whoop.com/oauth/oauth2/token"

	defaultPageSize = 25
	maxPages        = 20
)

// APIError is a non-2xx response from Whoop.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whoop api: status %d: %s", e.StatusCode, e.Body)
}

type ClientOptions struct {
	BaseURL    string
	HTTPClient *http.Client
	PageSize   int
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	pageSize   int
}

func NewClient(opts ClientOptions) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, pageSize: pageSize}
}

type page[T any] struct {
	Records   []T    `json:"records"`
	NextToken string `json:"next_token"`
}

// Workouts returns workouts that started at or after since.
func (c *Client) Workouts(ctx context.Context, token string, since time.Time) ([]Workout, error) {
	out, err := collect[Workout](ctx, c, token, "/activity/workout", since)
	if err != nil {
		return nil, fmt.Errorf("failed to list workouts: %w", err)
	}
	return out, nil
}

// Sleeps returns sleeps that started at or after since.
func (c *Client) Sleeps(ctx context.Context, token string, since time.Time) ([]Sleep, error) {
	out, err := collect[Sleep](ctx, c, token, "/activity/sleep", since)
	if err != nil {
		return nil, fmt.Errorf("failed to list sleeps: %w", err)
	}
	return out, nil
}

// Recoveries returns recoveries for cycles that started at or after since.
func (c *Client) Recoveries(ctx context.Context, token string, since time.Time) ([]Recovery, error) {
	out, err := collect[Recovery](ctx, c, token, "/recovery", since)
	if err != nil {
		return nil, fmt.Errorf("failed to list recoveries: %w", err)
	}
	return out, nil
}

func collect[T any](ctx context.Context, c *Client, token, path string, since time.Time) ([]T, error) {
	var all []T
	next := ""
	for i := 0; i < maxPages; i++ {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(c.pageSize))
		if !since.IsZero() {
			q.Set("start", since.UTC().Format(time.RFC3339))
		}
		if next != "" {
			q.Set("nextToken", next)
		}

		var p page[T]
		if err := c.get(ctx, token, path, q, &p); err != nil {
			return nil, err
		}
		all = append(all, p.Records...)
		if p.NextToken == "" {
			break
		}
		next = p.NextToken
	}
	return all, nil
}

func (c *Client) get(ctx context.Context, token, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return json.Unmarshal(body, out)
}
