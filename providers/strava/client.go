// ABOUTME: Strava REST client for activity listing and lookup
// ABOUTME: Bearer-authenticated JSON requests with page-based pagination
package strava

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
	DefaultBaseURL = "https://www.strava.com/api/v3"
	AuthURL        = "https://www.strava.com/oauth/authorize"
	TokenURL       = "https://www.strava.com/oauth/token"

	defaultPageSize = 50
	maxPages        = 20
)

// APIError is a non-2xx response from Strava.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("strava api: status %d: %s", e.StatusCode, e.Body)
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

// ListActivities returns every activity that started after the given time.
func (c *Client) ListActivities(ctx context.Context, token string, after time.Time) ([]Activity, error) {
	var all []Activity
	for page := 1; page <= maxPages; page++ {
		q := url.Values{}
		q.Set("per_page", strconv.Itoa(c.pageSize))
		q.Set("page", strconv.Itoa(page))
		if !after.IsZero() {
			q.Set("after", strconv.FormatInt(after.Unix(), 10))
		}

		var batch []Activity
		if err := c.get(ctx, token, "/athlete/activities", q, &batch); err != nil {
			return nil, fmt.Errorf("failed to list activities: %w", err)
		}
		all = append(all, batch...)
		if len(batch) < c.pageSize {
			break
		}
	}
	return all, nil
}

// GetActivity fetches the detailed representation of one activity.
func (c *Client) GetActivity(ctx context.Context, token string, id int64) (*Activity, error) {
	var activity Activity
	path := "/activities/" + strconv.FormatInt(id, 10)
	if err := c.get(ctx, token, path, nil, &activity); err != nil {
		return nil, fmt.Errorf("failed to get activity %d: %w", id, err)
	}
	return &activity, nil
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
