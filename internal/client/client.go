// Package client is the HTTP side of job status polling: it speaks the
// {success, job} envelope of the jobs API. Configuration is injected
// explicitly; there is no package-level client or base URL.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"revenue-jobs/internal/poller"
)

type Config struct {
	BaseURL string        // e.g. http://localhost:8080
	Token   string        // bearer token for the jobs API
	Timeout time.Duration // per-request; default 10s
	HTTP    *http.Client  // optional override, used as-is when set
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, errors.New("base url is required")
	}

	hc := cfg.HTTP
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: base,
		token:   cfg.Token,
		http:    hc,
	}, nil
}

// envelope is the wire shape of every jobs API response.
type envelope struct {
	Success bool           `json:"success"`
	Job     *poller.Record `json:"job,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// FetchStatus implements poller.StatusFetcher. A non-2xx response, a
// missing success flag or a missing job field are all reported as errors;
// the poller treats them the same as a network failure.
func (c *Client) FetchStatus(ctx context.Context, jobID string) (*poller.Record, error) {
	if jobID == "" {
		return nil, errors.New("job id is required")
	}

	endpoint := c.baseURL + "/api/jobs/" + url.PathEscape(jobID)
	env, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return env.Job, nil
}

type submitRequest struct {
	Type     string          `json:"type"`
	Priority *int            `json:"priority,omitempty"`
	Input    json.RawMessage `json:"input,omitempty"`
}

// Submit enqueues a new job and returns its first status record.
func (c *Client) Submit(ctx context.Context, typ string, priority *int, input json.RawMessage) (*poller.Record, error) {
	if typ == "" {
		return nil, errors.New("job type is required")
	}

	body, err := json.Marshal(submitRequest{Type: typ, Priority: priority, Input: input})
	if err != nil {
		return nil, err
	}

	env, err := c.do(ctx, http.MethodPost, c.baseURL+"/api/jobs", body)
	if err != nil {
		return nil, err
	}
	return env.Job, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr == nil && env.Error != "" {
			return nil, errors.New(env.Error)
		}
		return nil, fmt.Errorf("jobs api: unexpected status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("jobs api: invalid response: %w", decodeErr)
	}
	if !env.Success {
		if env.Error != "" {
			return nil, errors.New(env.Error)
		}
		return nil, errors.New("jobs api: response not successful")
	}
	if env.Job == nil {
		return nil, errors.New("jobs api: response missing job")
	}

	return &env, nil
}
