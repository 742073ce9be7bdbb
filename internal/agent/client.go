package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shapekiln/kiln/internal/core"
)

// Client implements JobService against the kiln server's HTTP API, for
// agents running on the printer host rather than inside the server
// process.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(serverURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type apiErrorBody struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) checkStatus(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var body apiErrorBody
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(data, &body)

	switch body.Error.Kind {
	case "not_found":
		return core.ErrNotFound
	case "invalid_transition":
		return fmt.Errorf("%w: %s", core.ErrInvalidTransition, body.Error.Message)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Error.Message)
}

func (c *Client) PeekNext(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/queue/next", nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to peek queue: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return "", nil
	}
	if err := c.checkStatus(resp); err != nil {
		return "", err
	}

	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode queue head: %w", err)
	}
	return body.ID, nil
}

func (c *Client) MeshData(ctx context.Context, id string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/v1/orders/%s/mesh", c.baseURL, id), nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch mesh: %w", err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return "", err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read mesh body: %w", err)
	}
	return string(data), nil
}

func (c *Client) BeginPrinting(ctx context.Context, id string) (*core.Job, error) {
	return c.postTransition(ctx, id, "print", nil)
}

func (c *Client) Complete(ctx context.Context, id string) (*core.Job, error) {
	return c.postTransition(ctx, id, "complete", nil)
}

func (c *Client) Fail(ctx context.Context, id, reason string) error {
	payload := map[string]string{"reason": reason}
	_, err := c.postTransition(ctx, id, "fail", payload)
	return err
}

func (c *Client) postTransition(ctx context.Context, id, action string, payload interface{}) (*core.Job, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	endpoint := fmt.Sprintf("%s/api/v1/orders/%s/%s", c.baseURL, id, action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to post %s for job %s: %w", action, id, err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return nil, err
	}

	var job core.Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}
	return &job, nil
}
