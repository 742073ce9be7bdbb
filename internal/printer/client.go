// Package printer talks to the printer controller firmware over its HTTP
// API: one endpoint to read controller and active-print state, one to
// upload a named toolpath file, one to start a print by filename. The
// request and response shapes are the firmware's contract, versioned
// independently of this service.
package printer

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

	"github.com/shapekiln/kiln/internal/config"
)

var (
	ErrUpstreamUnavailable = errors.New("printer controller unreachable")
	ErrControllerRejected  = errors.New("printer controller rejected request")
)

// State is the controller's self-reported condition.
type State struct {
	Status string     `json:"state"`
	Job    *ActiveJob `json:"job,omitempty"`
}

type ActiveJob struct {
	Filename string  `json:"filename"`
	Progress float64 `json:"progress"`
}

// Ready reports whether the controller can accept a new print.
func (s *State) Ready() bool {
	switch s.Status {
	case "idle", "operational", "ready":
		return true
	}
	return false
}

// Printing reports whether a print is physically in progress.
func (s *State) Printing() bool {
	return s.Status == "printing" || s.Status == "heating"
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg *config.PrinterConfig) *Client {
	timeout := cfg.ConnectionTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.Address, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// State queries controller readiness and active-print status.
func (c *Client) State(ctx context.Context) (*State, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/status", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status endpoint returned %d", ErrControllerRejected, resp.StatusCode)
	}

	var state State
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return nil, fmt.Errorf("failed to decode controller state: %w", err)
	}
	return &state, nil
}

// Upload transfers a toolpath file to the controller under name.
func (c *Client) Upload(ctx context.Context, name string, toolpath []byte) error {
	endpoint := fmt.Sprintf("%s/api/v1/files?name=%s", c.baseURL, url.QueryEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(toolpath))
	if err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: upload returned %d: %s", ErrControllerRejected, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// StartPrint instructs the controller to begin printing an uploaded file.
func (c *Client) StartPrint(ctx context.Context, name string) error {
	payload, err := json.Marshal(map[string]string{"filename": name})
	if err != nil {
		return fmt.Errorf("failed to encode print request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/print", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build print request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: print returned %d: %s", ErrControllerRejected, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
