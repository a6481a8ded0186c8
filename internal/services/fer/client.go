// Package fer talks to a FER-compatible facial emotion sidecar over HTTP.
package fer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"moodreel/internal/emotion"
	"moodreel/internal/services"
	"moodreel/internal/services/frameenc"
	"moodreel/internal/services/retry"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	opDetect           = "fer detect"
	opHealth           = "fer health"
)

// Config captures the runtime settings required to talk to the sidecar.
type Config struct {
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
	Encoding       frameenc.Options
}

// Client classifies frames through POST /detect.
type Client struct {
	cfg        Config
	httpClient *http.Client
	retry      retry.Policy
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryPolicy overrides attempts and backoff.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(c *Client) {
		c.retry = policy
	}
}

// NewClient constructs a sidecar client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			APIKey:         strings.TrimSpace(cfg.APIKey),
			TimeoutSeconds: cfg.TimeoutSeconds,
			Encoding:       cfg.Encoding,
		},
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type detectRequest struct {
	Image string `json:"image"`
}

// detectResponse accepts a bare face array or {"faces": [...]}.
type detectResponse struct {
	Faces []emotion.Face
}

func (r *detectResponse) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &r.Faces)
	}
	var wrapped struct {
		Faces []emotion.Face `json:"faces"`
		Error string         `json:"error"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return err
	}
	if wrapped.Error != "" {
		return fmt.Errorf("sidecar error: %s", wrapped.Error)
	}
	r.Faces = wrapped.Faces
	return nil
}

// Classify uploads frame as JPEG and returns the detected faces in the
// sidecar's order.
func (c *Client) Classify(ctx context.Context, frame image.Image) ([]emotion.Face, error) {
	encoded, err := frameenc.Base64JPEG(frame, c.cfg.Encoding)
	if err != nil {
		return nil, services.Wrap(services.ErrFrameClassification, "scanning", opDetect, "encode frame", err)
	}
	body, err := json.Marshal(detectRequest{Image: encoded})
	if err != nil {
		return nil, services.Wrap(services.ErrFrameClassification, "scanning", opDetect, "encode body", err)
	}

	var faces []emotion.Face
	err = c.retry.Do(ctx, opDetect, func(ctx context.Context) error {
		var resp detectResponse
		if err := c.doJSON(ctx, http.MethodPost, "detect", body, &resp); err != nil {
			return err
		}
		faces = resp.Faces
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, services.Wrap(services.ErrFrameClassification, "scanning", opDetect, "", err)
	}
	return faces, nil
}

// HealthCheck verifies the sidecar answers GET /health.
func (c *Client) HealthCheck(ctx context.Context) error {
	var payload map[string]any
	if err := c.doJSON(ctx, http.MethodGet, "health", nil, &payload); err != nil {
		return services.Wrap(services.ErrExternalTool, "preflight", opHealth, c.cfg.BaseURL, err)
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body []byte, target any) error {
	if c.cfg.BaseURL == "" {
		return errors.New("base url required")
	}
	endpoint, err := url.JoinPath(c.cfg.BaseURL, path)
	if err != nil {
		return fmt.Errorf("build url: %w", err)
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http error (timeout=%s): %w", c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := retry.CheckResponse(method+" /"+path, resp, payload); err != nil {
		return err
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode response: %w (payload snippet: %s)", err, retry.Snippet(string(payload)))
	}
	return nil
}
