// Package ollama classifies frames with a local vision model served by Ollama.
package ollama

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
	defaultHTTPTimeout = 60 * time.Second
	opGenerate         = "ollama generate"
	opHealth           = "ollama health"
)

// Prompt asks the model for FER-shaped JSON.
const Prompt = `You are a facial expression classifier. Look at every human face in the image.
Respond with JSON only, no prose, in exactly this shape:
{"faces":[{"emotions":{"angry":0.0,"disgust":0.0,"fear":0.0,"happy":0.0,"sad":0.0,"surprise":0.0,"neutral":0.0}}]}
Each score is a confidence between 0 and 1. List the largest face first.
If no face is visible respond with {"faces":[]}.`

// Config captures the runtime settings required to talk to Ollama.
type Config struct {
	BaseURL        string
	Model          string
	APIKey         string
	TimeoutSeconds int
	Encoding       frameenc.Options
}

// Client wraps the Ollama generate API.
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

// NewClient constructs an Ollama client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			Model:          strings.TrimSpace(cfg.Model),
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

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Images  []string       `json:"images,omitempty"`
	Stream  bool           `json:"stream"`
	Format  string         `json:"format,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

type facesPayload struct {
	Faces []emotion.Face `json:"faces"`
}

// Classify asks the model to score the faces in frame.
func (c *Client) Classify(ctx context.Context, frame image.Image) ([]emotion.Face, error) {
	if c.cfg.Model == "" {
		return nil, services.Wrap(services.ErrConfiguration, "scanning", opGenerate, "model required", nil)
	}
	encoded, err := frameenc.Base64JPEG(frame, c.cfg.Encoding)
	if err != nil {
		return nil, services.Wrap(services.ErrFrameClassification, "scanning", opGenerate, "encode frame", err)
	}
	body, err := json.Marshal(generateRequest{
		Model:   c.cfg.Model,
		Prompt:  Prompt,
		Images:  []string{encoded},
		Stream:  false,
		Format:  "json",
		Options: map[string]any{"temperature": 0},
	})
	if err != nil {
		return nil, services.Wrap(services.ErrFrameClassification, "scanning", opGenerate, "encode body", err)
	}

	var faces []emotion.Face
	err = c.retry.Do(ctx, opGenerate, func(ctx context.Context) error {
		var resp generateResponse
		if err := c.doJSON(ctx, http.MethodPost, "api/generate", body, &resp); err != nil {
			return err
		}
		if resp.Error != "" {
			return fmt.Errorf("model error: %s", resp.Error)
		}
		if strings.TrimSpace(resp.Response) == "" {
			return retry.Retryable(errors.New("empty model response"))
		}
		var parsed facesPayload
		if err := DecodeModelJSON(resp.Response, &parsed); err != nil {
			return retry.Retryable(fmt.Errorf("parse model payload: %w", err))
		}
		faces = parsed.Faces
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, services.Wrap(services.ErrFrameClassification, "scanning", opGenerate, c.cfg.Model, err)
	}
	return faces, nil
}

// HealthCheck verifies Ollama is reachable and has the configured model pulled.
func (c *Client) HealthCheck(ctx context.Context) error {
	var tags struct {
		Models []struct {
			Name  string `json:"name"`
			Model string `json:"model"`
		} `json:"models"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "api/tags", nil, &tags); err != nil {
		return services.Wrap(services.ErrExternalTool, "preflight", opHealth, c.cfg.BaseURL, err)
	}
	for _, m := range tags.Models {
		if modelMatches(c.cfg.Model, m.Name) || modelMatches(c.cfg.Model, m.Model) {
			return nil
		}
	}
	return services.Wrap(services.ErrNotFound, "preflight", opHealth, fmt.Sprintf("model %q not pulled (run: ollama pull %s)", c.cfg.Model, c.cfg.Model), nil)
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// modelMatches treats "llava" and "llava:latest" as the same model.
func modelMatches(want, have string) bool {
	want = strings.TrimSpace(want)
	have = strings.TrimSpace(have)
	if want == "" || have == "" {
		return false
	}
	if want == have {
		return true
	}
	if !strings.Contains(want, ":") {
		return have == want+":latest"
	}
	return false
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
