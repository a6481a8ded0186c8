package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"moodreel/internal/config"
)

const userAgent = "moodreel/0.1.0"

// Service defines the notification surface used by the CLI and the server.
type Service interface {
	NotifyAnalysisCompleted(ctx context.Context, file, dominant string, count, samples int) error
	NotifyNoEmotions(ctx context.Context, file string) error
	NotifyAnalysisFailed(ctx context.Context, file string, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyAnalysisCompleted(ctx context.Context, file, dominant string, count, samples int) error {
	message := fmt.Sprintf("%s: mostly %s", displayName(file), strings.TrimSpace(dominant))
	if samples > 0 {
		message = fmt.Sprintf("%s (%d of %d samples, %.0f%%)", message, count, samples, float64(count)*100/float64(samples))
	}
	return n.send(ctx, payload{
		title:   "moodreel - Analysis Complete",
		message: message,
		tags:    []string{"moodreel", "analysis", strings.ToLower(strings.TrimSpace(dominant))},
	})
}

func (n *ntfyService) NotifyNoEmotions(ctx context.Context, file string) error {
	return n.send(ctx, payload{
		title:   "moodreel - No Emotions",
		message: fmt.Sprintf("%s: no emotions detected in video frames", displayName(file)),
		tags:    []string{"moodreel", "analysis", "empty"},
	})
}

func (n *ntfyService) NotifyAnalysisFailed(ctx context.Context, file string, err error) error {
	reason := "unknown"
	if err != nil {
		reason = strings.TrimSpace(err.Error())
	}
	return n.send(ctx, payload{
		title:    "moodreel - Analysis Failed",
		message:  fmt.Sprintf("%s: %s", displayName(file), reason),
		tags:     []string{"moodreel", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "moodreel - Test",
		message:  "Notification system test",
		tags:     []string{"moodreel", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if tags := compact(data.tags); len(tags) > 0 {
		req.Header.Set("Tags", strings.Join(tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func displayName(file string) string {
	file = strings.TrimSpace(file)
	if file == "" {
		return "video"
	}
	return filepath.Base(file)
}

func compact(tags []string) []string {
	out := tags[:0:0]
	for _, tag := range tags {
		if tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

type noopService struct{}

func (noopService) NotifyAnalysisCompleted(context.Context, string, string, int, int) error { return nil }
func (noopService) NotifyNoEmotions(context.Context, string) error                          { return nil }
func (noopService) NotifyAnalysisFailed(context.Context, string, error) error               { return nil }
func (noopService) TestNotification(context.Context) error                                  { return nil }
