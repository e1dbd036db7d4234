package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gleaner/internal/config"
)

const userAgent = "Gleaner-Go/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyRunCompleted(ctx context.Context, processed, failed, permanent int, duration time.Duration) error
	NotifyRunFailed(ctx context.Context, err error) error
	NotifyClipPromoted(ctx context.Context, title, category string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint: topic,
		client:   client,
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

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, processed, failed, permanent int, duration time.Duration) error {
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}

	parts := []string{fmt.Sprintf("Processed %d items", processed)}
	if failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", failed))
	}
	if permanent > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped (paywall)", permanent))
	}

	title := "Gleaner - Run Complete"
	if failed > 0 {
		title = "Gleaner - Run Complete (with errors)"
	}

	data := payload{
		title:   title,
		message: fmt.Sprintf("%s in %s", strings.Join(parts, ", "), durationText),
		tags:    []string{"gleaner", "run", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunFailed(ctx context.Context, err error) error {
	message := "Pipeline run failed"
	if err != nil {
		message = fmt.Sprintf("Pipeline run failed: %s", strings.TrimSpace(err.Error()))
	}
	data := payload{
		title:    "Gleaner - Run Failed",
		message:  message,
		tags:     []string{"gleaner", "run", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyClipPromoted(ctx context.Context, title, category string) error {
	title = strings.TrimSpace(title)
	category = strings.TrimSpace(category)
	if category == "" {
		category = "note"
	}
	data := payload{
		title:   "Gleaner - Clip Promoted",
		message: fmt.Sprintf("Promoted clip: %s (%s)", title, category),
		tags:    []string{"gleaner", "clip", "promoted"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Gleaner - Error",
		message:  builder.String(),
		tags:     []string{"gleaner", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Gleaner - Test",
		message:  "Notification system test",
		tags:     []string{"gleaner", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
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
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
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

type noopService struct{}

func (noopService) NotifyRunCompleted(context.Context, int, int, int, time.Duration) error { return nil }
func (noopService) NotifyRunFailed(context.Context, error) error                           { return nil }
func (noopService) NotifyClipPromoted(context.Context, string, string) error               { return nil }
func (noopService) NotifyError(context.Context, error, string) error                       { return nil }
func (noopService) TestNotification(context.Context) error                                 { return nil }
