package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gleaner/internal/config"
	"gleaner/internal/notifications"
)

type captured struct {
	title    string
	message  string
	tags     string
	priority string
}

func newCapturingService(t *testing.T) (notifications.Service, *[]captured) {
	t.Helper()

	var requests []captured
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests = append(requests, captured{
			title:    r.Header.Get("Title"),
			message:  string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
		})
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	return notifications.NewService(&cfg), &requests
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyRunCompleted(context.Background(), 3, 0, 0, time.Minute); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNotifyRunCompletedMessages(t *testing.T) {
	tests := []struct {
		name          string
		processed     int
		failed        int
		permanent     int
		expectTitle   string
		expectMessage string
	}{
		{
			name:          "clean run",
			processed:     5,
			expectTitle:   "Gleaner - Run Complete",
			expectMessage: "Processed 5 items in 1m30s",
		},
		{
			name:          "with failures",
			processed:     3,
			failed:        1,
			expectTitle:   "Gleaner - Run Complete (with errors)",
			expectMessage: "Processed 3 items, 1 failed in 1m30s",
		},
		{
			name:          "with paywall skips",
			processed:     2,
			failed:        1,
			permanent:     2,
			expectTitle:   "Gleaner - Run Complete (with errors)",
			expectMessage: "Processed 2 items, 1 failed, 2 skipped (paywall) in 1m30s",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, requests := newCapturingService(t)
			err := svc.NotifyRunCompleted(context.Background(), tc.processed, tc.failed, tc.permanent, 90*time.Second)
			if err != nil {
				t.Fatalf("NotifyRunCompleted: %v", err)
			}
			if len(*requests) != 1 {
				t.Fatalf("expected 1 request, got %d", len(*requests))
			}
			got := (*requests)[0]
			if got.title != tc.expectTitle {
				t.Errorf("title = %q, want %q", got.title, tc.expectTitle)
			}
			if got.message != tc.expectMessage {
				t.Errorf("message = %q, want %q", got.message, tc.expectMessage)
			}
		})
	}
}

func TestNotifyRunFailedSetsHighPriority(t *testing.T) {
	svc, requests := newCapturingService(t)
	if err := svc.NotifyRunFailed(context.Background(), errors.New("database locked")); err != nil {
		t.Fatalf("NotifyRunFailed: %v", err)
	}
	got := (*requests)[0]
	if got.priority != "high" {
		t.Errorf("priority = %q, want high", got.priority)
	}
	if got.message != "Pipeline run failed: database locked" {
		t.Errorf("message = %q", got.message)
	}
}

func TestNotifyClipPromoted(t *testing.T) {
	svc, requests := newCapturingService(t)
	if err := svc.NotifyClipPromoted(context.Background(), "Deep Work", "idea"); err != nil {
		t.Fatalf("NotifyClipPromoted: %v", err)
	}
	got := (*requests)[0]
	if got.message != "Promoted clip: Deep Work (idea)" {
		t.Errorf("message = %q", got.message)
	}
	if got.tags != "gleaner,clip,promoted" {
		t.Errorf("tags = %q", got.tags)
	}
}

func TestSendSurfacesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)

	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
