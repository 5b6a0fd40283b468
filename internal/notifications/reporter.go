package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"securerip/internal/logging"
	"securerip/internal/ripping"
)

// maxListedPositions caps how many timestamps go into one push body.
const maxListedPositions = 8

// Reporter forwards noteworthy rip events to a Notifier.
type Reporter struct {
	notifier Notifier
	logger   *slog.Logger

	mu       sync.Mutex
	finished int
	degraded []int
	failed   []int
}

// NewReporter wraps notifier as a ripping.Reporter.
func NewReporter(notifier Notifier, logger *slog.Logger) *Reporter {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Reporter{
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "notifications"),
	}
}

// Publish implements ripping.Reporter.
func (r *Reporter) Publish(ctx context.Context, event ripping.Event) {
	if r == nil {
		return
	}
	switch event.Kind {
	case ripping.EventIrrecoverable:
		r.mu.Lock()
		r.degraded = append(r.degraded, event.Track)
		r.mu.Unlock()
		r.send(ctx, Message{
			Title:    fmt.Sprintf("securerip - Track %d degraded", event.Track),
			Body:     fmt.Sprintf("%d sectors unresolved after %d trials: %s", len(event.Sectors), event.Trial, positions(event.Timestamps())),
			Tags:     []string{"securerip", "track", "degraded"},
			Priority: "high",
		})
	case ripping.EventTrackFinished:
		if event.Result != nil && event.Result.Outcome == ripping.OutcomeCancelled {
			return
		}
		r.mu.Lock()
		r.finished++
		r.mu.Unlock()
	case ripping.EventFatal:
		r.mu.Lock()
		r.failed = append(r.failed, event.Track)
		r.mu.Unlock()
		body := "unknown error"
		if event.Err != nil {
			body = strings.TrimSpace(event.Err.Error())
		}
		if event.Message != "" {
			body += "\n" + event.Message
		}
		r.send(ctx, Message{
			Title:    fmt.Sprintf("securerip - Track %d failed", event.Track),
			Body:     body,
			Tags:     []string{"securerip", "error", "alert"},
			Priority: "high",
		})
	}
}

// SessionDone sends the end-of-session summary for label, usually the disc
// fingerprint.
func (r *Reporter) SessionDone(ctx context.Context, label string, cancelled bool) {
	if r == nil {
		return
	}
	r.mu.Lock()
	finished, degraded, failed := r.finished, len(r.degraded), len(r.failed)
	r.mu.Unlock()

	msg := Message{Tags: []string{"securerip", "session", "completed"}}
	switch {
	case cancelled:
		msg.Title = "securerip - Rip Cancelled"
		msg.Tags = []string{"securerip", "session", "cancelled"}
	case degraded > 0 || failed > 0:
		msg.Title = "securerip - Rip Complete (with errors)"
	default:
		msg.Title = "securerip - Rip Complete"
	}
	msg.Body = fmt.Sprintf("%s: %d tracks finished, %d degraded, %d failed", label, finished, degraded, failed)
	r.send(ctx, msg)
}

func (r *Reporter) send(ctx context.Context, msg Message) {
	if err := r.notifier.Send(context.WithoutCancel(ctx), msg); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network access"),
			logging.String(logging.FieldImpact, "the rip continues without push notifications"),
		)
	}
}

func positions(stamps []string) string {
	if len(stamps) <= maxListedPositions {
		return strings.Join(stamps, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(stamps[:maxListedPositions], ", "), len(stamps)-maxListedPositions)
}
