// Package notify delivers the completion notification once a session clears
// both checkpoints. Delivery is best-effort relative to the verification flow.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// CompletionEvent describes one fully verified session.
type CompletionEvent struct {
	SubjectID   string
	Token       string
	CompletedAt time.Time
}

type CompletionNotifier interface {
	NotifyCompletion(ctx context.Context, event CompletionEvent) error
}

// DevNotifier logs the completion instead of calling a webhook. Used when no
// webhook URL is configured.
type DevNotifier struct {
	logger *slog.Logger
}

func NewDevNotifier(logger *slog.Logger) *DevNotifier {
	return &DevNotifier{logger: logger}
}

func (n *DevNotifier) NotifyCompletion(ctx context.Context, event CompletionEvent) error {
	n.logger.InfoContext(ctx, "verification completed",
		"subject_id", event.SubjectID,
		"token", event.Token,
		"completed_at", event.CompletedAt,
	)
	return nil
}
