// Package notification delivers user-facing notices: short titled messages
// tagged with a severity. Delivery is fire-and-forget; no caller consumes a
// result.
//
//	n.Notify(ctx, notification.Warning("Saved locally", "The change may not be persisted."))
package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tommyfx/storefront/pkg/http"
	"github.com/tommyfx/storefront/pkg/logger"
)

// Severity tags a notice for presentation.
type Severity string

const (
	SeverityInfo        Severity = "info"
	SeverityWarning     Severity = "warning"
	SeverityDestructive Severity = "destructive"
)

// Notice is one message to show the user.
type Notice struct {
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

func Info(title, msg string) Notice    { return Notice{title, msg, SeverityInfo} }
func Warning(title, msg string) Notice { return Notice{title, msg, SeverityWarning} }
func Destructive(title, msg string) Notice {
	return Notice{title, msg, SeverityDestructive}
}

// Notifier displays notices.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// Func adapts a plain function to Notifier.
type Func func(ctx context.Context, n Notice)

func (f Func) Notify(ctx context.Context, n Notice) { f(ctx, n) }

// Log writes notices to the request logger. It is the fallback when no
// interactive channel is attached.
type Log struct{}

func (Log) Notify(ctx context.Context, n Notice) {
	log := logger.WithCtx(ctx)
	switch n.Severity {
	case SeverityDestructive:
		log.Error("notice", "title", n.Title, "message", n.Message)
	case SeverityWarning:
		log.Warn("notice", "title", n.Title, "message", n.Message)
	default:
		log.Info("notice", "title", n.Title, "message", n.Message)
	}
}

// Fanout sends every notice to each non-nil notifier in order.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, n Notice) {
	for _, nt := range f {
		if nt != nil {
			nt.Notify(ctx, n)
		}
	}
}

// Recorder keeps every notice it receives. Tests use it to count warnings.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

// Notices returns a copy of everything recorded so far.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Count returns how many recorded notices carry severity s.
func (r *Recorder) Count(s Severity) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, x := range r.notices {
		if x.Severity == s {
			n++
		}
	}
	return n
}

// ─── Slack ──────────────────────────────────────────────────────────────────

// Slack posts notices at or above MinSeverity to an incoming webhook, in a
// background goroutine.
type Slack struct {
	WebhookURL  string
	MinSeverity Severity
	Attempts    int
}

// NewSlack returns a Slack notifier for destructive notices only.
func NewSlack(webhookURL string) *Slack {
	return &Slack{
		WebhookURL:  webhookURL,
		MinSeverity: SeverityDestructive,
		Attempts:    3,
	}
}

type slackAttachment struct {
	Color string `json:"color,omitempty"` // "good" | "warning" | "danger"
	Title string `json:"title,omitempty"`
	Text  string `json:"text,omitempty"`
}

type slackPayload struct {
	Text        string            `json:"text,omitempty"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

func (s *Slack) Notify(ctx context.Context, n Notice) {
	if s == nil || s.WebhookURL == "" || rank(n.Severity) < rank(s.MinSeverity) {
		return
	}
	// Delivery outlives the request that raised the notice.
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := s.post(ctx, n); err != nil {
			logger.WithCtx(ctx).Error("notification: slack delivery failed", "error", err)
		}
	}()
}

func (s *Slack) post(ctx context.Context, n Notice) error {
	resp, err := http.Post(s.WebhookURL).
		Body(slackPayload{
			Text: n.Title,
			Attachments: []slackAttachment{{
				Color: color(n.Severity),
				Title: n.Title,
				Text:  n.Message,
			}},
		}).
		Timeout(5*time.Second).
		Retry(s.Attempts, 500*time.Millisecond).
		WithContext(ctx).
		Send()
	if err != nil {
		return fmt.Errorf("notification: slack post: %w", err)
	}
	return resp.Throw()
}

func rank(s Severity) int {
	switch s {
	case SeverityDestructive:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

func color(s Severity) string {
	switch s {
	case SeverityDestructive:
		return "danger"
	case SeverityWarning:
		return "warning"
	default:
		return "good"
	}
}
