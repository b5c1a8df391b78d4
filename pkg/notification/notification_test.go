package notification_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	storehttp "github.com/tommyfx/storefront/pkg/http"
	"github.com/tommyfx/storefront/pkg/notification"
	"github.com/tommyfx/storefront/pkg/testkit"
)

func TestFanout_SkipsNil(t *testing.T) {
	a, b := &notification.Recorder{}, &notification.Recorder{}
	f := notification.Fanout{a, nil, b}

	f.Notify(context.Background(), notification.Warning("Saved locally", "The change may not be persisted."))

	assert.Len(t, a.Notices(), 1)
	assert.Equal(t, 1, b.Count(notification.SeverityWarning))
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Notify(ctx context.Context, n notification.Notice) { m.Called(ctx, n) }

func TestFanout_DeliversInOrder(t *testing.T) {
	var order []string
	first, second := &mockNotifier{}, &mockNotifier{}
	n := notification.Destructive("Delete failed", "The feedback was restored.")
	first.On("Notify", mock.Anything, n).Run(func(mock.Arguments) { order = append(order, "first") }).Once()
	second.On("Notify", mock.Anything, n).Run(func(mock.Arguments) { order = append(order, "second") }).Once()

	notification.Fanout{first, second}.Notify(context.Background(), n)

	first.AssertExpectations(t)
	second.AssertExpectations(t)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestRecorder_Count(t *testing.T) {
	r := &notification.Recorder{}
	ctx := context.Background()
	r.Notify(ctx, notification.Info("a", ""))
	r.Notify(ctx, notification.Destructive("b", ""))
	r.Notify(ctx, notification.Destructive("c", ""))

	assert.Equal(t, 1, r.Count(notification.SeverityInfo))
	assert.Equal(t, 2, r.Count(notification.SeverityDestructive))
	assert.Zero(t, r.Count(notification.SeverityWarning))
}

func TestFunc(t *testing.T) {
	var got notification.Notice
	notification.Func(func(_ context.Context, n notification.Notice) { got = n }).
		Notify(context.Background(), notification.Info("Hi", "there"))
	assert.Equal(t, notification.Notice{Title: "Hi", Message: "there", Severity: notification.SeverityInfo}, got)
}

func TestSlack_PostsDestructiveOnly(t *testing.T) {
	type payload struct {
		Text        string `json:"text"`
		Attachments []struct {
			Color string `json:"color"`
			Text  string `json:"text"`
		} `json:"attachments"`
	}
	got := make(chan payload, 4)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p payload
		_ = json.NewDecoder(r.Body).Decode(&p)
		got <- p
	}))
	defer hook.Close()

	s := notification.NewSlack(hook.URL)
	ctx := context.Background()
	s.Notify(ctx, notification.Warning("Saved locally", "ignored"))
	s.Notify(ctx, notification.Destructive("Update failed", "Changes were undone."))

	select {
	case p := <-got:
		assert.Equal(t, "Update failed", p.Text)
		require.Len(t, p.Attachments, 1)
		assert.Equal(t, "danger", p.Attachments[0].Color)
		assert.Equal(t, "Changes were undone.", p.Attachments[0].Text)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook not called")
	}

	select {
	case p := <-got:
		t.Fatalf("unexpected second post: %+v", p)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSlack_NoWebhookIsNoop(t *testing.T) {
	var s *notification.Slack
	s.Notify(context.Background(), notification.Destructive("x", "y"))
	notification.NewSlack("").Notify(context.Background(), notification.Destructive("x", "y"))
}

func TestSlack_RetriesUnavailableWebhook(t *testing.T) {
	mt := testkit.NewMockTransport([]testkit.MockStep{
		{MatchURL: "https://hooks.slack.test/", StatusCode: http.StatusServiceUnavailable},
	}, true)
	storehttp.DefaultClient.Transport = mt
	defer storehttp.ResetTransport()

	s := notification.NewSlack("https://hooks.slack.test/services/T1")
	s.Attempts = 2
	s.Notify(context.Background(), notification.Destructive("Delete failed", "The feedback was restored."))

	assert.Eventually(t, func() bool { return len(mt.Seen()) == 2 }, 3*time.Second, 20*time.Millisecond)
}
