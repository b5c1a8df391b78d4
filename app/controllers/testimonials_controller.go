package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/tommyfx/storefront/app/models"
	"github.com/tommyfx/storefront/app/services"
	"github.com/tommyfx/storefront/pkg/livequery"
	"github.com/tommyfx/storefront/pkg/logger"
	"github.com/tommyfx/storefront/pkg/notification"
	"github.com/tommyfx/storefront/pkg/response"
	"github.com/tommyfx/storefront/pkg/sse"
)

const defaultHeartbeat = 15 * time.Second

type TestimonialsController struct {
	service *services.Testimonials

	// Heartbeat is the interval between keep-alive comments on streams.
	Heartbeat time.Duration
}

func NewTestimonialsController(s *services.Testimonials) *TestimonialsController {
	return &TestimonialsController{service: s, Heartbeat: defaultHeartbeat}
}

type testimonialsPayload struct {
	livequery.Snapshot[models.Testimonial]
	Notices []notification.Notice `json:"notices,omitempty"`
}

// Index returns the newest approved testimonials. ?limit= narrows the list
// below the configured maximum.
func (c *TestimonialsController) Index(w http.ResponseWriter, r *http.Request) {
	notices := &notification.Recorder{}
	v := c.service.NewView(intQuery(r, "limit", c.service.Limit()), notices)

	if err := v.Load(r.Context()); err != nil {
		loadFailed(w)
		return
	}
	response.Success(w, testimonialsPayload{Snapshot: v.Snapshot(), Notices: notices.Notices()})
}

// Stream keeps a testimonials view active for as long as the client stays
// connected and sends a "snapshot" event after every change, plus "notice"
// events and heartbeat comments.
func (c *TestimonialsController) Stream(w http.ResponseWriter, r *http.Request) {
	stream, err := sse.New(w, r)
	if err != nil {
		return
	}
	ctx := r.Context()
	log := logger.WithCtx(ctx)

	latest := make(chan livequery.Snapshot[models.Testimonial], 1)
	notices := make(chan notification.Notice, 8)
	client := notification.Func(func(_ context.Context, n notification.Notice) {
		select {
		case notices <- n:
		default:
		}
	})

	v := c.service.NewView(intQuery(r, "limit", c.service.Limit()), client)
	remove := v.OnChange(func(s livequery.Snapshot[models.Testimonial]) { offer(latest, s) })
	defer remove()

	if err := stream.Send("snapshot", v.Snapshot()); err != nil {
		return
	}
	if err := v.Activate(ctx); err != nil {
		log.Error("testimonials: stream activation failed", "error", err)
		_ = stream.Send("notice", notification.Destructive("Could not load data", "Live updates are unavailable."))
		return
	}
	defer v.Deactivate()

	heartbeat := time.NewTicker(c.Heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-stream.Done():
			return
		case s := <-latest:
			err = stream.Send("snapshot", s)
		case n := <-notices:
			err = stream.Send("notice", n)
		case <-heartbeat.C:
			err = stream.Comment("heartbeat")
		}
		if err != nil {
			log.Debug("testimonials: stream write failed", "error", err)
			return
		}
	}
}
