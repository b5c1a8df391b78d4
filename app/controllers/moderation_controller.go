package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/tommyfx/storefront/app/models"
	"github.com/tommyfx/storefront/app/services"
	"github.com/tommyfx/storefront/pkg/livequery"
	"github.com/tommyfx/storefront/pkg/logger"
	"github.com/tommyfx/storefront/pkg/notification"
	"github.com/tommyfx/storefront/pkg/response"
	"github.com/tommyfx/storefront/pkg/ws"
)

// Frame types on the moderation socket.
const (
	FrameSnapshot = "snapshot"
	FrameNotice   = "notice"
	FrameResult   = "result"
	FrameError    = "error"
)

type ModerationController struct {
	service *services.Moderation
	hub     *ws.Hub
}

func NewModerationController(s *services.Moderation, hub *ws.Hub) *ModerationController {
	return &ModerationController{service: s, hub: hub}
}

// moderationState is a dashboard snapshot with its counters.
type moderationState struct {
	livequery.Snapshot[models.EnrichedFeedback]
	Stats services.ModerationStats `json:"stats"`
}

func stateOf(s livequery.Snapshot[models.EnrichedFeedback]) moderationState {
	return moderationState{Snapshot: s, Stats: services.Stats(s.Records)}
}

type moderationPayload struct {
	moderationState
	Notices []notification.Notice `json:"notices,omitempty"`
}

// Index returns every feedback row with the dashboard counters.
func (c *ModerationController) Index(w http.ResponseWriter, r *http.Request) {
	notices := &notification.Recorder{}
	v := c.service.NewView(notices)
	if err := v.Load(r.Context()); err != nil {
		loadFailed(w)
		return
	}
	response.Success(w, moderationPayload{moderationState: stateOf(v.Snapshot()), Notices: notices.Notices()})
}

func (c *ModerationController) Approve(w http.ResponseWriter, r *http.Request) {
	c.mutate(w, r, c.service.Approve)
}

func (c *ModerationController) Unapprove(w http.ResponseWriter, r *http.Request) {
	c.mutate(w, r, c.service.Unapprove)
}

func (c *ModerationController) Delete(w http.ResponseWriter, r *http.Request) {
	c.mutate(w, r, c.service.Delete)
}

type moderationOp func(context.Context, *livequery.View[models.EnrichedFeedback], string) (livequery.Outcome, error)

func (c *ModerationController) mutate(w http.ResponseWriter, r *http.Request, op moderationOp) {
	id := chi.URLParam(r, "id")
	notices := &notification.Recorder{}
	v := c.service.NewView(notices)
	if err := v.Load(r.Context()); err != nil {
		loadFailed(w)
		return
	}

	out, err := op(r.Context(), v, id)
	writeMutation(w, mutationResult{
		Outcome: out,
		View:    stateOf(v.Snapshot()),
		Notices: notices.Notices(),
	}, err, false)
}

// action is an inbound socket message.
type action struct {
	Action string `json:"action"` // approve | unapprove | delete
	ID     string `json:"id"`
}

type actionResult struct {
	Action  string            `json:"action"`
	ID      string            `json:"id"`
	Outcome livequery.Outcome `json:"outcome"`
	Error   string            `json:"error,omitempty"`
}

// Socket upgrades to a WebSocket that owns a live moderation view for the
// life of the connection. The server pushes "snapshot" frames after every
// change and "notice" frames for the view's notices; the client sends
// {"action": "approve"|"unapprove"|"delete", "id": "..."} and gets a
// "result" or "error" frame back for each.
func (c *ModerationController) Socket(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.Upgrade(w, r, c.hub)
	if err != nil {
		return
	}
	ctx := r.Context()
	log := logger.WithCtx(ctx)

	client := notification.Func(func(_ context.Context, n notification.Notice) {
		_ = conn.Send(ws.Frame{Type: FrameNotice, Data: n})
	})
	v := c.service.NewView(client)
	remove := v.OnChange(func(s livequery.Snapshot[models.EnrichedFeedback]) {
		_ = conn.Send(ws.Frame{Type: FrameSnapshot, Data: stateOf(s)})
	})
	defer remove()

	_ = conn.Send(ws.Frame{Type: FrameSnapshot, Data: stateOf(v.Snapshot())})
	if err := v.Activate(ctx); err != nil {
		log.Error("moderation: socket activation failed", "error", err)
		_ = conn.Send(ws.Frame{Type: FrameError, Data: "Live updates are unavailable."})
		conn.Close()
		conn.Serve(func([]byte) {})
		return
	}
	defer v.Deactivate()

	// Actions outlive a dropped connection so a started write completes.
	actx := context.WithoutCancel(ctx)
	var wg sync.WaitGroup
	defer wg.Wait()

	conn.Serve(func(msg []byte) {
		var a action
		if err := json.Unmarshal(msg, &a); err != nil || a.ID == "" {
			_ = conn.Send(ws.Frame{Type: FrameError, Data: "Expected {\"action\": ..., \"id\": ...}."})
			return
		}
		op := c.lookup(a.Action)
		if op == nil {
			_ = conn.Send(ws.Frame{Type: FrameError, Data: "Unknown action " + a.Action + "."})
			return
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := op(actx, v, a.ID)
			res := actionResult{Action: a.Action, ID: a.ID, Outcome: out}
			if err != nil {
				res.Error = describe(err)
				log.Info("moderation: action not applied", "action", a.Action, "feedback_id", a.ID, "error", err)
			}
			_ = conn.Send(ws.Frame{Type: FrameResult, Data: res})
		}()
	})
}

func (c *ModerationController) lookup(name string) moderationOp {
	switch name {
	case "approve":
		return c.service.Approve
	case "unapprove":
		return c.service.Unapprove
	case "delete":
		return c.service.Delete
	}
	return nil
}

// describe turns a mutation error into text for the client.
func describe(err error) string {
	var mErr *livequery.MutationError
	switch {
	case errors.Is(err, services.ErrUnknownRecord):
		return "Feedback not found."
	case errors.Is(err, livequery.ErrMutationInFlight):
		return "This item is already being updated."
	case errors.As(err, &mErr) && mErr.RolledBack:
		return "The change could not be saved and was undone."
	case errors.As(err, &mErr):
		return "The change may not be persisted."
	default:
		return "Something went wrong."
	}
}
