package controllers

import (
	"net/http"

	"github.com/tommyfx/storefront/app/models"
	"github.com/tommyfx/storefront/app/services"
	"github.com/tommyfx/storefront/pkg/auth"
	"github.com/tommyfx/storefront/pkg/bind"
	"github.com/tommyfx/storefront/pkg/livequery"
	"github.com/tommyfx/storefront/pkg/logger"
	"github.com/tommyfx/storefront/pkg/notification"
	"github.com/tommyfx/storefront/pkg/response"
)

type ProfileController struct {
	service *services.Profile
}

func NewProfileController(s *services.Profile) *ProfileController {
	return &ProfileController{service: s}
}

type profilePayload struct {
	Identity auth.Identity                               `json:"identity"`
	Orders   livequery.Snapshot[models.OrderSummary]     `json:"orders"`
	Feedback livequery.Snapshot[models.EnrichedFeedback] `json:"feedback"`
	Notices  []notification.Notice                       `json:"notices,omitempty"`
}

// Show returns the signed-in customer's orders and feedback. A list that
// fails to load comes back empty with a destructive notice; the other list
// is still returned.
func (c *ProfileController) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		response.Unauthorized(w)
		return
	}

	notices := &notification.Recorder{}
	orders := c.service.OrdersView(id.ID, notices)
	feedback := c.service.FeedbackView(id.ID, notices)

	// Failures are already on the snapshots and in notices.
	_ = orders.Load(r.Context())
	_ = feedback.Load(r.Context())

	response.Success(w, profilePayload{
		Identity: id,
		Orders:   orders.Snapshot(),
		Feedback: feedback.Snapshot(),
		Notices:  notices.Notices(),
	})
}

// SubmitFeedback stores new, unapproved feedback from the signed-in
// customer.
func (c *ProfileController) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		response.Unauthorized(w)
		return
	}

	var in services.FeedbackInput
	if _, err := bind.JSON(w, r, &in); err != nil {
		response.BadRequest(w, err.Error())
		return
	}
	if err := in.Validate(); err != nil {
		writeMutation(w, mutationResult{}, err, true)
		return
	}

	notices := &notification.Recorder{}
	v := c.service.FeedbackView(id.ID, notices)
	if err := v.Load(r.Context()); err != nil {
		loadFailed(w)
		return
	}

	rec, out, err := c.service.SubmitFeedback(r.Context(), v, id.ID, in)
	if err == nil {
		logger.WithCtx(r.Context()).Info("feedback submitted", "feedback_id", rec.ID, "profile_id", id.ID)
	}
	writeMutation(w, mutationResult{
		Outcome: out,
		Record:  rec,
		View:    v.Snapshot(),
		Notices: notices.Notices(),
	}, err, true)
}
