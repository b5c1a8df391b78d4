package services

import (
	"context"
	"math"

	"github.com/tommyfx/storefront/app/models"
	"github.com/tommyfx/storefront/pkg/datastore"
	"github.com/tommyfx/storefront/pkg/livequery"
	"github.com/tommyfx/storefront/pkg/notification"
)

// Moderation backs the admin feedback dashboard: every feedback row,
// newest first, with author and product resolved.
type Moderation struct {
	deps Deps
}

func NewModeration(d Deps) *Moderation {
	return &Moderation{deps: d}
}

func (m *Moderation) pipeline() *livequery.Pipeline[models.EnrichedFeedback] {
	return &livequery.Pipeline[models.EnrichedFeedback]{
		Name:  "moderation",
		Store: m.deps.Store,
		Query: datastore.Query{
			Table:   models.TableFeedback,
			OrderBy: "created_at",
			Desc:    true,
		},
		Decode:    models.DecodeFeedback,
		Relations: []livequery.Relation[models.EnrichedFeedback]{feedbackAuthor(), feedbackProduct()},
	}
}

// NewView returns an inactive dashboard view listening to every feedback
// change. client receives the view's notices in addition to the process
// notifier; it may be nil.
func (m *Moderation) NewView(client notification.Notifier) *livequery.View[models.EnrichedFeedback] {
	opts := m.deps.options(client)
	opts.Pipeline = m.pipeline()
	opts.EmptyMessage = "No feedback has been submitted yet."
	return livequery.New(opts)
}

// Approve marks feedback id approved.
func (m *Moderation) Approve(ctx context.Context, v *livequery.View[models.EnrichedFeedback], id string) (livequery.Outcome, error) {
	return m.setApproved(ctx, v, id, true)
}

// Unapprove withdraws feedback id from the public testimonials.
func (m *Moderation) Unapprove(ctx context.Context, v *livequery.View[models.EnrichedFeedback], id string) (livequery.Outcome, error) {
	return m.setApproved(ctx, v, id, false)
}

func (m *Moderation) setApproved(ctx context.Context, v *livequery.View[models.EnrichedFeedback], id string, approved bool) (livequery.Outcome, error) {
	if !holds(v, feedbackKey, id) {
		return livequery.Outcome{}, ErrUnknownRecord
	}
	kind := "approve"
	if !approved {
		kind = "unapprove"
	}
	return v.Mutate(ctx, livequery.Mutation[models.EnrichedFeedback]{
		Kind: kind,
		Key:  id,
		Apply: func(rs []models.EnrichedFeedback) []models.EnrichedFeedback {
			for i := range rs {
				if rs[i].ID == id {
					rs[i].Approved = approved
				}
			}
			return rs
		},
		Remote: func(ctx context.Context) error {
			return m.deps.Store.Update(ctx, models.TableFeedback, id, datastore.Row{"approved": approved})
		},
	})
}

// Delete removes feedback id.
func (m *Moderation) Delete(ctx context.Context, v *livequery.View[models.EnrichedFeedback], id string) (livequery.Outcome, error) {
	if !holds(v, feedbackKey, id) {
		return livequery.Outcome{}, ErrUnknownRecord
	}
	return v.Mutate(ctx, livequery.Mutation[models.EnrichedFeedback]{
		Kind: "delete",
		Key:  id,
		Apply: func(rs []models.EnrichedFeedback) []models.EnrichedFeedback {
			out := rs[:0]
			for _, r := range rs {
				if r.ID != id {
					out = append(out, r)
				}
			}
			return out
		},
		Remote: func(ctx context.Context) error {
			return m.deps.Store.Delete(ctx, models.TableFeedback, id)
		},
	})
}

// ModerationStats summarises the dashboard list.
type ModerationStats struct {
	Total         int     `json:"total"`
	Approved      int     `json:"approved"`
	Pending       int     `json:"pending"`
	AverageRating float64 `json:"average_rating"`
}

// Stats computes the dashboard counters from the records a view holds.
func Stats(rs []models.EnrichedFeedback) ModerationStats {
	s := ModerationStats{Total: len(rs)}
	if len(rs) == 0 {
		return s
	}
	sum := 0
	for _, r := range rs {
		if r.Approved {
			s.Approved++
		}
		sum += r.Rating
	}
	s.Pending = s.Total - s.Approved
	s.AverageRating = math.Round(float64(sum)/float64(len(rs))*10) / 10
	return s
}
