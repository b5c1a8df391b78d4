package services

import (
	"context"

	"github.com/tommyfx/storefront/app/models"
	"github.com/tommyfx/storefront/pkg/datastore"
	"github.com/tommyfx/storefront/pkg/livequery"
	"github.com/tommyfx/storefront/pkg/notification"
	"github.com/tommyfx/storefront/pkg/realtime"
)

// Testimonials serves approved feedback to the public site.
type Testimonials struct {
	deps  Deps
	limit int
}

// NewTestimonials returns the service. limit bounds every list; values
// below 1 fall back to 10.
func NewTestimonials(d Deps, limit int) *Testimonials {
	if limit < 1 {
		limit = 10
	}
	return &Testimonials{deps: d, limit: limit}
}

// Limit is the default list size.
func (t *Testimonials) Limit() int { return t.limit }

func (t *Testimonials) pipeline(limit int) *livequery.Pipeline[models.Testimonial] {
	if limit < 1 || limit > t.limit {
		limit = t.limit
	}
	return &livequery.Pipeline[models.Testimonial]{
		Name:  "testimonials",
		Store: t.deps.Store,
		Query: datastore.Query{
			Table:   models.TableFeedback,
			Where:   []datastore.Cond{datastore.Eq("approved", true)},
			OrderBy: "created_at",
			Desc:    true,
			Limit:   limit,
		},
		Decode: models.DecodeTestimonial,
		Relations: []livequery.Relation[models.Testimonial]{
			{
				Table:   models.TableProfiles,
				Columns: []string{"full_name"},
				Refs:    livequery.Ref(func(r models.Testimonial) string { return r.UserID }),
				Apply: func(r *models.Testimonial, ix livequery.Index) {
					if p, ok := ix.One(r.UserID); ok {
						if name, ok := p.String("full_name"); ok && name != "" {
							r.Author = name
						}
					}
				},
			},
			{
				Table:   models.TableProducts,
				Columns: []string{"name"},
				Refs:    livequery.Ref(func(r models.Testimonial) string { return r.ProductID }),
				Apply: func(r *models.Testimonial, ix livequery.Index) {
					if p, ok := ix.One(r.ProductID); ok {
						if name, ok := p.String("name"); ok && name != "" {
							r.Role = "on " + name
						}
					}
				},
			},
		},
	}
}

func (t *Testimonials) options(limit int, client notification.Notifier) livequery.Options[models.Testimonial] {
	return livequery.Options[models.Testimonial]{
		Pipeline:     t.pipeline(limit),
		Key:          func(r models.Testimonial) string { return r.ID },
		Broker:       t.deps.Broker,
		Filter:       realtime.Eq("approved", true),
		Notifier:     t.deps.notifier(client),
		Pool:         t.deps.Pool,
		Policy:       t.deps.Policy,
		EmptyMessage: "No testimonials yet.",
	}
}

// NewView returns an inactive view over the newest approved feedback. It
// refreshes whenever a row enters or leaves the approved set.
func (t *Testimonials) NewView(limit int, client notification.Notifier) *livequery.View[models.Testimonial] {
	return livequery.New(t.options(limit, client))
}

// List loads the testimonials once.
func (t *Testimonials) List(ctx context.Context, limit int) (livequery.Snapshot[models.Testimonial], error) {
	v := t.NewView(limit, nil)
	err := v.Load(ctx)
	return v.Snapshot(), err
}
