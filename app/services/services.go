// Package services builds the storefront's live views: the moderation
// dashboard, the public testimonials and the customer profile page.
//
// Every view instance is private to one client. Services only hold the
// shared collaborators and know how to build pipelines and mutations.
package services

import (
	"errors"

	"github.com/tommyfx/storefront/app/models"
	"github.com/tommyfx/storefront/pkg/datastore"
	"github.com/tommyfx/storefront/pkg/livequery"
	"github.com/tommyfx/storefront/pkg/notification"
	"github.com/tommyfx/storefront/pkg/realtime"
	"github.com/tommyfx/storefront/pkg/workerpool"
)

// ErrUnknownRecord is returned when a mutation names a record the view does
// not hold.
var ErrUnknownRecord = errors.New("services: record not in view")

// Deps are the collaborators shared by every view. The entry point builds
// them once.
type Deps struct {
	Store    datastore.Store
	Broker   realtime.Broker
	Notifier notification.Notifier
	Pool     *workerpool.Pool
	Policy   livequery.FailurePolicy
}

// notifier combines the process-wide notifier with a client's own channel.
func (d Deps) notifier(client notification.Notifier) notification.Notifier {
	switch {
	case client == nil:
		return d.Notifier
	case d.Notifier == nil:
		return client
	default:
		return notification.Fanout{d.Notifier, client}
	}
}

func (d Deps) options(client notification.Notifier) livequery.Options[models.EnrichedFeedback] {
	return livequery.Options[models.EnrichedFeedback]{
		Key:      feedbackKey,
		Broker:   d.Broker,
		Notifier: d.notifier(client),
		Pool:     d.Pool,
		Policy:   d.Policy,
	}
}

func feedbackKey(f models.EnrichedFeedback) string { return f.ID }

// feedbackAuthor resolves the submitting profile's name and email.
func feedbackAuthor() livequery.Relation[models.EnrichedFeedback] {
	return livequery.Relation[models.EnrichedFeedback]{
		Table:   models.TableProfiles,
		Columns: []string{"full_name", "email"},
		Refs:    livequery.Ref(func(f models.EnrichedFeedback) string { return f.UserID }),
		Apply: func(f *models.EnrichedFeedback, ix livequery.Index) {
			p, ok := ix.One(f.UserID)
			if !ok {
				return
			}
			if name, ok := p.String("full_name"); ok && name != "" {
				f.UserName = name
			}
			if email, ok := p.String("email"); ok && email != "" {
				f.UserEmail = email
			}
		},
	}
}

// feedbackProduct resolves the product the feedback is about.
func feedbackProduct() livequery.Relation[models.EnrichedFeedback] {
	return livequery.Relation[models.EnrichedFeedback]{
		Table:   models.TableProducts,
		Columns: []string{"name"},
		Refs:    livequery.Ref(func(f models.EnrichedFeedback) string { return f.ProductID }),
		Apply: func(f *models.EnrichedFeedback, ix livequery.Index) {
			if p, ok := ix.One(f.ProductID); ok {
				if name, ok := p.String("name"); ok && name != "" {
					f.ProductName = name
				}
			}
		},
	}
}

func holds[T any](v *livequery.View[T], key func(T) string, id string) bool {
	for _, r := range v.Snapshot().Records {
		if key(r) == id {
			return true
		}
	}
	return false
}
