package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tommyfx/storefront/app/models"
	"github.com/tommyfx/storefront/pkg/datastore"
	"github.com/tommyfx/storefront/pkg/livequery"
	"github.com/tommyfx/storefront/pkg/logger"
	"github.com/tommyfx/storefront/pkg/notification"
	"github.com/tommyfx/storefront/pkg/realtime"
	"github.com/tommyfx/storefront/pkg/validate"
)

// Profile backs the signed-in customer's page: their orders and their own
// feedback.
type Profile struct {
	deps Deps
}

func NewProfile(d Deps) *Profile {
	return &Profile{deps: d}
}

// OrdersView lists userID's orders newest first, each with its line items
// and product names.
func (p *Profile) OrdersView(userID string, client notification.Notifier) *livequery.View[models.OrderSummary] {
	return livequery.New(livequery.Options[models.OrderSummary]{
		Pipeline: &livequery.Pipeline[models.OrderSummary]{
			Name:  "orders",
			Store: p.deps.Store,
			Query: datastore.Query{
				Table:   models.TableOrders,
				Where:   []datastore.Cond{datastore.Eq("user_id", userID)},
				OrderBy: "created_at",
				Desc:    true,
			},
			Decode:    models.DecodeOrder,
			Relations: []livequery.Relation[models.OrderSummary]{orderItems(), itemProducts()},
		},
		Key:          func(o models.OrderSummary) string { return o.ID },
		Broker:       p.deps.Broker,
		Filter:       realtime.Eq("user_id", userID),
		Notifier:     p.deps.notifier(client),
		Pool:         p.deps.Pool,
		Policy:       p.deps.Policy,
		EmptyMessage: "You have not placed any orders yet.",
	})
}

func orderItems() livequery.Relation[models.OrderSummary] {
	return livequery.Relation[models.OrderSummary]{
		Table:   models.TableOrderItems,
		Key:     "order_id",
		Columns: []string{"id", "product_id", "quantity", "unit_price"},
		OrderBy: "created_at",
		Refs:    livequery.Ref(func(o models.OrderSummary) string { return o.ID }),
		Apply: func(o *models.OrderSummary, ix livequery.Index) {
			for _, row := range ix.Many(o.ID) {
				item, err := models.DecodeLineItem(row)
				if err != nil {
					logger.Warn("services: dropping malformed order item", "order", o.ID, "error", err)
					continue
				}
				o.Items = append(o.Items, item)
			}
		},
	}
}

// itemProducts runs after orderItems and names the products on each line.
func itemProducts() livequery.Relation[models.OrderSummary] {
	return livequery.Relation[models.OrderSummary]{
		Table:   models.TableProducts,
		Columns: []string{"name"},
		Refs: func(o models.OrderSummary) []string {
			refs := make([]string, len(o.Items))
			for i, it := range o.Items {
				refs[i] = it.ProductID
			}
			return refs
		},
		Apply: func(o *models.OrderSummary, ix livequery.Index) {
			for i := range o.Items {
				if p, ok := ix.One(o.Items[i].ProductID); ok {
					if name, ok := p.String("name"); ok && name != "" {
						o.Items[i].ProductName = name
					}
				}
			}
		},
	}
}

// FeedbackView lists the feedback userID has submitted, approved or not.
func (p *Profile) FeedbackView(userID string, client notification.Notifier) *livequery.View[models.EnrichedFeedback] {
	opts := p.deps.options(client)
	opts.Pipeline = &livequery.Pipeline[models.EnrichedFeedback]{
		Name:  "my_feedback",
		Store: p.deps.Store,
		Query: datastore.Query{
			Table:   models.TableFeedback,
			Where:   []datastore.Cond{datastore.Eq("user_id", userID)},
			OrderBy: "created_at",
			Desc:    true,
		},
		Decode:    models.DecodeFeedback,
		Relations: []livequery.Relation[models.EnrichedFeedback]{feedbackAuthor(), feedbackProduct()},
	}
	opts.Filter = realtime.Eq("user_id", userID)
	opts.EmptyMessage = "You have not left any feedback yet."
	return livequery.New(opts)
}

// FeedbackInput is what a customer submits.
type FeedbackInput struct {
	Comment   string `json:"comment"    validate:"required,max=2000"`
	Rating    int    `json:"rating"     validate:"required,between=1 5"`
	ProductID string `json:"product_id" validate:"nullable,uuid"`
}

// Validate returns a *livequery.ValidationError when in is not acceptable.
func (in FeedbackInput) Validate() error {
	if errs := validate.Struct(in); validate.HasErrors(errs) {
		return &livequery.ValidationError{Fields: errs}
	}
	return nil
}

// SubmitFeedback validates in and inserts it for userID, showing it in v at
// once. New feedback always starts unapproved. Invalid input returns a
// *livequery.ValidationError before anything is written.
func (p *Profile) SubmitFeedback(ctx context.Context, v *livequery.View[models.EnrichedFeedback], userID string, in FeedbackInput) (models.EnrichedFeedback, livequery.Outcome, error) {
	if err := in.Validate(); err != nil {
		return models.EnrichedFeedback{}, livequery.Outcome{}, err
	}

	rec := models.EnrichedFeedback{
		ID:          uuid.NewString(),
		Comment:     strings.TrimSpace(in.Comment),
		Rating:      in.Rating,
		UserID:      userID,
		ProductID:   in.ProductID,
		Approved:    false,
		CreatedAt:   time.Now().UTC(),
		UserName:    models.FallbackUserName,
		UserEmail:   models.FallbackUserEmail,
		ProductName: models.FallbackProductName,
	}

	row := datastore.Row{
		"id":         rec.ID,
		"user_id":    userID,
		"comment":    rec.Comment,
		"rating":     rec.Rating,
		"approved":   false,
		"created_at": rec.CreatedAt,
	}
	if in.ProductID != "" {
		row["product_id"] = in.ProductID
	}

	out, err := v.Mutate(ctx, livequery.Mutation[models.EnrichedFeedback]{
		Kind: "submit",
		Key:  rec.ID,
		Apply: func(rs []models.EnrichedFeedback) []models.EnrichedFeedback {
			return append([]models.EnrichedFeedback{rec}, rs...)
		},
		Remote: func(ctx context.Context) error {
			return p.deps.Store.Insert(ctx, models.TableFeedback, row)
		},
	})
	return rec, out, err
}
