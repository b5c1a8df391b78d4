package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/tommyfx/storefront/pkg/datastore"
)

// Fallbacks used when enrichment has nothing for a record.
const (
	FallbackUserName     = "Anonymous User"
	FallbackUserEmail    = "No Email"
	FallbackProductName  = "General Feedback"
	FallbackAuthor       = "Anonymous Customer"
	FallbackRole         = "on TommyFX Beauty"
	FallbackItemProduct  = "Unknown Product"
	TestimonialDateStyle = "January 2, 2006"
)

// ErrMalformedRow marks a row the decoders refused.
var ErrMalformedRow = errors.New("models: malformed row")

func malformed(table, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformedRow, table, fmt.Sprintf(format, args...))
}

// EnrichedFeedback is a feedback row with its author and product resolved,
// as the moderation dashboard shows it.
type EnrichedFeedback struct {
	ID          string    `json:"id"`
	Comment     string    `json:"comment"`
	Rating      int       `json:"rating"`
	UserID      string    `json:"user_id,omitempty"`
	ProductID   string    `json:"product_id,omitempty"`
	Approved    bool      `json:"approved"`
	CreatedAt   time.Time `json:"created_at"`
	UserName    string    `json:"user_name"`
	UserEmail   string    `json:"user_email"`
	ProductName string    `json:"product_name"`
}

// DecodeFeedback validates a feedback row. Enriched fields start at their
// fallbacks.
func DecodeFeedback(r datastore.Row) (EnrichedFeedback, error) {
	id, ok := r.String("id")
	if !ok || id == "" {
		return EnrichedFeedback{}, malformed(TableFeedback, "missing id")
	}
	rating, ok := r.Int("rating")
	if !ok || rating < 1 || rating > 5 {
		return EnrichedFeedback{}, malformed(TableFeedback, "%s: rating %v out of range", id, r["rating"])
	}
	created, ok := r.Time("created_at")
	if !ok {
		return EnrichedFeedback{}, malformed(TableFeedback, "%s: bad created_at %v", id, r["created_at"])
	}
	comment, _ := r.String("comment")
	user, _ := r.String("user_id")
	product, _ := r.String("product_id")
	approved, _ := r.Bool("approved")

	return EnrichedFeedback{
		ID:          id,
		Comment:     comment,
		Rating:      rating,
		UserID:      user,
		ProductID:   product,
		Approved:    approved,
		CreatedAt:   created,
		UserName:    FallbackUserName,
		UserEmail:   FallbackUserEmail,
		ProductName: FallbackProductName,
	}, nil
}

// Testimonial is the public, read-only projection of approved feedback.
type Testimonial struct {
	ID      string `json:"id"`
	Author  string `json:"author"`
	Role    string `json:"role,omitempty"`
	Content string `json:"content"`
	Rating  int    `json:"rating"`
	Date    string `json:"date,omitempty"`

	UserID    string `json:"-"`
	ProductID string `json:"-"`
}

// DecodeTestimonial projects an approved feedback row. Unapproved rows are
// refused.
func DecodeTestimonial(r datastore.Row) (Testimonial, error) {
	fb, err := DecodeFeedback(r)
	if err != nil {
		return Testimonial{}, err
	}
	if !fb.Approved {
		return Testimonial{}, malformed(TableFeedback, "%s: not approved", fb.ID)
	}
	t := Testimonial{
		ID:        fb.ID,
		Author:    FallbackAuthor,
		Role:      FallbackRole,
		Content:   fb.Comment,
		Rating:    fb.Rating,
		UserID:    fb.UserID,
		ProductID: fb.ProductID,
	}
	if !fb.CreatedAt.IsZero() {
		t.Date = fb.CreatedAt.Format(TestimonialDateStyle)
	}
	return t, nil
}

// OrderStatus is the closed set of order states.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
	StatusUnknown    OrderStatus = "unknown"
)

// ParseOrderStatus maps anything outside the closed set to StatusUnknown.
func ParseOrderStatus(s string) OrderStatus {
	switch st := OrderStatus(s); st {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return st
	default:
		return StatusUnknown
	}
}

// LineItem is one resolved order line.
type LineItem struct {
	ID          string  `json:"id"`
	ProductID   string  `json:"product_id,omitempty"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// OrderSummary is an order with its lines, as the profile page lists it.
type OrderSummary struct {
	ID            string      `json:"id"`
	CreatedAt     time.Time   `json:"created_at"`
	TotalAmount   float64     `json:"total_amount"`
	Status        OrderStatus `json:"status"`
	PaymentMethod string      `json:"payment_method"`
	Items         []LineItem  `json:"items"`
}

func DecodeOrder(r datastore.Row) (OrderSummary, error) {
	id, ok := r.String("id")
	if !ok || id == "" {
		return OrderSummary{}, malformed(TableOrders, "missing id")
	}
	created, ok := r.Time("created_at")
	if !ok {
		return OrderSummary{}, malformed(TableOrders, "%s: bad created_at %v", id, r["created_at"])
	}
	total, ok := r.Float("total_amount")
	if !ok {
		return OrderSummary{}, malformed(TableOrders, "%s: bad total_amount %v", id, r["total_amount"])
	}
	status, _ := r.String("status")
	payment, _ := r.String("payment_method")

	return OrderSummary{
		ID:            id,
		CreatedAt:     created,
		TotalAmount:   total,
		Status:        ParseOrderStatus(status),
		PaymentMethod: payment,
		Items:         []LineItem{},
	}, nil
}

// DecodeLineItem reads an order_items row. The product name starts at its
// fallback.
func DecodeLineItem(r datastore.Row) (LineItem, error) {
	id, ok := r.String("id")
	if !ok || id == "" {
		return LineItem{}, malformed(TableOrderItems, "missing id")
	}
	qty, ok := r.Int("quantity")
	if !ok || qty < 0 {
		return LineItem{}, malformed(TableOrderItems, "%s: bad quantity %v", id, r["quantity"])
	}
	price, ok := r.Float("unit_price")
	if !ok {
		return LineItem{}, malformed(TableOrderItems, "%s: bad unit_price %v", id, r["unit_price"])
	}
	product, _ := r.String("product_id")

	return LineItem{
		ID:          id,
		ProductID:   product,
		ProductName: FallbackItemProduct,
		Quantity:    qty,
		UnitPrice:   price,
	}, nil
}
