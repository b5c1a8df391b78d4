// Package models holds the storefront's tables and the records its views
// render.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Table names shared by the models, pipelines and subscriptions.
const (
	TableProfiles   = "profiles"
	TableProducts   = "products"
	TableFeedback   = "feedback"
	TableOrders     = "orders"
	TableOrderItems = "order_items"
)

// Roles.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Profile is a signed-up identity.
type Profile struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	FullName     string    `gorm:"size:255" json:"full_name"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Role         string    `gorm:"size:50;default:customer" json:"role"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Profile) TableName() string { return TableProfiles }

func (p *Profile) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Product represents a product in the catalogue.
type Product struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"size:255;not null;index" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Price       float64   `gorm:"not null;default:0" json:"price"`
	Stock       int       `gorm:"not null;default:0" json:"stock"`
	SKU         string    `gorm:"size:100;uniqueIndex" json:"sku"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Product) TableName() string { return TableProducts }

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Feedback is a customer's rating and comment, optionally tied to a
// product. Only a moderator sets Approved.
type Feedback struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    *string   `gorm:"size:36;index" json:"user_id"`
	ProductID *string   `gorm:"size:36;index" json:"product_id"`
	Comment   string    `gorm:"type:text;not null" json:"comment"`
	Rating    int       `gorm:"not null" json:"rating"`
	Approved  bool      `gorm:"not null;default:false;index" json:"approved"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (Feedback) TableName() string { return TableFeedback }

func (f *Feedback) BeforeCreate(*gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// Order belongs to one profile.
type Order struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	UserID        string    `gorm:"size:36;not null;index" json:"user_id"`
	TotalAmount   float64   `gorm:"not null;default:0" json:"total_amount"`
	Status        string    `gorm:"size:50;default:pending" json:"status"`
	PaymentMethod string    `gorm:"size:50" json:"payment_method"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

func (Order) TableName() string { return TableOrders }

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// OrderItem is one line of an order.
type OrderItem struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	OrderID   string    `gorm:"size:36;not null;index" json:"order_id"`
	ProductID *string   `gorm:"size:36;index" json:"product_id"`
	Quantity  int       `gorm:"not null;default:1" json:"quantity"`
	UnitPrice float64   `gorm:"not null;default:0" json:"unit_price"`
	CreatedAt time.Time `json:"created_at"`
}

func (OrderItem) TableName() string { return TableOrderItems }

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}
