package seeders

import (
	"context"
	"time"

	"github.com/tommyfx/storefront/app/models"
	"github.com/tommyfx/storefront/pkg/auth"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Fixed ids so repeated seeding is idempotent.
const (
	AdminID    = "00000000-0000-4000-8000-000000000001"
	CustomerID = "00000000-0000-4000-8000-000000000002"
	GuestID    = "00000000-0000-4000-8000-000000000003"

	SerumID = "00000000-0000-4000-8000-000000000101"
	BalmID  = "00000000-0000-4000-8000-000000000102"

	// DemoPassword is the password of every seeded profile.
	DemoPassword = "password"
)

func init() {
	Register("profiles", seedProfiles)
	Register("products", seedProducts)
	Register("feedback", seedFeedback)
	Register("orders", seedOrders)
}

func upsert(ctx context.Context, db *gorm.DB, v any) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(v).Error
}

func seedProfiles(ctx context.Context, db *gorm.DB) error {
	hash, err := auth.HashPassword(DemoPassword)
	if err != nil {
		return err
	}
	return upsert(ctx, db, []models.Profile{
		{ID: AdminID, FullName: "Store Admin", Email: "admin@tommyfx.test", Role: models.RoleAdmin, PasswordHash: hash},
		{ID: CustomerID, FullName: "Amara Okafor", Email: "amara@tommyfx.test", Role: models.RoleCustomer, PasswordHash: hash},
		{ID: GuestID, FullName: "", Email: "guest@tommyfx.test", Role: models.RoleCustomer, PasswordHash: hash},
	})
}

func seedProducts(ctx context.Context, db *gorm.DB) error {
	return upsert(ctx, db, []models.Product{
		{ID: SerumID, Name: "Radiance Serum", Description: "Vitamin C brightening serum", Price: 34.5, Stock: 120, SKU: "TFX-SER-001"},
		{ID: BalmID, Name: "Shea Lip Balm", Description: "Unscented shea butter balm", Price: 8, Stock: 300, SKU: "TFX-BLM-001"},
	})
}

// seedFeedback writes three rows rated 5, 4 and 3, newest first; the first
// two are approved.
func seedFeedback(ctx context.Context, db *gorm.DB) error {
	now := time.Now().UTC().Truncate(time.Second)
	customer, guest, serum := CustomerID, GuestID, SerumID
	return upsert(ctx, db, []models.Feedback{
		{ID: "00000000-0000-4000-8000-000000000201", UserID: &customer, ProductID: &serum,
			Comment: "My skin has never looked brighter.", Rating: 5, Approved: true, CreatedAt: now},
		{ID: "00000000-0000-4000-8000-000000000202", UserID: &guest,
			Comment: "Fast delivery and lovely packaging.", Rating: 4, Approved: true, CreatedAt: now.Add(-time.Hour)},
		{ID: "00000000-0000-4000-8000-000000000203", UserID: &customer,
			Comment: "Good, but the scent is strong.", Rating: 3, Approved: false, CreatedAt: now.Add(-2 * time.Hour)},
	})
}

func seedOrders(ctx context.Context, db *gorm.DB) error {
	now := time.Now().UTC().Truncate(time.Second)
	serum, balm := SerumID, BalmID
	orderID := "00000000-0000-4000-8000-000000000301"

	if err := upsert(ctx, db, &models.Order{
		ID: orderID, UserID: CustomerID, TotalAmount: 85, Status: string(models.StatusShipped),
		PaymentMethod: "card", CreatedAt: now.Add(-48 * time.Hour),
	}); err != nil {
		return err
	}
	return upsert(ctx, db, []models.OrderItem{
		{ID: "00000000-0000-4000-8000-000000000401", OrderID: orderID, ProductID: &serum, Quantity: 2, UnitPrice: 34.5, CreatedAt: now},
		{ID: "00000000-0000-4000-8000-000000000402", OrderID: orderID, ProductID: &balm, Quantity: 2, UnitPrice: 8, CreatedAt: now.Add(time.Second)},
	})
}
