package migrations

import (
	"github.com/tommyfx/storefront/app/models"
	"github.com/tommyfx/storefront/pkg/migration"
	"gorm.io/gorm"
)

func init() {
	migration.Register("20260101000000_create_profiles_table", &table{model: &models.Profile{}})
	migration.Register("20260101000001_create_products_table", &table{model: &models.Product{}})
	migration.Register("20260101000002_create_feedback_table", &table{model: &models.Feedback{}})
	migration.Register("20260101000003_create_orders_table", &table{model: &models.Order{}})
	migration.Register("20260101000004_create_order_items_table", &table{model: &models.OrderItem{}})
}

// table creates one model's table and drops it on rollback.
type table struct {
	model any
}

func (m *table) Up(db *gorm.DB) error {
	return db.AutoMigrate(m.model)
}

func (m *table) Down(db *gorm.DB) error {
	return db.Migrator().DropTable(m.model)
}
