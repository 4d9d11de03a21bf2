// Package ledgertest opens throwaway ledger databases for package tests.
package ledgertest

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
)

// Open returns an isolated in-memory database with every payflow table created.
// All access is funneled through one connection so conditional updates
// serialize the way row locks do in Postgres.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:ledger_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.Order{},
		&models.OrderItem{},
		&models.Collection{},
		&models.Disbursement{},
		&models.Contact{},
		&models.Notification{},
	); err != nil {
		t.Fatalf("migrate ledger tables: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// Item returns a two-unit line at 100 per unit for a fresh seller.
func Item(status enums.FulfillmentStatus) models.OrderItem {
	return models.OrderItem{
		SellerID:           uuid.New(),
		ProductID:          uuid.New(),
		Quantity:           2,
		UnitPrice:          decimal.RequireFromString("100"),
		Subtotal:           decimal.RequireFromString("200"),
		FulfillmentStatus:  status,
		DisbursementStatus: enums.DisbursementStatusNone,
	}
}

// SeedOrder inserts an order for a fresh buyer together with its items.
func SeedOrder(t testing.TB, db *gorm.DB, status enums.CollectionStatus, items ...models.OrderItem) *models.Order {
	t.Helper()
	if len(items) == 0 {
		items = []models.OrderItem{Item(enums.FulfillmentStatusPendingPayment)}
	}
	order := &models.Order{
		BuyerID:          uuid.New(),
		TotalAmount:      decimal.RequireFromString("215"),
		CollectionStatus: status,
		DeliveryMethod:   enums.DeliveryMethodPickup,
		Items:            items,
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}
