package ledger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/payflow-backend/internal/ledger/ledgertest"
	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	return ledgertest.Open(t)
}

func seedOrder(t *testing.T, repo Repository, status enums.CollectionStatus, items ...models.OrderItem) *models.Order {
	t.Helper()
	if len(items) == 0 {
		items = []models.OrderItem{newItem(enums.FulfillmentStatusPendingPayment)}
	}
	order := &models.Order{
		BuyerID:          uuid.New(),
		TotalAmount:      decimal.RequireFromString("215"),
		CollectionStatus: status,
		DeliveryMethod:   enums.DeliveryMethodPickup,
		Items:            items,
	}
	require.NoError(t, repo.CreateOrder(t.Context(), order))
	return order
}

func newItem(status enums.FulfillmentStatus) models.OrderItem {
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
