package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/payflow-backend/pkg/enums"
)

// OrderItem is one seller's line within an order. Fulfillment and payout progress
// are tracked independently.
type OrderItem struct {
	ID                 uuid.UUID                `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID            uuid.UUID                `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	SellerID           uuid.UUID                `gorm:"column:seller_id;type:uuid;not null;index" json:"seller_id"`
	ProductID          uuid.UUID                `gorm:"column:product_id;type:uuid;not null" json:"product_id"`
	Quantity           int                      `gorm:"column:quantity;not null" json:"quantity"`
	UnitPrice          decimal.Decimal          `gorm:"column:unit_price;type:numeric(12,2);not null" json:"unit_price"`
	Subtotal           decimal.Decimal          `gorm:"column:subtotal;type:numeric(12,2);not null" json:"subtotal"`
	FulfillmentStatus  enums.FulfillmentStatus  `gorm:"column:fulfillment_status;type:varchar(32);not null;default:'pending_payment'" json:"fulfillment_status"`
	DisbursementStatus enums.DisbursementStatus `gorm:"column:disbursement_status;type:varchar(32);not null;default:'none'" json:"disbursement_status"`
	BuyerConfirmed     bool                     `gorm:"column:buyer_confirmed;not null;default:false" json:"buyer_confirmed"`
	ConfirmedAt        *time.Time               `gorm:"column:confirmed_at" json:"confirmed_at,omitempty"`
	Rating             *int                     `gorm:"column:rating" json:"rating,omitempty"`
	Review             *string                  `gorm:"column:review" json:"review,omitempty"`
	ShippedAt          *time.Time               `gorm:"column:shipped_at" json:"shipped_at,omitempty"`
	DeliveredAt        *time.Time               `gorm:"column:delivered_at" json:"delivered_at,omitempty"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time                `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
