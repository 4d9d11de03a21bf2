package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/payflow-backend/pkg/enums"
)

// Order is a buyer checkout. Orders are cancelled, never deleted.
type Order struct {
	ID                uuid.UUID              `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	BuyerID           uuid.UUID              `gorm:"column:buyer_id;type:uuid;not null;index" json:"buyer_id"`
	ProductID         *uuid.UUID             `gorm:"column:product_id;type:uuid" json:"product_id,omitempty"`
	TotalAmount       decimal.Decimal        `gorm:"column:total_amount;type:numeric(12,2);not null" json:"total_amount"`
	CollectionStatus  enums.CollectionStatus `gorm:"column:collection_status;type:varchar(32);not null;default:'pending'" json:"collection_status"`
	CheckoutRequestID *string                `gorm:"column:checkout_request_id;uniqueIndex" json:"checkout_request_id,omitempty"`
	MerchantRequestID *string                `gorm:"column:merchant_request_id" json:"merchant_request_id,omitempty"`
	ReceiptNumber     *string                `gorm:"column:receipt_number" json:"receipt_number,omitempty"`
	PayerPhone        *string                `gorm:"column:payer_phone" json:"payer_phone,omitempty"`
	DeliveryMethod    enums.DeliveryMethod   `gorm:"column:delivery_method;type:varchar(32);not null;default:'pickup'" json:"delivery_method"`
	DeliveryMetadata  json.RawMessage        `gorm:"column:delivery_metadata;type:jsonb" json:"delivery_metadata"`
	TrackingNumber    *string                `gorm:"column:tracking_number" json:"tracking_number,omitempty"`
	PaidAt            *time.Time             `gorm:"column:paid_at" json:"paid_at,omitempty"`
	CancelledAt       *time.Time             `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt         time.Time              `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time              `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID;references:ID" json:"items,omitempty"`
}
