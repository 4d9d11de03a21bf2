package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/payflow-backend/pkg/enums"
)

// Collection records one push-payment request sent to a buyer's phone.
type Collection struct {
	ID                uuid.UUID              `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID           uuid.UUID              `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	CheckoutRequestID string                 `gorm:"column:checkout_request_id;not null;uniqueIndex" json:"checkout_request_id"`
	MerchantRequestID string                 `gorm:"column:merchant_request_id" json:"merchant_request_id"`
	Amount            decimal.Decimal        `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	Phone             string                 `gorm:"column:phone;not null" json:"phone"`
	Status            enums.CollectionStatus `gorm:"column:status;type:varchar(32);not null;default:'processing'" json:"status"`
	ResultCode        *int                   `gorm:"column:result_code" json:"result_code,omitempty"`
	ResultDesc        *string                `gorm:"column:result_desc" json:"result_desc,omitempty"`
	ReceiptNumber     *string                `gorm:"column:receipt_number" json:"receipt_number,omitempty"`
	CompletedAt       *time.Time             `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt         time.Time              `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time              `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
