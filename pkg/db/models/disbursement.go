package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/payflow-backend/pkg/enums"
)

// Disbursement records one payout attempt to a seller, together with the
// commission figures used to compute it.
type Disbursement struct {
	ID                       uuid.UUID          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderItemID              uuid.UUID          `gorm:"column:order_item_id;type:uuid;not null;index" json:"order_item_id"`
	OrderID                  uuid.UUID          `gorm:"column:order_id;type:uuid;not null" json:"order_id"`
	SellerID                 uuid.UUID          `gorm:"column:seller_id;type:uuid;not null" json:"seller_id"`
	Amount                   decimal.Decimal    `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	Phone                    string             `gorm:"column:phone" json:"phone"`
	OriginatorConversationID string             `gorm:"column:originator_conversation_id;not null;uniqueIndex" json:"originator_conversation_id"`
	ConversationID           *string            `gorm:"column:conversation_id" json:"conversation_id,omitempty"`
	Status                   enums.PayoutStatus `gorm:"column:status;type:varchar(32);not null;default:'initiated'" json:"status"`
	GrossAmount              decimal.Decimal    `gorm:"column:gross_amount;type:numeric(12,2);not null" json:"gross_amount"`
	PlatformFee              decimal.Decimal    `gorm:"column:platform_fee;type:numeric(12,2);not null" json:"platform_fee"`
	PlatformProfit           decimal.Decimal    `gorm:"column:platform_profit;type:numeric(12,2);not null" json:"platform_profit"`
	GatewayFee               decimal.Decimal    `gorm:"column:gateway_fee;type:numeric(12,2);not null" json:"gateway_fee"`
	SellerFee                decimal.Decimal    `gorm:"column:seller_fee;type:numeric(12,2);not null" json:"seller_fee"`
	ResultCode               *int               `gorm:"column:result_code" json:"result_code,omitempty"`
	ResultDesc               *string            `gorm:"column:result_desc" json:"result_desc,omitempty"`
	TransactionID            *string            `gorm:"column:transaction_id" json:"transaction_id,omitempty"`
	RecipientName            *string            `gorm:"column:recipient_name" json:"recipient_name,omitempty"`
	CompletedAt              *time.Time         `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt                time.Time          `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt                time.Time          `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
