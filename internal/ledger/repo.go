package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
)

// Repository is the durable record of orders, items, collections and
// disbursements. Every state change that must happen at most once is a
// conditional update reporting whether it applied.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrder(ctx context.Context, order *models.Order) error
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindOrderByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.Order, error)
	MarkOrderAwaitingPayment(ctx context.Context, orderID uuid.UUID, in AwaitingPayment) (bool, error)
	SettleOrder(ctx context.Context, orderID uuid.UUID, in OrderSettlement) error
	SetTrackingNumber(ctx context.Context, orderID uuid.UUID, tracking string) error
	ListStalePendingOrders(ctx context.Context, filter StaleOrderFilter) ([]models.Order, error)
	CancelOrder(ctx context.Context, orderID uuid.UUID, at time.Time) (bool, error)

	FindItem(ctx context.Context, id uuid.UUID) (*models.OrderItem, error)
	ListItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	CascadePaidItems(ctx context.Context, orderID uuid.UUID) (int64, error)
	TransitionItem(ctx context.Context, itemID uuid.UUID, from, to enums.FulfillmentStatus, at time.Time) (bool, error)
	ConfirmItem(ctx context.Context, itemID uuid.UUID, in ItemReview, at time.Time) (bool, error)
	UpdateItemReview(ctx context.Context, itemID uuid.UUID, in ItemReview) error
	ClaimItemForDisbursement(ctx context.Context, itemID uuid.UUID) (bool, error)
	SetItemDisbursementStatus(ctx context.Context, itemID uuid.UUID, status enums.DisbursementStatus) error
	ListSweepCandidates(ctx context.Context, limit int) ([]models.OrderItem, error)

	CreateCollection(ctx context.Context, collection *models.Collection) error
	FindCollectionByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.Collection, error)
	FindLatestCollectionByOrder(ctx context.Context, orderID uuid.UUID) (*models.Collection, error)
	FinalizeCollection(ctx context.Context, id uuid.UUID, in CollectionOutcome) (bool, error)

	CreateDisbursement(ctx context.Context, disbursement *models.Disbursement) error
	FindDisbursementByOriginatorID(ctx context.Context, originatorID string) (*models.Disbursement, error)
	FinalizeDisbursement(ctx context.Context, id uuid.UUID, in DisbursementOutcome) (bool, error)
	FailDisbursement(ctx context.Context, id uuid.UUID, reason string) (bool, error)
	SetDisbursementConversationID(ctx context.Context, id uuid.UUID, conversationID string) error
	ListRetryCandidates(ctx context.Context, filter RetryFilter) ([]models.Disbursement, error)
}

// AwaitingPayment records the correlation ids of a freshly sent push payment.
type AwaitingPayment struct {
	CheckoutRequestID string
	MerchantRequestID string
	PayerPhone        string
}

// OrderSettlement is the terminal collection state copied onto an order.
type OrderSettlement struct {
	Status        enums.CollectionStatus
	ReceiptNumber *string
	PayerPhone    *string
	PaidAt        *time.Time
}

// StaleOrderFilter selects unpaid orders that went stale before Cutoff,
// optionally narrowed to one buyer and product.
type StaleOrderFilter struct {
	Cutoff    time.Time
	BuyerID   *uuid.UUID
	ProductID *uuid.UUID
	Limit     int
}

// RetryFilter bounds retry candidates by the time of their first failed
// attempt. Zero times are ignored.
type RetryFilter struct {
	Since  time.Time
	Before time.Time
	Limit  int
}

// ItemReview carries the optional buyer feedback attached to an item.
type ItemReview struct {
	Rating *int
	Review *string
}

// CollectionOutcome is the terminal result of a push payment.
type CollectionOutcome struct {
	Status        enums.CollectionStatus
	ResultCode    int
	ResultDesc    string
	ReceiptNumber *string
	CompletedAt   *time.Time
}

// DisbursementOutcome is the terminal result of a payout.
type DisbursementOutcome struct {
	Status        enums.PayoutStatus
	ResultCode    int
	ResultDesc    string
	TransactionID *string
	RecipientName *string
	CompletedAt   *time.Time
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}
