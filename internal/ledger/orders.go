package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
)

var payableCollectionStatuses = []enums.CollectionStatus{
	enums.CollectionStatusPending,
	enums.CollectionStatusFailed,
}

var cancellableCollectionStatuses = []enums.CollectionStatus{
	enums.CollectionStatusPending,
	enums.CollectionStatusProcessing,
}

const expiredPushDesc = "payment request expired"

func itemsOldestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC")
}

// CreateOrder inserts the order and its items.
func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	items := order.Items
	order.Items = nil
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].OrderID = order.ID
	}
	if len(items) > 0 {
		if err := r.db.WithContext(ctx).Create(&items).Error; err != nil {
			return err
		}
	}
	order.Items = items
	return nil
}

func (r *repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", itemsOldestFirst).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrderByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", itemsOldestFirst).
		Where("checkout_request_id = ?", checkoutRequestID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// MarkOrderAwaitingPayment moves a pending or failed order to processing and
// stores the gateway correlation ids. It reports false when the order was not
// in a payable state.
func (r *repository) MarkOrderAwaitingPayment(ctx context.Context, orderID uuid.UUID, in AwaitingPayment) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND collection_status IN ?", orderID, payableCollectionStatuses).
		Updates(map[string]any{
			"collection_status":   enums.CollectionStatusProcessing,
			"checkout_request_id": in.CheckoutRequestID,
			"merchant_request_id": in.MerchantRequestID,
			"payer_phone":         in.PayerPhone,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) SettleOrder(ctx context.Context, orderID uuid.UUID, in OrderSettlement) error {
	updates := map[string]any{
		"collection_status": in.Status,
	}
	if in.ReceiptNumber != nil {
		updates["receipt_number"] = *in.ReceiptNumber
	}
	if in.PayerPhone != nil {
		updates["payer_phone"] = *in.PayerPhone
	}
	if in.PaidAt != nil {
		updates["paid_at"] = *in.PaidAt
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

func (r *repository) SetTrackingNumber(ctx context.Context, orderID uuid.UUID, tracking string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("tracking_number", tracking).Error
}

// ListStalePendingOrders returns orders whose payment never completed: pending
// orders created before the cutoff and processing orders whose outstanding
// push request was sent before it.
func (r *repository) ListStalePendingOrders(ctx context.Context, filter StaleOrderFilter) ([]models.Order, error) {
	expiredPush := r.db.Model(&models.Collection{}).
		Select("1").
		Where("collections.order_id = orders.id AND collections.status = ? AND collections.created_at < ?",
			enums.CollectionStatusProcessing, filter.Cutoff)

	q := r.db.WithContext(ctx).
		Where("((collection_status = ? AND created_at < ?) OR (collection_status = ? AND EXISTS (?)))",
			enums.CollectionStatusPending, filter.Cutoff,
			enums.CollectionStatusProcessing, expiredPush)
	if filter.BuyerID != nil {
		q = q.Where("buyer_id = ?", *filter.BuyerID)
	}
	if filter.ProductID != nil {
		q = q.Where("product_id = ?", *filter.ProductID)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var orders []models.Order
	if err := q.Order("created_at ASC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

var errNotCancellable = errors.New("order not cancellable")

// CancelOrder cancels an unpaid order together with its unpaid items and any
// push request still awaiting its callback. The collection row is updated
// before the order, the same order a settling callback takes its locks in.
func (r *repository) CancelOrder(ctx context.Context, orderID uuid.UUID, at time.Time) (bool, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Collection{}).
			Where("order_id = ? AND status = ?", orderID, enums.CollectionStatusProcessing).
			Updates(map[string]any{
				"status":      enums.CollectionStatusCancelled,
				"result_desc": expiredPushDesc,
			}).Error
		if err != nil {
			return err
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND collection_status IN ?", orderID, cancellableCollectionStatuses).
			Updates(map[string]any{
				"collection_status": enums.CollectionStatusCancelled,
				"cancelled_at":      at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errNotCancellable
		}

		return tx.Model(&models.OrderItem{}).
			Where("order_id = ? AND fulfillment_status = ?", orderID, enums.FulfillmentStatusPendingPayment).
			Update("fulfillment_status", enums.FulfillmentStatusCancelled).Error
	})
	if errors.Is(err, errNotCancellable) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
