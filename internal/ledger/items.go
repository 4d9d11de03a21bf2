package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
)

var claimableDisbursementStatuses = []enums.DisbursementStatus{
	enums.DisbursementStatusNone,
	enums.DisbursementStatusPending,
	enums.DisbursementStatusFailed,
	"",
}

var sweepableDisbursementStatuses = []enums.DisbursementStatus{
	enums.DisbursementStatusNone,
	enums.DisbursementStatusPending,
	"",
}

func (r *repository) FindItem(ctx context.Context, id uuid.UUID) (*models.OrderItem, error) {
	var item models.OrderItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) ListItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// CascadePaidItems moves every unpaid item of a paid order into processing.
func (r *repository) CascadePaidItems(ctx context.Context, orderID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("order_id = ? AND fulfillment_status = ?", orderID, enums.FulfillmentStatusPendingPayment).
		Update("fulfillment_status", enums.FulfillmentStatusProcessing)
	return res.RowsAffected, res.Error
}

// TransitionItem applies from -> to only if the item is still in from.
func (r *repository) TransitionItem(ctx context.Context, itemID uuid.UUID, from, to enums.FulfillmentStatus, at time.Time) (bool, error) {
	updates := map[string]any{"fulfillment_status": to}
	switch to {
	case enums.FulfillmentStatusShipped:
		updates["shipped_at"] = at
	case enums.FulfillmentStatusDelivered:
		updates["delivered_at"] = at
	}

	res := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("id = ? AND fulfillment_status = ?", itemID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ConfirmItem records buyer confirmation once; it reports false when the item
// is not delivered or was already confirmed.
func (r *repository) ConfirmItem(ctx context.Context, itemID uuid.UUID, in ItemReview, at time.Time) (bool, error) {
	updates := map[string]any{
		"buyer_confirmed": true,
		"confirmed_at":    at,
	}
	if in.Rating != nil {
		updates["rating"] = *in.Rating
	}
	if in.Review != nil {
		updates["review"] = *in.Review
	}

	res := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("id = ? AND fulfillment_status = ? AND buyer_confirmed = ?", itemID, enums.FulfillmentStatusDelivered, false).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) UpdateItemReview(ctx context.Context, itemID uuid.UUID, in ItemReview) error {
	updates := map[string]any{}
	if in.Rating != nil {
		updates["rating"] = *in.Rating
	}
	if in.Review != nil {
		updates["review"] = *in.Review
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("id = ?", itemID).
		Updates(updates).Error
}

// ClaimItemForDisbursement atomically moves a claimable item to processing.
// Exactly one concurrent caller observes true.
func (r *repository) ClaimItemForDisbursement(ctx context.Context, itemID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("id = ? AND disbursement_status IN ?", itemID, claimableDisbursementStatuses).
		Update("disbursement_status", enums.DisbursementStatusProcessing)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) SetItemDisbursementStatus(ctx context.Context, itemID uuid.UUID, status enums.DisbursementStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("id = ?", itemID).
		Update("disbursement_status", status).Error
}

// ListSweepCandidates returns delivered items that were never paid out, oldest delivery first.
func (r *repository) ListSweepCandidates(ctx context.Context, limit int) ([]models.OrderItem, error) {
	q := r.db.WithContext(ctx).
		Where("fulfillment_status = ?", enums.FulfillmentStatusDelivered).
		Where("(disbursement_status IN ? OR disbursement_status IS NULL)", sweepableDisbursementStatuses).
		Order("delivered_at ASC").
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var items []models.OrderItem
	if err := q.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
