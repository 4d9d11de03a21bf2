package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
)

func (r *repository) CreateCollection(ctx context.Context, collection *models.Collection) error {
	return r.db.WithContext(ctx).Create(collection).Error
}

func (r *repository) FindCollectionByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.Collection, error) {
	var collection models.Collection
	err := r.db.WithContext(ctx).
		Where("checkout_request_id = ?", checkoutRequestID).
		First(&collection).Error
	if err != nil {
		return nil, err
	}
	return &collection, nil
}

func (r *repository) FindLatestCollectionByOrder(ctx context.Context, orderID uuid.UUID) (*models.Collection, error) {
	var collection models.Collection
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		First(&collection).Error
	if err != nil {
		return nil, err
	}
	return &collection, nil
}

// FinalizeCollection writes the terminal result once. A collection that is
// already terminal is left untouched and false is returned.
func (r *repository) FinalizeCollection(ctx context.Context, id uuid.UUID, in CollectionOutcome) (bool, error) {
	updates := map[string]any{
		"status":      in.Status,
		"result_code": in.ResultCode,
		"result_desc": in.ResultDesc,
	}
	if in.ReceiptNumber != nil {
		updates["receipt_number"] = *in.ReceiptNumber
	}
	if in.CompletedAt != nil {
		updates["completed_at"] = *in.CompletedAt
	}

	res := r.db.WithContext(ctx).
		Model(&models.Collection{}).
		Where("id = ? AND status = ?", id, enums.CollectionStatusProcessing).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
