package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
)

var retryablePayoutStatuses = []enums.PayoutStatus{
	enums.PayoutStatusFailed,
	enums.PayoutStatusTimeout,
}

func (r *repository) CreateDisbursement(ctx context.Context, disbursement *models.Disbursement) error {
	return r.db.WithContext(ctx).Create(disbursement).Error
}

func (r *repository) FindDisbursementByOriginatorID(ctx context.Context, originatorID string) (*models.Disbursement, error) {
	var disbursement models.Disbursement
	err := r.db.WithContext(ctx).
		Where("originator_conversation_id = ?", originatorID).
		First(&disbursement).Error
	if err != nil {
		return nil, err
	}
	return &disbursement, nil
}

// FinalizeDisbursement writes the terminal result once; only initiated
// payouts are updated.
func (r *repository) FinalizeDisbursement(ctx context.Context, id uuid.UUID, in DisbursementOutcome) (bool, error) {
	updates := map[string]any{
		"status":      in.Status,
		"result_code": in.ResultCode,
		"result_desc": in.ResultDesc,
	}
	if in.TransactionID != nil {
		updates["transaction_id"] = *in.TransactionID
	}
	if in.RecipientName != nil {
		updates["recipient_name"] = *in.RecipientName
	}
	if in.CompletedAt != nil {
		updates["completed_at"] = *in.CompletedAt
	}

	res := r.db.WithContext(ctx).
		Model(&models.Disbursement{}).
		Where("id = ? AND status = ?", id, enums.PayoutStatusInitiated).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// FailDisbursement marks an initiated attempt the gateway refused outright.
// No result code is stored since the gateway never produced one.
func (r *repository) FailDisbursement(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Disbursement{}).
		Where("id = ? AND status = ?", id, enums.PayoutStatusInitiated).
		Updates(map[string]any{
			"status":      enums.PayoutStatusFailed,
			"result_desc": reason,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) SetDisbursementConversationID(ctx context.Context, id uuid.UUID, conversationID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Disbursement{}).
		Where("id = ?", id).
		Update("conversation_id", conversationID).Error
}

// ListRetryCandidates returns the earliest failed or timed out attempt of every
// item whose payout is still marked failed, oldest first. The window bounds
// in filter apply to that earliest attempt before the limit is taken.
func (r *repository) ListRetryCandidates(ctx context.Context, filter RetryFilter) ([]models.Disbursement, error) {
	firstAttempt := r.db.Table("disbursements AS first_attempt").
		Select("MIN(first_attempt.created_at)").
		Where("first_attempt.order_item_id = disbursements.order_item_id AND first_attempt.status IN ?", retryablePayoutStatuses)

	q := r.db.WithContext(ctx).
		Model(&models.Disbursement{}).
		Select("disbursements.*").
		Joins("JOIN order_items ON order_items.id = disbursements.order_item_id").
		Where("disbursements.status IN ?", retryablePayoutStatuses).
		Where("order_items.disbursement_status = ?", enums.DisbursementStatusFailed).
		Where("disbursements.created_at = (?)", firstAttempt)
	if !filter.Since.IsZero() {
		q = q.Where("disbursements.created_at >= ?", filter.Since)
	}
	if !filter.Before.IsZero() {
		q = q.Where("disbursements.created_at < ?", filter.Before)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []models.Disbursement
	if err := q.Order("disbursements.created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	// Two attempts written in the same instant both match the minimum.
	seen := make(map[uuid.UUID]struct{}, len(rows))
	out := make([]models.Disbursement, 0, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.OrderItemID]; ok {
			continue
		}
		seen[row.OrderItemID] = struct{}{}
		out = append(out, row)
	}
	return out, nil
}
