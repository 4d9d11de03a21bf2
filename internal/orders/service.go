package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/payflow-backend/internal/disbursements"
	"github.com/angelmondragon/payflow-backend/internal/ledger"
	"github.com/angelmondragon/payflow-backend/internal/notifications"
	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
)

const maxReviewLength = 2000

// ErrAlreadyConfirmed is returned when the buyer confirms an item twice.
var ErrAlreadyConfirmed = pkgerrors.New(pkgerrors.CodeConflict, "delivery already confirmed")

// Disburser starts a seller payout for a delivered item.
type Disburser interface {
	Initiate(ctx context.Context, orderItemID uuid.UUID) (*disbursements.Result, error)
}

// Service drives order items through fulfillment.
type Service interface {
	GetOrder(ctx context.Context, orderID, buyerID uuid.UUID) (*models.Order, error)
	UpdateFulfillment(ctx context.Context, in FulfillmentInput) (*TransitionResult, error)
	ConfirmDelivery(ctx context.Context, in ConfirmInput) (*TransitionResult, error)
	Rate(ctx context.Context, in ConfirmInput) (*models.OrderItem, error)
	CancelItem(ctx context.Context, in CancelInput) (*TransitionResult, error)
	CancelStaleOrders(ctx context.Context, filter ledger.StaleOrderFilter) (int, error)
}

// Config toggles payout attempts on delivery and confirmation.
type Config struct {
	AutoDisbursement bool
}

type service struct {
	repo      ledger.Repository
	disburser Disburser
	notifier  notifications.Notifier
	logg      *logger.Logger
	cfg       Config
	now       func() time.Time
}

// NewService wires the order state machine.
func NewService(repo ledger.Repository, disburser Disburser, notifier notifications.Notifier, logg *logger.Logger, cfg Config) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if disburser == nil && cfg.AutoDisbursement {
		return nil, fmt.Errorf("disburser required when auto disbursement is enabled")
	}
	if notifier == nil {
		notifier = notifications.Nop{}
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:      repo,
		disburser: disburser,
		notifier:  notifier,
		logg:      logg,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) GetOrder(ctx context.Context, orderID, buyerID uuid.UUID) (*models.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another buyer")
	}
	return order, nil
}

func (s *service) UpdateFulfillment(ctx context.Context, in FulfillmentInput) (*TransitionResult, error) {
	if !in.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid fulfillment status")
	}
	if in.Target == enums.FulfillmentStatusCancelled {
		return s.CancelItem(ctx, CancelInput{ItemID: in.ItemID, ActorID: in.SellerID})
	}
	if !sellerMayApply(in.Target) {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "sellers cannot set status %s", in.Target)
	}

	item, err := s.loadItem(ctx, in.ItemID)
	if err != nil {
		return nil, err
	}
	if item.SellerID != in.SellerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "item belongs to another seller")
	}
	ctx = s.logg.WithOrderItemID(ctx, item.ID.String())

	if !CanTransition(item.FulfillmentStatus, in.Target) {
		return nil, illegalMove(item.FulfillmentStatus, in.Target)
	}
	applied, err := s.repo.TransitionItem(ctx, item.ID, item.FulfillmentStatus, in.Target, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update item status")
	}
	if !applied {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "item status changed concurrently")
	}

	updated, err := s.loadItem(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithField(ctx, "fulfillment_status", in.Target.String()), "item status updated")

	order, err := s.loadOrder(ctx, item.OrderID)
	if err != nil {
		return nil, err
	}
	result := &TransitionResult{Item: updated}
	switch in.Target {
	case enums.FulfillmentStatusShipped:
		s.notify(ctx, order.BuyerID, enums.NotificationTypeItemShipped, "Item shipped",
			"An item in your order is on its way.", order.ID)
	case enums.FulfillmentStatusDelivered:
		s.notify(ctx, order.BuyerID, enums.NotificationTypeItemDelivered, "Item delivered",
			"An item in your order was delivered. Please confirm receipt.", order.ID)
		result.Payment = s.attemptPayout(ctx, item.ID)
	}
	return result, nil
}

func (s *service) ConfirmDelivery(ctx context.Context, in ConfirmInput) (*TransitionResult, error) {
	review, err := validateReview(in)
	if err != nil {
		return nil, err
	}

	item, order, err := s.loadBuyerItem(ctx, in.ItemID, in.BuyerID)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithOrderItemID(ctx, item.ID.String())
	if item.BuyerConfirmed {
		return nil, ErrAlreadyConfirmed
	}
	if item.FulfillmentStatus != enums.FulfillmentStatusDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "item has not been delivered")
	}

	applied, err := s.repo.ConfirmItem(ctx, item.ID, review, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm delivery")
	}
	if !applied {
		return nil, ErrAlreadyConfirmed
	}

	updated, err := s.loadItem(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	s.logg.Info(ctx, "delivery confirmed")
	s.notify(ctx, item.SellerID, enums.NotificationTypeDeliveryConfirmed, "Delivery confirmed",
		"The buyer confirmed receipt of your item.", order.ID)

	return &TransitionResult{Item: updated, Payment: s.attemptPayout(ctx, item.ID)}, nil
}

func (s *service) Rate(ctx context.Context, in ConfirmInput) (*models.OrderItem, error) {
	if in.Rating == nil && in.Review == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating or review required")
	}
	review, err := validateReview(in)
	if err != nil {
		return nil, err
	}

	item, _, err := s.loadBuyerItem(ctx, in.ItemID, in.BuyerID)
	if err != nil {
		return nil, err
	}
	if !item.BuyerConfirmed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "confirm delivery before rating")
	}
	if err := s.repo.UpdateItemReview(ctx, item.ID, review); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update review")
	}
	return s.loadItem(ctx, item.ID)
}

func (s *service) CancelItem(ctx context.Context, in CancelInput) (*TransitionResult, error) {
	item, err := s.loadItem(ctx, in.ItemID)
	if err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, item.OrderID)
	if err != nil {
		return nil, err
	}

	var counterparty uuid.UUID
	switch in.ActorID {
	case item.SellerID:
		counterparty = order.BuyerID
	case order.BuyerID:
		counterparty = item.SellerID
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer or seller may cancel this item")
	}
	if !cancellable(item.FulfillmentStatus) {
		return nil, illegalMove(item.FulfillmentStatus, enums.FulfillmentStatusCancelled)
	}

	applied, err := s.repo.TransitionItem(ctx, item.ID, item.FulfillmentStatus, enums.FulfillmentStatusCancelled, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel item")
	}
	if !applied {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "item status changed concurrently")
	}

	updated, err := s.loadItem(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, counterparty, enums.NotificationTypeItemCancelled, "Item cancelled",
		"An item in the order was cancelled.", order.ID)
	return &TransitionResult{Item: updated}, nil
}

// CancelStaleOrders cancels unpaid orders matched by filter, including those
// whose push request never got a callback, and returns how many were cancelled.
func (s *service) CancelStaleOrders(ctx context.Context, filter ledger.StaleOrderFilter) (int, error) {
	stale, err := s.repo.ListStalePendingOrders(ctx, filter)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale orders")
	}

	cancelled := 0
	var errs error
	for _, order := range stale {
		orderCtx := s.logg.WithOrderID(ctx, order.ID.String())
		ok, err := s.repo.CancelOrder(orderCtx, order.ID, s.now())
		if err != nil {
			s.logg.Error(orderCtx, "failed to cancel stale order", err)
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		if ok {
			cancelled++
			s.logg.Info(orderCtx, "stale unpaid order cancelled")
		}
	}
	if errs != nil {
		return cancelled, pkgerrors.Wrap(pkgerrors.CodeDependency, errs, "cancel stale orders")
	}
	return cancelled, nil
}

func (s *service) attemptPayout(ctx context.Context, itemID uuid.UUID) *Payment {
	if !s.cfg.AutoDisbursement {
		return &Payment{Status: PaymentDisabled, Message: "automatic payouts are disabled"}
	}

	res, err := s.disburser.Initiate(ctx, itemID)
	switch {
	case err == nil:
		return &Payment{Status: PaymentInitiated, Message: "payout initiated", Disbursement: res}
	case errors.Is(err, disbursements.ErrAlreadyProcessed):
		return &Payment{Status: PaymentAlreadyProcessed, Message: "payout already processed"}
	case errors.Is(err, disbursements.ErrNotYetPaid):
		return &Payment{Status: PaymentNotYetPaid, Message: "order payment has not completed"}
	default:
		s.logg.Error(ctx, "payout attempt failed", err)
		return &Payment{Status: PaymentFailed, Message: "payout failed and will be retried automatically"}
	}
}

func (s *service) notify(ctx context.Context, recipient uuid.UUID, kind enums.NotificationType, title, body string, orderID uuid.UUID) {
	s.notifier.Notify(ctx, notifications.Message{
		RecipientID: recipient,
		Type:        kind,
		Title:       title,
		Body:        body,
		Link:        "/orders/" + orderID.String(),
		OrderID:     &orderID,
	})
}

func (s *service) loadBuyerItem(ctx context.Context, itemID, buyerID uuid.UUID) (*models.OrderItem, *models.Order, error) {
	item, err := s.loadItem(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}
	order, err := s.loadOrder(ctx, item.OrderID)
	if err != nil {
		return nil, nil, err
	}
	if order.BuyerID != buyerID {
		return nil, nil, pkgerrors.New(pkgerrors.CodeForbidden, "item belongs to another buyer")
	}
	return item, order, nil
}

func (s *service) loadItem(ctx context.Context, itemID uuid.UUID) (*models.OrderItem, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	item, err := s.repo.FindItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order item")
	}
	return item, nil
}

func (s *service) loadOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func validateReview(in ConfirmInput) (ledger.ItemReview, error) {
	var out ledger.ItemReview
	if in.Rating != nil {
		if *in.Rating < 1 || *in.Rating > 5 {
			return out, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
		}
		rating := *in.Rating
		out.Rating = &rating
	}
	if in.Review != nil {
		review := strings.TrimSpace(*in.Review)
		if len(review) > maxReviewLength {
			return out, pkgerrors.New(pkgerrors.CodeValidation, "review is too long")
		}
		out.Review = &review
	}
	return out, nil
}

func illegalMove(from, to enums.FulfillmentStatus) error {
	return pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot move item from %s to %s", from, to)
}
