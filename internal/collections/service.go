package collections

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/payflow-backend/internal/commission"
	"github.com/angelmondragon/payflow-backend/internal/courier"
	"github.com/angelmondragon/payflow-backend/internal/ledger"
	"github.com/angelmondragon/payflow-backend/internal/notifications"
	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
	"github.com/angelmondragon/payflow-backend/pkg/metrics"
	"github.com/angelmondragon/payflow-backend/pkg/mpesa"
)

const callbackKind = "stk"

var errCallbackDuplicate = errors.New("collection already finalized")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type pushGateway interface {
	STKPush(ctx context.Context, in mpesa.STKPushRequest) (*mpesa.STKPushResponse, error)
}

// Service requests buyer payments and settles them when the gateway calls back.
type Service interface {
	Initiate(ctx context.Context, in InitiateInput) (*InitiateResult, error)
	PayOrder(ctx context.Context, in PayOrderInput) (*InitiateResult, error)
	HandleCallback(ctx context.Context, cb mpesa.STKCallback) error
	Status(ctx context.Context, orderID, buyerID uuid.UUID) (*StatusView, error)
}

// InitiateInput asks for Amount to be collected from Phone against an order.
type InitiateInput struct {
	OrderID uuid.UUID
	Phone   string
	Amount  decimal.Decimal
}

// PayOrderInput re-requests payment of an order's full total by its buyer.
type PayOrderInput struct {
	OrderID uuid.UUID
	BuyerID uuid.UUID
	Phone   string
}

// InitiateResult is returned once the gateway accepted the push request.
type InitiateResult struct {
	OrderID           uuid.UUID `json:"order_id"`
	CheckoutRequestID string    `json:"checkout_request_id"`
	MerchantRequestID string    `json:"merchant_request_id"`
	Amount            int64     `json:"amount"`
	Phone             string    `json:"phone"`
	CustomerMessage   string    `json:"customer_message,omitempty"`
}

// StatusView is the pollable payment state of an order.
type StatusView struct {
	OrderID           uuid.UUID              `json:"order_id"`
	Status            enums.CollectionStatus `json:"status"`
	CheckoutRequestID *string                `json:"checkout_request_id,omitempty"`
	ReceiptNumber     *string                `json:"receipt_number,omitempty"`
	ResultDesc        *string                `json:"result_desc,omitempty"`
	PaidAt            *time.Time             `json:"paid_at,omitempty"`
}

// Config carries the public callback URL the gateway posts results to.
type Config struct {
	CallbackURL string
}

type service struct {
	tx       txRunner
	repo     ledger.Repository
	gateway  pushGateway
	courier  courier.Booker
	notifier notifications.Notifier
	metrics  *metrics.PaymentMetrics
	logg     *logger.Logger
	cfg      Config
	now      func() time.Time
}

// NewService wires the collection flow. Courier and notifier are optional.
func NewService(
	tx txRunner,
	repo ledger.Repository,
	gateway pushGateway,
	booker courier.Booker,
	notifier notifications.Notifier,
	paymentMetrics *metrics.PaymentMetrics,
	logg *logger.Logger,
	cfg Config,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("push gateway required")
	}
	if strings.TrimSpace(cfg.CallbackURL) == "" {
		return nil, fmt.Errorf("callback url required")
	}
	if notifier == nil {
		notifier = notifications.Nop{}
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		tx:       tx,
		repo:     repo,
		gateway:  gateway,
		courier:  booker,
		notifier: notifier,
		metrics:  paymentMetrics,
		logg:     logg,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Initiate(ctx context.Context, in InitiateInput) (*InitiateResult, error) {
	phone, err := mpesa.NormalizePhone(in.Phone)
	if err != nil {
		return nil, err
	}
	if !in.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}

	order, err := s.loadOrder(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if err := ensurePayable(order); err != nil {
		return nil, err
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	units := commission.CollectionUnits(in.Amount)
	resp, err := s.gateway.STKPush(ctx, mpesa.STKPushRequest{
		Phone:            phone,
		Amount:           units,
		AccountReference: accountReference(order.ID),
		Description:      "Order payment",
		CallbackURL:      s.cfg.CallbackURL,
	})
	if err != nil {
		s.metrics.IncCollection("submit_failed")
		s.logg.Error(ctx, "stk push failed", err)
		return nil, asDependency(err, "request payment")
	}

	collection := &models.Collection{
		OrderID:           order.ID,
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		Amount:            decimal.NewFromInt(units),
		Phone:             phone,
		Status:            enums.CollectionStatusProcessing,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateCollection(ctx, collection); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record collection")
		}
		ok, err := repo.MarkOrderAwaitingPayment(ctx, order.ID, ledger.AwaitingPayment{
			CheckoutRequestID: resp.CheckoutRequestID,
			MerchantRequestID: resp.MerchantRequestID,
			PayerPhone:        phone,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order payment state")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "order payment already in progress")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncCollection("submitted")
	s.logg.Info(ctx, "stk push accepted")
	return &InitiateResult{
		OrderID:           order.ID,
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		Amount:            units,
		Phone:             phone,
		CustomerMessage:   resp.CustomerMessage,
	}, nil
}

func (s *service) PayOrder(ctx context.Context, in PayOrderInput) (*InitiateResult, error) {
	order, err := s.loadOrder(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != in.BuyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another buyer")
	}
	return s.Initiate(ctx, InitiateInput{OrderID: order.ID, Phone: in.Phone, Amount: order.TotalAmount})
}

func (s *service) HandleCallback(ctx context.Context, cb mpesa.STKCallback) error {
	ctx = s.logg.WithField(ctx, logger.FieldCheckoutRequestID, cb.CheckoutRequestID)

	collection, err := s.repo.FindCollectionByCheckoutRequestID(ctx, cb.CheckoutRequestID)
	if err != nil {
		// Also reached when the gateway answers before Initiate commits. The
		// order then stays processing until the stale-order expiry cancels it.
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.metrics.IncCallback(callbackKind, "unknown")
			s.logg.Warn(ctx, "stk callback for unknown checkout request")
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load collection")
	}
	if collection.Status.IsTerminal() {
		s.metrics.IncCallback(callbackKind, "duplicate")
		s.logg.Info(ctx, "stk callback for finalized collection ignored")
		return nil
	}
	ctx = s.logg.WithOrderID(ctx, collection.OrderID.String())

	outcome := s.outcomeFor(cb)
	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		applied, err := repo.FinalizeCollection(ctx, collection.ID, outcome)
		if err != nil {
			return err
		}
		if !applied {
			return errCallbackDuplicate
		}

		settlement := ledger.OrderSettlement{Status: outcome.Status, ReceiptNumber: outcome.ReceiptNumber}
		if outcome.Status == enums.CollectionStatusCompleted {
			settlement.PaidAt = outcome.CompletedAt
			if payer := cb.PhoneNumber(); payer != "" {
				settlement.PayerPhone = &payer
			}
		}
		if err := repo.SettleOrder(ctx, collection.OrderID, settlement); err != nil {
			return err
		}
		if outcome.Status == enums.CollectionStatusCompleted {
			if _, err := repo.CascadePaidItems(ctx, collection.OrderID); err != nil {
				return err
			}
		}

		order, err = repo.FindOrder(ctx, collection.OrderID)
		return err
	})
	if errors.Is(err, errCallbackDuplicate) {
		s.metrics.IncCallback(callbackKind, "duplicate")
		return nil
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle collection")
	}

	s.metrics.IncCallback(callbackKind, "applied")
	s.metrics.IncCollection(string(outcome.Status))
	s.logg.Info(s.logg.WithField(ctx, "collection_status", outcome.Status.String()), "collection settled")

	if outcome.Status == enums.CollectionStatusCompleted {
		s.afterPaid(ctx, order)
	} else {
		s.notifier.Notify(ctx, notifications.Message{
			RecipientID: order.BuyerID,
			Type:        enums.NotificationTypePaymentFailed,
			Title:       "Payment not completed",
			Body:        fmt.Sprintf("Payment for order %s was not completed: %s", shortID(order.ID), cb.ResultDesc),
			Link:        orderLink(order.ID),
			OrderID:     &order.ID,
		})
	}
	return nil
}

func (s *service) Status(ctx context.Context, orderID, buyerID uuid.UUID) (*StatusView, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if buyerID != uuid.Nil && order.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another buyer")
	}

	view := &StatusView{
		OrderID:           order.ID,
		Status:            order.CollectionStatus,
		CheckoutRequestID: order.CheckoutRequestID,
		ReceiptNumber:     order.ReceiptNumber,
		PaidAt:            order.PaidAt,
	}
	latest, err := s.repo.FindLatestCollectionByOrder(ctx, order.ID)
	switch {
	case err == nil:
		view.ResultDesc = latest.ResultDesc
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load collection")
	}
	return view, nil
}

func (s *service) outcomeFor(cb mpesa.STKCallback) ledger.CollectionOutcome {
	out := ledger.CollectionOutcome{
		ResultCode: cb.ResultCode.Int(),
		ResultDesc: cb.ResultDesc,
	}
	switch {
	case cb.Succeeded():
		out.Status = enums.CollectionStatusCompleted
		if receipt := cb.ReceiptNumber(); receipt != "" {
			out.ReceiptNumber = &receipt
		}
		paidAt, ok := cb.TransactionDate()
		if !ok {
			paidAt = s.now()
		}
		paidAt = paidAt.UTC()
		out.CompletedAt = &paidAt
	default:
		// 1032 (dismissed PIN prompt) is a plain failure; failed orders stay payable.
		out.Status = enums.CollectionStatusFailed
	}
	return out
}

// afterPaid runs the side effects of a settled order. Failures are logged.
func (s *service) afterPaid(ctx context.Context, order *models.Order) {
	if order.DeliveryMethod == enums.DeliveryMethodCourier && s.courier != nil {
		count := 0
		for _, item := range order.Items {
			count += item.Quantity
		}
		req := courier.ParcelRequest{
			Reference:     order.ID.String(),
			Destination:   order.DeliveryMetadata,
			ItemCount:     count,
			DeclaredValue: order.TotalAmount.StringFixed(2),
		}
		if order.PayerPhone != nil {
			req.RecipientPhone = *order.PayerPhone
		}
		tracking, err := s.courier.CreateParcel(ctx, req)
		if err != nil {
			s.logg.Error(ctx, "courier parcel creation failed", err)
		} else if err := s.repo.SetTrackingNumber(ctx, order.ID, tracking); err != nil {
			s.logg.Error(ctx, "failed to store tracking number", err)
		}
	}

	s.notifier.Notify(ctx, notifications.Message{
		RecipientID: order.BuyerID,
		Type:        enums.NotificationTypeOrderPaid,
		Title:       "Payment received",
		Body:        fmt.Sprintf("We received %s for order %s.", order.TotalAmount.StringFixed(2), shortID(order.ID)),
		Link:        orderLink(order.ID),
		OrderID:     &order.ID,
	})
	notified := map[uuid.UUID]bool{}
	for _, item := range order.Items {
		if notified[item.SellerID] {
			continue
		}
		notified[item.SellerID] = true
		s.notifier.Notify(ctx, notifications.Message{
			RecipientID: item.SellerID,
			Type:        enums.NotificationTypeOrderPaid,
			Title:       "New paid order",
			Body:        fmt.Sprintf("Order %s has been paid and is ready to fulfil.", shortID(order.ID)),
			Link:        "/seller/orders/" + order.ID.String(),
			OrderID:     &order.ID,
		})
	}
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

func ensurePayable(order *models.Order) error {
	switch order.CollectionStatus {
	case enums.CollectionStatusCompleted:
		return pkgerrors.New(pkgerrors.CodeConflict, "order already paid")
	case enums.CollectionStatusProcessing:
		return pkgerrors.New(pkgerrors.CodeConflict, "order payment already in progress")
	case enums.CollectionStatusCancelled:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order has been cancelled")
	}
	return nil
}

func asDependency(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

func accountReference(orderID uuid.UUID) string {
	return "ORD" + shortID(orderID)
}

func shortID(id uuid.UUID) string {
	return strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
}

func orderLink(orderID uuid.UUID) string {
	return "/orders/" + orderID.String()
}
