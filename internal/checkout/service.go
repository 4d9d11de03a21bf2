package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/payflow-backend/internal/collections"
	"github.com/angelmondragon/payflow-backend/internal/commission"
	"github.com/angelmondragon/payflow-backend/internal/ledger"
	"github.com/angelmondragon/payflow-backend/internal/notifications"
	pkgcheckout "github.com/angelmondragon/payflow-backend/pkg/checkout"
	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
	"github.com/angelmondragon/payflow-backend/pkg/mpesa"
)

// DefaultStaleOrderWindow is how long a pending order blocks a new checkout
// of the same product by the same buyer.
const DefaultStaleOrderWindow = 30 * time.Minute

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type staleOrderCanceller interface {
	CancelStaleOrders(ctx context.Context, filter ledger.StaleOrderFilter) (int, error)
}

type collectionInitiator interface {
	Initiate(ctx context.Context, in collections.InitiateInput) (*collections.InitiateResult, error)
}

// Service places orders and requests the buyer's payment.
type Service interface {
	PlaceOrder(ctx context.Context, in Input) (*Result, error)
}

// Input is a buyer checking out one or more seller lines.
type Input struct {
	BuyerID          uuid.UUID
	Phone            string
	DeliveryMethod   enums.DeliveryMethod
	DeliveryMetadata json.RawMessage
	Items            []LineInput
}

// LineInput is one product bought from one seller.
type LineInput struct {
	SellerID  uuid.UUID
	ProductID uuid.UUID
	Quantity  int
	UnitPrice decimal.Decimal
}

// Result is the created order. Payment is nil and PaymentError set when the
// push request could not be sent; the order stays pending and can be paid later.
type Result struct {
	Order        *models.Order               `json:"order"`
	Payment      *collections.InitiateResult `json:"payment,omitempty"`
	PaymentError string                      `json:"payment_error,omitempty"`
}

// Config tunes checkout behavior.
type Config struct {
	StaleOrderWindow time.Duration
}

type service struct {
	tx          txRunner
	repo        ledger.Repository
	stale       staleOrderCanceller
	collections collectionInitiator
	calculator  *commission.Calculator
	notifier    notifications.Notifier
	logg        *logger.Logger
	cfg         Config
	now         func() time.Time
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	repo ledger.Repository,
	stale staleOrderCanceller,
	initiator collectionInitiator,
	calculator *commission.Calculator,
	notifier notifications.Notifier,
	logg *logger.Logger,
	cfg Config,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if stale == nil {
		return nil, fmt.Errorf("stale order canceller required")
	}
	if initiator == nil {
		return nil, fmt.Errorf("collection initiator required")
	}
	if calculator == nil {
		calculator = commission.Default()
	}
	if notifier == nil {
		notifier = notifications.Nop{}
	}
	if logg == nil {
		logg = logger.Nop()
	}
	if cfg.StaleOrderWindow <= 0 {
		cfg.StaleOrderWindow = DefaultStaleOrderWindow
	}
	return &service{
		tx:          tx,
		repo:        repo,
		stale:       stale,
		collections: initiator,
		calculator:  calculator,
		notifier:    notifier,
		logg:        logg,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) PlaceOrder(ctx context.Context, in Input) (*Result, error) {
	if in.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	phone, err := mpesa.NormalizePhone(in.Phone)
	if err != nil {
		return nil, err
	}
	method := in.DeliveryMethod
	if method == "" {
		method = enums.DeliveryMethodPickup
	}
	if !method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery method")
	}
	if len(in.DeliveryMetadata) > 0 && !json.Valid(in.DeliveryMetadata) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery metadata must be valid json")
	}
	if err := pkgcheckout.ValidateLines(toValidationInputs(in.Items)); err != nil {
		return nil, err
	}

	ctx = s.logg.WithUserID(ctx, in.BuyerID.String())
	if err := s.cancelStale(ctx, in.BuyerID, in.Items); err != nil {
		return nil, err
	}

	order := s.buildOrder(in, method)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(ctx, "order placed")

	s.notifier.Notify(ctx, notifications.Message{
		RecipientID: order.BuyerID,
		Type:        enums.NotificationTypeOrderPlaced,
		Title:       "Order placed",
		Body:        fmt.Sprintf("Your order totalling %s is awaiting payment.", order.TotalAmount.StringFixed(2)),
		Link:        "/orders/" + order.ID.String(),
		OrderID:     &order.ID,
	})

	result := &Result{Order: order}
	payment, err := s.collections.Initiate(ctx, collections.InitiateInput{
		OrderID: order.ID,
		Phone:   phone,
		Amount:  order.TotalAmount,
	})
	if err != nil {
		s.logg.Warn(ctx, "order placed but payment request failed: "+err.Error())
		result.PaymentError = paymentErrorMessage(err)
		return result, nil
	}
	result.Payment = payment

	if refreshed, err := s.repo.FindOrder(ctx, order.ID); err == nil {
		result.Order = refreshed
	}
	return result, nil
}

// cancelStale clears abandoned pending orders this buyer left for the same
// products so they do not linger next to the new one.
func (s *service) cancelStale(ctx context.Context, buyerID uuid.UUID, lines []LineInput) error {
	cutoff := s.now().Add(-s.cfg.StaleOrderWindow)
	seen := map[uuid.UUID]bool{}
	for _, line := range lines {
		if seen[line.ProductID] {
			continue
		}
		seen[line.ProductID] = true
		productID := line.ProductID
		buyer := buyerID
		if _, err := s.stale.CancelStaleOrders(ctx, ledger.StaleOrderFilter{
			Cutoff:    cutoff,
			BuyerID:   &buyer,
			ProductID: &productID,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) buildOrder(in Input, method enums.DeliveryMethod) *models.Order {
	total := decimal.Zero
	items := make([]models.OrderItem, 0, len(in.Items))
	for _, line := range in.Items {
		breakdown := s.calculator.Calculate(line.UnitPrice, line.Quantity)
		total = total.Add(breakdown.Totals.TotalBuyerCost)
		items = append(items, models.OrderItem{
			SellerID:           line.SellerID,
			ProductID:          line.ProductID,
			Quantity:           line.Quantity,
			UnitPrice:          line.UnitPrice,
			Subtotal:           breakdown.Totals.TotalProductPrice,
			FulfillmentStatus:  enums.FulfillmentStatusPendingPayment,
			DisbursementStatus: enums.DisbursementStatusNone,
		})
	}
	firstProduct := in.Items[0].ProductID
	return &models.Order{
		BuyerID:          in.BuyerID,
		ProductID:        &firstProduct,
		TotalAmount:      total,
		CollectionStatus: enums.CollectionStatusPending,
		DeliveryMethod:   method,
		DeliveryMetadata: in.DeliveryMetadata,
		Items:            items,
	}
}

func toValidationInputs(lines []LineInput) []pkgcheckout.LineValidationInput {
	out := make([]pkgcheckout.LineValidationInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, pkgcheckout.LineValidationInput{
			SellerID:  line.SellerID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	return out
}

func paymentErrorMessage(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Message()
	}
	return "payment request failed"
}
