package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/payflow-backend/internal/collections"
	"github.com/angelmondragon/payflow-backend/internal/ledger"
	"github.com/angelmondragon/payflow-backend/internal/ledger/ledgertest"
	"github.com/angelmondragon/payflow-backend/internal/notifications"
	"github.com/angelmondragon/payflow-backend/internal/orders"
	"github.com/angelmondragon/payflow-backend/pkg/db"
	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
)

type stubInitiator struct {
	calls []collections.InitiateInput
	err   error
}

func (s *stubInitiator) Initiate(_ context.Context, in collections.InitiateInput) (*collections.InitiateResult, error) {
	s.calls = append(s.calls, in)
	if s.err != nil {
		return nil, s.err
	}
	return &collections.InitiateResult{
		OrderID:           in.OrderID,
		CheckoutRequestID: "ws_CO_1",
		MerchantRequestID: "MR-1",
		Amount:            in.Amount.Ceil().IntPart(),
		Phone:             in.Phone,
	}, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []notifications.Message
}

func (r *recordingNotifier) Notify(_ context.Context, msg notifications.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

type harness struct {
	db        *gorm.DB
	repo      ledger.Repository
	initiator *stubInitiator
	notifier  *recordingNotifier
	svc       Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gdb := ledgertest.Open(t)
	repo := ledger.NewRepository(gdb)
	ordersSvc, err := orders.NewService(repo, nil, nil, nil, orders.Config{})
	require.NoError(t, err)

	h := &harness{
		db:        gdb,
		repo:      repo,
		initiator: &stubInitiator{},
		notifier:  &recordingNotifier{},
	}
	h.svc, err = NewService(db.NewFromConn(gdb), repo, ordersSvc, h.initiator, nil, h.notifier, nil, Config{})
	require.NoError(t, err)
	return h
}

func checkoutInput(buyerID uuid.UUID, lines ...LineInput) Input {
	return Input{
		BuyerID:        buyerID,
		Phone:          "0712345678",
		DeliveryMethod: enums.DeliveryMethodPickup,
		Items:          lines,
	}
}

func line(productID uuid.UUID, qty int, price string) LineInput {
	return LineInput{
		SellerID:  uuid.New(),
		ProductID: productID,
		Quantity:  qty,
		UnitPrice: decimal.RequireFromString(price),
	}
}

func TestPlaceOrderCreatesPendingOrderAndRequestsPayment(t *testing.T) {
	h := newHarness(t)
	buyer := uuid.New()

	res, err := h.svc.PlaceOrder(context.Background(), checkoutInput(buyer,
		line(uuid.New(), 2, "100"),
		line(uuid.New(), 1, "40"),
	))
	require.NoError(t, err)
	require.NotNil(t, res.Payment)
	assert.Empty(t, res.PaymentError)

	assert.True(t, decimal.RequireFromString("257.5").Equal(res.Order.TotalAmount), "total %s", res.Order.TotalAmount)
	require.Len(t, h.initiator.calls, 1)
	call := h.initiator.calls[0]
	assert.Equal(t, res.Order.ID, call.OrderID)
	assert.Equal(t, "254712345678", call.Phone)
	assert.True(t, res.Order.TotalAmount.Equal(call.Amount))

	stored, err := h.repo.FindOrder(context.Background(), res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.CollectionStatusPending, stored.CollectionStatus)
	require.Len(t, stored.Items, 2)
	for _, item := range stored.Items {
		assert.Equal(t, enums.FulfillmentStatusPendingPayment, item.FulfillmentStatus)
		assert.Equal(t, enums.DisbursementStatusNone, item.DisbursementStatus)
	}

	require.Len(t, h.notifier.messages, 1)
	assert.Equal(t, enums.NotificationTypeOrderPlaced, h.notifier.messages[0].Type)
	assert.Equal(t, buyer, h.notifier.messages[0].RecipientID)
}

func TestPlaceOrderKeepsOrderWhenPaymentRequestFails(t *testing.T) {
	h := newHarness(t)
	h.initiator.err = pkgerrors.New(pkgerrors.CodeDependency, "payment gateway unavailable")

	res, err := h.svc.PlaceOrder(context.Background(), checkoutInput(uuid.New(), line(uuid.New(), 1, "100")))
	require.NoError(t, err)
	assert.Nil(t, res.Payment)
	assert.Equal(t, "payment gateway unavailable", res.PaymentError)

	stored, err := h.repo.FindOrder(context.Background(), res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.CollectionStatusPending, stored.CollectionStatus)
}

func TestPlaceOrderCancelsStalePendingOrderForSameProduct(t *testing.T) {
	h := newHarness(t)
	buyer := uuid.New()
	product := uuid.New()

	old := seedPending(t, h.db, buyer, product, time.Now().UTC().Add(-time.Hour))
	recent := seedPending(t, h.db, buyer, product, time.Now().UTC().Add(-5*time.Minute))
	otherProduct := seedPending(t, h.db, buyer, uuid.New(), time.Now().UTC().Add(-time.Hour))

	_, err := h.svc.PlaceOrder(context.Background(), checkoutInput(buyer, line(product, 1, "100")))
	require.NoError(t, err)

	assertStatus(t, h.repo, old.ID, enums.CollectionStatusCancelled)
	assertStatus(t, h.repo, recent.ID, enums.CollectionStatusPending)
	assertStatus(t, h.repo, otherProduct.ID, enums.CollectionStatusPending)

	cancelled, err := h.repo.FindOrder(context.Background(), old.ID)
	require.NoError(t, err)
	require.Len(t, cancelled.Items, 1)
	assert.Equal(t, enums.FulfillmentStatusCancelled, cancelled.Items[0].FulfillmentStatus)
}

func TestPlaceOrderValidation(t *testing.T) {
	h := newHarness(t)
	buyer := uuid.New()

	cases := map[string]Input{
		"no items":         checkoutInput(buyer),
		"bad phone":        {BuyerID: buyer, Phone: "12", Items: []LineInput{line(uuid.New(), 1, "10")}},
		"zero quantity":    checkoutInput(buyer, line(uuid.New(), 0, "10")),
		"negative price":   checkoutInput(buyer, line(uuid.New(), 1, "-5")),
		"unknown method":   {BuyerID: buyer, Phone: "0712345678", DeliveryMethod: "drone", Items: []LineInput{line(uuid.New(), 1, "10")}},
		"missing buyer id": checkoutInput(uuid.Nil, line(uuid.New(), 1, "10")),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.svc.PlaceOrder(context.Background(), in)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
	assert.Empty(t, h.initiator.calls)
}

func seedPending(t *testing.T, gdb *gorm.DB, buyer, product uuid.UUID, createdAt time.Time) *models.Order {
	t.Helper()
	item := ledgertest.Item(enums.FulfillmentStatusPendingPayment)
	item.ProductID = product
	order := &models.Order{
		BuyerID:          buyer,
		ProductID:        &product,
		TotalAmount:      decimal.RequireFromString("215"),
		CollectionStatus: enums.CollectionStatusPending,
		DeliveryMethod:   enums.DeliveryMethodPickup,
		Items:            []models.OrderItem{item},
	}
	require.NoError(t, gdb.Create(order).Error)
	require.NoError(t, gdb.Model(&models.Order{}).Where("id = ?", order.ID).UpdateColumn("created_at", createdAt).Error)
	return order
}

func assertStatus(t *testing.T, repo ledger.Repository, orderID uuid.UUID, want enums.CollectionStatus) {
	t.Helper()
	order, err := repo.FindOrder(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, want, order.CollectionStatus)
}
