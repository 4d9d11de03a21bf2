package disbursements

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/payflow-backend/internal/commission"
	"github.com/angelmondragon/payflow-backend/internal/ledger"
	"github.com/angelmondragon/payflow-backend/internal/notifications"
	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
	"github.com/angelmondragon/payflow-backend/pkg/metrics"
	"github.com/angelmondragon/payflow-backend/pkg/mpesa"
)

var (
	// ErrAlreadyProcessed is returned when the item's payout is in flight or done.
	ErrAlreadyProcessed = pkgerrors.New(pkgerrors.CodeAlreadyProcessed, "disbursement already processed")
	// ErrNotYetPaid is returned when the buyer's payment has not settled.
	ErrNotYetPaid = pkgerrors.New(pkgerrors.CodeStateConflict, "order payment not completed")
	// ErrNotDelivered is returned when the item has not reached the buyer.
	ErrNotDelivered = pkgerrors.New(pkgerrors.CodeStateConflict, "item not delivered")
)

var errCallbackDuplicate = errors.New("disbursement already finalized")

const (
	kindResult  = "b2c_result"
	kindTimeout = "b2c_timeout"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type payoutGateway interface {
	B2CPayment(ctx context.Context, in mpesa.B2CRequest) (*mpesa.B2CResponse, error)
}

// PhoneDirectory resolves where a seller is paid.
type PhoneDirectory interface {
	PayoutPhone(ctx context.Context, sellerID uuid.UUID) (string, error)
}

// Service pays sellers for delivered items and records the gateway's verdict.
type Service interface {
	Initiate(ctx context.Context, orderItemID uuid.UUID) (*Result, error)
	HandleResult(ctx context.Context, res mpesa.B2CResult) error
	HandleTimeout(ctx context.Context, res mpesa.B2CResult) error
}

// Result describes a payout the gateway accepted.
type Result struct {
	DisbursementID           uuid.UUID          `json:"disbursement_id"`
	OrderItemID              uuid.UUID          `json:"order_item_id"`
	Amount                   int64              `json:"amount"`
	Phone                    string             `json:"phone"`
	OriginatorConversationID string             `json:"originator_conversation_id"`
	ConversationID           string             `json:"conversation_id"`
	Status                   enums.PayoutStatus `json:"status"`
}

// Config carries the public URLs the gateway posts payout outcomes to.
type Config struct {
	ResultURL  string
	TimeoutURL string
}

type service struct {
	tx         txRunner
	repo       ledger.Repository
	gateway    payoutGateway
	directory  PhoneDirectory
	calculator *commission.Calculator
	notifier   notifications.Notifier
	metrics    *metrics.PaymentMetrics
	logg       *logger.Logger
	cfg        Config
	now        func() time.Time

	mu         sync.Mutex
	lastMillis int64
}

// NewService wires the payout flow.
func NewService(
	tx txRunner,
	repo ledger.Repository,
	gateway payoutGateway,
	directory PhoneDirectory,
	calculator *commission.Calculator,
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
		return nil, fmt.Errorf("payout gateway required")
	}
	if directory == nil {
		return nil, fmt.Errorf("phone directory required")
	}
	if strings.TrimSpace(cfg.ResultURL) == "" || strings.TrimSpace(cfg.TimeoutURL) == "" {
		return nil, fmt.Errorf("result and timeout urls required")
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
	return &service{
		tx:         tx,
		repo:       repo,
		gateway:    gateway,
		directory:  directory,
		calculator: calculator,
		notifier:   notifier,
		metrics:    paymentMetrics,
		logg:       logg,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Initiate(ctx context.Context, orderItemID uuid.UUID) (*Result, error) {
	if orderItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order item id required")
	}
	ctx = s.logg.WithOrderItemID(ctx, orderItemID.String())

	item, err := s.repo.FindItem(ctx, orderItemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order item")
	}
	if item.DisbursementStatus == enums.DisbursementStatusCompleted || item.DisbursementStatus == enums.DisbursementStatusProcessing {
		return nil, ErrAlreadyProcessed
	}

	order, err := s.repo.FindOrder(ctx, item.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	if order.CollectionStatus != enums.CollectionStatusCompleted {
		return nil, ErrNotYetPaid
	}
	if item.FulfillmentStatus != enums.FulfillmentStatusDelivered {
		return nil, ErrNotDelivered
	}

	breakdown := s.calculator.Calculate(item.UnitPrice, item.Quantity)
	units := commission.PayoutUnits(breakdown.Totals.TotalSellerPayout)
	attempt := &models.Disbursement{
		OrderItemID:              item.ID,
		OrderID:                  order.ID,
		SellerID:                 item.SellerID,
		Amount:                   decimal.NewFromInt(units),
		OriginatorConversationID: fmt.Sprintf("PAYOUT-%s-%d", order.ID, s.nextMillis()),
		Status:                   enums.PayoutStatusInitiated,
		GrossAmount:              breakdown.Totals.TotalProductPrice,
		PlatformFee:              breakdown.Totals.TotalPlatformFee,
		PlatformProfit:           breakdown.Totals.TotalPlatformProfit,
		GatewayFee:               breakdown.Totals.TotalGatewayFee,
		SellerFee:                breakdown.Totals.TotalSellerFee,
	}
	ctx = s.logg.WithField(ctx, logger.FieldOriginatorID, attempt.OriginatorConversationID)

	phone, cause := s.directory.PayoutPhone(ctx, item.SellerID)
	causeMsg := "resolve payout phone"
	if cause == nil && units <= 0 {
		cause = pkgerrors.New(pkgerrors.CodeValidation, "payout amount below minimum")
		causeMsg = "compute payout"
	}
	attempt.Phone = phone
	if cause != nil {
		reason := cause.Error()
		attempt.Status = enums.PayoutStatusFailed
		attempt.ResultDesc = &reason
	}

	// The attempt row is written with the claim, before the gateway sees the
	// request, so every result callback finds its originator id.
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		claimed, err := repo.ClaimItemForDisbursement(ctx, item.ID)
		if err != nil {
			return err
		}
		if !claimed {
			return ErrAlreadyProcessed
		}
		if err := repo.CreateDisbursement(ctx, attempt); err != nil {
			return err
		}
		if attempt.Status == enums.PayoutStatusFailed {
			return repo.SetItemDisbursementStatus(ctx, item.ID, enums.DisbursementStatusFailed)
		}
		return nil
	})
	switch {
	case errors.Is(err, ErrAlreadyProcessed):
		s.metrics.IncDisbursement("skipped")
		return nil, ErrAlreadyProcessed
	case err != nil:
		s.logg.Error(ctx, "failed to record payout attempt", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record disbursement")
	}
	if cause != nil {
		return nil, s.initiationFailed(ctx, cause, causeMsg)
	}

	resp, err := s.gateway.B2CPayment(ctx, mpesa.B2CRequest{
		OriginatorConversationID: attempt.OriginatorConversationID,
		Phone:                    phone,
		Amount:                   units,
		Remarks:                  "Marketplace payout",
		Occasion:                 "Order " + order.ID.String(),
		ResultURL:                s.cfg.ResultURL,
		QueueTimeOutURL:          s.cfg.TimeoutURL,
	})
	if err != nil {
		s.failAttempt(ctx, attempt, err)
		return nil, s.initiationFailed(ctx, err, "request payout")
	}

	if resp.ConversationID != "" {
		conversationID := resp.ConversationID
		attempt.ConversationID = &conversationID
		if err := s.repo.SetDisbursementConversationID(ctx, attempt.ID, conversationID); err != nil {
			s.logg.Error(ctx, "failed to store payout conversation id", err)
		}
	}

	s.metrics.IncDisbursement("initiated")
	s.logg.Info(ctx, "payout initiated")
	return &Result{
		DisbursementID:           attempt.ID,
		OrderItemID:              item.ID,
		Amount:                   units,
		Phone:                    phone,
		OriginatorConversationID: attempt.OriginatorConversationID,
		ConversationID:           resp.ConversationID,
		Status:                   attempt.Status,
	}, nil
}

// failAttempt closes an initiated attempt the gateway refused and marks the
// item failed so the retry job picks it up.
func (s *service) failAttempt(ctx context.Context, attempt *models.Disbursement, cause error) {
	reason := cause.Error()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		applied, err := repo.FailDisbursement(ctx, attempt.ID, reason)
		if err != nil {
			return err
		}
		if !applied {
			return errCallbackDuplicate
		}
		return repo.SetItemDisbursementStatus(ctx, attempt.OrderItemID, enums.DisbursementStatusFailed)
	})
	switch {
	case errors.Is(err, errCallbackDuplicate):
		s.logg.Warn(ctx, "payout attempt finalized before the gateway error was recorded")
	case err != nil:
		s.logg.Error(ctx, "failed to record payout failure", err)
	default:
		attempt.Status = enums.PayoutStatusFailed
		attempt.ResultDesc = &reason
	}
}

func (s *service) initiationFailed(ctx context.Context, cause error, msg string) error {
	s.metrics.IncDisbursement("submit_failed")
	s.logg.Error(ctx, "payout initiation failed", cause)

	if typed := pkgerrors.As(cause); typed != nil && typed.Code() != pkgerrors.CodeValidation && typed.Code() != pkgerrors.CodeNotFound {
		return cause
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, cause, msg)
}

func (s *service) HandleResult(ctx context.Context, res mpesa.B2CResult) error {
	outcome := ledger.DisbursementOutcome{
		ResultCode: res.ResultCode.Int(),
		ResultDesc: res.ResultDesc,
	}
	if res.Succeeded() {
		outcome.Status = enums.PayoutStatusCompleted
		if ref := res.TransactionReference(); ref != "" {
			outcome.TransactionID = &ref
		}
		if name := res.RecipientName(); name != "" {
			outcome.RecipientName = &name
		}
		completedAt, ok := res.CompletedAt()
		if !ok {
			completedAt = s.now()
		}
		outcome.CompletedAt = &completedAt
	} else {
		outcome.Status = enums.PayoutStatusFailed
	}
	return s.finalize(ctx, kindResult, res, outcome)
}

func (s *service) HandleTimeout(ctx context.Context, res mpesa.B2CResult) error {
	desc := res.ResultDesc
	if desc == "" {
		desc = "payout request timed out in gateway queue"
	}
	return s.finalize(ctx, kindTimeout, res, ledger.DisbursementOutcome{
		Status:     enums.PayoutStatusTimeout,
		ResultCode: res.ResultCode.Int(),
		ResultDesc: desc,
	})
}

func (s *service) finalize(ctx context.Context, kind string, res mpesa.B2CResult, outcome ledger.DisbursementOutcome) error {
	ctx = s.logg.WithField(ctx, logger.FieldOriginatorID, res.OriginatorConversationID)

	attempt, err := s.repo.FindDisbursementByOriginatorID(ctx, res.OriginatorConversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.metrics.IncCallback(kind, "unknown")
			s.logg.Warn(ctx, "payout callback for unknown originator id")
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load disbursement")
	}
	if attempt.Status.IsTerminal() {
		s.metrics.IncCallback(kind, "duplicate")
		s.logg.Info(ctx, "payout callback for finalized disbursement ignored")
		return nil
	}
	ctx = s.logg.WithOrderItemID(ctx, attempt.OrderItemID.String())

	if paid, ok := res.Amount(); ok && outcome.Status == enums.PayoutStatusCompleted && !paid.Equal(attempt.Amount) {
		s.logg.Warn(s.logg.WithField(ctx, "reported_amount", paid.String()), "payout amount differs from requested amount")
	}

	itemStatus := enums.DisbursementStatusFailed
	if outcome.Status == enums.PayoutStatusCompleted {
		itemStatus = enums.DisbursementStatusCompleted
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		applied, err := repo.FinalizeDisbursement(ctx, attempt.ID, outcome)
		if err != nil {
			return err
		}
		if !applied {
			return errCallbackDuplicate
		}
		return repo.SetItemDisbursementStatus(ctx, attempt.OrderItemID, itemStatus)
	})
	if errors.Is(err, errCallbackDuplicate) {
		s.metrics.IncCallback(kind, "duplicate")
		return nil
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finalize disbursement")
	}

	s.metrics.IncCallback(kind, "applied")
	s.metrics.IncDisbursement(string(outcome.Status))
	s.logg.Info(s.logg.WithField(ctx, "payout_status", outcome.Status.String()), "payout finalized")

	msg := notifications.Message{
		RecipientID: attempt.SellerID,
		Link:        "/seller/payouts",
		OrderID:     &attempt.OrderID,
	}
	if outcome.Status == enums.PayoutStatusCompleted {
		msg.Type = enums.NotificationTypePayoutSent
		msg.Title = "Payout sent"
		msg.Body = fmt.Sprintf("%s has been sent to %s.", attempt.Amount.StringFixed(2), attempt.Phone)
	} else {
		msg.Type = enums.NotificationTypePayoutFailed
		msg.Title = "Payout delayed"
		msg.Body = "Your payout did not go through and will be retried automatically."
	}
	s.notifier.Notify(ctx, msg)
	return nil
}

// nextMillis returns a strictly increasing millisecond stamp for originator ids.
func (s *service) nextMillis() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms := s.now().UnixMilli()
	if ms <= s.lastMillis {
		ms = s.lastMillis + 1
	}
	s.lastMillis = ms
	return ms
}
