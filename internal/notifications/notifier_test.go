package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/payflow-backend/internal/ledger/ledgertest"
	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
)

type fakeEmails struct {
	email string
	ok    bool
	err   error
}

func (f fakeEmails) Email(context.Context, uuid.UUID) (string, bool, error) {
	return f.email, f.ok, f.err
}

type recordingMailer struct {
	sent []string
	err  error
}

func (m *recordingMailer) Send(_ context.Context, to, subject, _ string) error {
	m.sent = append(m.sent, to+"|"+subject)
	return m.err
}

func TestNotifyStoresAndEmails(t *testing.T) {
	db := ledgertest.Open(t)
	repo := NewRepository(db)
	mailer := &recordingMailer{}
	recipient := uuid.New()
	orderID := uuid.New()

	n := NewNotifier(repo, fakeEmails{email: "buyer@example.com", ok: true}, mailer, nil)
	n.Notify(context.Background(), Message{
		RecipientID: recipient,
		Type:        enums.NotificationTypeOrderPaid,
		Title:       "Payment received",
		Body:        "Your order is paid.",
		Link:        "/orders/" + orderID.String(),
		OrderID:     &orderID,
	})

	var rows []models.Notification
	require.NoError(t, db.Where("recipient_id = ?", recipient).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.NotificationTypeOrderPaid, rows[0].Type)
	require.NotNil(t, rows[0].OrderID)
	assert.Equal(t, orderID, *rows[0].OrderID)
	assert.Equal(t, []string{"buyer@example.com|Payment received"}, mailer.sent)
}

func TestNotifySwallowsFailures(t *testing.T) {
	repo := &fakeRepository{
		createFn: func(context.Context, *models.Notification) error { return errors.New("db down") },
	}
	mailer := &recordingMailer{err: errors.New("smtp down")}

	n := NewNotifier(repo, fakeEmails{email: "x@example.com", ok: true}, mailer, nil)
	assert.NotPanics(t, func() {
		n.Notify(context.Background(), Message{RecipientID: uuid.New(), Type: enums.NotificationTypePayoutSent, Title: "Payout sent"})
	})
	assert.Len(t, mailer.sent, 1)
}

func TestNotifySkipsEmailWithoutAddress(t *testing.T) {
	mailer := &recordingMailer{}
	n := NewNotifier(&fakeRepository{}, fakeEmails{}, mailer, nil)
	n.Notify(context.Background(), Message{RecipientID: uuid.New(), Type: enums.NotificationTypeItemShipped, Title: "Shipped"})
	assert.Empty(t, mailer.sent)
}

func TestNotifyDropsInvalidMessage(t *testing.T) {
	created := false
	repo := &fakeRepository{createFn: func(context.Context, *models.Notification) error {
		created = true
		return nil
	}}
	NewNotifier(repo, nil, nil, nil).Notify(context.Background(), Message{Type: enums.NotificationTypeOrderPaid})
	assert.False(t, created)
}

func TestNotifyFallsBackToDefaultTitle(t *testing.T) {
	var stored *models.Notification
	repo := &fakeRepository{createFn: func(_ context.Context, row *models.Notification) error {
		stored = row
		return nil
	}}
	mailer := &recordingMailer{}
	NewNotifier(repo, fakeEmails{email: "s@example.com", ok: true}, mailer, nil).
		Notify(context.Background(), Message{RecipientID: uuid.New(), Type: enums.NotificationTypePayoutFailed, Body: "retrying"})

	require.NotNil(t, stored)
	assert.Equal(t, "Payout failed", stored.Title)
	assert.Equal(t, []string{"s@example.com|Payout failed"}, mailer.sent)
}
