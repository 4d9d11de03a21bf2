package notifications

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	"github.com/angelmondragon/payflow-backend/pkg/enums"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
)

// Message is a single notice addressed to one user.
type Message struct {
	RecipientID uuid.UUID
	Type        enums.NotificationType
	Title       string
	Body        string
	Link        string
	OrderID     *uuid.UUID
}

// Notifier delivers notices to users. Delivery failures never reach the caller.
type Notifier interface {
	Notify(ctx context.Context, msg Message)
}

// EmailLookup resolves a user's email address.
type EmailLookup interface {
	Email(ctx context.Context, userID uuid.UUID) (string, bool, error)
}

type notifier struct {
	repo   Repository
	emails EmailLookup
	mailer Mailer
	logg   *logger.Logger
}

// NewNotifier stores every notice in the inbox and emails it when a mailer
// and an address are available.
func NewNotifier(repo Repository, emails EmailLookup, mailer Mailer, logg *logger.Logger) Notifier {
	if logg == nil {
		logg = logger.Nop()
	}
	return &notifier{repo: repo, emails: emails, mailer: mailer, logg: logg}
}

func (n *notifier) Notify(ctx context.Context, msg Message) {
	if msg.RecipientID == uuid.Nil || !msg.Type.IsValid() {
		n.logg.Warn(ctx, "dropping notification with missing recipient or type")
		return
	}
	if msg.Title == "" {
		msg.Title = msg.Type.DefaultTitle()
	}
	ctx = n.logg.WithFields(ctx, map[string]any{
		"recipient_id":      msg.RecipientID.String(),
		"notification_type": msg.Type.String(),
	})

	if n.repo != nil {
		row := &models.Notification{
			RecipientID: msg.RecipientID,
			Type:        msg.Type,
			Title:       msg.Title,
			Message:     msg.Body,
			OrderID:     msg.OrderID,
		}
		if msg.Link != "" {
			link := msg.Link
			row.Link = &link
		}
		if err := n.repo.Create(ctx, row); err != nil {
			n.logg.Error(ctx, "failed to store notification", err)
		}
	}

	if n.mailer == nil || n.emails == nil {
		return
	}
	to, ok, err := n.emails.Email(ctx, msg.RecipientID)
	if err != nil {
		n.logg.Error(ctx, "failed to resolve notification email", err)
		return
	}
	if !ok {
		return
	}
	if err := n.mailer.Send(ctx, to, msg.Title, msg.Body); err != nil {
		n.logg.Error(ctx, "failed to email notification", err)
	}
}

// Nop discards every notice.
type Nop struct{}

func (Nop) Notify(context.Context, Message) {}
