package contacts

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/payflow-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
	"github.com/angelmondragon/payflow-backend/pkg/mpesa"
)

// ErrNoPayoutPhone is returned when a seller has not registered a payout phone.
var ErrNoPayoutPhone = pkgerrors.New(pkgerrors.CodeNotFound, "seller has no payout phone on file")

// Directory resolves where to reach marketplace users.
type Directory interface {
	PayoutPhone(ctx context.Context, sellerID uuid.UUID) (string, error)
	Email(ctx context.Context, userID uuid.UUID) (string, bool, error)
	Upsert(ctx context.Context, in UpsertInput) (*models.Contact, error)
}

// UpsertInput carries the fields a user may set on their own contact record.
type UpsertInput struct {
	UserID      uuid.UUID
	DisplayName *string
	Email       *string
	PayoutPhone *string
}

type directory struct {
	db *gorm.DB
}

// NewDirectory returns a contact directory backed by the contacts table.
func NewDirectory(db *gorm.DB) Directory {
	return &directory{db: db}
}

func (d *directory) find(ctx context.Context, userID uuid.UUID) (*models.Contact, error) {
	var contact models.Contact
	err := d.db.WithContext(ctx).Where("user_id = ?", userID).First(&contact).Error
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

// PayoutPhone returns the seller's payout phone in gateway form.
func (d *directory) PayoutPhone(ctx context.Context, sellerID uuid.UUID) (string, error) {
	contact, err := d.find(ctx, sellerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNoPayoutPhone
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller contact")
	}
	if contact.PayoutPhone == nil || strings.TrimSpace(*contact.PayoutPhone) == "" {
		return "", ErrNoPayoutPhone
	}
	return mpesa.NormalizePhone(*contact.PayoutPhone)
}

// Email returns the user's email when one is on file.
func (d *directory) Email(ctx context.Context, userID uuid.UUID) (string, bool, error) {
	contact, err := d.find(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	if contact.Email == nil || strings.TrimSpace(*contact.Email) == "" {
		return "", false, nil
	}
	return strings.TrimSpace(*contact.Email), true, nil
}

// Upsert creates or updates the caller's contact record. Payout phones are
// stored in gateway form.
func (d *directory) Upsert(ctx context.Context, in UpsertInput) (*models.Contact, error) {
	if in.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	contact := models.Contact{UserID: in.UserID}
	columns := []string{"updated_at"}
	if in.DisplayName != nil {
		contact.DisplayName = strings.TrimSpace(*in.DisplayName)
		columns = append(columns, "display_name")
	}
	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		contact.Email = &email
		columns = append(columns, "email")
	}
	if in.PayoutPhone != nil {
		phone, err := mpesa.NormalizePhone(*in.PayoutPhone)
		if err != nil {
			return nil, err
		}
		contact.PayoutPhone = &phone
		columns = append(columns, "payout_phone")
	}

	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(&contact).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save contact")
	}
	return d.find(ctx, in.UserID)
}
