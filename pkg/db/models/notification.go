package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/payflow-backend/pkg/enums"
)

// Notification stores in-app notices addressed to a buyer or seller.
type Notification struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	RecipientID uuid.UUID              `gorm:"column:recipient_id;type:uuid;not null;index" json:"recipient_id"`
	Type        enums.NotificationType `gorm:"column:type;type:varchar(32);not null" json:"type"`
	Title       string                 `gorm:"column:title;type:text;not null" json:"title"`
	Message     string                 `gorm:"column:message;type:text;not null" json:"message"`
	Link        *string                `gorm:"column:link;type:text" json:"link,omitempty"`
	OrderID     *uuid.UUID             `gorm:"column:order_id;type:uuid" json:"order_id,omitempty"`
	ReadAt      *time.Time             `gorm:"column:read_at" json:"read_at,omitempty"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// BeforeCreate assigns an id when the caller did not.
func (n *Notification) BeforeCreate(*gorm.DB) error {
	assignID(&n.ID)
	return nil
}
