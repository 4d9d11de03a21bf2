package models

import (
	"time"

	"github.com/google/uuid"
)

// Contact is the reachable identity of a marketplace user: where to email them
// and, for sellers, which phone receives payouts.
type Contact struct {
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	DisplayName string    `gorm:"column:display_name;not null;default:''" json:"display_name"`
	Email       *string   `gorm:"column:email" json:"email,omitempty"`
	PayoutPhone *string   `gorm:"column:payout_phone" json:"payout_phone,omitempty"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
