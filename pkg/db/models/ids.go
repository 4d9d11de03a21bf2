package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// BeforeCreate assigns an id when the caller did not.
func (o *Order) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}

// BeforeCreate assigns an id when the caller did not.
func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}

// BeforeCreate assigns an id when the caller did not.
func (c *Collection) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}

// BeforeCreate assigns an id when the caller did not.
func (d *Disbursement) BeforeCreate(*gorm.DB) error {
	assignID(&d.ID)
	return nil
}
