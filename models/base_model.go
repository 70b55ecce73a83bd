package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base gives every table a UUID key assigned in Go so the schema does not depend on
// database-side generators.
type Base struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
