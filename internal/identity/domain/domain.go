package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Editor maps an opaque editor id to a human readable identity.
type Editor struct {
	ID          string    `gorm:"primaryKey;type:varchar(128)"`
	Email       string    `gorm:"type:varchar(320);not null"`
	DisplayName *string   `gorm:"column:display_name;type:varchar(255)"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (Editor) TableName() string { return "editors" }

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id string) (*Editor, error)
}

// Resolver never fails: when the identity cannot be resolved it returns the
// editor id it was given.
type Resolver interface {
	Resolve(ctx context.Context, editorID string) string
}
