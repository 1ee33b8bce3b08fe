package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	KeyPrefix string
	IsActive  *bool
	AfterID   *snowflake.ID
	Limit     int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, p *Parameter) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Parameter, error)
	// FindByIDForUpdate takes a row lock on dialects that support one.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Parameter, error)
	FindByKey(ctx context.Context, db *gorm.DB, key string) (*Parameter, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Parameter, error)
	ListActive(ctx context.Context, db *gorm.DB) ([]*Parameter, error)
	// UpdateIfVersion writes p only while the stored version still equals
	// expectedVersion and reports whether the row was written.
	UpdateIfVersion(ctx context.Context, db *gorm.DB, p *Parameter, expectedVersion int64) (bool, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
}
