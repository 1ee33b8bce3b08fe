package repository

import (
	"context"

	"github.com/smallbiznis/paramstore/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.Entry) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO parameter_audit_logs (
			id, parameter_id, parameter_key, action, actor_id, version, changed_fields, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.ParameterID,
		entry.ParameterKey,
		entry.Action,
		entry.ActorID,
		entry.Version,
		entry.ChangedFields,
		entry.Metadata,
		entry.CreatedAt,
	).Error
}

// List returns newest entries first. Snowflake ids are time-ordered, so the id
// alone is a stable cursor.
func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Entry, error) {
	var entries []*domain.Entry
	stmt := db.WithContext(ctx).Model(&domain.Entry{}).
		Where("parameter_id = ?", filter.ParameterID)

	if filter.BeforeID != nil {
		stmt = stmt.Where("id < ?", *filter.BeforeID)
	}

	stmt = stmt.Order("id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
