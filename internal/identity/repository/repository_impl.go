package repository

import (
	"context"

	"github.com/smallbiznis/paramstore/internal/identity/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id string) (*domain.Editor, error) {
	var e domain.Editor
	err := db.WithContext(ctx).Raw(
		`SELECT id, email, display_name, created_at, updated_at FROM editors WHERE id = ?`,
		id,
	).Scan(&e).Error
	if err != nil {
		return nil, err
	}
	if e.ID == "" {
		return nil, nil
	}
	return &e, nil
}
