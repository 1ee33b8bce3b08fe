package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paramstore/internal/parameter/domain"
	"github.com/smallbiznis/paramstore/pkg/db"
	"gorm.io/gorm"
)

const selectColumns = `SELECT id, param_key, value, description, overrides, is_active,
		COALESCE(version, 0) AS version, created_at, updated_at, last_updated_by
	FROM parameters`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, p *domain.Parameter) error {
	return conn.WithContext(ctx).Exec(
		`INSERT INTO parameters (
			id, param_key, value, description, overrides, is_active, version, created_at, updated_at, last_updated_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.Key,
		p.Value,
		p.Description,
		p.Overrides,
		p.IsActive,
		p.Version,
		p.CreatedAt,
		p.UpdatedAt,
		p.LastUpdatedBy,
	).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Parameter, error) {
	return r.findOne(ctx, conn, selectColumns+` WHERE id = ?`, id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Parameter, error) {
	query := selectColumns + ` WHERE id = ?`
	if db.SupportsRowLocks(conn) {
		query += ` FOR UPDATE`
	}
	return r.findOne(ctx, conn, query, id)
}

func (r *repo) FindByKey(ctx context.Context, conn *gorm.DB, key string) (*domain.Parameter, error) {
	return r.findOne(ctx, conn, selectColumns+` WHERE param_key = ?`, key)
}

func (r *repo) findOne(ctx context.Context, conn *gorm.DB, query string, args ...any) (*domain.Parameter, error) {
	var p domain.Parameter
	if err := conn.WithContext(ctx).Raw(query, args...).Scan(&p).Error; err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, filter domain.ListFilter) ([]*domain.Parameter, error) {
	var (
		clauses []string
		args    []any
	)
	if prefix := strings.TrimSpace(filter.KeyPrefix); prefix != "" {
		clauses = append(clauses, `param_key LIKE ? ESCAPE '!'`)
		args = append(args, escapeLike(prefix)+"%")
	}
	if filter.IsActive != nil {
		clauses = append(clauses, `is_active = ?`)
		args = append(args, *filter.IsActive)
	}
	if filter.AfterID != nil {
		clauses = append(clauses, `id > ?`)
		args = append(args, *filter.AfterID)
	}

	query := selectColumns
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, ` AND `)
	}
	query += ` ORDER BY id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit+1)
	}

	var items []*domain.Parameter
	if err := conn.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListActive(ctx context.Context, conn *gorm.DB) ([]*domain.Parameter, error) {
	var items []*domain.Parameter
	err := conn.WithContext(ctx).Raw(
		selectColumns+` WHERE is_active = ? ORDER BY param_key ASC`,
		true,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateIfVersion(ctx context.Context, conn *gorm.DB, p *domain.Parameter, expectedVersion int64) (bool, error) {
	if p == nil {
		return false, gorm.ErrInvalidData
	}
	res := conn.WithContext(ctx).Exec(
		`UPDATE parameters
		 SET param_key = ?, value = ?, description = ?, overrides = ?, is_active = ?,
		     version = ?, updated_at = ?, last_updated_by = ?
		 WHERE id = ? AND COALESCE(version, 0) = ?`,
		p.Key,
		p.Value,
		p.Description,
		p.Overrides,
		p.IsActive,
		p.Version,
		p.UpdatedAt,
		p.LastUpdatedBy,
		p.ID,
		expectedVersion,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) Delete(ctx context.Context, conn *gorm.DB, id snowflake.ID) (bool, error) {
	res := conn.WithContext(ctx).Exec(`DELETE FROM parameters WHERE id = ?`, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}
