package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/paramstore/internal/migration"
	"github.com/smallbiznis/paramstore/internal/override"
	"github.com/smallbiznis/paramstore/internal/parameter/domain"
	"github.com/smallbiznis/paramstore/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         logger.Discard,
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, migration.AutoMigrate(conn))
	return conn
}

func newParameter(id int64, key string, value any, active bool) *domain.Parameter {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := &domain.Parameter{
		ID:        snowflake.ID(id),
		Key:       key,
		IsActive:  active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	p.SetDefaultValue(value)
	p.SetOverrides(override.Overrides{Country: map[string]any{}})
	return p
}

func TestInsertAndFind(t *testing.T) {
	conn := setupDB(t)
	r := Provide()
	ctx := context.Background()

	p := newParameter(10, "flag", false, true)
	p.SetOverrides(override.Overrides{Country: map[string]any{"US": true}})
	require.NoError(t, r.Insert(ctx, conn, p))

	got, err := r.FindByID(ctx, conn, 10)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "flag", got.Key)
	assert.Equal(t, false, got.DefaultValue())
	assert.Equal(t, true, got.Resolve("US"))
	assert.Equal(t, int64(0), got.Version)

	byKey, err := r.FindByKey(ctx, conn, "flag")
	require.NoError(t, err)
	require.NotNil(t, byKey)
	assert.Equal(t, p.ID, byKey.ID)

	missing, err := r.FindByID(ctx, conn, 99)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestInsertDuplicateKey(t *testing.T) {
	conn := setupDB(t)
	r := Provide()
	ctx := context.Background()

	require.NoError(t, r.Insert(ctx, conn, newParameter(1, "flag", 1, true)))
	err := r.Insert(ctx, conn, newParameter(2, "flag", 2, true))
	require.Error(t, err)
	assert.True(t, db.IsDuplicateKeyErr(err))
}

func TestUpdateIfVersion(t *testing.T) {
	conn := setupDB(t)
	r := Provide()
	ctx := context.Background()
	require.NoError(t, r.Insert(ctx, conn, newParameter(1, "flag", 1, true)))

	next := newParameter(1, "flag", 2, true)
	next.Version = 1
	written, err := r.UpdateIfVersion(ctx, conn, next, 0)
	require.NoError(t, err)
	assert.True(t, written)

	stale := newParameter(1, "flag", 3, true)
	stale.Version = 1
	written, err = r.UpdateIfVersion(ctx, conn, stale, 0)
	require.NoError(t, err)
	assert.False(t, written)

	got, err := r.FindByID(ctx, conn, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, float64(2), got.DefaultValue())
}

func TestUpdateIfVersionTreatsNullAsZero(t *testing.T) {
	conn := setupDB(t)
	r := Provide()
	ctx := context.Background()
	require.NoError(t, r.Insert(ctx, conn, newParameter(1, "legacy", "a", true)))
	require.NoError(t, conn.Exec(`UPDATE parameters SET version = NULL`).Error)

	got, err := r.FindByID(ctx, conn, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Version)

	next := newParameter(1, "legacy", "b", true)
	next.Version = 1
	written, err := r.UpdateIfVersion(ctx, conn, next, 0)
	require.NoError(t, err)
	assert.True(t, written)
}

func TestListFilters(t *testing.T) {
	conn := setupDB(t)
	r := Provide()
	ctx := context.Background()
	for i, key := range []string{"app.a", "app_b", "appXb", "app%c", "other"} {
		require.NoError(t, r.Insert(ctx, conn, newParameter(int64(i+1), key, i, i != 4)))
	}

	keys := func(items []*domain.Parameter) []string {
		out := make([]string, 0, len(items))
		for _, item := range items {
			out = append(out, item.Key)
		}
		return out
	}

	items, err := r.List(ctx, conn, domain.ListFilter{KeyPrefix: "app_"})
	require.NoError(t, err)
	assert.Equal(t, []string{"app_b"}, keys(items))

	items, err = r.List(ctx, conn, domain.ListFilter{KeyPrefix: "app%"})
	require.NoError(t, err)
	assert.Equal(t, []string{"app%c"}, keys(items))

	inactive := false
	items, err = r.List(ctx, conn, domain.ListFilter{IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, []string{"other"}, keys(items))

	after := snowflake.ID(2)
	items, err = r.List(ctx, conn, domain.ListFilter{AfterID: &after, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"appXb", "app%c", "other"}, keys(items))

	active, err := r.ListActive(ctx, conn)
	require.NoError(t, err)
	assert.Len(t, active, 4)
}

func TestDelete(t *testing.T) {
	conn := setupDB(t)
	r := Provide()
	ctx := context.Background()
	require.NoError(t, r.Insert(ctx, conn, newParameter(1, "flag", true, true)))

	removed, err := r.Delete(ctx, conn, 1)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = r.Delete(ctx, conn, 1)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestNumericValueRoundTrip(t *testing.T) {
	conn := setupDB(t)
	r := Provide()
	ctx := context.Background()

	p := newParameter(1, "limit", 42, true)
	p.SetOverrides(override.Overrides{Country: map[string]any{"US": 7.5}})
	require.NoError(t, r.Insert(ctx, conn, p))

	got, err := r.FindByID(ctx, conn, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, float64(42), got.DefaultValue())
	assert.Equal(t, 7.5, got.Resolve("US"))

	locked, err := r.FindByIDForUpdate(ctx, conn, 1)
	require.NoError(t, err)
	require.NotNil(t, locked)
	assert.Equal(t, float64(42), locked.DefaultValue())
}

func TestNumericValueReadsFromJSONAffinityColumn(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	// Tables created before the TEXT column type keep NUMERIC affinity.
	require.NoError(t, conn.Exec(`CREATE TABLE parameters (
		id INTEGER PRIMARY KEY,
		param_key TEXT NOT NULL UNIQUE,
		value JSON NOT NULL,
		description TEXT,
		overrides JSON NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		version INTEGER DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		last_updated_by TEXT
	)`).Error)

	r := Provide()
	ctx := context.Background()
	require.NoError(t, r.Insert(ctx, conn, newParameter(1, "limit", 3, true)))

	var stored string
	require.NoError(t, conn.Raw(`SELECT typeof(value) FROM parameters WHERE id = 1`).Scan(&stored).Error)
	require.Equal(t, "integer", stored)

	got, err := r.FindByID(ctx, conn, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, float64(3), got.DefaultValue())
}
