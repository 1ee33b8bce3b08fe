package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/smallbiznis/paramstore/internal/audit/domain"
	"github.com/smallbiznis/paramstore/internal/audit/repository"
	"github.com/smallbiznis/paramstore/internal/clock"
	"github.com/smallbiznis/paramstore/internal/migration"
	obscontext "github.com/smallbiznis/paramstore/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupAudit(t *testing.T) (auditdomain.Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, migration.AutoMigrate(db))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(Params{
		DB:    db,
		Log:   zaptest.NewLogger(t),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	})
	return svc, db
}

func actorCtx() context.Context {
	ctx := obscontext.WithActor(context.Background(), obscontext.Actor{EditorID: "ed-1", Role: "admin"})
	return obscontext.WithRequestID(ctx, "req-1")
}

func TestRecordRequiresActorAndAction(t *testing.T) {
	svc, db := setupAudit(t)

	err := svc.Record(context.Background(), db, auditdomain.RecordRequest{
		ParameterID: 1,
		Action:      auditdomain.ActionCreated,
	})
	assert.ErrorIs(t, err, auditdomain.ErrMissingActor)

	err = svc.Record(actorCtx(), db, auditdomain.RecordRequest{ParameterID: 1, Action: " "})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)
}

func TestRecordRollsBackWithTransaction(t *testing.T) {
	svc, db := setupAudit(t)
	ctx := actorCtx()

	err := db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, svc.Record(ctx, tx, auditdomain.RecordRequest{
			ParameterID:  1,
			ParameterKey: "flag",
			Action:       auditdomain.ActionCreated,
		}))
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	resp, err := svc.ListHistory(ctx, auditdomain.ListHistoryRequest{ParameterID: "1"})
	require.NoError(t, err)
	assert.Empty(t, resp.Entries)
}

func TestListHistoryNewestFirstWithPaging(t *testing.T) {
	svc, db := setupAudit(t)
	ctx := actorCtx()

	for v := int64(0); v < 5; v++ {
		require.NoError(t, svc.Record(ctx, db, auditdomain.RecordRequest{
			ParameterID:   1,
			ParameterKey:  "flag",
			Action:        auditdomain.ActionUpdated,
			Version:       v,
			ChangedFields: []string{"value"},
			Metadata:      map[string]any{"previous_version": v - 1},
		}))
	}
	require.NoError(t, svc.Record(ctx, db, auditdomain.RecordRequest{
		ParameterID: 2, ParameterKey: "other", Action: auditdomain.ActionCreated,
	}))

	req := auditdomain.ListHistoryRequest{ParameterID: "1"}
	req.PageSize = 3
	first, err := svc.ListHistory(ctx, req)
	require.NoError(t, err)
	require.Len(t, first.Entries, 3)
	assert.True(t, first.HasMore)
	assert.Equal(t, int64(4), first.Entries[0].Version)
	assert.Equal(t, int64(2), first.Entries[2].Version)
	assert.Equal(t, "ed-1", first.Entries[0].ActorID)
	assert.Equal(t, []string{"value"}, first.Entries[0].ChangedFields)
	assert.Equal(t, "req-1", first.Entries[0].Metadata["request_id"])

	req.PageToken = first.NextPageToken
	second, err := svc.ListHistory(ctx, req)
	require.NoError(t, err)
	require.Len(t, second.Entries, 2)
	assert.False(t, second.HasMore)
	assert.Empty(t, second.NextPageToken)
	assert.Equal(t, int64(1), second.Entries[0].Version)
	assert.Equal(t, int64(0), second.Entries[1].Version)
}

func TestListHistoryRejectsBadInput(t *testing.T) {
	svc, _ := setupAudit(t)
	ctx := actorCtx()

	_, err := svc.ListHistory(ctx, auditdomain.ListHistoryRequest{ParameterID: "abc"})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidParameterID)

	req := auditdomain.ListHistoryRequest{ParameterID: "1"}
	req.PageToken = "%%%"
	_, err = svc.ListHistory(ctx, req)
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)
}
