package authorization

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	obscontext "github.com/smallbiznis/paramstore/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	enforcer, err := NewMemoryEnforcer()
	require.NoError(t, err)
	return NewService(Params{Log: zaptest.NewLogger(t), Enforcer: enforcer})
}

func TestAuthorizeRoleMatrix(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		role    string
		object  string
		action  string
		allowed bool
	}{
		{RoleViewer, ObjectParameter, ActionParameterView, true},
		{RoleViewer, ObjectParameter, ActionParameterUpdate, false},
		{RoleViewer, ObjectHistory, ActionHistoryView, false},
		{RoleEditor, ObjectParameter, ActionParameterView, true},
		{RoleEditor, ObjectParameter, ActionParameterCreate, true},
		{RoleEditor, ObjectParameter, ActionParameterOverride, true},
		{RoleEditor, ObjectParameter, ActionParameterDelete, false},
		{RoleEditor, ObjectHistory, ActionHistoryView, false},
		{RoleAdmin, ObjectParameter, ActionParameterUpdate, true},
		{RoleAdmin, ObjectParameter, ActionParameterDelete, true},
		{RoleAdmin, ObjectHistory, ActionHistoryView, true},
	}
	for _, tc := range cases {
		t.Run(tc.role+"/"+tc.action, func(t *testing.T) {
			err := svc.Authorize(ctx, obscontext.Actor{EditorID: "ed-" + tc.role, Role: tc.role}, tc.object, tc.action)
			if tc.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrForbidden)
			}
		})
	}
}

func TestAuthorizeRebindsChangedRole(t *testing.T) {
	enforcer, err := NewMemoryEnforcer()
	require.NoError(t, err)
	svc := NewService(Params{Log: zaptest.NewLogger(t), Enforcer: enforcer})
	ctx := context.Background()

	err = svc.Authorize(ctx, obscontext.Actor{EditorID: "ed-1", Role: RoleAdmin}, ObjectParameter, ActionParameterDelete)
	require.NoError(t, err)

	err = svc.Authorize(ctx, obscontext.Actor{EditorID: "ed-1", Role: RoleViewer}, ObjectParameter, ActionParameterDelete)
	assert.ErrorIs(t, err, ErrForbidden)

	roles, err := enforcer.GetRolesForUser("editor:ed-1")
	require.NoError(t, err)
	assert.Equal(t, []string{roleName(RoleViewer)}, roles)
}

func TestAuthorizeFailsWhenStaleRoleCannotBeRemoved(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	enforcer, err := NewEnforcer(conn)
	require.NoError(t, err)
	svc := NewService(Params{Log: zaptest.NewLogger(t), Enforcer: enforcer})
	ctx := context.Background()

	require.NoError(t, svc.Authorize(ctx, obscontext.Actor{EditorID: "ed-1", Role: RoleAdmin}, ObjectParameter, ActionParameterDelete))

	require.NoError(t, sqlDB.Close())
	err = svc.Authorize(ctx, obscontext.Actor{EditorID: "ed-1", Role: RoleViewer}, ObjectParameter, ActionParameterView)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrForbidden)
	assert.Contains(t, err.Error(), "remove stale role")
}

func TestAuthorizeRejectsInvalidInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Authorize(ctx, obscontext.Actor{Role: RoleAdmin}, ObjectParameter, ActionParameterView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, obscontext.Actor{EditorID: "ed", Role: "root"}, ObjectParameter, ActionParameterView), ErrInvalidRole)
	assert.ErrorIs(t, svc.Authorize(ctx, obscontext.Actor{EditorID: "ed", Role: RoleAdmin}, "", ActionParameterView), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, obscontext.Actor{EditorID: "ed", Role: RoleAdmin}, ObjectParameter, ""), ErrInvalidAction)
}
