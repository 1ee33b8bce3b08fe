package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	obscontext "github.com/smallbiznis/paramstore/internal/observability/context"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectParameter = "parameter"
	ObjectHistory   = "history"
)

const (
	ActionParameterView     = "parameter.view"
	ActionParameterCreate   = "parameter.create"
	ActionParameterUpdate   = "parameter.update"
	ActionParameterOverride = "parameter.override"
	ActionParameterDelete   = "parameter.delete"

	ActionHistoryView = "history.view"
)

const (
	RoleViewer = "viewer"
	RoleEditor = "editor"
	RoleAdmin  = "admin"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer persists policies through the gorm adapter and seeds the
// built-in role grants.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

// NewMemoryEnforcer keeps policies in memory only.
func NewMemoryEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor obscontext.Actor, object string, action string) error {
	editorID := strings.TrimSpace(actor.EditorID)
	if editorID == "" {
		return ErrInvalidActor
	}
	role := strings.ToLower(strings.TrimSpace(actor.Role))
	if !knownRole(role) {
		return ErrInvalidRole
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject := fmt.Sprintf("editor:%s", editorID)
	if err := s.ensureGrouping(subject, roleName(role)); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Info("authorization denied",
			zap.String("editor_id", editorID),
			zap.String("role", role),
			zap.String("object", object),
			zap.String("action", action),
			zap.String("request_id", obscontext.RequestIDFromContext(ctx)),
		)
		return ErrForbidden
	}
	return nil
}

// ensureGrouping binds subject to exactly one role, dropping a stale binding
// left by an earlier token with a different role.
func (s *ServiceImpl) ensureGrouping(subject string, role string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 {
			continue
		}
		if rule[1] != role {
			params := make([]interface{}, 0, len(rule))
			for _, value := range rule {
				params = append(params, value)
			}
			if _, err := s.enforcer.RemoveGroupingPolicy(params...); err != nil {
				return fmt.Errorf("remove stale role %q for %s: %w", rule[1], subject, err)
			}
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, role)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, role)
	return err
}

func knownRole(role string) bool {
	switch role {
	case RoleViewer, RoleEditor, RoleAdmin:
		return true
	default:
		return false
	}
}

func roleName(role string) string {
	return "role:" + role
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		{roleName(RoleViewer), ObjectParameter, ActionParameterView},

		{roleName(RoleEditor), ObjectParameter, ActionParameterCreate},
		{roleName(RoleEditor), ObjectParameter, ActionParameterUpdate},
		{roleName(RoleEditor), ObjectParameter, ActionParameterOverride},

		{roleName(RoleAdmin), ObjectParameter, ActionParameterDelete},
		{roleName(RoleAdmin), ObjectHistory, ActionHistoryView},
	}
	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}

	// Roles inherit the grants of the role below them.
	inheritance := [][]string{
		{roleName(RoleEditor), roleName(RoleViewer)},
		{roleName(RoleAdmin), roleName(RoleEditor)},
	}
	for _, rule := range inheritance {
		has, err := enforcer.HasGroupingPolicy(rule)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddGroupingPolicy(rule); err != nil {
			return err
		}
	}
	return nil
}
