package service

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/paramstore/internal/cache"
	"github.com/smallbiznis/paramstore/internal/config"
	"github.com/smallbiznis/paramstore/internal/identity/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errUnknownEditor = errors.New("unknown_editor")

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Repo   domain.Repository
	Cache  *cache.Layer
	Policy *config.PolicyHolder
}

type Resolver struct {
	db     *gorm.DB
	log    *zap.Logger
	repo   domain.Repository
	cache  *cache.Layer
	policy *config.PolicyHolder
}

func NewResolver(p Params) domain.Resolver {
	return &Resolver{
		db:     p.DB,
		log:    p.Log.Named("identity.resolver"),
		repo:   p.Repo,
		cache:  p.Cache,
		policy: p.Policy,
	}
}

func (r *Resolver) Resolve(ctx context.Context, editorID string) string {
	editorID = strings.TrimSpace(editorID)
	if editorID == "" {
		return ""
	}

	ttl := r.policy.Get().Cache.IdentityTTL
	identity, err := cache.GetOrCompute(ctx, r.cache, cache.IdentityKey(editorID), ttl, func(ctx context.Context) (string, error) {
		editor, err := r.repo.FindByID(ctx, r.db, editorID)
		if err != nil {
			return "", err
		}
		if editor == nil || strings.TrimSpace(editor.Email) == "" {
			return "", errUnknownEditor
		}
		return editor.Email, nil
	})
	if err != nil {
		if !errors.Is(err, errUnknownEditor) {
			r.log.Warn("identity lookup failed", zap.String("editor_id", editorID), zap.Error(err))
		}
		return editorID
	}
	return identity
}
