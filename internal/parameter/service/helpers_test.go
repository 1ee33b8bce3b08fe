package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditrepository "github.com/smallbiznis/paramstore/internal/audit/repository"
	auditservice "github.com/smallbiznis/paramstore/internal/audit/service"
	"github.com/smallbiznis/paramstore/internal/cache"
	"github.com/smallbiznis/paramstore/internal/clock"
	"github.com/smallbiznis/paramstore/internal/config"
	"github.com/smallbiznis/paramstore/internal/events"
	identityrepository "github.com/smallbiznis/paramstore/internal/identity/repository"
	identityservice "github.com/smallbiznis/paramstore/internal/identity/service"
	"github.com/smallbiznis/paramstore/internal/migration"
	obscontext "github.com/smallbiznis/paramstore/internal/observability/context"
	"github.com/smallbiznis/paramstore/internal/parameter/domain"
	"github.com/smallbiznis/paramstore/internal/parameter/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.ChangeEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) Events() []events.ChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.ChangeEvent(nil), p.events...)
}

type fixture struct {
	svc       *Service
	db        *gorm.DB
	clock     *clock.FakeClock
	store     cache.Store
	publisher *recordingPublisher
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	store  cache.Store
	policy config.Policy
}

func withStore(store cache.Store) fixtureOption {
	return func(c *fixtureConfig) { c.store = store }
}

func withPolicy(p config.Policy) fixtureOption {
	return func(c *fixtureConfig) { c.policy = p }
}

func setupService(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	cfg := fixtureConfig{store: cache.NewMemoryStore(), policy: config.DefaultPolicy()}
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, migration.AutoMigrate(db))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zaptest.NewLogger(t)
	fakeClock := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	policy := config.NewStaticPolicyHolder(cfg.policy)
	layer := cache.NewLayer(cfg.store, nil)
	publisher := &recordingPublisher{}

	audit := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: fakeClock,
		Repo:  auditrepository.Provide(),
	})
	resolver := identityservice.NewResolver(identityservice.Params{
		DB:     db,
		Log:    log,
		Repo:   identityrepository.Provide(),
		Cache:  layer,
		Policy: policy,
	})

	svc := New(Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    fakeClock,
		Policy:   policy,
		Repo:     repository.Provide(),
		Audit:    audit,
		Cache:    layer,
		Identity: resolver,
		Events:   publisher,
	}).(*Service)

	return &fixture{svc: svc, db: db, clock: fakeClock, store: cfg.store, publisher: publisher}
}

func editorCtx(editorID string) context.Context {
	return obscontext.WithActor(context.Background(), obscontext.Actor{EditorID: editorID, Role: "editor"})
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func version(v int64) *int64 { return &v }

func (f *fixture) create(t *testing.T, ctx context.Context, key string, value any) *domain.Response {
	t.Helper()
	resp, err := f.svc.Create(ctx, domain.CreateRequest{Key: key, Value: raw(t, value)})
	require.NoError(t, err)
	return resp
}

func mustParseID(t *testing.T, raw string) snowflake.ID {
	t.Helper()
	id, err := snowflake.ParseString(raw)
	require.NoError(t, err)
	return id
}
