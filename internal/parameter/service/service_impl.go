package service

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/paramstore/internal/audit/domain"
	"github.com/smallbiznis/paramstore/internal/cache"
	"github.com/smallbiznis/paramstore/internal/clock"
	"github.com/smallbiznis/paramstore/internal/config"
	"github.com/smallbiznis/paramstore/internal/events"
	identitydomain "github.com/smallbiznis/paramstore/internal/identity/domain"
	obscontext "github.com/smallbiznis/paramstore/internal/observability/context"
	"github.com/smallbiznis/paramstore/internal/observability/metrics"
	"github.com/smallbiznis/paramstore/internal/override"
	"github.com/smallbiznis/paramstore/internal/parameter/domain"
	"github.com/smallbiznis/paramstore/pkg/db"
	"github.com/smallbiznis/paramstore/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxKeyLength    = 128
	defaultPageSize = 50
	maxPageSize     = 250
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Policy   *config.PolicyHolder
	Repo     domain.Repository
	Audit    auditdomain.Service
	Cache    *cache.Layer
	Identity identitydomain.Resolver
	Events   events.Publisher
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	policy   *config.PolicyHolder
	repo     domain.Repository
	audit    auditdomain.Service
	cache    *cache.Layer
	identity identitydomain.Resolver
	events   events.Publisher
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	publisher := p.Events
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	layer := p.Cache
	if layer == nil {
		layer = cache.NewLayer(nil, p.Metrics)
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("parameter.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		policy:   p.Policy,
		repo:     p.Repo,
		audit:    p.Audit,
		cache:    layer,
		identity: p.Identity,
		events:   publisher,
		metrics:  p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	actor, ok := obscontext.ActorFromContext(ctx)
	if !ok {
		return nil, domain.ErrMissingActor
	}

	key, err := normalizeKey(req.Key)
	if err != nil {
		return nil, err
	}
	value, err := decodeValue("value", req.Value, true)
	if err != nil {
		return nil, err
	}
	overrides := override.Overrides{Country: map[string]any{}}
	if req.Overrides != nil {
		overrides, err = normalizeOverrides(req.Overrides)
		if err != nil {
			return nil, err
		}
	}
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	existing, err := s.repo.FindByKey(ctx, s.db, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrDuplicateKey
	}

	now := s.clock.Now()
	editor := actor.EditorID
	record := &domain.Parameter{
		ID:            s.genID.Generate(),
		Key:           key,
		Description:   normalizeDescription(req.Description),
		IsActive:      isActive,
		Version:       0,
		CreatedAt:     now,
		UpdatedAt:     now,
		LastUpdatedBy: &editor,
	}
	record.SetDefaultValue(value)
	record.SetOverrides(overrides)

	err = s.withTimeout(ctx, "create", func(txCtx context.Context) error {
		return s.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
			if err := s.repo.Insert(txCtx, tx, record); err != nil {
				if db.IsDuplicateKeyErr(err) {
					return domain.ErrDuplicateKey
				}
				return err
			}
			return s.audit.Record(txCtx, tx, auditdomain.RecordRequest{
				ParameterID:   record.ID,
				ParameterKey:  record.Key,
				Action:        auditdomain.ActionCreated,
				Version:       record.Version,
				ChangedFields: createdFields(record),
			})
		})
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, events.TypeParameterCreated, record, createdFields(record), false)
	s.metrics.RecordMutation(ctx, "create", false)

	resp := toResponse(record)
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	parameterID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindByID(ctx, s.db, parameterID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	resp := toResponse(item)
	return &resp, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (*domain.ListResponse, error) {
	afterID, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return nil, domain.Invalid("page_token", domain.ErrInvalidPageToken)
	}
	pageSize := req.Size(defaultPageSize, maxPageSize)

	items, err := s.repo.List(ctx, s.db, domain.ListFilter{
		KeyPrefix: req.KeyPrefix,
		IsActive:  req.IsActive,
		AfterID:   afterID,
		Limit:     pageSize,
	})
	if err != nil {
		return nil, err
	}
	items, pageInfo := pagination.Page(items, pageSize, func(item *domain.Parameter) snowflake.ID { return item.ID })

	resp := &domain.ListResponse{Parameters: make([]domain.Response, 0, len(items))}
	for _, item := range items {
		resp.Parameters = append(resp.Parameters, toResponse(item))
	}
	resp.PageInfo = pageInfo
	return resp, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Response, error) {
	parameterID, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	if err := validateGuard(req.VersionGuard); err != nil {
		return nil, err
	}

	payload := attempted{}
	if req.Key != nil {
		key, err := normalizeKey(*req.Key)
		if err != nil {
			return nil, err
		}
		payload.key = &key
	}
	if len(req.Value) > 0 {
		value, err := decodeValue("value", req.Value, true)
		if err != nil {
			return nil, err
		}
		payload.value = value
		payload.hasValue = true
	}
	if req.Description != nil {
		payload.description = normalizeDescription(req.Description)
		payload.hasDescription = true
	}
	payload.isActive = req.IsActive

	mode, err := override.ParseMode(req.OverridesMode)
	if err != nil {
		return nil, domain.Invalid("overridesMode", err)
	}
	if req.Overrides != nil {
		incoming, err := normalizeOverrides(req.Overrides)
		if err != nil {
			return nil, err
		}
		payload.overrides = incoming.Country
		payload.hasOverrides = true
		payload.replaceOverrides = mode == override.ModeReplace
	}
	if payload.empty() {
		return nil, domain.Invalid("request", domain.ErrEmptyUpdate)
	}

	if payload.key != nil {
		existing, err := s.repo.FindByKey(ctx, s.db, *payload.key)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != parameterID {
			return nil, domain.ErrDuplicateKey
		}
	}

	updated, err := s.mutate(ctx, parameterID, mutation{
		operation: "update",
		action:    auditdomain.ActionUpdated,
		event:     events.TypeParameterUpdated,
		guard:     req.VersionGuard,
		attempted: payload,
		apply: func(next *domain.Parameter) error {
			if payload.key != nil {
				next.Key = *payload.key
			}
			if payload.hasValue {
				next.SetDefaultValue(payload.value)
			}
			if payload.hasDescription {
				next.Description = payload.description
			}
			if payload.isActive != nil {
				next.IsActive = *payload.isActive
			}
			if payload.hasOverrides {
				next.SetOverrides(override.MergeOverrides(
					next.CountryOverrides(),
					override.Overrides{Country: payload.overrides},
					mode,
				))
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	resp := toResponse(updated)
	return &resp, nil
}

func (s *Service) SetCountryOverride(ctx context.Context, req domain.SetOverrideRequest) (*domain.Response, error) {
	parameterID, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	if err := validateGuard(req.VersionGuard); err != nil {
		return nil, err
	}
	code := strings.TrimSpace(req.Country)
	if err := override.ValidateCountryCode(code); err != nil {
		return nil, domain.Invalid("country", err)
	}
	value, err := decodeValue(overrideField(code), req.Value, true)
	if err != nil {
		return nil, err
	}

	updated, err := s.mutate(ctx, parameterID, mutation{
		operation: "set_override",
		action:    auditdomain.ActionOverrideSet,
		event:     events.TypeParameterOverrideSet,
		guard:     req.VersionGuard,
		attempted: attempted{
			overrides:    map[string]any{code: value},
			hasOverrides: true,
		},
		apply: func(next *domain.Parameter) error {
			merged, err := override.SetCountryOverride(next.CountryOverrides(), code, value)
			if err != nil {
				return domain.Invalid(overrideField(code), err)
			}
			next.SetOverrides(merged)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	resp := toResponse(updated)
	return &resp, nil
}

func (s *Service) DeleteCountryOverride(ctx context.Context, req domain.DeleteOverrideRequest) (*domain.Response, error) {
	parameterID, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	if err := validateGuard(req.VersionGuard); err != nil {
		return nil, err
	}
	code := strings.TrimSpace(req.Country)
	if err := override.ValidateCountryCode(code); err != nil {
		return nil, domain.Invalid("country", err)
	}

	updated, err := s.mutate(ctx, parameterID, mutation{
		operation: "delete_override",
		action:    auditdomain.ActionOverrideDeleted,
		event:     events.TypeParameterOverrideDeleted,
		guard:     req.VersionGuard,
		attempted: attempted{
			removedCodes: []string{code},
			hasOverrides: true,
		},
		apply: func(next *domain.Parameter) error {
			remaining, err := override.RemoveCountryOverride(next.CountryOverrides(), code)
			if err != nil {
				return domain.Invalid(overrideField(code), err)
			}
			next.SetOverrides(remaining)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	resp := toResponse(updated)
	return &resp, nil
}

// Delete removes the parameter without a version check.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, ok := obscontext.ActorFromContext(ctx); !ok {
		return domain.ErrMissingActor
	}
	parameterID, err := parseID(id)
	if err != nil {
		return err
	}

	var deleted *domain.Parameter
	err = s.withTimeout(ctx, "delete", func(txCtx context.Context) error {
		return s.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
			current, err := s.repo.FindByIDForUpdate(txCtx, tx, parameterID)
			if err != nil {
				return err
			}
			if current == nil {
				return domain.ErrNotFound
			}
			removed, err := s.repo.Delete(txCtx, tx, parameterID)
			if err != nil {
				return err
			}
			if !removed {
				return domain.ErrNotFound
			}
			if err := s.audit.Record(txCtx, tx, auditdomain.RecordRequest{
				ParameterID:  current.ID,
				ParameterKey: current.Key,
				Action:       auditdomain.ActionDeleted,
				Version:      current.Version,
			}); err != nil {
				return err
			}
			deleted = current
			return nil
		})
	})
	if err != nil {
		return err
	}

	s.afterCommit(ctx, events.TypeParameterDeleted, deleted, nil, false)
	s.metrics.RecordMutation(ctx, "delete", false)
	return nil
}

// GetClientConfig serves the resolved snapshot of every active parameter for
// locale, read through the cache.
func (s *Service) GetClientConfig(ctx context.Context, locale string) (domain.ClientConfig, error) {
	code, err := override.NormalizeLocale(locale)
	if err != nil {
		return nil, domain.Invalid("locale", err)
	}

	ttl := s.policy.Get().Cache.ClientConfigTTL
	return cache.GetOrCompute(ctx, s.cache, cache.ClientConfigKey(code), ttl, func(ctx context.Context) (domain.ClientConfig, error) {
		items, err := s.repo.ListActive(ctx, s.db)
		if err != nil {
			return nil, err
		}
		snapshot := make(domain.ClientConfig, len(items))
		for _, item := range items {
			snapshot[item.Key] = item.Resolve(code)
		}
		return snapshot, nil
	})
}

// afterCommit runs the best-effort side effects of a committed mutation.
func (s *Service) afterCommit(ctx context.Context, eventType events.Type, p *domain.Parameter, changed []string, forced bool) {
	s.cache.InvalidateClientConfig(ctx)

	actorID := ""
	if p.LastUpdatedBy != nil {
		actorID = *p.LastUpdatedBy
	}
	if actor, ok := obscontext.ActorFromContext(ctx); ok {
		actorID = actor.EditorID
	}
	if changed == nil {
		changed = []string{}
	}

	evt := events.ChangeEvent{
		Type:          eventType,
		ParameterID:   p.ID.String(),
		Key:           p.Key,
		Version:       p.Version,
		ActorID:       actorID,
		ChangedFields: changed,
		Forced:        forced,
		OccurredAt:    s.clock.Now(),
	}
	if err := s.events.Publish(ctx, evt); err != nil {
		s.metrics.RecordEventPublish(ctx, string(eventType), false)
		s.log.Warn("failed to publish change event",
			zap.String("event_type", string(eventType)),
			zap.String("parameter_id", evt.ParameterID),
			zap.Error(err),
		)
		return
	}
	s.metrics.RecordEventPublish(ctx, string(eventType), true)
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.Invalid("id", domain.ErrInvalidID)
	}
	return id, nil
}

func validateGuard(guard domain.VersionGuard) error {
	if guard.LastKnownVersion != nil && *guard.LastKnownVersion < 0 {
		return domain.Invalid("lastKnownVersion", domain.ErrInvalidVersion)
	}
	return nil
}

func normalizeKey(raw string) (string, error) {
	key := strings.TrimSpace(raw)
	if key == "" || len(key) > maxKeyLength || !keyPattern.MatchString(key) {
		return "", domain.Invalid("key", domain.ErrInvalidKey)
	}
	return key, nil
}

func normalizeDescription(raw *string) *string {
	if raw == nil {
		return nil
	}
	description := strings.TrimSpace(*raw)
	if description == "" {
		return nil
	}
	return &description
}

// decodeValue parses a raw JSON value. A missing value is an error only when required.
func decodeValue(field string, raw json.RawMessage, required bool) (any, error) {
	if len(raw) == 0 {
		if required {
			return nil, domain.Invalid(field, override.ErrInvalidValue)
		}
		return nil, nil
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, domain.Invalid(field, override.ErrInvalidValue)
	}
	value, err := override.NormalizeValue(decoded)
	if err != nil {
		return nil, domain.Invalid(field, err)
	}
	return value, nil
}

func normalizeOverrides(payload *domain.OverridesPayload) (override.Overrides, error) {
	out := override.Overrides{Country: make(map[string]any, len(payload.Country))}
	for rawCode, rawValue := range payload.Country {
		code := strings.TrimSpace(rawCode)
		if err := override.ValidateCountryCode(code); err != nil {
			return override.Overrides{}, domain.Invalid(overrideField(rawCode), err)
		}
		value, err := override.NormalizeValue(rawValue)
		if err != nil {
			return override.Overrides{}, domain.Invalid(overrideField(code), err)
		}
		out.Country[code] = value
	}
	return out, nil
}

func overrideField(code string) string {
	return "overrides.country." + code
}

func createdFields(p *domain.Parameter) []string {
	fields := []string{"key", "value", "isActive"}
	if p.Description != nil {
		fields = append(fields, "description")
	}
	for _, code := range p.CountryOverrides().Codes() {
		fields = append(fields, overrideField(code))
	}
	return fields
}

func toResponse(p *domain.Parameter) domain.Response {
	return domain.Response{
		ID:            p.ID.String(),
		Key:           p.Key,
		Value:         p.DefaultValue(),
		Description:   p.Description,
		Overrides:     p.CountryOverrides(),
		IsActive:      p.IsActive,
		Version:       p.Version,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
		LastUpdatedBy: p.LastUpdatedBy,
	}
}
