package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/paramstore/internal/audit/domain"
	"github.com/smallbiznis/paramstore/internal/clock"
	obscontext "github.com/smallbiznis/paramstore/internal/observability/context"
	"github.com/smallbiznis/paramstore/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 50
	maxPageSize     = 250
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, tx *gorm.DB, req auditdomain.RecordRequest) error {
	action := auditdomain.Action(strings.TrimSpace(string(req.Action)))
	if action == "" {
		return auditdomain.ErrInvalidAction
	}
	actor, ok := obscontext.ActorFromContext(ctx)
	if !ok {
		return auditdomain.ErrMissingActor
	}

	payload := map[string]any{}
	for key, value := range req.Metadata {
		if key == "" {
			continue
		}
		payload[key] = value
	}
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		payload["request_id"] = requestID
	}

	changed := req.ChangedFields
	if changed == nil {
		changed = []string{}
	}

	entry := auditdomain.Entry{
		ID:            s.genID.Generate(),
		ParameterID:   req.ParameterID,
		ParameterKey:  req.ParameterKey,
		Action:        action,
		ActorID:       actor.EditorID,
		Version:       req.Version,
		ChangedFields: datatypes.JSONSlice[string](changed),
		Metadata:      datatypes.JSONMap(payload),
		CreatedAt:     s.clock.Now(),
	}

	if err := s.repo.Insert(ctx, tx, &entry); err != nil {
		s.log.Warn("failed to write audit entry",
			zap.String("action", string(action)),
			zap.String("parameter_id", req.ParameterID.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) ListHistory(ctx context.Context, req auditdomain.ListHistoryRequest) (auditdomain.ListHistoryResponse, error) {
	parameterID, err := snowflake.ParseString(strings.TrimSpace(req.ParameterID))
	if err != nil || parameterID == 0 {
		return auditdomain.ListHistoryResponse{}, auditdomain.ErrInvalidParameterID
	}

	beforeID, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return auditdomain.ListHistoryResponse{}, auditdomain.ErrInvalidPageToken
	}
	pageSize := req.Size(defaultPageSize, maxPageSize)

	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		ParameterID: parameterID,
		BeforeID:    beforeID,
		Limit:       pageSize,
	})
	if err != nil {
		return auditdomain.ListHistoryResponse{}, err
	}
	items, pageInfo := pagination.Page(items, pageSize, func(item *auditdomain.Entry) snowflake.ID { return item.ID })

	entries := make([]auditdomain.HistoryEntry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		entries = append(entries, toHistoryEntry(item))
	}

	resp := auditdomain.ListHistoryResponse{Entries: entries}
	resp.PageInfo = pageInfo
	return resp, nil
}

func toHistoryEntry(item *auditdomain.Entry) auditdomain.HistoryEntry {
	changed := []string(item.ChangedFields)
	if changed == nil {
		changed = []string{}
	}
	return auditdomain.HistoryEntry{
		ID:            item.ID.String(),
		ParameterID:   item.ParameterID.String(),
		ParameterKey:  item.ParameterKey,
		Action:        item.Action,
		ActorID:       item.ActorID,
		Version:       item.Version,
		ChangedFields: changed,
		Metadata:      map[string]any(item.Metadata),
		CreatedAt:     item.CreatedAt,
	}
}
