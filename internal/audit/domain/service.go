package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paramstore/pkg/db/pagination"
	"gorm.io/gorm"
)

type RecordRequest struct {
	ParameterID   snowflake.ID
	ParameterKey  string
	Action        Action
	Version       int64
	ChangedFields []string
	Metadata      map[string]any
}

type ListHistoryRequest struct {
	pagination.Pagination
	ParameterID string
}

type HistoryEntry struct {
	ID            string         `json:"id"`
	ParameterID   string         `json:"parameterId"`
	ParameterKey  string         `json:"parameterKey"`
	Action        Action         `json:"action"`
	ActorID       string         `json:"actorId"`
	Version       int64          `json:"version"`
	ChangedFields []string       `json:"changedFields"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

type ListHistoryResponse struct {
	pagination.PageInfo
	Entries []HistoryEntry `json:"entries"`
}

type Service interface {
	// Record writes an entry through tx so it commits or rolls back with the mutation.
	Record(ctx context.Context, tx *gorm.DB, req RecordRequest) error
	ListHistory(ctx context.Context, req ListHistoryRequest) (ListHistoryResponse, error)
}

var (
	ErrInvalidParameterID = errors.New("invalid_parameter_id")
	ErrInvalidPageToken   = errors.New("invalid_page_token")
	ErrInvalidAction      = errors.New("invalid_action")
	ErrMissingActor       = errors.New("missing_actor")
)
