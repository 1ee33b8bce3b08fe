package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/smallbiznis/paramstore/internal/override"
	"github.com/smallbiznis/paramstore/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	SetCountryOverride(ctx context.Context, req SetOverrideRequest) (*Response, error)
	DeleteCountryOverride(ctx context.Context, req DeleteOverrideRequest) (*Response, error)
	Delete(ctx context.Context, id string) error
	GetClientConfig(ctx context.Context, locale string) (ClientConfig, error)
}

// ClientConfig maps parameter key to the value resolved for one locale.
type ClientConfig map[string]any

type OverridesPayload struct {
	Country map[string]any `json:"country"`
}

type CreateRequest struct {
	Key         string            `json:"key"`
	Value       json.RawMessage   `json:"value"`
	Description *string           `json:"description"`
	Overrides   *OverridesPayload `json:"overrides"`
	IsActive    *bool             `json:"isActive"`
}

// VersionGuard carries the optimistic concurrency inputs of a mutation.
// A nil LastKnownVersion skips the conflict check.
type VersionGuard struct {
	LastKnownVersion *int64 `json:"lastKnownVersion,omitempty"`
	ForceUpdate      bool   `json:"forceUpdate,omitempty"`
}

type UpdateRequest struct {
	VersionGuard
	ID            string            `json:"-"`
	Key           *string           `json:"key,omitempty"`
	Value         json.RawMessage   `json:"value,omitempty"`
	Description   *string           `json:"description,omitempty"`
	IsActive      *bool             `json:"isActive,omitempty"`
	Overrides     *OverridesPayload `json:"overrides,omitempty"`
	OverridesMode string            `json:"overridesMode,omitempty"`
}

type SetOverrideRequest struct {
	VersionGuard
	ID      string          `json:"-"`
	Country string          `json:"-"`
	Value   json.RawMessage `json:"value"`
}

type DeleteOverrideRequest struct {
	VersionGuard
	ID      string `json:"-"`
	Country string `json:"-"`
}

type ListRequest struct {
	pagination.Pagination
	KeyPrefix string
	IsActive  *bool
}

type Response struct {
	ID            string             `json:"id"`
	Key           string             `json:"key"`
	Value         any                `json:"value"`
	Description   *string            `json:"description,omitempty"`
	Overrides     override.Overrides `json:"overrides"`
	IsActive      bool               `json:"isActive"`
	Version       int64              `json:"version"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
	LastUpdatedBy *string            `json:"lastUpdatedBy,omitempty"`
}

type ListResponse struct {
	pagination.PageInfo
	Parameters []Response `json:"parameters"`
}
