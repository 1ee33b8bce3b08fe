// Package events publishes parameter change notifications after commit.
package events

import (
	"context"
	"time"
)

type Type string

const (
	TypeParameterCreated         Type = "parameter.created"
	TypeParameterUpdated         Type = "parameter.updated"
	TypeParameterOverrideSet     Type = "parameter.override_set"
	TypeParameterOverrideDeleted Type = "parameter.override_deleted"
	TypeParameterDeleted         Type = "parameter.deleted"
)

type ChangeEvent struct {
	Type          Type      `json:"type"`
	ParameterID   string    `json:"parameterId"`
	Key           string    `json:"key"`
	Version       int64     `json:"version"`
	ActorID       string    `json:"actorId"`
	ChangedFields []string  `json:"changedFields"`
	Forced        bool      `json:"forced,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, evt ChangeEvent) error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, ChangeEvent) error { return nil }
