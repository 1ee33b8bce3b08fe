package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Action string

const (
	ActionCreated         Action = "parameter.created"
	ActionUpdated         Action = "parameter.updated"
	ActionOverrideSet     Action = "parameter.override_set"
	ActionOverrideDeleted Action = "parameter.override_deleted"
	ActionDeleted         Action = "parameter.deleted"
)

// Entry is one committed parameter mutation.
type Entry struct {
	ID            snowflake.ID                `gorm:"primaryKey"`
	ParameterID   snowflake.ID                `gorm:"column:parameter_id;not null;index:ix_parameter_audit_logs_parameter"`
	ParameterKey  string                      `gorm:"column:parameter_key;type:varchar(128);not null"`
	Action        Action                      `gorm:"column:action;type:varchar(64);not null"`
	ActorID       string                      `gorm:"column:actor_id;type:varchar(128);not null"`
	Version       int64                       `gorm:"column:version;not null"`
	ChangedFields datatypes.JSONSlice[string] `gorm:"column:changed_fields"`
	Metadata      datatypes.JSONMap           `gorm:"column:metadata"`
	CreatedAt     time.Time                   `gorm:"not null"`
}

func (Entry) TableName() string { return "parameter_audit_logs" }

type ListFilter struct {
	ParameterID snowflake.ID
	BeforeID    *snowflake.ID
	Limit       int
}
