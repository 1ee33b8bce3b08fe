package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paramstore/internal/override"
)

// Parameter is a named configuration value with per-country overrides.
type Parameter struct {
	ID            snowflake.ID                   `gorm:"primaryKey"`
	Key           string                         `gorm:"column:param_key;type:varchar(128);not null;uniqueIndex:ux_parameters_key"`
	Value         JSONColumn[any]                `gorm:"column:value;not null"`
	Description   *string                        `gorm:"type:text"`
	Overrides     JSONColumn[override.Overrides] `gorm:"column:overrides;not null"`
	IsActive      bool                           `gorm:"column:is_active;not null;default:true"`
	Version       int64                          `gorm:"column:version;default:0"`
	CreatedAt     time.Time                      `gorm:"not null"`
	UpdatedAt     time.Time                      `gorm:"not null"`
	LastUpdatedBy *string                        `gorm:"column:last_updated_by;type:varchar(128)"`
}

func (Parameter) TableName() string { return "parameters" }

func (p *Parameter) DefaultValue() any {
	return p.Value.Data()
}

// CountryOverrides never returns a nil country map.
func (p *Parameter) CountryOverrides() override.Overrides {
	return p.Overrides.Data().Clone()
}

func (p *Parameter) SetDefaultValue(v any) {
	p.Value = NewJSONColumn[any](v)
}

func (p *Parameter) SetOverrides(o override.Overrides) {
	p.Overrides = NewJSONColumn(o.Clone())
}

// Resolve returns the value served to clients in locale.
func (p *Parameter) Resolve(locale string) any {
	return override.Resolve(p.DefaultValue(), p.Overrides.Data(), locale)
}

// Clone copies p deeply enough that mutating the copy's fields, description
// or override map leaves p untouched.
func (p *Parameter) Clone() *Parameter {
	out := *p
	if p.Description != nil {
		d := *p.Description
		out.Description = &d
	}
	if p.LastUpdatedBy != nil {
		e := *p.LastUpdatedBy
		out.LastUpdatedBy = &e
	}
	out.SetOverrides(p.CountryOverrides())
	return &out
}
