package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// JSONColumn stores T as JSON text. Scan also accepts the integer, real and
// boolean values SQLite returns for columns with numeric affinity, so a
// bare number like 42 reads back as a number rather than failing.
type JSONColumn[T any] struct {
	data T
}

func NewJSONColumn[T any](v T) JSONColumn[T] {
	return JSONColumn[T]{data: v}
}

func (j JSONColumn[T]) Data() T {
	return j.data
}

func (j JSONColumn[T]) Value() (driver.Value, error) {
	b, err := json.Marshal(j.data)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (j *JSONColumn[T]) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case int64:
		raw = strconv.AppendInt(nil, v, 10)
	case float64:
		raw = strconv.AppendFloat(nil, v, 'g', -1, 64)
	case bool:
		raw = strconv.AppendBool(nil, v)
	case nil:
		var zero T
		j.data = zero
		return nil
	default:
		return fmt.Errorf("scan json column: unsupported source type %T", src)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("scan json column: %w", err)
	}
	j.data = out
	return nil
}

func (JSONColumn[T]) GormDataType() string {
	return "json"
}

// GormDBDataType keeps SQLite columns at TEXT affinity. Postgres schemas come
// from the SQL migrations.
func (JSONColumn[T]) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	switch db.Dialector.Name() {
	case "postgres":
		return "JSONB"
	case "mysql":
		return "JSON"
	default:
		return "TEXT"
	}
}
