package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	gormlogger "gorm.io/gorm/logger"
)

func TestOperationAndTableFromSQL(t *testing.T) {
	cases := []struct {
		sql       string
		operation string
		table     string
	}{
		{`SELECT id, param_key FROM parameters WHERE id = ? FOR UPDATE`, "SELECT", "parameters"},
		{`UPDATE "parameters" SET version = ? WHERE id = ? AND COALESCE(version,0) = ?`, "UPDATE", "parameters"},
		{`INSERT INTO parameter_audit_logs (id) VALUES (?)`, "INSERT", "parameter_audit_logs"},
		{`WITH latest AS (SELECT 1) DELETE FROM parameters WHERE id = ?`, "SELECT", "parameters"},
		{`PRAGMA foreign_keys = ON`, "UNKNOWN", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.operation, operationFromSQL(tc.sql), tc.sql)
		assert.Equal(t, tc.table, tableFromSQL(tc.sql), tc.sql)
	}
}

func TestDefaultGormLoggerConfig(t *testing.T) {
	assert.Equal(t, gormlogger.Warn, DefaultGormLoggerConfig(false).Level)
	assert.Equal(t, gormlogger.Info, DefaultGormLoggerConfig(true).Level)

	quiet := NewGormLogger(DefaultGormLoggerConfig(true)).LogMode(gormlogger.Silent)
	assert.Equal(t, gormlogger.Silent, quiet.(*GormLogger).cfg.Level)
}
