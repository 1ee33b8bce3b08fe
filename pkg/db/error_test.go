package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.False(t, IsDuplicateKeyErr(nil))
	assert.False(t, IsDuplicateKeyErr(errors.New("connection refused")))
	assert.True(t, IsDuplicateKeyErr(fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey)))
	assert.True(t, IsDuplicateKeyErr(errors.New(`ERROR: duplicate key value violates unique constraint "parameters_key_key"`)))
	assert.True(t, IsDuplicateKeyErr(errors.New("Error 1062: Duplicate entry 'x' for key 'key'")))
}

func TestIsTimeoutErr(t *testing.T) {
	assert.False(t, IsTimeoutErr(nil))
	assert.False(t, IsTimeoutErr(errors.New("syntax error")))
	assert.True(t, IsTimeoutErr(fmt.Errorf("select: %w", context.DeadlineExceeded)))
	assert.True(t, IsTimeoutErr(errors.New("ERROR: canceling statement due to lock timeout (SQLSTATE 55P03)")))
	assert.True(t, IsTimeoutErr(errors.New("Error 1205: Lock wait timeout exceeded")))
	assert.False(t, IsDuplicateKeyErr(errors.New("Error 1205: Lock wait timeout exceeded")))
}

func TestIsDuplicateKeyErrFromSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.Exec(`CREATE TABLE things (key TEXT NOT NULL UNIQUE)`).Error)
	require.NoError(t, conn.Exec(`INSERT INTO things (key) VALUES ('a')`).Error)

	err = conn.Exec(`INSERT INTO things (key) VALUES ('a')`).Error
	require.Error(t, err)
	assert.True(t, IsDuplicateKeyErr(err))
}

func TestDialect(t *testing.T) {
	d, err := Dialect(Config{Type: "sqlite", Name: "file::memory:"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())

	_, err = Dialect(Config{Type: "oracle"})
	assert.Error(t, err)
}

func TestSupportsRowLocks(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	assert.False(t, SupportsRowLocks(conn))
	assert.False(t, SupportsRowLocks(nil))
}
