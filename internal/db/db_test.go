package db

import (
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"meeting-resource-backend/config"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

func TestApplyWindowIndexes(t *testing.T) {
	gormDB, mock := newMockDB(t)
	for _, ddl := range windowIndexes {
		mock.ExpectExec(regexp.QuoteMeta(ddl)).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, applyWindowIndexes(gormDB))
	assert.NoError(t, mock.ExpectationsWereMet())

	for _, ddl := range windowIndexes {
		assert.NotContains(t, ddl, "GIST")
		assert.NotContains(t, ddl, "tstzrange")
	}
}

func TestApplyWindowIndexes_StopsOnFailure(t *testing.T) {
	gormDB, mock := newMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta(windowIndexes[0])).WillReturnError(errors.New("permission denied"))

	err := applyWindowIndexes(gormDB)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "idx_bookings_active_window")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDialectorFor(t *testing.T) {
	for _, driver := range []string{"", "postgres", "PostgreSQL", "mysql", "sqlite"} {
		_, err := dialectorFor(&config.DatabaseConfig{Driver: driver, DSN: "x"})
		assert.NoError(t, err, driver)
	}
	_, err := dialectorFor(&config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestInit_SQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "rooms.db")
	cfg := &config.DatabaseConfig{Driver: "sqlite", DSN: dsn, LogLevel: "silent", EnableRangeIndexes: true}
	gormDB, err := Init(cfg, nil)
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	assert.True(t, gormDB.Migrator().HasTable("bookings"))
}
