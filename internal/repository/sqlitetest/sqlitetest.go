// Package sqlitetest opens a migrated in-memory SQLite database for package tests.
package sqlitetest

import (
	"testing"
	"time"

	"github.com/ClareAI/astra-receptionist-service/internal/repository"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Open returns a migrated private in-memory database.
// The pool is pinned to one connection so every query sees the same memory database.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), repository.GormConfig(time.Second))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, repository.AutoMigrate(db))
	return db
}

// NewManager returns a repository manager over a fresh database
func NewManager(t testing.TB) *repository.GormRepositoryManager {
	t.Helper()
	return repository.NewGormRepositoryManager(Open(t))
}
