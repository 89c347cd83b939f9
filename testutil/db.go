// Package testutil holds helpers shared by package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/basit/rushupload-backend/initializers"
	"github.com/basit/rushupload-backend/models"
)

// NewTestDB returns a migrated in-memory SQLite database private to t.
// A single connection keeps every statement on the same in-memory database.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, initializers.Migrate(db))
	return db
}

// CreateUser inserts an account with the given tier and usage.
func CreateUser(t *testing.T, db *gorm.DB, email string, tier models.Tier, total, used int64) *models.User {
	t.Helper()
	u := &models.User{Email: email, Tier: tier, TotalStorage: total, UsedStorage: used}
	require.NoError(t, db.Create(u).Error)
	return u
}
