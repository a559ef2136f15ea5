package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/utils/tests"
)

// dryRunDB builds SQL without executing it and hands every finished update
// statement to capture.
func dryRunDB(t *testing.T, capture *string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(tests.DummyDialector{}, &gorm.Config{DryRun: true})
	require.NoError(t, err)
	err = db.Callback().Update().After("gorm:update").Register("capture_sql", func(tx *gorm.DB) {
		*capture = tx.Statement.SQL.String()
	})
	require.NoError(t, err)
	return db
}

func TestIncrementFailedLoginsUpdatesInPlace(t *testing.T) {
	var sql string
	repo := NewUserRepository(dryRunDB(t, &sql))

	require.NoError(t, repo.IncrementFailedLogins(context.Background(), 7))

	// the counter bumps inside the database, never read-modify-write in Go
	assert.Contains(t, sql, "failed_login_attempts + ?")
}
