package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectAndMigrate_SQLite(t *testing.T) {
	db, err := Connect("file:migrate_test?mode=memory&cache=shared")
	require.NoError(t, err)

	require.NoError(t, Migrate(db))
	for _, table := range []string{"bookings", "guild_counters", "closures", "guild_configs", "reminder_logs", "intake_drafts"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}
