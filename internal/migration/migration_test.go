package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/smallbiznis/invoiceflow/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Fatalf("unexpected migration file %q", name)
		}
	}
	require.NotEmpty(t, ups)
	assert.Equal(t, ups, downs)
}

func TestInitMigrationCreatesEveryTable(t *testing.T) {
	raw, err := fs.ReadFile(embeddedMigrations, migrationsDir+"/000001_init.up.sql")
	require.NoError(t, err)
	sql := string(raw)
	for _, table := range []string{"users", "sessions", "companies", "invoices", "invoice_items", "activity_log"} {
		assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
	assert.Contains(t, sql, "ux_invoices_year_number ON invoices (invoice_year, invoice_number)")
}

func TestMigrateAutoMigratesNonPostgres(t *testing.T) {
	conn := db.NewTest(t)
	require.NoError(t, Migrate(conn))

	for _, table := range []string{"users", "sessions", "companies", "invoices", "invoice_items", "activity_log"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
	// Idempotent.
	require.NoError(t, Migrate(conn))
}

func TestMigrateRequiresHandle(t *testing.T) {
	assert.Error(t, Migrate(nil))
	assert.Error(t, RunMigrations(nil))
}
