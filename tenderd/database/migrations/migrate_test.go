package migrations_test

import (
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/tenderd/tenderd/tenderd/database/dbtestutil"
	"github.com/tenderd/tenderd/tenderd/database/migrations"
)

func TestMigrate(t *testing.T) {
	t.Parallel()
	if !dbtestutil.WillUsePostgres() {
		t.Skip("migrations only run against postgres")
	}
	connectionURL := os.Getenv("TENDERD_TEST_POSTGRES_URL")
	if connectionURL == "" {
		t.Skip("TENDERD_TEST_POSTGRES_URL must point at a scratch database")
	}

	db, err := sql.Open("postgres", connectionURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrations.Up(db))
	require.NoError(t, migrations.EnsureClean(db))
	// Running again is a no-op.
	require.NoError(t, migrations.Up(db))
	require.NoError(t, migrations.Down(db))
	require.NoError(t, migrations.Up(db))
}
