package seed

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func TestPostgresDriverIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("testpass"),
	)
	require.NoError(t, err, "failed to start Postgres container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	raw, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	require.NoError(t, raw.PingContext(ctx))

	_, err = raw.ExecContext(ctx, `CREATE TABLE departments (id SERIAL PRIMARY KEY, name TEXT)`)
	require.NoError(t, err)

	drv, err := Open(ctx, DriverPostgres, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = drv.Close() })

	require.NoError(t, drv.EnsureTrackingTable(ctx, "initium_seed"))

	require.NoError(t, drv.BeginTransaction(ctx))
	id, err := drv.InsertRow(ctx, "departments", []string{"name"}, []string{"Engineering"}, "id")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Greater(t, *id, int64(0))

	exists, err := drv.RowExists(ctx, "departments", []string{"name"}, []string{"Engineering"})
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, drv.MarkSeedApplied(ctx, "initium_seed", "depts"))
	require.NoError(t, drv.CommitTransaction(ctx))

	applied, err := drv.IsSeedApplied(ctx, "initium_seed", "depts")
	require.NoError(t, err)
	assert.True(t, applied)

	exists, err = drv.ObjectExists(ctx, WaitForTable, "departments")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, drv.CreateSchema(ctx, "side_schema"))

	// insert without auto_id returns no generated key
	noID, err := drv.InsertRow(ctx, "departments", []string{"name"}, []string{"Sales"}, "")
	require.NoError(t, err)
	assert.Nil(t, noID)
}
