package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "nested", "overwatch.db")
	svc, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestNewInitializesSchema(t *testing.T) {
	svc := newTestService(t)
	assert.NoError(t, svc.VerifySchema())
	assert.NoError(t, svc.Health())
}

func TestSchemaIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	assert.NoError(t, svc.InitializeSchema())
	assert.NoError(t, svc.VerifySchema())
}

func TestTransactionRollsBack(t *testing.T) {
	svc := newTestService(t)

	boom := errors.New("boom")
	err := svc.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO users (user_id, username, password_hash, created_at) VALUES ('u1', 'alice', 'x', '2025-01-01T00:00:00Z')`)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, svc.DB.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n))
	assert.Zero(t, n)
}

func TestTransactionCommits(t *testing.T) {
	svc := newTestService(t)

	err := svc.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO users (user_id, username, password_hash, created_at) VALUES ('u1', 'alice', 'x', '2025-01-01T00:00:00Z')`)
		return err
	})
	require.NoError(t, err)

	var n int
	require.NoError(t, svc.DB.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestVerifySchemaRejectsStaleVersion(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.DB.Exec("PRAGMA user_version = 0")
	require.NoError(t, err)
	assert.Error(t, svc.VerifySchema())

	require.NoError(t, svc.InitializeSchema())
	var version int
	require.NoError(t, svc.DB.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, SchemaVersion, version)
	assert.NoError(t, svc.VerifySchema())
}

func TestWithTxHonoursCancelledContext(t *testing.T) {
	svc := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := WithTx(ctx, svc.DB, func(*sql.Tx) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}

func TestInitializeSchemaUpgradesArchiveTimestamps(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.DB.Exec(`DROP TABLE alert_archive`)
	require.NoError(t, err)
	_, err = svc.DB.Exec(`CREATE TABLE alert_archive (alert_id TEXT PRIMARY KEY, raised_at TEXT NOT NULL)`)
	require.NoError(t, err)
	_, err = svc.DB.Exec("PRAGMA user_version = 1")
	require.NoError(t, err)
	assert.Error(t, svc.VerifySchema())

	require.NoError(t, svc.InitializeSchema())
	require.NoError(t, svc.VerifySchema())

	var colType string
	require.NoError(t, svc.DB.QueryRow(
		`SELECT type FROM pragma_table_info('alert_archive') WHERE name = 'raised_at'`).Scan(&colType))
	assert.Equal(t, "INTEGER", colType)
}
