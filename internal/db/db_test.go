package db

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/groundqa/internal/config"
)

func TestOpenSQLiteAndMigrate(t *testing.T) {
	conn, err := Open(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, ApplyMigrations(conn, "sqlite"))
	require.NoError(t, ApplyMigrations(conn, "sqlite"))

	var n int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM conversations").Scan(&n))
	require.Equal(t, 0, n)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "mysql"})
	require.Error(t, err)
	require.Error(t, ApplyMigrations(nil, "mysql"))
}

func TestOpenPostgresAndMigrate(t *testing.T) {
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set, skipping postgres test")
	}
	conn, err := Open(config.DatabaseConfig{Driver: "postgres", DSN: dsn})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, ApplyMigrations(conn, "postgres"))
}
