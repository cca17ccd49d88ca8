package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMigrationFiles_SortedAndFiltered(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{
		"002_add_indexes.sql",
		"001_create_tickets.sql",
		"README.md",
		"010_backfill.sql",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("-- noop"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive"), 0o755))

	files, err := migrationFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"001_create_tickets.sql",
		"002_add_indexes.sql",
		"010_backfill.sql",
	}, files)
}

func TestMigrationFiles_MissingDir(t *testing.T) {
	t.Parallel()

	_, err := migrationFiles(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestRunMigrations_NilPoolIsNoOp(t *testing.T) {
	t.Parallel()

	err := RunMigrations(context.Background(), nil, "migrations", zap.NewNop())
	require.NoError(t, err)
}
