package migration

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/JasonPDev313/Oppsera-sub010/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"Add GL Period Locks":    "add_gl_period_locks",
		"add--tender__mappings ": "add_tender_mappings",
		"drop índice!":           "drop_ndice",
		"___":                    "",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeName(in), in)
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()

	first, err := CreateMigration(dir, "create gl journal")
	require.NoError(t, err)
	assert.Equal(t, uint(1), first.Version)
	assert.Equal(t, filepath.Join(dir, "000001_create_gl_journal.up.sql"), first.UpPath)
	assert.FileExists(t, first.DownPath)

	second, err := CreateMigration(dir, "Add Period Locks")
	require.NoError(t, err)
	assert.Equal(t, uint(2), second.Version)
	assert.Equal(t, "add_period_locks", second.Name)

	_, err = CreateMigration(dir, "!!!")
	assert.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestListMigrations(t *testing.T) {
	source := fstest.MapFS{
		"000002_b.up.sql":   {},
		"000001_a.up.sql":   {},
		"000001_a.down.sql": {},
		"README.md":         {},
		"000010_c.up.sql":   {},
	}
	list, err := ListMigrations(source)
	require.NoError(t, err)
	assert.Equal(t, []Migration{
		{Version: 1, Name: "a", HasUp: true, HasDown: true},
		{Version: 2, Name: "b", HasUp: true},
		{Version: 10, Name: "c", HasUp: true},
	}, list)

	_, err = ListMigrations(fstest.MapFS{
		"000001_a.up.sql": {},
		"000001_b.up.sql": {},
	})
	assert.ErrorContains(t, err, "version 1")
}

func TestEmbeddedMigrations_ArePaired(t *testing.T) {
	list, err := ListMigrations(migrations.FS)
	require.NoError(t, err)
	require.NotEmpty(t, list)
	for i, m := range list {
		assert.Equal(t, uint(i+1), m.Version, "versions are contiguous")
		assert.True(t, m.HasUp && m.HasDown, "migration %d needs both directions", m.Version)
	}
}
