package database

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFiles_Sorted(t *testing.T) {
	fsys := fstest.MapFS{
		"002_b.sql":  {Data: []byte("SELECT 2;")},
		"001_a.sql":  {Data: []byte("SELECT 1;")},
		"README.txt": {Data: []byte("notes")},
		"old/x.sql":  {Data: []byte("SELECT 0;")},
	}

	files, err := MigrationFiles(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_a.sql", "002_b.sql"}, files)
}

func TestMigrations_Embedded(t *testing.T) {
	files, err := MigrationFiles(Migrations())
	require.NoError(t, err)
	assert.Equal(t, []string{"001_create_catalog.sql", "002_create_orders.sql"}, files)
}
