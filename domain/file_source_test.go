package domain

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadNamesParsesFiles(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "domains.txt")
	second := filepath.Join(dir, "more.txt")
	data := "# tracked by ops\nGameStores.us.com|yuang6496|2026-01-03\n\nexample.com\nnot a domain\n"
	require.NoError(t, os.WriteFile(first, []byte(data), 0o644))
	require.NoError(t, os.WriteFile(second, []byte("example.com\nhttps://other.org/\n"), 0o644))

	names, err := NewFileSource(first, second).LoadNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"gamestores.us.com", "example.com", "other.org"}, names)
}

func TestLoadNamesMissingFile(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "missing.txt")).LoadNames()
	require.Error(t, err)
}
