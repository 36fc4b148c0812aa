package connectors

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func names(files []FileMeta) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Name()
	}
	return out
}

func TestDiscoverFiles(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"b.csv":            "a\n1\n",
		"a.JSON":           "[]",
		"notes.txt":        "x",
		"nested/c.parquet": "pq",
		"nested/d.csv":     "a\n1\n2\n3\n",
	})

	files, err := DiscoverFiles(root, []string{".csv", "json", "parquet"}, DiscoveryOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names(files))

	files, err = DiscoverFiles(root, []string{"csv", "json", "parquet"}, DiscoveryOptions{Recursive: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, names(files))
}

func TestDiscoverFilesFilters(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"small.csv": "a\n",
		"large.csv": "a\n1\n2\n3\n4\n5\n",
	})

	files, err := DiscoverFiles(root, []string{"csv"}, DiscoveryOptions{MinSize: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"large"}, names(files))

	files, err = DiscoverFiles(root, []string{"csv"}, DiscoveryOptions{MaxSize: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"small"}, names(files))

	_, err = DiscoverFiles(root, []string{"csv"}, DiscoveryOptions{ModifiedAfter: time.Now().Add(time.Hour)})
	assert.ErrorIs(t, err, ErrNoFiles)
}

func TestDiscoverFilesErrors(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "x.csv")
	require.NoError(t, os.WriteFile(file, []byte("a"), 0o644))

	tests := []struct {
		name string
		root string
		exts []string
	}{
		{"empty root", "", []string{"csv"}},
		{"missing root", filepath.Join(root, "nope"), []string{"csv"}},
		{"file as root", file, []string{"csv"}},
		{"no extensions", root, nil},
		{"no matches", root, []string{"json"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DiscoverFiles(tt.root, tt.exts, DiscoveryOptions{})
			assert.Error(t, err)
		})
	}
}
