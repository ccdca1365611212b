package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCollectGoFiles(t *testing.T) {
	dir := t.TempDir()

	write := func(rel string) string {
		full := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("package x\n"), 0o644))
		return full
	}

	keepRoot := write("a.go")
	keepNested := write("pkg/b.go")
	write("pkg/readme.md")
	write("vendor/c.go")
	write("_scratch/d.go")
	write(".git/e.go")

	files, err := collectGoFiles([]string{dir})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{keepRoot, keepNested}, files)

	t.Run("explicit file", func(t *testing.T) {
		files, err := collectGoFiles([]string{keepNested})
		require.NoError(t, err)
		require.Equal(t, []string{keepNested}, files)
	})

	t.Run("non-go file rejected", func(t *testing.T) {
		_, err := collectGoFiles([]string{filepath.Join(dir, "pkg", "readme.md")})
		require.Error(t, err)
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := collectGoFiles([]string{filepath.Join(dir, "nope")})
		require.Error(t, err)
	})
}
