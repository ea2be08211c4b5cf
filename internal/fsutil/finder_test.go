package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))
}

func TestFindFilesByExtension(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.hcl"))
	writeFile(t, filepath.Join(dir, "nested", "b.hcl"))
	writeFile(t, filepath.Join(dir, "notes.txt"))

	files, err := FindFilesByExtension(dir, ".hcl")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "a.hcl"),
		filepath.Join(dir, "nested", "b.hcl"),
	}, files)
}

func TestFindFilesByExtension_EmptyExtensionPanics(t *testing.T) {
	assert.Panics(t, func() {
		_, _ = FindFilesByExtension(t.TempDir(), "")
	})
}

func TestFindExperimentFiles(t *testing.T) {
	t.Run("single file passes through", func(t *testing.T) {
		dir := t.TempDir()
		file := filepath.Join(dir, "scan.hcl")
		writeFile(t, file)

		files, err := FindExperimentFiles(file)
		require.NoError(t, err)
		assert.Equal(t, []string{file}, files)
	})

	t.Run("directory collects hcl files", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "a.hcl"))
		writeFile(t, filepath.Join(dir, "b.hcl"))

		files, err := FindExperimentFiles(dir)
		require.NoError(t, err)
		assert.Len(t, files, 2)
	})

	t.Run("empty directory is an error", func(t *testing.T) {
		_, err := FindExperimentFiles(t.TempDir())
		assert.ErrorContains(t, err, "no .hcl experiment files")
	})

	t.Run("missing path is an error", func(t *testing.T) {
		_, err := FindExperimentFiles(filepath.Join(t.TempDir(), "absent"))
		assert.ErrorContains(t, err, "experiment path")
	})
}
