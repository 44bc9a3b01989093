package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanSourceFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "build"), 0o755))

	keep := filepath.Join(root, "src", "Tint.java")
	require.NoError(t, os.WriteFile(keep, []byte("class Tint {}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "build", "Gen.java"), []byte("class Gen {}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "Skip.java"), []byte("class Skip {}"), 0o644))

	files, err := ScanSourceFiles([]string{root}, []string{"build"}, []string{"Skip.java"})
	require.NoError(t, err)
	assert.Equal(t, []string{keep}, files)
}

func TestScanSourceFilesAcceptsExplicitFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "A.java")
	require.NoError(t, os.WriteFile(path, []byte("class A {}"), 0o644))

	files, err := ScanSourceFiles([]string{path}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, files)
}

func TestWriteGeneratedCreatesDirectories(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "nested", "deep")
	require.NoError(t, WriteGenerated("Out.java", dest, "contents"))

	data, err := os.ReadFile(filepath.Join(dest, "Out.java"))
	require.NoError(t, err)
	assert.Equal(t, "contents", string(data))
}
