package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndListRuns(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer store.Close()

	id, err := store.SaveRun(Run{
		FileCount:   2,
		ClassCount:  1,
		InputBinds:  1,
		Operations:  3,
		ParallelOps: 2,
		Duration:    120 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = store.SaveRun(Run{FileCount: 1})
	require.NoError(t, err)

	runs, err := store.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	// Newest first.
	assert.Equal(t, 1, runs[0].FileCount)
	assert.Equal(t, 2, runs[1].FileCount)
	assert.Equal(t, 3, runs[1].Operations)
	assert.Equal(t, 120*time.Millisecond, runs[1].Duration)
}

func TestOpenRejectsDirectory(t *testing.T) {
	_, err := Open(t.TempDir())
	require.Error(t, err)
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}
