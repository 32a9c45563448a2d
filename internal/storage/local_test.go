package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreSaveOpenRoundtrip(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	path, err := s.Save("job-abc", "Testbogen_collection.zip", []byte("zipbytes"))
	require.NoError(t, err)
	assert.FileExists(t, path)

	name, data, err := s.Open("job-abc")
	require.NoError(t, err)
	assert.Equal(t, "Testbogen_collection.zip", name)
	assert.Equal(t, []byte("zipbytes"), data)
}

func TestLocalStoreSaveStripsDirectories(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(dir)
	require.NoError(t, err)

	path, err := s.Save("job-x", "../../evil.zip", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "job-x_evil.zip"), path)
}

func TestLocalStoreOpenUnknownJob(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, _, err = s.Open("nope")
	assert.Error(t, err)
}

func TestLocalStoreCleanup(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	old, err := s.Save("job-old", "a.zip", []byte("old"))
	require.NoError(t, err)
	fresh, err := s.Save("job-new", "b.zip", []byte("new"))
	require.NoError(t, err)

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	s.Cleanup(24 * time.Hour)

	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
}
