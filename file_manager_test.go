package stf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileManagerDeleteUndoRedo(t *testing.T) {
	root := t.TempDir()
	stateDir := filepath.Join(root, ".stf")
	trash := filepath.Join(stateDir, TrashDir)
	require.NoError(t, os.MkdirAll(trash, 0755))

	r, err := NewPathResolver(root)
	require.NoError(t, err)
	fm := NewFileManager(r)

	content := []byte("<p>about</p>")
	disk := r.OnDisk("pages/about.html")
	require.NoError(t, os.MkdirAll(filepath.Dir(disk), 0755))
	require.NoError(t, os.WriteFile(disk, content, 0644))

	hash, err := GetFileSHA256(disk)
	require.NoError(t, err)
	require.NoError(t, WriteBlob(stateDir, hash, content))

	op := Operation{Action: "delete", Path: disk, OldContentHash: hash, ContentHash: hash}
	require.NoError(t, r.Trash("pages/about.html", trash))

	t.Run("undo restores from trash", func(t *testing.T) {
		s := fm.Undo([]Operation{op}, stateDir)
		assert.Empty(t, s.Failed)
		assert.Equal(t, []string{disk}, s.Created)

		data, err := os.ReadFile(disk)
		require.NoError(t, err)
		assert.Equal(t, content, data)
	})

	t.Run("redo trashes again", func(t *testing.T) {
		s := fm.Redo([]Operation{op}, stateDir)
		assert.Empty(t, s.Failed)

		_, err := os.Stat(disk)
		assert.True(t, os.IsNotExist(err))
		_, err = os.Stat(r.InTrash("pages/about.html", trash))
		require.NoError(t, err)
	})

	t.Run("emptied trash falls back to the backup blob", func(t *testing.T) {
		require.NoError(t, os.RemoveAll(trash))

		s := fm.Undo([]Operation{op}, stateDir)
		assert.Empty(t, s.Failed)

		data, err := os.ReadFile(disk)
		require.NoError(t, err)
		assert.Equal(t, content, data)
	})
}
