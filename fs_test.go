package stf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathResolver(t *testing.T) {
	r, err := NewPathResolver("/project")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("/project", "css", "style.css"), r.OnDisk("css/style.css"))
	assert.Equal(t, "css/style.css", r.FromDisk(filepath.Join("/project", "css", "style.css")))
	assert.Equal(t, "", r.FromDisk("/elsewhere/file.txt"))
}

func TestBlobRoundTrip(t *testing.T) {
	dir := t.TempDir()
	content := []byte("body { color: red; }\n")

	require.NoError(t, WriteBlob(dir, "abc123", content))
	got, err := ReadBlob(dir, "abc123")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	// the empty hash stands for "file did not exist"
	got, err = ReadBlob(dir, "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTrashRoundTrip(t *testing.T) {
	root := t.TempDir()
	trash := filepath.Join(root, ".stf", "trash")
	r, err := NewPathResolver(root)
	require.NoError(t, err)

	target := r.OnDisk("pages/about.html")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0755))
	require.NoError(t, os.WriteFile(target, []byte("<p>about</p>"), 0644))

	require.NoError(t, r.Trash("pages/about.html", trash))
	_, err = os.Stat(target)
	assert.True(t, os.IsNotExist(err))

	// trashed files keep their canonical relative layout
	_, err = os.Stat(r.InTrash("pages/about.html", trash))
	require.NoError(t, err)

	require.NoError(t, r.RestoreFromTrash("pages/about.html", trash))
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "<p>about</p>", string(data))
}

func TestGetFileSHA256(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	h, err := GetFileSHA256(path)
	require.NoError(t, err)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", h)

	_, err = GetFileSHA256(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}
