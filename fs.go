package stf

import (
	"bytes"
	"compress/zlib"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

func GetFileSHA256(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// PathResolver maps canonical project-relative paths onto the working tree.
type PathResolver struct {
	root string
}

func NewPathResolver(root string) (*PathResolver, error) {
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("could not get current working directory: %w", err)
		}
		root = wd
	}
	return &PathResolver{root: root}, nil
}

// OnDisk converts a canonical project path to its on-disk location.
func (r *PathResolver) OnDisk(canonical string) string {
	return filepath.Join(r.root, filepath.FromSlash(canonical))
}

// FromDisk converts an on-disk path back to canonical form; paths outside
// the root come back empty.
func (r *PathResolver) FromDisk(diskPath string) string {
	rel, err := filepath.Rel(r.root, diskPath)
	if err != nil {
		return ""
	}
	return PathCanon(filepath.ToSlash(rel))
}

func CreateDirs(dirs map[string]struct{}) error {
	for dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating directory '%s': %w", dir, err)
		}
	}
	return nil
}

// InTrash locates a canonical path inside a trash directory; trashed files
// keep their canonical relative layout so restores are unambiguous.
func (r *PathResolver) InTrash(canonical, trashDir string) string {
	return filepath.Join(trashDir, filepath.FromSlash(canonical))
}

// Trash moves a working-tree file into trashDir instead of unlinking it.
func (r *PathResolver) Trash(canonical, trashDir string) error {
	dest := r.InTrash(canonical, trashDir)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	return os.Rename(r.OnDisk(canonical), dest)
}

// RestoreFromTrash moves a trashed file back to its working-tree location.
func (r *PathResolver) RestoreFromTrash(canonical, trashDir string) error {
	src := r.InTrash(canonical, trashDir)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return fmt.Errorf("file not found in trash: %s", src)
	}
	disk := r.OnDisk(canonical)
	if err := os.MkdirAll(filepath.Dir(disk), 0755); err != nil {
		return err
	}
	return os.Rename(src, disk)
}

func WriteBlob(dir string, hash string, content []byte) error {
	blobDir := filepath.Join(dir, BlobsDir)
	if err := os.MkdirAll(blobDir, 0755); err != nil {
		return err
	}

	var b bytes.Buffer
	w := zlib.NewWriter(&b)
	if _, err := w.Write(content); err != nil {
		return err
	}
	w.Close()

	return os.WriteFile(filepath.Join(blobDir, hash), b.Bytes(), 0644)
}

func ReadBlob(dir string, hash string) ([]byte, error) {
	if hash == "" {
		return []byte{}, nil
	}

	data, err := os.ReadFile(filepath.Join(dir, BlobsDir, hash))
	if err != nil {
		return nil, err
	}

	if !isZlibCompressed(data) {
		return data, nil
	}

	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return data, nil
	}
	defer r.Close()

	return io.ReadAll(r)
}

func isZlibCompressed(data []byte) bool {
	return len(data) > 2 && data[0] == 0x78
}
