package stf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileManager flushes a finalized in-memory file set to the working tree and
// replays journal operations for undo/redo.
type FileManager struct {
	resolver *PathResolver
}

func NewFileManager(resolver *PathResolver) *FileManager {
	return &FileManager{resolver: resolver}
}

// DiskActions classifies each file of the set against the working tree and
// reports the directories that must exist first.
func (m *FileManager) DiskActions(files *FileSet) (map[string]string, map[string]struct{}) {
	actions := make(map[string]string)
	dirs := make(map[string]struct{})

	for _, p := range files.Paths() {
		disk := m.resolver.OnDisk(p)
		if _, err := os.Stat(disk); os.IsNotExist(err) {
			actions[disk] = "create"
			dir := filepath.Dir(disk)
			if dir != "." && dir != "/" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					dirs[dir] = struct{}{}
				}
			}
			continue
		}
		actions[disk] = "modify"
	}
	return actions, dirs
}

// WriteFiles writes every finalized file to disk; partial files are written
// too, since best-effort content beats a missing file, but they stay listed
// in the summary for the resume pass.
func (m *FileManager) WriteFiles(files *FileSet, progressCb func(int)) (updated, failed []string) {
	for i, p := range files.Paths() {
		f, _ := files.Get(p)
		content := f.Content
		if content != "" && !strings.HasSuffix(content, "\n") {
			content += "\n"
		}

		disk := m.resolver.OnDisk(p)
		if err := os.MkdirAll(filepath.Dir(disk), 0755); err != nil {
			failed = append(failed, disk)
			continue
		}
		if err := os.WriteFile(disk, []byte(content), 0644); err != nil {
			failed = append(failed, disk)
			continue
		}

		updated = append(updated, disk)
		if progressCb != nil {
			progressCb(i + 1)
		}
	}
	return updated, failed
}

func (m *FileManager) Undo(ops []Operation, stateDir string) Summary {
	var s Summary
	for _, op := range ops {
		if !m.undoFile(op, stateDir) {
			s.Failed = append(s.Failed, op.Path)
			continue
		}

		switch op.Action {
		case "create":
			s.Deleted = append(s.Deleted, op.Path)
		case "delete":
			s.Created = append(s.Created, op.Path)
		case "modify":
			s.Modified = append(s.Modified, op.Path)
		case "rename":
			s.Renamed = append(s.Renamed, fmt.Sprintf("%s -> %s", op.NewPath, op.Path))
		}
	}
	return s
}

func (m *FileManager) undoFile(op Operation, stateDir string) bool {
	if op.Action == "delete" {
		// the trashed copy is the fast path; the backup blob covers a
		// hand-emptied trash
		canonical := m.resolver.FromDisk(op.Path)
		trashDir := filepath.Join(stateDir, TrashDir)
		trashHash, _ := GetFileSHA256(m.resolver.InTrash(canonical, trashDir))
		if trashHash != "" && trashHash == op.ContentHash {
			return m.resolver.RestoreFromTrash(canonical, trashDir) == nil
		}
		content, err := ReadBlob(stateDir, op.OldContentHash)
		if err != nil {
			return false
		}
		_ = os.MkdirAll(filepath.Dir(op.Path), 0755)
		return os.WriteFile(op.Path, content, 0644) == nil
	}

	currentPath := op.Path
	if op.Action == "rename" {
		currentPath = op.NewPath
	}

	actualHash, _ := GetFileSHA256(currentPath)
	if actualHash != op.ContentHash {
		return false
	}

	if op.Action == "rename" {
		return os.Rename(op.NewPath, op.Path) == nil
	}

	if op.Action == "create" {
		return os.Remove(op.Path) == nil
	}

	content, err := ReadBlob(stateDir, op.OldContentHash)
	if err != nil {
		return false
	}

	return os.WriteFile(op.Path, content, 0644) == nil
}

func (m *FileManager) Redo(ops []Operation, stateDir string) Summary {
	var s Summary
	for _, op := range ops {
		if !m.redoFile(op, stateDir) {
			s.Failed = append(s.Failed, op.Path)
			continue
		}

		switch op.Action {
		case "create":
			s.Created = append(s.Created, op.Path)
		case "delete":
			s.Deleted = append(s.Deleted, op.Path)
		case "modify":
			s.Modified = append(s.Modified, op.Path)
		case "rename":
			s.Renamed = append(s.Renamed, fmt.Sprintf("%s -> %s", op.Path, op.NewPath))
		}
	}
	return s
}

func (m *FileManager) redoFile(op Operation, stateDir string) bool {
	actualHash, _ := GetFileSHA256(op.Path)
	if actualHash != op.OldContentHash {
		return false
	}

	if op.Action == "rename" {
		return os.Rename(op.Path, op.NewPath) == nil
	}

	if op.Action == "delete" {
		canonical := m.resolver.FromDisk(op.Path)
		return m.resolver.Trash(canonical, filepath.Join(stateDir, TrashDir)) == nil
	}

	content, err := ReadBlob(stateDir, op.ContentHash)
	if err != nil {
		return false
	}

	_ = os.MkdirAll(filepath.Dir(op.Path), 0755)
	return os.WriteFile(op.Path, content, 0644) == nil
}
