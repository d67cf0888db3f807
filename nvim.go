package stf

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/neovim/go-client/nvim"
)

const undoDir = "~/.local/state/nvim/undo/"

// NvimManager applies a finalized file set into live neovim buffers instead
// of writing the working tree directly, so open buffers never go stale.
type NvimManager struct {
	v             *nvim.Nvim
	isSelfStarted bool
	cmd           *exec.Cmd
	socketPath    string
}

func NewNvimManager() (*NvimManager, error) {
	if addr := os.Getenv("NVIM_LISTEN_ADDRESS"); addr != "" {
		v, err := nvim.Dial(addr)
		if err == nil {
			return &NvimManager{v: v}, nil
		}
	}

	tmpDir, err := os.MkdirTemp("", "stf-nvim-")
	if err != nil {
		return nil, err
	}
	socketPath := filepath.Join(tmpDir, "nvim.sock")

	cmd := exec.Command("nvim", "--headless", "--clean", "--listen", socketPath)
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	for i := 0; i < 20; i++ {
		if _, err := os.Stat(socketPath); err == nil {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	v, err := nvim.Dial(socketPath)
	if err != nil {
		cmd.Process.Kill()
		return nil, err
	}

	m := &NvimManager{v: v, isSelfStarted: true, cmd: cmd, socketPath: socketPath}
	m.configureTempInstance()
	return m, nil
}

func (m *NvimManager) configureTempInstance() {
	home, _ := os.UserHomeDir()
	expandedUndoDir := strings.Replace(undoDir, "~", home, 1)
	os.MkdirAll(expandedUndoDir, 0755)

	b := m.v.NewBatch()
	b.Command("set undofile")
	b.Command(fmt.Sprintf("set undodir=%s", expandedUndoDir))
	b.Command("set noswapfile")
	b.Execute()
}

func (m *NvimManager) Close() {
	if m.v != nil {
		m.v.Close()
	}
	if m.isSelfStarted && m.cmd != nil && m.cmd.Process != nil {
		m.cmd.Process.Kill()
		m.cmd.Wait()
		os.RemoveAll(filepath.Dir(m.socketPath))
	}
}

// ApplyFiles loads every finalized file into a buffer and replaces its lines.
func (m *NvimManager) ApplyFiles(files *FileSet, progressCb ProgressUpdate) (updated, failed []string) {
	paths := files.Paths()
	for i, p := range paths {
		f, _ := files.Get(p)
		lines := strings.Split(strings.TrimRight(f.Content, "\n"), "\n")
		if m.updateBuffer(p, lines) {
			updated = append(updated, p)
		} else {
			failed = append(failed, p)
		}
		if progressCb != nil {
			progressCb(i+1, len(paths))
		}
	}
	return updated, failed
}

func (m *NvimManager) updateBuffer(filePath string, content []string) bool {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return false
	}

	byteContent := make([][]byte, len(content))
	for i, s := range content {
		byteContent[i] = []byte(s)
	}

	b := m.v.NewBatch()
	b.Command(fmt.Sprintf("edit %s", absPath))
	b.SetBufferLines(0, 0, -1, true, byteContent)

	return b.Execute() == nil
}

func (m *NvimManager) SaveAllBuffers() {
	m.v.Command("wa!")
}
