package stf

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
)

// Config drives one CLI invocation.
type Config struct {
	Protocol   string
	PolicyPath string
	Root       string
	Undo       bool
	Redo       bool
	FixDiffs   bool
	UseNvim    bool
	Verbose    bool
	Extensions []string
	Files      []string
}

type ProgressUpdate func(current, total int)

type App struct {
	cfg              *Config
	policy           *Policy
	stateManager     *StateManager
	pathResolver     *PathResolver
	sourceProvider   *SourceProvider
	fileManager      *FileManager
	log              *slog.Logger
	progressCallback ProgressUpdate

	oldHashes map[string]string
}

type DetailedError struct {
	Err   error
	Stack []byte
}

func (e *DetailedError) Error() string { return e.Err.Error() }

func NewApp(cfg *Config) (*App, error) {
	policy, err := LoadPolicy(cfg.PolicyPath)
	if err != nil {
		return nil, err
	}

	sm, err := NewStateManager()
	if err != nil {
		return nil, err
	}

	pr, err := NewPathResolver(cfg.Root)
	if err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	return &App{
		cfg:            cfg,
		policy:         policy,
		stateManager:   sm,
		pathResolver:   pr,
		sourceProvider: NewSourceProvider(),
		fileManager:    NewFileManager(pr),
		log:            logger,
	}, nil
}

func (a *App) SetProgressCallback(cb ProgressUpdate) { a.progressCallback = cb }

func (a *App) Execute() (summary Summary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &DetailedError{Err: fmt.Errorf("panic: %v", r), Stack: debug.Stack()}
		}
	}()

	switch {
	case a.cfg.Undo:
		return a.undoLastOperation()
	case a.cfg.Redo:
		return a.redoLastOperation()
	case a.cfg.FixDiffs:
		return a.fixAndPrintDiffs()
	default:
		return a.processContent()
	}
}

func (a *App) processContent() (Summary, error) {
	c, err := a.sourceProvider.GetContent()
	if err != nil || c == "" {
		return Summary{Message: "Empty source"}, err
	}
	return a.ProcessAndApply(c)
}

// diskLookup feeds existing working-tree content into the engine so edits
// have a base to apply against.
func (a *App) diskLookup(canonical string) (string, bool) {
	data, err := os.ReadFile(a.pathResolver.OnDisk(canonical))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// ProcessAndApply runs the full pipeline over one payload: decode, mutate,
// finalize, validate with a free self-heal pass, then flush to the working
// tree and record history.
func (a *App) ProcessAndApply(content string) (Summary, error) {
	engine := NewEngine(
		WithPolicy(a.policy),
		WithLogger(a.log),
		WithProtocol(ParseProtocol(a.cfg.Protocol)),
		WithLoader(a.diskLookup),
	)

	engine.Feed(content)
	engine.Finish()

	report, err := engine.AutoFix(context.Background(), nil)
	if err != nil {
		return Summary{}, err
	}

	summary := engine.Summary()
	a.filterSummary(engine, &summary)
	if len(summary.Created)+len(summary.Modified)+len(summary.Renamed)+len(summary.Deleted) == 0 {
		return Summary{Message: "Nothing to do"}, nil
	}

	summary.Message = summaryMessage(report)
	if err := a.applyToDisk(engine, &summary); err != nil {
		return summary, err
	}
	a.recordHistory(engine, summary)
	a.relativizeSummaryPaths(&summary)
	return summary, nil
}

func summaryMessage(r *ValidationReport) string {
	switch {
	case r.ReadyForFinalize:
		return fmt.Sprintf("Done (coverage %d%%)", r.CoverageScore)
	default:
		return fmt.Sprintf("Done with warnings: %d outstanding (coverage %d%%)",
			len(r.Violations()), r.CoverageScore)
	}
}

// filterSummary honors the -e/-f flags by dropping files outside the filter
// from the applied set.
func (a *App) filterSummary(engine *Engine, s *Summary) {
	if len(a.cfg.Extensions) == 0 && len(a.cfg.Files) == 0 {
		return
	}
	allowed := func(p string) bool {
		if len(a.cfg.Files) > 0 {
			for _, f := range a.cfg.Files {
				if PathCanon(f) == p {
					return true
				}
			}
			return false
		}
		ext := filepath.Ext(p)
		for _, e := range a.cfg.Extensions {
			if ext == e {
				return true
			}
		}
		return false
	}

	keep := func(paths []string) []string {
		var out []string
		for _, p := range paths {
			if allowed(p) {
				out = append(out, p)
			} else {
				engine.Files().Apply(Event{Kind: EventDelete, Path: p, Reason: "filtered"})
			}
		}
		return out
	}
	s.Created = keep(s.Created)
	s.Modified = keep(s.Modified)
}

func (a *App) applyToDisk(engine *Engine, s *Summary) error {
	oldHashes := make(map[string]string)
	trash := filepath.Join(a.stateManager.StateDir, TrashDir)

	// renames and deletes first, then content writes
	for _, r := range s.Renamed {
		from, to, ok := strings.Cut(r, " -> ")
		if !ok {
			continue
		}
		fromDisk, toDisk := a.pathResolver.OnDisk(from), a.pathResolver.OnDisk(to)
		a.backupFileState(fromDisk, oldHashes)
		if _, err := os.Stat(fromDisk); err == nil {
			_ = os.MkdirAll(filepath.Dir(toDisk), 0755)
			if err := os.Rename(fromDisk, toDisk); err != nil {
				s.Failed = append(s.Failed, fromDisk)
			}
		}
	}

	var deleted []string
	for _, p := range s.Deleted {
		disk := a.pathResolver.OnDisk(p)
		a.backupFileState(disk, oldHashes)
		if err := a.pathResolver.Trash(p, trash); err != nil {
			s.Failed = append(s.Failed, disk)
			continue
		}
		deleted = append(deleted, p)
	}
	s.Deleted = deleted

	for _, p := range s.Modified {
		a.backupFileState(a.pathResolver.OnDisk(p), oldHashes)
	}

	_, dirs := a.fileManager.DiskActions(engine.Files())
	if err := CreateDirs(dirs); err != nil {
		return err
	}

	var failed []string
	if a.cfg.UseNvim {
		nm, err := NewNvimManager()
		if err != nil {
			return fmt.Errorf("could not reach nvim: %w", err)
		}
		defer nm.Close()
		_, failed = nm.ApplyFiles(engine.Files(), a.progressCallback)
		nm.SaveAllBuffers()
	} else {
		_, failed = a.fileManager.WriteFiles(engine.Files(), func(done int) {
			if a.progressCallback != nil {
				a.progressCallback(done, len(engine.Files().Paths()))
			}
		})
	}
	s.Failed = append(s.Failed, failed...)

	a.oldHashes = oldHashes
	return nil
}

// recordHistory journals the run so --undo can restore prior state.
func (a *App) recordHistory(engine *Engine, s Summary) {
	actions := make(map[string]string)
	renames := make(map[string]string)
	var paths []string

	for _, p := range s.Created {
		disk := a.pathResolver.OnDisk(p)
		actions[disk] = "create"
		paths = append(paths, disk)
	}
	for _, p := range s.Modified {
		disk := a.pathResolver.OnDisk(p)
		actions[disk] = "modify"
		paths = append(paths, disk)
	}
	for _, p := range s.Deleted {
		disk := a.pathResolver.OnDisk(p)
		actions[disk] = "delete"
		paths = append(paths, disk)
	}
	for _, r := range s.Renamed {
		from, to, ok := strings.Cut(r, " -> ")
		if !ok {
			continue
		}
		disk := a.pathResolver.OnDisk(from)
		actions[disk] = "rename"
		renames[disk] = a.pathResolver.OnDisk(to)
		paths = append(paths, disk)
	}

	if len(paths) == 0 {
		return
	}
	ops := a.stateManager.CreateOperations(engine.ID, paths, actions, renames, a.oldHashes, a.pathResolver)
	a.stateManager.Write(ops)
}

func (a *App) backupFileState(diskPath string, hashes map[string]string) {
	if _, ok := hashes[diskPath]; ok {
		return
	}
	h, _ := GetFileSHA256(diskPath)
	hashes[diskPath] = h
	if h != "" {
		if content, err := os.ReadFile(diskPath); err == nil {
			_ = WriteBlob(a.stateManager.StateDir, h, content)
		}
	}
}

func (a *App) fixAndPrintDiffs() (Summary, error) {
	c, _ := a.sourceProvider.GetContent()
	blocks, err := ExtractCodeBlocks([]byte(c))
	if err != nil {
		return Summary{}, err
	}
	for _, b := range blocks {
		if b.Lang != "diff" {
			continue
		}
		raw := strings.Trim(b.Content, "\n")
		path := ExtractPathFromDiff(raw)
		if path == "" {
			continue
		}
		var sourceLines []string
		if src, ok := a.diskLookup(path); ok && src != "" {
			sourceLines = strings.Split(strings.TrimSuffix(src, "\n"), "\n")
		}
		if res, err := CorrectDiffHunks(sourceLines, raw, path); err == nil {
			fmt.Print(res)
		}
	}
	return Summary{}, nil
}

func (a *App) undoLastOperation() (Summary, error) {
	a.stateManager.Sync()
	ops := a.stateManager.GetOperationsToUndo()
	if len(ops) == 0 {
		return Summary{Message: "No undo"}, nil
	}
	s := a.fileManager.Undo(ops, a.stateManager.StateDir)
	s.Message = "Undone"
	a.relativizeSummaryPaths(&s)
	return s, nil
}

func (a *App) redoLastOperation() (Summary, error) {
	ops := a.stateManager.GetOperationsToRedo()
	if len(ops) == 0 {
		return Summary{Message: "No redo"}, nil
	}
	s := a.fileManager.Redo(ops, a.stateManager.StateDir)
	s.Message = "Redone"
	a.relativizeSummaryPaths(&s)
	return s, nil
}

func (a *App) relativizeSummaryPaths(s *Summary) {
	wd, _ := os.Getwd()
	relPath := func(p string) string {
		if !filepath.IsAbs(p) {
			return p
		}
		if r, err := filepath.Rel(wd, p); err == nil {
			return r
		}
		return p
	}

	relList := func(paths []string) []string {
		var res []string
		for _, p := range paths {
			if strings.Contains(p, " -> ") {
				parts := strings.SplitN(p, " -> ", 2)
				res = append(res, fmt.Sprintf("%s -> %s", relPath(parts[0]), relPath(parts[1])))
			} else {
				res = append(res, relPath(p))
			}
		}
		return res
	}
	s.Created = relList(s.Created)
	s.Modified = relList(s.Modified)
	s.Deleted = relList(s.Deleted)
	s.Renamed = relList(s.Renamed)
	s.Failed = relList(s.Failed)
}
