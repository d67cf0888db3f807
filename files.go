package stf

import (
	"sort"
	"strings"
)

// File is one entry of the in-memory project tree during a generation run.
type File struct {
	Path       string
	RawPath    string
	Mode       Mode
	Kind       FileKind
	Status     IntegrityStatus
	Content    string
	CursorLine int
	Repaired   bool
	Reason     string

	buf     strings.Builder
	edited  string
	hadText bool
	hadEdit bool
}

// FileSet is the project file state owned by one generation run.
type FileSet struct {
	files map[string]*File
}

func NewFileSet() *FileSet {
	return &FileSet{files: make(map[string]*File)}
}

// Seed preloads existing project content, e.g. from disk, so edits have a
// base to apply against.
func (fs *FileSet) Seed(path, content string) {
	fs.files[path] = &File{
		Path:    path,
		Kind:    KindForPath(path),
		Status:  StatusReady,
		Content: content,
	}
}

func (fs *FileSet) Get(path string) (*File, bool) {
	f, ok := fs.files[path]
	return f, ok
}

func (fs *FileSet) Content(path string) (string, bool) {
	if f, ok := fs.files[path]; ok {
		return f.Content, true
	}
	return "", false
}

func (fs *FileSet) Paths() []string {
	paths := make([]string, 0, len(fs.files))
	for p := range fs.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Each visits files in sorted path order; returning false stops the walk.
func (fs *FileSet) Each(fn func(path, content string) bool) {
	for _, p := range fs.Paths() {
		if !fn(p, fs.files[p].Content) {
			return
		}
	}
}

// Apply folds one canonicalized event into the tree. The switch is
// exhaustive over the event union; adding a kind breaks compilation of every
// consumer by design of the union, not silently at runtime.
func (fs *FileSet) Apply(ev Event) {
	switch ev.Kind {
	case EventStart:
		f := fs.files[ev.Path]
		if f == nil {
			f = &File{Path: ev.Path}
			fs.files[ev.Path] = f
		}
		f.RawPath = ev.RawPath
		f.Mode = ev.Mode
		f.Kind = KindForPath(ev.Path)
		f.Status = StatusWriting
		f.buf.Reset()
		f.hadText, f.hadEdit = false, false
		f.edited = f.Content

	case EventChunk:
		f := fs.files[ev.Path]
		if f == nil {
			// chunk without a surviving start, best-effort recovery
			f = &File{Path: ev.Path, Kind: KindForPath(ev.Path), Status: StatusWriting}
			f.edited = ""
			fs.files[ev.Path] = f
		}
		if ev.Search != "" || ev.Replace != "" {
			if strings.Contains(f.edited, ev.Search) {
				f.edited = strings.Replace(f.edited, ev.Search, ev.Replace, 1)
				f.hadEdit = true
			}
			return
		}
		f.buf.WriteString(ev.Text)
		f.hadText = true

	case EventEnd:
		f := fs.files[ev.Path]
		if f == nil {
			return
		}
		switch {
		case f.hadText:
			f.Content = f.buf.String()
		case f.hadEdit:
			f.Content = f.edited
		case f.Mode == ModeCreate && !ev.Partial:
			// a create that confirmed completion without ever streaming a
			// chunk is an intentionally empty file
			f.Content = ""
		}
		f.buf.Reset()
		f.CursorLine = ev.CursorLine

	case EventDelete:
		delete(fs.files, ev.Path)

	case EventMove:
		f := fs.files[ev.Path]
		if f == nil {
			return
		}
		delete(fs.files, ev.Path)
		f.Path = ev.ToPath
		f.Kind = KindForPath(ev.ToPath)
		fs.files[ev.ToPath] = f
	}
}

// Finalize runs the integrity pass for one file after its stream ended.
// Clean end with a clean scan is Ready; content the healer changed is
// Compromised; an interrupted file that could not be safely repaired, or
// whose content scanned clean but was never confirmed complete, stays
// Partial for a later resume pass.
func (fs *FileSet) Finalize(path string, partial bool) *File {
	f := fs.files[path]
	if f == nil {
		return nil
	}

	// an aborted stream never delivered the end event, so the buffered
	// text has not been folded yet
	if f.Status == StatusWriting {
		switch {
		case f.buf.Len() > 0:
			f.Content = f.buf.String()
			f.buf.Reset()
		case f.hadEdit && !f.hadText:
			f.Content = f.edited
		}
	}

	if f.Kind == KindOther {
		if partial {
			f.Status = StatusPartial
		} else {
			f.Status = StatusReady
		}
		return f
	}

	scanErr := Scan(f.Content, f.Kind)

	if f.Kind == KindMarkup {
		res := Heal(f.Content, f.Kind)
		f.Content = res.Content
		switch {
		case partial && scanErr != nil:
			f.Status = StatusCompromised
			f.Repaired = true
		case partial:
			f.Status = StatusPartial
		case scanErr != nil:
			f.Status = StatusCompromised
			f.Repaired = true
		default:
			f.Status = StatusReady
		}
		if scanErr != nil {
			f.Reason = scanErr.Error()
		}
		return f
	}

	if !partial && scanErr == nil {
		f.Status = StatusReady
		return f
	}

	res := Heal(f.Content, f.Kind)
	switch {
	case res.OK && res.Repaired:
		f.Content = res.Content
		f.Status = StatusCompromised
		f.Repaired = true
	case res.OK:
		// content scans clean but the stream never confirmed completion
		f.Status = StatusPartial
	default:
		f.Status = StatusPartial
		f.Reason = res.Reason
	}
	if scanErr != nil && f.Reason == "" {
		f.Reason = scanErr.Error()
	}
	return f
}

// HealAll runs the deterministic self-heal over every healable file and
// returns the paths whose content changed. This is the free first pass of
// an auto-fix round.
func (fs *FileSet) HealAll() []string {
	var repaired []string
	for _, p := range fs.Paths() {
		f := fs.files[p]
		if f.Kind == KindOther || f.Status == StatusWriting {
			continue
		}
		res := Heal(f.Content, f.Kind)
		if !res.OK || !res.Repaired {
			continue
		}
		f.Content = res.Content
		f.Repaired = true
		if f.Status == StatusPartial {
			f.Status = StatusCompromised
		}
		repaired = append(repaired, p)
	}
	return repaired
}

// WritingPaths returns files still open mid-stream, used when an abort or
// truncation finalizes the run.
func (fs *FileSet) WritingPaths() []string {
	var open []string
	for _, p := range fs.Paths() {
		if fs.files[p].Status == StatusWriting {
			open = append(open, p)
		}
	}
	return open
}

// PartialPaths returns files awaiting a resume pass.
func (fs *FileSet) PartialPaths() []string {
	var partial []string
	for _, p := range fs.Paths() {
		if fs.files[p].Status == StatusPartial {
			partial = append(partial, p)
		}
	}
	return partial
}
