package stf

import (
	"log/slog"
	"sort"

	"github.com/google/uuid"
)

// Engine is one in-flight generation run. It is single-threaded and
// cooperative: driven entirely by Feed, it never blocks inside an event, and
// all state (decoder automaton, alias table, basename registry, per-file
// statuses) is owned exclusively by the run. A new run must be a new Engine.
type Engine struct {
	ID string

	policy *Policy
	files  *FileSet
	mut    *Mutator
	dec    Decoder
	log    *slog.Logger
	sink   func(Event)

	protocol Protocol
	resolver func(string) string
	loader   SourceLookup

	aborted  bool
	finished bool

	created  map[string]bool
	modified map[string]bool
	renamed  []string
	deleted  []string
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.log = logger }
}

func WithPolicy(p *Policy) Option {
	return func(e *Engine) { e.policy = p }
}

func WithProtocol(p Protocol) Option {
	return func(e *Engine) { e.protocol = p }
}

// WithResolver overrides raw-to-canonical path resolution.
func WithResolver(resolve func(string) string) Option {
	return func(e *Engine) { e.resolver = resolve }
}

// WithSink registers a consumer for the ordered canonicalized event stream.
func WithSink(sink func(Event)) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithLoader supplies lazy access to pre-existing project content, e.g. the
// working tree, so edit events have a base without seeding the whole tree.
func WithLoader(lookup SourceLookup) Option {
	return func(e *Engine) { e.loader = lookup }
}

// WithSeed preloads existing project files so edits and the move
// reference check have a base.
func WithSeed(seed map[string]string) Option {
	return func(e *Engine) {
		for p, content := range seed {
			e.files.Seed(p, content)
		}
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		ID:       uuid.NewString(),
		files:    NewFileSet(),
		protocol: ProtocolAuto,
		created:  make(map[string]bool),
		modified: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.policy == nil {
		e.policy = DefaultPolicy()
	}
	if e.log == nil {
		e.log = slog.New(slog.DiscardHandler)
	}
	e.log = e.log.With("run", e.ID)

	if e.protocol == ProtocolMarkdown {
		e.dec = NewMarkdownDecoder(e.lookupContent)
	} else {
		e.dec = NewDecoder(e.protocol)
	}
	e.mut = NewMutator(e.policy, e.resolver, e.files, e.log)
	return e
}

func (e *Engine) Files() *FileSet { return e.files }

// lookupContent resolves current content from the in-memory tree first, then
// the injected loader.
func (e *Engine) lookupContent(path string) (string, bool) {
	if content, ok := e.files.Content(path); ok {
		return content, true
	}
	if e.loader != nil {
		return e.loader(path)
	}
	return "", false
}

// Feed pushes one chunk of upstream text through the decoder and applies the
// resulting events. After Abort, chunks are ignored.
func (e *Engine) Feed(chunk string) {
	if e.aborted || e.finished {
		return
	}
	for _, ev := range e.dec.Feed(chunk) {
		e.dispatch(ev)
	}
}

// Finish flushes the decoder and finalizes anything still open. Safe to call
// once per run; later calls are no-ops.
func (e *Engine) Finish() {
	if e.finished {
		return
	}
	e.finished = true
	if !e.aborted {
		for _, ev := range e.dec.Finish() {
			e.dispatch(ev)
		}
	}
	for _, p := range e.files.WritingPaths() {
		f := e.files.Finalize(p, true)
		if f != nil {
			e.logOutcome(f, true)
		}
	}
}

// Abort stops chunk consumption between events. Files left mid-write go
// through the same partial handling as a network truncation, via Finish.
func (e *Engine) Abort() {
	if e.aborted {
		return
	}
	e.aborted = true
	e.log.Info("run aborted")
	e.Finish()
}

// dispatch canonicalizes one raw event through the mutation engine, applies
// it to the file tree and forwards it to the sink.
func (e *Engine) dispatch(raw Event) {
	ev, ok := e.mut.Apply(raw)
	if !ok {
		return
	}

	switch ev.Kind {
	case EventStart:
		_, existed := e.files.Get(ev.Path)
		if !existed && ev.Mode == ModeEdit && e.loader != nil {
			if content, ok := e.loader(ev.Path); ok {
				e.files.Seed(ev.Path, content)
				existed = true
			}
		}
		if ev.Mode == ModeCreate && !existed {
			e.created[ev.Path] = true
		} else {
			e.modified[ev.Path] = true
		}
		e.log.Info("file started", "path", ev.Path, "mode", ev.Mode.String())
	case EventEnd:
		// applied below, then finalized
	case EventDelete:
		e.deleted = append(e.deleted, ev.Path)
		e.log.Info("file deleted", "path", ev.Path, "reason", ev.Reason)
	case EventMove:
		e.renamed = append(e.renamed, ev.Path+" -> "+ev.ToPath)
		e.log.Info("file moved", "from", ev.Path, "to", ev.ToPath, "reason", ev.Reason)
	}

	e.files.Apply(ev)
	if e.sink != nil {
		e.sink(ev)
	}

	if ev.Kind == EventEnd {
		f := e.files.Finalize(ev.Path, ev.Partial)
		if f != nil {
			e.logOutcome(f, ev.Partial)
		}
	}
}

func (e *Engine) logOutcome(f *File, interrupted bool) {
	switch f.Status {
	case StatusReady:
		e.log.Info("file complete", "path", f.Path)
	case StatusCompromised:
		e.log.Warn("file repaired after inconsistent stream", "path", f.Path, "reason", f.Reason)
	case StatusPartial:
		if interrupted {
			e.log.Warn("file interrupted, awaiting resume", "path", f.Path, "line", f.CursorLine)
		} else {
			e.log.Warn("file failed integrity check", "path", f.Path, "reason", f.Reason)
		}
	}
}

// Validate runs the constraint validator over the current file set.
func (e *Engine) Validate() *ValidationReport {
	return Validate(e.files, e.policy)
}

// Summary reports the run outcome in the shape the CLI and TUI render.
func (e *Engine) Summary() Summary {
	var s Summary
	for p := range e.created {
		s.Created = append(s.Created, p)
	}
	for p := range e.modified {
		if !e.created[p] {
			s.Modified = append(s.Modified, p)
		}
	}
	sort.Strings(s.Created)
	sort.Strings(s.Modified)
	s.Renamed = append(s.Renamed, e.renamed...)
	s.Deleted = append(s.Deleted, e.deleted...)

	for _, p := range e.files.Paths() {
		f, _ := e.files.Get(p)
		if f.Status == StatusPartial {
			s.Partial = append(s.Partial, p)
		}
		if f.Repaired {
			s.Repaired = append(s.Repaired, p)
		}
	}
	return s
}
