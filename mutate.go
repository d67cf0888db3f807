package stf

import (
	"log/slog"
	"path"
	"strings"
)

// PathCanon canonicalizes a raw project-relative path: forward slashes,
// no leading "./", no duplicate separators. Paths escaping the project root
// resolve to empty, which drops the event.
func PathCanon(raw string) string {
	p := strings.TrimSpace(strings.ReplaceAll(raw, "\\", "/"))
	if p == "" {
		return ""
	}
	p = path.Clean(strings.TrimPrefix(p, "/"))
	if p == "." || p == ".." || strings.HasPrefix(p, "../") {
		return ""
	}
	return p
}

func basenameOf(p string) string {
	return path.Base(strings.ReplaceAll(p, "\\", "/"))
}

// ContentIndex is the mutator's read-only view of current file contents,
// used by the move reference-reachability check.
type ContentIndex interface {
	Each(fn func(path, content string) bool)
}

// Mutator canonicalizes and polices raw mutation events before they reach
// project state. It owns the path alias table and the basename registry for
// exactly one generation run.
type Mutator struct {
	policy *Policy
	index  ContentIndex
	log    *slog.Logger

	resolve func(string) string

	alias      map[string]string // raw path -> resolved path
	basenames  map[string]string // lowercased basename -> owning resolved path
	lastActive string
}

// NewMutator builds a mutator for one run. resolver may be nil, in which
// case PathCanon is used.
func NewMutator(policy *Policy, resolver func(string) string, index ContentIndex, logger *slog.Logger) *Mutator {
	if resolver == nil {
		resolver = PathCanon
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Mutator{
		policy:    policy,
		index:     index,
		log:       logger,
		resolve:   resolver,
		alias:     make(map[string]string),
		basenames: make(map[string]string),
	}
}

// Apply canonicalizes one event. The returned bool is false when the event
// must be dropped (unresolvable path, policy refusal); refusals are logged,
// never raised, since they are the engine protecting prior state.
func (m *Mutator) Apply(ev Event) (Event, bool) {
	switch ev.Kind {
	case EventStart:
		return m.applyStart(ev)
	case EventChunk:
		return m.applyFollow(ev, false)
	case EventEnd:
		return m.applyFollow(ev, true)
	case EventDelete:
		return m.applyDelete(ev)
	case EventMove:
		return m.applyMove(ev)
	}
	return ev, false
}

func (m *Mutator) applyStart(ev Event) (Event, bool) {
	resolved := m.resolve(ev.RawPath)
	if resolved == "" {
		m.log.Debug("dropping event with unresolvable path", "raw", ev.RawPath)
		return ev, false
	}

	if ev.Mode == ModeCreate {
		resolved = m.redirectCreate(resolved)
	}

	m.alias[ev.RawPath] = resolved
	m.lastActive = resolved
	ev.Path = resolved
	return ev, true
}

// redirectCreate rewrites forbidden aliases to the canonical basename and
// collapses duplicate-sensitive basenames onto their registered path.
func (m *Mutator) redirectCreate(resolved string) string {
	base := strings.ToLower(basenameOf(resolved))
	dir := path.Dir(resolved)

	if canonical, ok := m.policy.CanonicalAlias(base); ok {
		if existing, taken := m.basenames[strings.ToLower(canonical)]; taken && existing != resolved {
			m.log.Info("redirecting forbidden alias to existing file", "from", resolved, "to", existing)
			return existing
		}
		rewritten := canonical
		if dir != "." {
			rewritten = path.Join(dir, canonical)
		}
		if rewritten != resolved {
			m.log.Info("rewriting forbidden alias", "from", resolved, "to", rewritten)
		}
		resolved = rewritten
		base = strings.ToLower(canonical)
	}

	if m.policy.IsDuplicateSensitive(base) {
		if existing, taken := m.basenames[base]; taken && existing != resolved {
			m.log.Info("redirecting duplicate basename to existing file", "from", resolved, "to", existing)
			return existing
		}
		m.basenames[base] = resolved
	}
	return resolved
}

// applyFollow resolves Chunk/End events through the alias table, falling
// back to the most recently active path when the raw mapping was lost.
func (m *Mutator) applyFollow(ev Event, isEnd bool) (Event, bool) {
	resolved, ok := m.alias[ev.RawPath]
	if !ok {
		if m.lastActive == "" {
			return ev, false
		}
		resolved = m.lastActive
	}
	ev.Path = resolved
	if isEnd {
		delete(m.alias, ev.RawPath)
	}
	return ev, true
}

func (m *Mutator) applyDelete(ev Event) (Event, bool) {
	resolved, ok := m.alias[ev.RawPath]
	if !ok {
		resolved = m.resolve(ev.RawPath)
	}
	if resolved == "" {
		return ev, false
	}

	if m.policy.IsSensitivePath(resolved) && !m.policy.ReasonIsExplicit(ev.Reason) {
		m.log.Warn("refusing delete of sensitive path", "path", resolved, "reason", ev.Reason)
		return ev, false
	}

	delete(m.alias, ev.RawPath)
	m.dropBasename(resolved)
	ev.Path = resolved
	return ev, true
}

func (m *Mutator) applyMove(ev Event) (Event, bool) {
	from, ok := m.alias[ev.RawPath]
	if !ok {
		from = m.resolve(ev.RawPath)
	}
	to := m.resolve(ev.ToPath)
	if from == "" || to == "" || from == to {
		return ev, false
	}

	explicit := m.policy.ReasonIsExplicit(ev.Reason)
	if m.policy.IsSensitivePath(from) && !explicit {
		m.log.Warn("refusing move of sensitive path", "path", from, "reason", ev.Reason)
		return ev, false
	}
	if !explicit && m.referenced(from) {
		m.log.Warn("refusing move of still-referenced path", "path", from, "reason", ev.Reason)
		return ev, false
	}

	// later chunks addressed at the old raw path follow the file
	m.alias[ev.RawPath] = to
	m.dropBasename(from)
	base := strings.ToLower(basenameOf(to))
	if m.policy.IsDuplicateSensitive(base) {
		m.basenames[base] = to
	}
	if m.lastActive == from {
		m.lastActive = to
	}

	ev.Path = from
	ev.ToPath = to
	return ev, true
}

// referenced conservatively checks whether any other file still mentions the
// path or its basename.
func (m *Mutator) referenced(target string) bool {
	if m.index == nil {
		return false
	}
	base := basenameOf(target)
	found := false
	m.index.Each(func(p, content string) bool {
		if p == target {
			return true
		}
		if strings.Contains(content, target) || strings.Contains(content, base) {
			found = true
			return false
		}
		return true
	})
	return found
}

func (m *Mutator) dropBasename(resolved string) {
	base := strings.ToLower(basenameOf(resolved))
	if m.basenames[base] == resolved {
		delete(m.basenames, base)
	}
}
