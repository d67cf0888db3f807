package stf

// FileKind selects the scanning and healing rules for a file.
type FileKind int

const (
	KindMarkup FileKind = iota
	KindStyle
	KindStylePre // style with preprocessor line comments (scss, less)
	KindScript
	KindScriptTyped // typed script dialects (ts, tsx)
	KindOther
)

// Mode distinguishes creating a file from editing an existing one.
type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit
)

func (m Mode) String() string {
	if m == ModeEdit {
		return "edit"
	}
	return "create"
}

// EventKind tags the closed set of file-mutation events.
type EventKind int

const (
	EventStart EventKind = iota
	EventChunk
	EventEnd
	EventDelete
	EventMove
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventChunk:
		return "chunk"
	case EventEnd:
		return "end"
	case EventDelete:
		return "delete"
	case EventMove:
		return "move"
	}
	return "unknown"
}

// Event is one unit of change against the project file tree.
//
// Which fields are meaningful depends on Kind: Start carries RawPath, Path and
// Mode; Chunk carries Path plus either Text or a Search/Replace pair; End
// carries Path, Mode, Partial and CursorLine; Delete carries Path and Reason;
// Move carries Path, ToPath and Reason. CursorLine is -1 when unknown.
type Event struct {
	Kind       EventKind
	RawPath    string
	Path       string
	ToPath     string
	Mode       Mode
	Text       string
	Search     string
	Replace    string
	Partial    bool
	CursorLine int
	Reason     string
}

// IntegrityStatus tracks a file through one generation run.
type IntegrityStatus int

const (
	StatusReady IntegrityStatus = iota
	StatusWriting
	StatusPartial
	StatusCompromised
)

func (s IntegrityStatus) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusWriting:
		return "writing"
	case StatusPartial:
		return "partial"
	case StatusCompromised:
		return "compromised"
	}
	return "unknown"
}

// HealResult reports one self-heal attempt.
type HealResult struct {
	Content  string
	Repaired bool
	OK       bool
	Reason   string
}

// ValidationReport is derived fresh from the full file set on every call.
type ValidationReport struct {
	MissingFeatures    []string
	CriticalViolations []string
	RoutingViolations  []string
	NamingViolations   []string
	HiddenIssues       []string
	CoverageScore      int
	ReadyForFinalize   bool
	ShouldAutoFix      bool
}

// Violations returns every outstanding violation identifier, ungrouped.
func (r *ValidationReport) Violations() []string {
	var all []string
	all = append(all, r.HiddenIssues...)
	all = append(all, r.CriticalViolations...)
	all = append(all, r.MissingFeatures...)
	all = append(all, r.RoutingViolations...)
	all = append(all, r.NamingViolations...)
	return all
}

// Summary is the user-facing outcome of one run.
type Summary struct {
	Created  []string
	Modified []string
	Renamed  []string
	Deleted  []string
	Partial  []string
	Repaired []string
	Failed   []string
	Message  string
}
