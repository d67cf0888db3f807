package stf

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
)

// Validate derives a fresh report from the full file set. Rule categories are
// independent: structural presence, per-kind integrity, markup-link
// reachability (which also produces the coverage score) and naming
// convention. Naming alone is advisory and never triggers the auto-fix loop.
func Validate(files *FileSet, policy *Policy) *ValidationReport {
	r := &ValidationReport{CoverageScore: 100}

	for _, required := range policy.RequiredFiles {
		if _, ok := files.Get(required); !ok {
			r.MissingFeatures = append(r.MissingFeatures, "missing:"+required)
		}
	}

	for _, p := range files.Paths() {
		f, _ := files.Get(p)

		switch f.Status {
		case StatusPartial:
			r.CriticalViolations = append(r.CriticalViolations, "partial:"+p)
		case StatusWriting:
			r.CriticalViolations = append(r.CriticalViolations, "unfinished:"+p)
		}

		if f.Kind != KindOther && strings.TrimSpace(f.Content) == "" {
			r.CriticalViolations = append(r.CriticalViolations, "empty:"+p)
			continue
		}

		if f.Kind != KindOther {
			if err := Scan(f.Content, f.Kind); err != nil {
				r.HiddenIssues = append(r.HiddenIssues, fmt.Sprintf("syntax:%s:%s", p, err.Error()))
			}
		}

		if !policy.NameConforms(basenameOf(p)) {
			r.NamingViolations = append(r.NamingViolations, "naming:"+p)
		}
	}

	resolved, total := 0, 0
	for _, p := range files.Paths() {
		f, _ := files.Get(p)
		if f.Kind != KindMarkup {
			continue
		}
		for _, target := range markupReferences(f.Content) {
			total++
			if resolveReference(files, p, target) {
				resolved++
			} else {
				r.RoutingViolations = append(r.RoutingViolations, fmt.Sprintf("route:%s->%s", p, target))
			}
		}
	}
	if total > 0 {
		r.CoverageScore = resolved * 100 / total
	}

	r.ReadyForFinalize = len(r.MissingFeatures) == 0 &&
		len(r.CriticalViolations) == 0 && len(r.HiddenIssues) == 0
	r.ShouldAutoFix = len(r.MissingFeatures) > 0 || len(r.CriticalViolations) > 0 ||
		len(r.HiddenIssues) > 0 || len(r.RoutingViolations) > 0
	return r
}

var refAttrRegex = regexp.MustCompile(`(?:href|src)\s*=\s*["']([^"']+)["']`)

// markupReferences extracts local cross-file references from markup content;
// external URLs, anchors and data URIs are not the engine's to resolve.
func markupReferences(content string) []string {
	var refs []string
	for _, m := range refAttrRegex.FindAllStringSubmatch(content, -1) {
		target := strings.TrimSpace(m[1])
		if target == "" ||
			strings.HasPrefix(target, "#") ||
			strings.HasPrefix(target, "http://") ||
			strings.HasPrefix(target, "https://") ||
			strings.HasPrefix(target, "//") ||
			strings.HasPrefix(target, "mailto:") ||
			strings.HasPrefix(target, "tel:") ||
			strings.HasPrefix(target, "data:") ||
			strings.HasPrefix(target, "javascript:") {
			continue
		}
		if idx := strings.IndexAny(target, "?#"); idx >= 0 {
			target = target[:idx]
		}
		if target != "" {
			refs = append(refs, target)
		}
	}
	return refs
}

func resolveReference(files *FileSet, from, target string) bool {
	candidate := PathCanon(target)
	if candidate != "" {
		if _, ok := files.Get(candidate); ok {
			return true
		}
	}
	joined := PathCanon(path.Join(path.Dir(from), target))
	if joined != "" {
		if _, ok := files.Get(joined); ok {
			return true
		}
	}
	return false
}

// IssueSignature is the stable, sorted, deduplicated join of violation
// identifiers used for stall detection.
func IssueSignature(violations []string) string {
	if len(violations) == 0 {
		return ""
	}
	seen := make(map[string]struct{}, len(violations))
	uniq := make([]string, 0, len(violations))
	for _, v := range violations {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		uniq = append(uniq, v)
	}
	sort.Strings(uniq)
	return strings.Join(uniq, "|")
}
