package stf

import (
	"fmt"
	"regexp"
	"strings"
)

var filePathRegex = regexp.MustCompile(`(?m)^\+\+\+ b/(?P<path>.*?)(\s|$)`)

func ExtractPathFromDiff(content string) string {
	if match := filePathRegex.FindStringSubmatch(content); len(match) > 1 {
		return strings.TrimSpace(match[1])
	}
	return ""
}

// ApplyUnifiedDiff applies a unified diff to source lines, tolerating hunk
// headers whose line numbers drifted.
func ApplyUnifiedDiff(source []string, patch string) []string {
	patchLines := strings.Split(patch, "\n")
	var result []string
	srcIdx := 0

	for i := 0; i < len(patchLines); i++ {
		line := patchLines[i]
		if !strings.HasPrefix(line, "@@ -") {
			continue
		}

		parts := strings.Split(line, " ")
		if len(parts) < 2 {
			continue
		}

		rangePart := strings.TrimPrefix(parts[1], "-")
		rangeSplit := strings.Split(rangePart, ",")
		if len(rangeSplit) == 0 || rangeSplit[0] == "" {
			continue
		}
		start := atoiDefault(rangeSplit[0], 1)

		startIdx := max(0, start-1)

		for srcIdx < startIdx && srcIdx < len(source) {
			result = append(result, source[srcIdx])
			srcIdx++
		}

		i++
		for i < len(patchLines) {
			hunkLine := patchLines[i]
			if strings.HasPrefix(hunkLine, "@@") || strings.HasPrefix(hunkLine, "---") || strings.HasPrefix(hunkLine, "+++") {
				i--
				break
			}

			if strings.HasPrefix(hunkLine, "+") {
				result = append(result, hunkLine[1:])
			} else if strings.HasPrefix(hunkLine, "-") {
				srcIdx++
			} else if strings.HasPrefix(hunkLine, " ") {
				result = append(result, hunkLine[1:])
				srcIdx++
			}
			i++
		}
	}

	for srcIdx < len(source) {
		result = append(result, source[srcIdx])
		srcIdx++
	}

	return result
}

func atoiDefault(s string, def int) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return def
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func getTargetBlock(diff []string) []string {
	var block []string
	for _, line := range diff {
		if strings.HasPrefix(line, "-") || strings.HasPrefix(line, " ") {
			block = append(block, line[1:])
		}
	}
	return block
}

func matchBlock(source, block []string, startLine int) (int, int) {
	if len(block) == 0 {
		return len(source) + 1, len(source)
	}

	startIdx := startLine - 1
	if startIdx < 0 {
		startIdx = 0
	}

	for i := startIdx; i <= len(source)-len(block); i++ {
		match := true
		for j := 0; j < len(block); j++ {
			if source[i+j] != block[j] {
				match = false
				break
			}
		}
		if match {
			return i + 1, i + len(block)
		}
	}
	return -1, -1
}

// CorrectDiffHunks re-derives hunk headers by locating each hunk's context in
// the source, so diffs with stale line numbers still apply.
func CorrectDiffHunks(sourceLines []string, raw, path string) (string, error) {
	var hunks [][]string
	var ch []string
	for _, l := range strings.Split(raw, "\n") {
		if strings.HasPrefix(l, "---") || strings.HasPrefix(l, "+++") {
			continue
		}
		if strings.HasPrefix(l, "@@") {
			if len(ch) > 0 {
				hunks = append(hunks, ch)
			}
			ch = nil
			continue
		}
		if strings.HasPrefix(l, "+") || strings.HasPrefix(l, "-") || strings.HasPrefix(l, " ") {
			ch = append(ch, l)
		}
	}
	if len(ch) > 0 {
		hunks = append(hunks, ch)
	}

	if len(hunks) == 0 {
		return "", nil
	}

	var cp []string
	cp = append(cp, fmt.Sprintf("--- a/%s\n+++ b/%s\n", path, path))
	offset, last := 0, 0
	for _, h := range hunks {
		os, me := matchBlock(sourceLines, getTargetBlock(h), last+1)
		if os == -1 {
			return "", fmt.Errorf("failed match")
		}
		last = me

		ac, rc := 0, 0
		for _, l := range h {
			if strings.HasPrefix(l, "+") {
				ac++
			} else if strings.HasPrefix(l, "-") {
				rc++
			}
		}
		ol, nl := (len(h)-ac), (len(h)-rc)
		cp = append(cp, fmt.Sprintf("@@ -%d,%d +%d,%d @@\n", os, ol, os+offset, nl))
		for _, l := range h {
			cp = append(cp, l+"\n")
		}
		offset += nl - ol
	}
	return strings.Join(cp, ""), nil
}
