package stf

import (
	"context"
	"fmt"
	"strings"
)

// RepairRequest is the textual contract sent to the upstream inference
// collaborator for one batch of outstanding violations. The response must use
// the marker protocol, so the re-invoked decoder parses it identically to the
// original generation.
type RepairRequest struct {
	Batch       string
	Issues      []string
	HealedFiles []string
}

// RepairFunc asks the upstream collaborator for a repair stream. The returned
// channel yields text chunks and must be closed by the sender; the engine
// consumes it between events, never mid-event.
type RepairFunc func(ctx context.Context, req RepairRequest) (<-chan string, error)

// BuildRepairPrompt renders the repair request the auto-fix loop sends
// upstream: the outstanding issue identifiers for one batch, the files
// already repaired deterministically this round, and the marker-protocol
// instructions the original generation used.
func BuildRepairPrompt(req RepairRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Fix the following %s issues in the generated project.\n\n", req.Batch)
	for _, issue := range req.Issues {
		fmt.Fprintf(&b, "- %s\n", issue)
	}
	if len(req.HealedFiles) > 0 {
		b.WriteString("\nThese files were already repaired automatically; do not regenerate them unless listed above:\n")
		for _, f := range req.HealedFiles {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	b.WriteString(`
Respond with file operations only, using these markers:
[start-file: path] ... [end-file] to write a whole file,
[patch-file: path] with [search] ... [replace] ... [end-edit] blocks to edit,
[delete-file: path | reason: ...] and [move-file: from -> to | reason: ...].
`)
	return b.String()
}

// AutoFix drives bounded repair rounds: a free deterministic self-heal pass,
// a fresh validation, then one targeted re-decode per non-empty violation
// batch. The round bound guarantees termination; signature comparison stops
// the loop early when a round made no forward progress, surfacing the
// best-effort result instead of repeating identical fixes.
func (e *Engine) AutoFix(ctx context.Context, repair RepairFunc) (*ValidationReport, error) {
	prevSig := ""

	for round := 1; round <= e.policy.MaxFixRounds; round++ {
		healed := e.files.HealAll()
		if len(healed) > 0 {
			e.log.Info("self-heal pass repaired files", "round", round, "files", healed)
		}

		report := Validate(e.files, e.policy)
		if !report.ShouldAutoFix {
			e.log.Info("validation clean, stopping auto-fix", "round", round)
			return report, nil
		}

		sig := IssueSignature(report.Violations())
		if sig == prevSig {
			e.log.Info("no forward progress, stopping auto-fix early", "round", round)
			return report, nil
		}
		prevSig = sig

		if repair == nil {
			return report, nil
		}

		e.log.Info("auto-fix round", "round", round, "violations", len(report.Violations()))
		for _, batch := range repairBatches(report) {
			if len(batch.Issues) == 0 {
				continue
			}
			batch.HealedFiles = healed
			if err := e.runRepairBatch(ctx, repair, batch); err != nil {
				return Validate(e.files, e.policy), err
			}
		}
	}

	return Validate(e.files, e.policy), nil
}

type repairBatch = RepairRequest

// repairBatches orders violations the way repairs compose: hidden syntax
// problems first, then structural gaps, then routing, then quality/naming.
func repairBatches(r *ValidationReport) []repairBatch {
	var critical []string
	critical = append(critical, r.CriticalViolations...)
	critical = append(critical, r.MissingFeatures...)
	return []repairBatch{
		{Batch: "hidden-syntax", Issues: r.HiddenIssues},
		{Batch: "critical-structure", Issues: critical},
		{Batch: "routing", Issues: r.RoutingViolations},
		{Batch: "quality-naming", Issues: r.NamingViolations},
	}
}

func (e *Engine) runRepairBatch(ctx context.Context, repair RepairFunc, req RepairRequest) error {
	chunks, err := repair(ctx, req)
	if err != nil {
		return fmt.Errorf("repair request for %s batch failed: %w", req.Batch, err)
	}

	dec := newMarkerDecoder()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				for _, ev := range dec.Finish() {
					e.dispatch(ev)
				}
				return nil
			}
			for _, ev := range dec.Feed(chunk) {
				e.dispatch(ev)
			}
		}
	}
}
