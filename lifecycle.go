package predicate

import (
	"fmt"
	"os"
)

// DefaultTransformCap is the maximum number of whole-graph transform passes
// the lifecycle will run before giving up, per spec.md §4.4 step 3.
const DefaultTransformCap = 1000

// reachable returns every node reachable from roots, in deterministic BFS
// order (the order the lifecycle's validate/transform/index/pre-evaluate
// passes all rely on).
func reachable(roots []*Node) []*Node {
	seen := map[*Node]bool{}
	var order []*Node
	queue := append([]*Node{}, roots...)
	for _, r := range roots {
		seen[r] = true
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, c := range n.Children() {
			if !seen[c] {
				seen[c] = true
				queue = append(queue, c)
			}
		}
	}
	return order
}

// validate runs phase validation over every node reachable from mg's roots,
// collecting every diagnostic before deciding whether to fail, so a single
// pass surfaces every problem instead of only the first (spec.md §4.4 steps
// 2 and 5).
func validate(mg *MergeGraph, phase Phase) ([]Diagnostic, error) {
	var all []Diagnostic
	for _, n := range reachable(mg.Roots()) {
		all = append(all, n.Validate(phase)...)
	}
	if errorCount(all) > 0 {
		return all, &BatchError{Stage: fmt.Sprintf("validate(%s)", phase), Sentinel: ErrValidation, Diagnostics: all}
	}
	return all, nil
}

// transformToFixpoint repeatedly sweeps every reachable node's Transform
// until a full sweep reports no change, or cap sweeps have run. Each sweep
// re-derives the reachable set from mg's current roots, since a transform
// may have added, removed, or replaced nodes (spec.md §4.4 step 3).
func transformToFixpoint(mg *MergeGraph, cf *CallFactory, cap int) (int, error) {
	if cap <= 0 {
		cap = DefaultTransformCap
	}
	for sweep := 0; sweep < cap; sweep++ {
		changed := false
		for _, n := range reachable(mg.Roots()) {
			ok, err := n.Transform(mg, cf)
			if err != nil {
				return sweep, fmt.Errorf("%w: transform %s: %w", ErrTransform, n, err)
			}
			if ok {
				changed = true
			}
		}
		if !changed {
			return sweep, nil
		}
	}
	return cap, fmt.Errorf("%w: %d sweeps without reaching a fixpoint: %w", ErrTransform, cap, ErrTransformCap)
}

// assignIndices walks mg's current root set in BFS order and assigns each
// reachable node a dense index, 0..N-1, in first-visit order. This is the
// indexing spec.md §4.4 step 6 requires before any per-transaction state can
// be sized.
func assignIndices(mg *MergeGraph) (int, []*Node) {
	order := reachable(mg.Roots())
	for i, n := range order {
		n.index = i
	}
	return len(order), order
}

// preEvaluateAll calls PreEvaluate exactly once on every node in order,
// which must already be the indexed reachable set (spec.md §4.4 step 7).
func preEvaluateAll(pc *PerContext, order []*Node) error {
	for _, n := range order {
		if err := n.PreEvaluate(pc); err != nil {
			return fmt.Errorf("%w: pre-evaluate %s: %w", ErrPreEvaluation, n, err)
		}
	}
	return nil
}

// writeDebugReportCheckpoint writes mg's current debug report to pc's
// configured PredicateDebugReport destination, if any: stderr for "-",
// append to the named file otherwise. A no-op if pc.debugReportTo is unset
// (spec.md §6).
func writeDebugReportCheckpoint(pc *PerContext, mg *MergeGraph, checkpoint string) error {
	if pc.debugReportTo == "" {
		return nil
	}
	report := fmt.Sprintf("=== PredicateDebugReport: %s ===\n%s\n", checkpoint, NewReporter(pc).WriteDebugReport(mg))

	if pc.debugReportTo == "-" {
		_, err := fmt.Fprint(os.Stderr, report)
		return err
	}
	f, err := os.OpenFile(pc.debugReportTo, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("writing debug report to %q: %w", pc.debugReportTo, err)
	}
	defer f.Close()
	if _, err := f.WriteString(report); err != nil {
		return fmt.Errorf("writing debug report to %q: %w", pc.debugReportTo, err)
	}
	return nil
}

// runLifecycle drives a MergeGraph through assert_valid -> validate(PRE) ->
// transform to fixpoint -> assert_valid -> validate(POST) -> index ->
// pre_evaluate, the full sequence spec.md §4.4 describes, stopping at the
// first stage that fails. It writes the PredicateDebugReport checkpoints
// before and after the transform stage (spec.md §6). On success it returns
// the indexed, pre-evaluated node order.
func runLifecycle(pc *PerContext) ([]*Node, error) {
	mg, cf := pc.mergeGraph, pc.callFactory

	if err := mg.AssertValid(); err != nil {
		return nil, err
	}
	if _, err := validate(mg, ValidatePre); err != nil {
		return nil, err
	}
	if err := writeDebugReportCheckpoint(pc, mg, "before-transform"); err != nil {
		return nil, err
	}
	if _, err := transformToFixpoint(mg, cf, pc.transformCap); err != nil {
		return nil, err
	}
	if err := writeDebugReportCheckpoint(pc, mg, "after-transform"); err != nil {
		return nil, err
	}
	if err := mg.AssertValid(); err != nil {
		return nil, err
	}
	if _, err := validate(mg, ValidatePost); err != nil {
		return nil, err
	}
	_, order := assignIndices(mg)
	if err := preEvaluateAll(pc, order); err != nil {
		return nil, err
	}
	return order, nil
}
