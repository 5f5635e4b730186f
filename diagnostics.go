package predicate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Delta456/box-cli-maker/v2"
	"github.com/alexeyco/simpletable"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Reporter renders diagnostics and debug/validation reports in the boxed,
// tabular style this codebase has always used for anything meant to be
// read by a human staring at a terminal.
type Reporter struct {
	ctx *PerContext
}

// NewReporter returns a Reporter bound to ctx.
func NewReporter(ctx *PerContext) *Reporter { return &Reporter{ctx: ctx} }

// DiagnosticsReport renders ds as a boxed table: severity, message, and the
// node each diagnostic was blamed to, sorted by index so the report reads
// top-down in lifecycle-assigned order.
func (r *Reporter) DiagnosticsReport(title string, ds []Diagnostic) string {
	sorted := append([]Diagnostic{}, ds...)
	sort.Slice(sorted, func(i, j int) bool {
		return blameIndex(sorted[i].Node) < blameIndex(sorted[j].Node)
	})

	t := simpletable.New()
	t.Header = &simpletable.Header{
		Cells: []*simpletable.Cell{
			{Align: simpletable.AlignCenter, Text: "Severity"},
			{Align: simpletable.AlignCenter, Text: "Node"},
			{Align: simpletable.AlignCenter, Text: "Message"},
		},
	}
	for _, d := range sorted {
		node := "<nil>"
		if d.Node != nil {
			node = d.Node.String()
		}
		t.Body.Cells = append(t.Body.Cells, []*simpletable.Cell{
			{Text: d.Severity.String()},
			{Text: node},
			{Text: d.Message},
		})
	}
	t.SetStyle(simpletable.StyleUnicode)

	box := box.New(box.Config{Px: 2, Py: 1, Type: "Double", Color: "Cyan", TitlePos: "Top", ContentAlign: "Left"})
	return box.String(title, t.String())
}

func blameIndex(n *Node) int {
	if n == nil {
		return -1
	}
	return n.index
}

// FindRoots returns every root node that transitively depends on n
// (including n itself if it is a root) — the root lookup behind the blame
// report original_source's report_find_roots produces when a diagnostic
// needs to explain which configured expressions are responsible for a bad
// node deep inside the graph. BlameReport pairs these roots with origins.
func FindRoots(mg *MergeGraph, n *Node) []*Node {
	seen := map[*Node]bool{}
	var roots []*Node
	var walk func(cur *Node)
	walk = func(cur *Node) {
		if seen[cur] {
			return
		}
		seen[cur] = true
		if mg.IsRoot(cur) {
			roots = append(roots, cur)
		}
		for _, p := range cur.Parents() {
			walk(p)
		}
	}
	walk(n)
	return roots
}

// BlameReport renders n, its origins, and every root that transitively
// depends on it together with those roots' own origins — the diagnostic
// IronBee operators reach for when a deep node misbehaves and the question
// is "which of my configured rules put this here."
func (r *Reporter) BlameReport(mg *MergeGraph, n *Node) string {
	var s strings.Builder
	fmt.Fprintf(&s, "Node:\n-----\n%s\n\n", n)
	fmt.Fprintf(&s, "Origins:\n--------\n%s\n\n", strings.Join(n.Origins(), "\n"))

	roots := FindRoots(mg, n)
	fmt.Fprintf(&s, "Depended on by %d root(s):\n", len(roots))
	for _, root := range roots {
		fmt.Fprintf(&s, "  %s\n    origins: %s\n", root, strings.Join(root.Origins(), ", "))
	}

	box := box.New(box.Config{Px: 2, Py: 1, Type: "Single", Color: "Yellow", TitlePos: "Top", ContentAlign: "Left"})
	return box.String("PREDICATE BLAME REPORT", s.String())
}

// WriteValidationReport renders mg's structural audit (spec.md §4.3) as a
// go-pretty table and returns whether it passed.
func (r *Reporter) WriteValidationReport(mg *MergeGraph) (string, bool) {
	var problems []string
	ok := mg.WriteValidationReport(func(msg string) { problems = append(problems, msg) })

	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Problem"})
	for i, p := range problems {
		t.AppendRow(table.Row{i + 1, p})
	}
	if len(problems) == 0 {
		t.AppendRow(table.Row{"-", "no problems found"})
	}
	return t.Render(), ok
}

// WriteContextDebugReport renders a dump like WriteDebugReport's, but from
// an already-closed PerContext's frozen, indexed node order, so it remains
// usable after the MergeGraph itself has been released. It has no Root
// column; the Index column is each node's lifecycle-assigned index.
func (r *Reporter) WriteContextDebugReport(ctx *PerContext) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Index", "Node", "Origins"})
	for _, n := range ctx.Nodes() {
		t.AppendRow(table.Row{n.Index(), n.String(), strings.Join(n.Origins(), ", ")})
	}
	return t.Render()
}

// WriteDebugReport renders a full dump of mg's live nodes: index, text,
// origins, and root membership, in BFS order — the PredicateDebugReport
// directive's payload (spec.md §6).
func (r *Reporter) WriteDebugReport(mg *MergeGraph) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Index", "Node", "Root", "Origins"})
	for i, n := range reachable(mg.Roots()) {
		root := ""
		if mg.IsRoot(n) {
			root = fmt.Sprintf("%v", mg.RootIndices(n))
		}
		t.AppendRow(table.Row{i, n.String(), root, strings.Join(n.Origins(), ", ")})
	}
	return t.Render()
}
