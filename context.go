package predicate

import (
	"fmt"
	"sync"
)

// Oracle is a resolved handle to one root expression acquired from a
// PerContext: a (context, root index) pair, exactly as spec.md §4.6
// describes. It is cheap to copy and safe to retain past the context it
// came from closing; querying it before that close fails with
// ErrQueryBeforeClose.
type Oracle struct {
	ctx       *PerContext
	rootIndex int
}

// Query evaluates the oracle's root against tx, returning its value and
// whether evaluation finished. See PerContext.Query for the contract.
func (o *Oracle) Query(tx *Transaction) (Value, bool, error) {
	return o.ctx.Query(o.rootIndex, tx)
}

// String renders the root expression's surface syntax, for debug reports.
func (o *Oracle) String() string {
	if n, ok := o.ctx.rootNode(o.rootIndex); ok {
		return n.String()
	}
	return fmt.Sprintf("<oracle #%d>", o.rootIndex)
}

// PerContext is one configuration-time predicate context: a MergeGraph, a
// CallFactory (which may carry its own template definitions distinct from
// its parent's), and the lifecycle state that Close advances it through.
// It mirrors the PerContext/Delegate split in the original IronBee module,
// collapsed into a single type since this port has no module-delegate
// boundary to preserve.
type PerContext struct {
	mu sync.Mutex

	mergeGraph  *MergeGraph
	callFactory *CallFactory

	transformCap int

	closed bool
	order  []*Node // reachable nodes, BFS/indexed order, valid only after close
	frozen []*Node // root index -> representative node, valid only after close

	debugReportTo string
}

// NewContext returns a fresh, open, empty PerContext using cf to resolve
// call names. Pass the same CallFactory (or a Clone of it) to multiple
// sibling contexts to share a standard call library without sharing
// template definitions.
func NewContext(cf *CallFactory) *PerContext {
	return &PerContext{
		mergeGraph:   NewMergeGraph(),
		callFactory:  cf,
		transformCap: DefaultTransformCap,
	}
}

// NewChildContext returns a new, open PerContext that inherits a full,
// independent copy of parent's MergeGraph (so parent roots, origins, and
// already-defined templates carry over) but that can acquire new
// expressions and define new templates of its own without affecting
// parent, or any context open concurrently with this one. parent does not
// need to be closed. This is the "full copy, not on-demand" contract
// spec.md §9 settles on for context inheritance.
func NewChildContext(parent *PerContext) (*PerContext, error) {
	parent.mu.Lock()
	defer parent.mu.Unlock()

	childCF := parent.callFactory.Clone()
	mg, err := parent.mergeGraph.Copy(childCF)
	if err != nil {
		return nil, fmt.Errorf("copy parent graph: %w", err)
	}
	return &PerContext{
		mergeGraph:   mg,
		callFactory:  childCF,
		transformCap: parent.transformCap,
	}, nil
}

// SetTransformCap overrides the default transform-to-fixpoint sweep cap
// (spec.md §4.4 step 3). Only meaningful before Close.
func (pc *PerContext) SetTransformCap(n int) { pc.transformCap = n }

// SetDebugReport records where Close should automatically write the graph
// dump at the before-transform and after-transform lifecycle checkpoints,
// mirroring the PredicateDebugReport directive (spec.md §6 /
// original_source's ibmod_predicate_core.cpp): "-" writes to stderr,
// anything else is a file path to append to. A PerContext that never calls
// SetDebugReport (the zero value, "") writes nothing at either checkpoint.
// Only meaningful before Close.
func (pc *PerContext) SetDebugReport(to string) { pc.debugReportTo = to }

// CallFactory returns the context's call factory, for registering a
// standard call library or inspecting registered names.
func (pc *PerContext) CallFactory() *CallFactory { return pc.callFactory }

// Acquire parses expr, adds it to the context's MergeGraph as a root, and
// returns an Oracle for it. Valid only before Close; calling it afterward
// returns an error wrapping ErrQueryAfterClose (spec.md §4.6).
func (pc *PerContext) Acquire(expr string, origin string) (*Oracle, error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.closed {
		return nil, fmt.Errorf("acquire %q: %w", expr, ErrQueryAfterClose)
	}
	node, err := Parse(expr, pc.callFactory, origin)
	if err != nil {
		return nil, err
	}
	idx, rep := pc.mergeGraph.AddRoot(node)
	rep.addOrigin(origin)
	return &Oracle{ctx: pc, rootIndex: idx}, nil
}

// AcquireNode is Acquire's non-parsing counterpart, for callers (such as
// the template engine) that already hold a *Node.
func (pc *PerContext) AcquireNode(node *Node, origin string) (*Oracle, error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.closed {
		return nil, fmt.Errorf("acquire node %s: %w", node, ErrQueryAfterClose)
	}
	idx, rep := pc.mergeGraph.AddRoot(node)
	rep.addOrigin(origin)
	return &Oracle{ctx: pc, rootIndex: idx}, nil
}

// DefineTemplate registers name as a new call that, when invoked, expands
// to a copy of body with each ref(param) replaced by the corresponding
// argument. See template.go for the mechanics. Valid only before Close.
func (pc *PerContext) DefineTemplate(name string, params []string, body *Node, origin string) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.closed {
		return fmt.Errorf("define template %q: %w", name, ErrQueryAfterClose)
	}
	return defineTemplate(pc.callFactory, name, params, body, origin)
}

// Close runs the full graph lifecycle (validate, transform to fixpoint,
// re-validate, index, pre-evaluate) and then freezes the context: the
// MergeGraph is released and replaced by an immutable root table, exactly
// as spec.md §4.4/§4.6 describe. Close is idempotent; calling it again
// after a successful close is a no-op.
func (pc *PerContext) Close() error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.closed {
		return nil
	}
	order, err := runLifecycle(pc)
	if err != nil {
		return err
	}
	pc.order = order

	roots := pc.mergeGraph.Roots()
	frozen := make([]*Node, pc.mergeGraph.RootCount())
	for _, r := range roots {
		for _, idx := range pc.mergeGraph.RootIndices(r) {
			frozen[idx] = r
		}
	}
	pc.frozen = frozen
	pc.mergeGraph = nil
	pc.closed = true
	return nil
}

// IsClosed reports whether Close has run successfully.
func (pc *PerContext) IsClosed() bool { return pc.closed }

// IndexLimit is the dense index upper bound assigned during Close; valid
// only afterward.
func (pc *PerContext) IndexLimit() int { return len(pc.order) }

func (pc *PerContext) rootNode(idx int) (*Node, bool) {
	if idx < 0 || idx >= len(pc.frozen) {
		return nil, false
	}
	return pc.frozen[idx], true
}

// Query evaluates the root named by rootIndex against tx and returns its
// value and whether evaluation finished. Valid only after Close; calling it
// beforehand returns an error wrapping ErrQueryBeforeClose (spec.md §4.6).
// tx's evaluation state for this context is created on first query and
// reused by every later query (from this Oracle or any other in the same
// context) against the same transaction, so shared sub-expressions are
// evaluated exactly once per transaction and finished/value are monotone
// across calls (spec.md §2 item 7, §5).
func (pc *PerContext) Query(rootIndex int, tx *Transaction) (Value, bool, error) {
	if !pc.closed {
		return Null, false, fmt.Errorf("query root #%d: %w", rootIndex, ErrQueryBeforeClose)
	}
	root, ok := pc.rootNode(rootIndex)
	if !ok {
		return Null, false, fmt.Errorf("query root #%d: %w", rootIndex, ErrInvalidState)
	}
	v, finished := tx.evalAgainst(pc, len(pc.order), root)
	return v, finished, nil
}

// Nodes returns the post-lifecycle, indexed node order. Valid only after
// Close; used by diagnostics and debug reports.
func (pc *PerContext) Nodes() []*Node { return pc.order }
