package predicate

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// NodeKind is the two-variant tag of spec.md §3's data model.
type NodeKind int

const (
	KindLiteralNode NodeKind = iota
	KindCallNode
)

// Phase distinguishes the two points in the graph lifecycle (spec.md §4.4)
// at which validate is invoked.
type Phase int

const (
	ValidatePre Phase = iota
	ValidatePost
)

func (p Phase) String() string {
	if p == ValidatePost {
		return "post-transform"
	}
	return "pre-transform"
}

var nodeUIDSeq uint64

func nextUID() uint64 { return atomic.AddUint64(&nodeUIDSeq, 1) }

// Node is the single, variant-tagged node type the redesign notes in
// spec.md §9 call for: a Literal carries a Value, a Call carries a name,
// an ordered argument list, and a CallImplementation capability table
// resolved from the CallFactory that constructed it.
//
// A Node's identity (variant, name/literal) never changes after
// construction; only its argument list contents are rewritten, and only
// through MergeGraph's mutation primitives.
type Node struct {
	uid uint64

	kind    NodeKind
	literal Value

	name string
	args []*Node
	impl CallImplementation

	// parents is the non-owning back-reference set: nodes that list this
	// node as an argument. Maintained exclusively by MergeGraph.
	parents map[*Node]struct{}

	// origins is a file:line multiset, represented as counts, unioned on
	// merge (spec.md §3 invariant 6).
	origins map[string]int

	// index is assigned by the lifecycle indexing step (spec.md §4.4 step
	// 6); -1 until then. It is distinct from uid, which exists purely to
	// give every node a stable identity for structural hashing before any
	// index has been assigned.
	index int

	// mgKey is the structural key this node is currently filed under in its
	// owning MergeGraph's node table; "" if the node is not (or no longer)
	// live in any graph. Exclusively maintained by MergeGraph.
	mgKey string

	textCache string
	textValid bool
}

// NewLiteral constructs a fresh, unmerged literal node.
func NewLiteral(v Value) *Node {
	return &Node{
		uid:     nextUID(),
		kind:    KindLiteralNode,
		literal: v,
		parents: map[*Node]struct{}{},
		origins: map[string]int{},
		index:   -1,
	}
}

// newCallNode constructs a fresh, unmerged call node. Only CallFactory
// should call this, since it is the one place that resolves name to impl.
func newCallNode(name string, impl CallImplementation, args []*Node) *Node {
	return &Node{
		uid:     nextUID(),
		kind:    KindCallNode,
		name:    name,
		args:    args,
		impl:    impl,
		parents: map[*Node]struct{}{},
		origins: map[string]int{},
		index:   -1,
	}
}

// IsLiteral reports whether n is a Literal node.
func (n *Node) IsLiteral() bool { return n.kind == KindLiteralNode }

// IsCall reports whether n is a Call node.
func (n *Node) IsCall() bool { return n.kind == KindCallNode }

// Name returns the call name; empty for literal nodes.
func (n *Node) Name() string { return n.name }

// Literal returns the literal payload; the zero Value for call nodes.
func (n *Node) Literal() Value { return n.literal }

// Children returns the ordered argument list. Never mutate the returned
// slice; use MergeGraph's mutation primitives instead.
func (n *Node) Children() []*Node {
	if n.kind != KindCallNode {
		return nil
	}
	return n.args
}

// Index is the lifecycle-assigned dense index, or -1 before indexing.
func (n *Node) Index() int { return n.index }

// Parents returns the current parent set. The returned slice is a fresh
// copy; mutating it has no effect on the graph.
func (n *Node) Parents() []*Node {
	ps := make([]*Node, 0, len(n.parents))
	for p := range n.parents {
		ps = append(ps, p)
	}
	return ps
}

// Origins returns the origin multiset as a flattened, repeated slice.
func (n *Node) Origins() []string {
	out := make([]string, 0, len(n.origins))
	for origin, count := range n.origins {
		for i := 0; i < count; i++ {
			out = append(out, origin)
		}
	}
	return out
}

func (n *Node) addOrigin(origin string) {
	if origin == "" {
		return
	}
	n.origins[origin]++
}

func (n *Node) unionOrigins(other map[string]int) {
	for origin, count := range other {
		n.origins[origin] += count
	}
}

// String renders n in the parser's surface syntax; literal-only subtrees
// round-trip through Parse (spec.md §8 property 8).
func (n *Node) String() string {
	if n.textValid {
		return n.textCache
	}
	var s string
	switch n.kind {
	case KindLiteralNode:
		s = n.literal.String()
	case KindCallNode:
		var b strings.Builder
		b.WriteByte('(')
		b.WriteString(n.name)
		for _, a := range n.args {
			b.WriteByte(' ')
			b.WriteString(a.String())
		}
		b.WriteByte(')')
		s = b.String()
	}
	n.textCache = s
	n.textValid = true
	return s
}

// invalidateText clears the cached to_s form after a structural mutation,
// together with that of every ancestor whose text embeds it.
func (n *Node) invalidateText() {
	if !n.textValid {
		return
	}
	n.textValid = false
	for p := range n.parents {
		p.invalidateText()
	}
}

// structuralKey returns the canonical hash key MergeGraph uses for CSE.
// Children must already be canonical representatives (merge processes
// arguments before the parent), so identity (uid) is sufficient to key
// on them.
func (n *Node) structuralKey() string {
	var b strings.Builder
	switch n.kind {
	case KindLiteralNode:
		b.WriteString("L:")
		b.WriteString(strconv.Itoa(int(n.literal.Kind)))
		b.WriteByte(':')
		b.WriteString(n.literal.String())
	case KindCallNode:
		b.WriteString("C:")
		b.WriteString(n.name)
		for _, a := range n.args {
			b.WriteByte(':')
			b.WriteString(strconv.FormatUint(a.uid, 36))
		}
	}
	return b.String()
}

// Validate runs the node-local validation check for the given phase. For
// literal nodes this is always empty; call nodes delegate to impl.
func (n *Node) Validate(phase Phase) []Diagnostic {
	if n.kind != KindCallNode || n.impl == nil {
		return nil
	}
	return n.impl.Validate(n, phase)
}

// Transform gives the node a chance to replace itself in mg; see
// CallImplementation.Transform for the contract. Literal nodes never
// transform.
func (n *Node) Transform(mg *MergeGraph, cf *CallFactory) (bool, error) {
	if n.kind != KindCallNode || n.impl == nil {
		return false, nil
	}
	return n.impl.Transform(n, mg, cf)
}

// PreEvaluate performs one-shot, per-context preparation. Literal nodes
// have nothing to prepare.
func (n *Node) PreEvaluate(pc *PerContext) error {
	if n.kind != KindCallNode || n.impl == nil {
		return nil
	}
	return n.impl.PreEvaluate(n, pc)
}

// Eval produces this node's partial value into state for tx. Literal nodes
// are always immediately finished with their own value; call nodes
// delegate to impl, which is responsible for recursing into children.
func (n *Node) Eval(state *EvalState, tx *Transaction) {
	if n.kind == KindLiteralNode {
		if state.finished[n.index] {
			return
		}
		state.value[n.index] = n.literal
		state.finished[n.index] = true
		return
	}
	if n.impl == nil {
		return
	}
	n.impl.Eval(n, state, tx)
}
