package predicate

import (
	"fmt"
)

// MergeGraph is the configuration-time DAG container described in spec.md
// §4.3: every expression ever acquired in a context lives here exactly
// once per distinct structure (common sub-expression elimination), with
// root and origin tracking and the mutation primitives transforms use to
// rewrite the graph in place.
type MergeGraph struct {
	// nodes indexes every live node by its canonical structural key.
	nodes map[string]*Node

	// rootIndexToNode maps a stable root index (assigned in acquisition
	// order) to the node it currently names. Entries are never removed;
	// Replace keeps this table current as roots get rewritten.
	rootIndexToNode []*Node

	// nodeRootIndices is the reverse mapping: a node to the set of root
	// indices that currently name it.
	nodeRootIndices map[*Node]map[int]struct{}
}

// NewMergeGraph returns an empty MergeGraph.
func NewMergeGraph() *MergeGraph {
	return &MergeGraph{
		nodes:           map[string]*Node{},
		nodeRootIndices: map[*Node]map[int]struct{}{},
	}
}

// Size is the number of distinct live nodes in the graph.
func (mg *MergeGraph) Size() int { return len(mg.nodes) }

func (mg *MergeGraph) insert(n *Node) *Node {
	n.mgKey = n.structuralKey()
	mg.nodes[n.mgKey] = n
	for _, c := range n.Children() {
		c.parents[n] = struct{}{}
	}
	return n
}

// Merge inserts node (and, recursively, any new descendants) into the
// graph, or returns the existing structurally-equal representative if one
// already exists. Origins are unioned into whichever node is returned.
// This is spec.md §4.3's `merge`.
func (mg *MergeGraph) Merge(node *Node) *Node {
	if node.IsLiteral() {
		key := node.structuralKey()
		if existing, ok := mg.nodes[key]; ok {
			if existing != node {
				existing.unionOrigins(node.origins)
			}
			return existing
		}
		return mg.insert(node)
	}

	for i, c := range node.args {
		node.args[i] = mg.Merge(c)
	}
	key := node.structuralKey()
	if existing, ok := mg.nodes[key]; ok {
		if existing != node {
			existing.unionOrigins(node.origins)
		}
		return existing
	}
	return mg.insert(node)
}

// AddRoot merges node into the graph and marks the resulting representative
// as a root, returning a fresh, stable root index. Multiple calls with
// structurally-equal roots return different indices mapping to the same
// representative (spec.md §3 invariant 5).
func (mg *MergeGraph) AddRoot(node *Node) (int, *Node) {
	rep := mg.Merge(node)
	idx := len(mg.rootIndexToNode)
	mg.rootIndexToNode = append(mg.rootIndexToNode, rep)
	if mg.nodeRootIndices[rep] == nil {
		mg.nodeRootIndices[rep] = map[int]struct{}{}
	}
	mg.nodeRootIndices[rep][idx] = struct{}{}
	return idx, rep
}

// AddOrigin merges node (a no-op if it is already canonical) and appends
// origin to its representative's origin multiset, returning that
// representative.
func (mg *MergeGraph) AddOrigin(node *Node, origin string) *Node {
	rep := mg.Merge(node)
	rep.addOrigin(origin)
	return rep
}

// Origins returns node's origin multiset, flattened.
func (mg *MergeGraph) Origins(node *Node) []string { return node.Origins() }

// IsRoot reports whether node is currently named by at least one root
// index.
func (mg *MergeGraph) IsRoot(node *Node) bool {
	return len(mg.nodeRootIndices[node]) > 0
}

// RootIndices returns the set of root indices currently naming node.
func (mg *MergeGraph) RootIndices(node *Node) []int {
	idxs := make([]int, 0, len(mg.nodeRootIndices[node]))
	for idx := range mg.nodeRootIndices[node] {
		idxs = append(idxs, idx)
	}
	return idxs
}

// Roots returns the distinct set of root representative nodes, in order of
// the lowest root index that names them — this is also the deterministic
// BFS seeding order the lifecycle relies on (spec.md §4.4 step 6).
func (mg *MergeGraph) Roots() []*Node {
	seen := map[*Node]bool{}
	out := make([]*Node, 0, len(mg.rootIndexToNode))
	for _, n := range mg.rootIndexToNode {
		if n == nil || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// RootCount is the number of root indices ever assigned (including ones
// that now alias the same representative).
func (mg *MergeGraph) RootCount() int { return len(mg.rootIndexToNode) }

// RootByIndex resolves a root index to its current representative node.
func (mg *MergeGraph) RootByIndex(idx int) (*Node, bool) {
	if idx < 0 || idx >= len(mg.rootIndexToNode) {
		return nil, false
	}
	return mg.rootIndexToNode[idx], true
}

func isDescendant(root, target *Node) bool {
	visited := map[*Node]bool{}
	stack := []*Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == target {
			return true
		}
		if visited[n] {
			continue
		}
		visited[n] = true
		stack = append(stack, n.Children()...)
	}
	return false
}

func (mg *MergeGraph) wouldCycle(old, new *Node) bool {
	for _, p := range old.Parents() {
		if p == new || isDescendant(new, p) {
			return true
		}
	}
	return false
}

// rekey re-inserts n under its current structural key after a mutation to
// its argument list, cascading upward (folding n into a pre-existing
// duplicate, and retrying each of n's former parents) until the graph is
// uniform again. This is how Replace/AddEdge/RemoveEdge satisfy "full CSE
// as part of the mutation" (spec.md §4.3).
func (mg *MergeGraph) rekey(n *Node) {
	worklist := []*Node{n}
	for len(worklist) > 0 {
		p := worklist[0]
		worklist = worklist[1:]

		if p.mgKey != "" {
			delete(mg.nodes, p.mgKey)
			p.mgKey = ""
		}
		newKey := p.structuralKey()
		existing, ok := mg.nodes[newKey]
		if !ok {
			p.mgKey = newKey
			mg.nodes[newKey] = p
			continue
		}
		if existing == p {
			p.mgKey = newKey
			mg.nodes[newKey] = p
			continue
		}

		// p now duplicates existing: fold p's parents onto existing and
		// retry those parents, since their child identity just changed.
		existing.unionOrigins(p.origins)
		if idxs, ok2 := mg.nodeRootIndices[p]; ok2 {
			for idx := range idxs {
				mg.rootIndexToNode[idx] = existing
				if mg.nodeRootIndices[existing] == nil {
					mg.nodeRootIndices[existing] = map[int]struct{}{}
				}
				mg.nodeRootIndices[existing][idx] = struct{}{}
			}
			delete(mg.nodeRootIndices, p)
		}
		for _, gp := range p.Parents() {
			changed := false
			for i, c := range gp.args {
				if c == p {
					gp.args[i] = existing
					changed = true
				}
			}
			if changed {
				delete(p.parents, gp)
				existing.parents[gp] = struct{}{}
				gp.invalidateText()
				worklist = append(worklist, gp)
			}
		}
	}
}

// Replace atomically substitutes old with new in every parent's child
// list, transferring old's root-index assignments and origins to new's
// (post-merge) representative. If the substitution would introduce a cycle
// — most notably, replacing a node with its own parent — Replace fails
// with an error wrapping ErrInvalidState and leaves the graph unchanged
// (spec.md §8 property 3 / scenario S6).
func (mg *MergeGraph) Replace(old, new *Node) error {
	if old == new {
		return nil
	}
	if mg.wouldCycle(old, new) {
		return fmt.Errorf("replace %s with %s: %w", old, new, ErrInvalidState)
	}

	parents := old.Parents()
	rep := mg.Merge(new)
	if rep == old {
		return nil
	}

	for _, p := range parents {
		changed := false
		for i, c := range p.args {
			if c == old {
				p.args[i] = rep
				changed = true
			}
		}
		if changed {
			delete(old.parents, p)
			rep.parents[p] = struct{}{}
			p.invalidateText()
		}
	}

	if idxs, ok := mg.nodeRootIndices[old]; ok {
		for idx := range idxs {
			mg.rootIndexToNode[idx] = rep
			if mg.nodeRootIndices[rep] == nil {
				mg.nodeRootIndices[rep] = map[int]struct{}{}
			}
			mg.nodeRootIndices[rep][idx] = struct{}{}
		}
		delete(mg.nodeRootIndices, old)
	}
	rep.unionOrigins(old.origins)
	if old.mgKey != "" {
		delete(mg.nodes, old.mgKey)
		old.mgKey = ""
	}

	for _, p := range parents {
		mg.rekey(p)
	}
	return nil
}

// setChildren is the shared implementation behind AddEdge/RemoveEdge/
// ReplaceEdge: install newArgs as parent's argument list, fix up parent
// back-references for whichever children were added or dropped, and
// re-canonicalize parent (cascading, as in Replace).
func (mg *MergeGraph) setChildren(parent *Node, newArgs []*Node) error {
	if !parent.IsCall() {
		return fmt.Errorf("setChildren: %s is not a call node: %w", parent, ErrInvalidState)
	}
	merged := make([]*Node, len(newArgs))
	for i, c := range newArgs {
		if isDescendant(c, parent) {
			return fmt.Errorf("adding %s as a child of %s would create a cycle: %w", c, parent, ErrInvalidState)
		}
		merged[i] = mg.Merge(c)
	}

	oldCount := map[*Node]int{}
	for _, c := range parent.args {
		oldCount[c]++
	}
	newCount := map[*Node]int{}
	for _, c := range merged {
		newCount[c]++
	}
	for c, n := range oldCount {
		if newCount[c] < n {
			delete(c.parents, parent)
		}
	}
	for c := range newCount {
		c.parents[parent] = struct{}{}
	}

	parent.args = merged
	parent.invalidateText()
	mg.rekey(parent)
	return nil
}

// AddEdge appends child as a new last argument of parent.
func (mg *MergeGraph) AddEdge(parent, child *Node) error {
	return mg.setChildren(parent, append(append([]*Node{}, parent.args...), child))
}

// RemoveEdge removes the argument at index from parent's argument list.
func (mg *MergeGraph) RemoveEdge(parent *Node, index int) error {
	if index < 0 || index >= len(parent.args) {
		return fmt.Errorf("RemoveEdge: index %d out of range for %s: %w", index, parent, ErrInvalidState)
	}
	newArgs := make([]*Node, 0, len(parent.args)-1)
	newArgs = append(newArgs, parent.args[:index]...)
	newArgs = append(newArgs, parent.args[index+1:]...)
	return mg.setChildren(parent, newArgs)
}

// ReplaceEdge installs child as parent's argument at index.
func (mg *MergeGraph) ReplaceEdge(parent *Node, index int, child *Node) error {
	if index < 0 || index >= len(parent.args) {
		return fmt.Errorf("ReplaceEdge: index %d out of range for %s: %w", index, parent, ErrInvalidState)
	}
	newArgs := append([]*Node{}, parent.args...)
	newArgs[index] = child
	return mg.setChildren(parent, newArgs)
}

// Copy returns a deep, structurally-identical copy of mg in which every
// call node's CallImplementation has been freshly constructed via cf,
// rather than shared with mg. This realizes the copy-on-context-open model
// of spec.md §9: a child configuration context inherits its parent's
// MergeGraph by full structural copy, so transforms on the child cannot
// mutate the parent, and no two contexts ever share mutable per-call
// state.
func (mg *MergeGraph) Copy(cf *CallFactory) (*MergeGraph, error) {
	out := NewMergeGraph()
	memo := map[*Node]*Node{}

	var copyNode func(n *Node) (*Node, error)
	copyNode = func(n *Node) (*Node, error) {
		if nn, ok := memo[n]; ok {
			return nn, nil
		}
		var nn *Node
		if n.IsLiteral() {
			nn = NewLiteral(n.literal)
		} else {
			newArgs := make([]*Node, len(n.args))
			for i, c := range n.args {
				cn, err := copyNode(c)
				if err != nil {
					return nil, err
				}
				newArgs[i] = cn
			}
			var err error
			nn, err = cf.New(n.name, newArgs, "")
			if err != nil {
				return nil, err
			}
		}
		nn.unionOrigins(n.origins)
		memo[n] = nn
		out.insert(nn)
		return nn, nil
	}

	out.rootIndexToNode = make([]*Node, len(mg.rootIndexToNode))
	for idx, oldRoot := range mg.rootIndexToNode {
		if oldRoot == nil {
			continue
		}
		newRoot, err := copyNode(oldRoot)
		if err != nil {
			return nil, err
		}
		out.rootIndexToNode[idx] = newRoot
		if out.nodeRootIndices[newRoot] == nil {
			out.nodeRootIndices[newRoot] = map[int]struct{}{}
		}
		out.nodeRootIndices[newRoot][idx] = struct{}{}
	}
	return out, nil
}

// WriteValidationReport runs the parent-consistency, acyclicity, and
// uniqueness audits spec.md §4.3 requires of write_validation_report,
// writing any failures to w and returning true iff none were found.
func (mg *MergeGraph) WriteValidationReport(w func(string)) bool {
	ok := true
	seenKeys := map[string]*Node{}
	for _, n := range mg.nodes {
		key := n.structuralKey()
		if other, dup := seenKeys[key]; dup && other != n {
			w(fmt.Sprintf("uniqueness violation: %q maps to both %s and %s", key, other, n))
			ok = false
		}
		seenKeys[key] = n

		for _, c := range n.Children() {
			if _, has := c.parents[n]; !has {
				w(fmt.Sprintf("parent-consistency violation: %s has child %s, but %s does not list %s as a parent", n, c, c, n))
				ok = false
			}
		}
		for p := range n.parents {
			found := false
			for _, c := range p.Children() {
				if c == n {
					found = true
					break
				}
			}
			if !found {
				w(fmt.Sprintf("parent-consistency violation: %s lists %s as a parent, but %s does not have %s as a child", n, p, p, n))
				ok = false
			}
		}

		if isDescendant(n, n) && hasRealCycle(n) {
			w(fmt.Sprintf("acyclicity violation: %s is its own transitive descendant", n))
			ok = false
		}
	}
	return ok
}

// hasRealCycle distinguishes "n reaches n trivially because isDescendant
// treats the root as reachable from itself" from an actual cycle, by
// checking whether any child subtree of n reaches back to n.
func hasRealCycle(n *Node) bool {
	for _, c := range n.Children() {
		if isDescendant(c, n) {
			return true
		}
	}
	return false
}

// AssertValid runs WriteValidationReport and returns an error wrapping
// ErrInvalidState if it finds any problems; this is the internal audit
// spec.md §4.4 step 1/4 calls for.
func (mg *MergeGraph) AssertValid() error {
	var messages []string
	ok := mg.WriteValidationReport(func(s string) { messages = append(messages, s) })
	if ok {
		return nil
	}
	return fmt.Errorf("%d internal consistency violation(s), first: %s: %w", len(messages), messages[0], ErrInvalidState)
}
