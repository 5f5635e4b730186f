package predicate

import "sync"

// Transaction is the per-request environment a frozen graph is evaluated
// against: the boundary spec.md §1 describes between the core and whatever
// embeds it. The core never constructs one itself; callers build a
// Transaction (via NewTransaction) and pass it to Oracle.Query or
// PerContext.Query.
//
// A Transaction lazily holds one EvalState per PerContext it is queried
// against (spec.md §2 item 7, §4.3): the state is created on first query and
// lives as long as the Transaction does, so repeated queries against the
// same context - whether through the same Oracle or different ones sharing
// a sub-expression - see a monotone, single-evaluation view instead of each
// starting from scratch.
type Transaction struct {
	// Fields holds the named inputs the `field` call resolves against. Keys
	// are matched verbatim; a missing key evaluates to Null.
	Fields map[string]Value

	// ID is an optional caller-supplied label; the core never reads it.
	ID string

	mu     sync.Mutex
	states map[*PerContext]*EvalState
}

// NewTransaction returns a Transaction over the given field bindings.
func NewTransaction(fields map[string]Value) *Transaction {
	if fields == nil {
		fields = map[string]Value{}
	}
	return &Transaction{Fields: fields}
}

// evalAgainst evaluates root into tx's EvalState for pc, creating that state
// on first use and sizing it to indexLimit, then returns root's current
// (value, finished). Serialized per transaction: two queries against the
// same transaction (even for different roots or different oracles) run one
// at a time, which is what makes the single-evaluation guarantee for shared
// sub-expressions hold.
func (tx *Transaction) evalAgainst(pc *PerContext, indexLimit int, root *Node) (Value, bool) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.states == nil {
		tx.states = map[*PerContext]*EvalState{}
	}
	state, ok := tx.states[pc]
	if !ok {
		state = newEvalState(indexLimit)
		tx.states[pc] = state
	}
	state.Eval(root, tx)
	return state.Value(root)
}

// Field looks up name in the transaction, returning Null if absent.
func (tx *Transaction) Field(name string) Value {
	if v, ok := tx.Fields[name]; ok {
		return v
	}
	return Null
}

// EvalState is the per-(context, transaction) working set: parallel
// value/finished arrays indexed by each node's lifecycle-assigned index,
// sized once at construction to the frozen graph's index limit (spec.md
// §4.6). One EvalState is shared by every query a given transaction makes
// against a given context, via Transaction.evalAgainst, so that finished
// only ever flips false->true and values only ever grow across calls.
type EvalState struct {
	value    []Value
	finished []bool
}

// newEvalState allocates an EvalState for a graph whose index limit is n.
func newEvalState(n int) *EvalState {
	return &EvalState{
		value:    make([]Value, n),
		finished: make([]bool, n),
	}
}

// Eval evaluates n (recursively, if needed) into this state for tx, and is
// the entry point CallImplementation.Eval methods use to pull a child's
// value. It is cheap and idempotent to call more than once: a node whose
// finished flag is already set returns immediately without re-running its
// implementation (spec.md §4.6 "idempotent-cheap").
func (s *EvalState) Eval(n *Node, tx *Transaction) {
	if s.finished[n.index] {
		return
	}
	n.Eval(s, tx)
}

// Value returns n's current value and whether it has finished evaluating.
// A call that short-circuited past n legitimately leaves it unfinished;
// callers must check Finished before trusting Value.
func (s *EvalState) Value(n *Node) (Value, bool) {
	return s.value[n.index], s.finished[n.index]
}

// Finished reports whether n has produced its final value in this state.
func (s *EvalState) Finished(n *Node) bool {
	return s.finished[n.index]
}

// Set records v as n's final value and marks it finished. Call
// implementations use this instead of writing the slices directly.
func (s *EvalState) Set(n *Node, v Value) {
	s.value[n.index] = v
	s.finished[n.index] = true
}

// SetPartial records v as n's current value without marking it finished, for
// calls that stream a sequence of sub-values across several queries of the
// same transaction (spec.md §4.6's streaming value kind, scenario S4).
// Finished stays false until a later call to Set.
func (s *EvalState) SetPartial(n *Node, v Value) {
	s.value[n.index] = v
}
