package predicate

import (
	"fmt"
	"sync"
)

// CallImplementation is the capability table the REDESIGN FLAGS in spec.md
// §9 call for in place of a class hierarchy: one Node type, and
// variant-specific behavior held behind this interface and looked up by
// call name. The standard call library (package calls) registers one
// CallImplementation constructor per call name into a CallFactory at
// startup.
type CallImplementation interface {
	// Validate returns diagnostics for n at the given lifecycle phase.
	Validate(n *Node, phase Phase) []Diagnostic

	// Transform may replace n within mg with another node (via
	// mg.Replace); it returns whether the graph changed. Must be pure
	// apart from that graph mutation.
	Transform(n *Node, mg *MergeGraph, cf *CallFactory) (bool, error)

	// PreEvaluate performs one-shot, per-context setup after the graph is
	// frozen and before any transaction is evaluated.
	PreEvaluate(n *Node, pc *PerContext) error

	// Eval produces a (possibly partial) value for n into state for tx.
	// Implementations that have children are responsible for recursing
	// into them (via state.Eval) themselves, since only the call knows
	// whether a child needs to be evaluated at all (short-circuiting).
	Eval(n *Node, state *EvalState, tx *Transaction)
}

// BaseCall implements CallImplementation with the no-op defaults spec.md
// §4.2 describes: no diagnostics, no transform, no pre-evaluation setup,
// and (for Eval) nothing — concrete calls embed BaseCall and override only
// the methods their semantics require.
type BaseCall struct{}

func (BaseCall) Validate(n *Node, phase Phase) []Diagnostic                   { return nil }
func (BaseCall) Transform(n *Node, mg *MergeGraph, cf *CallFactory) (bool, error) { return false, nil }
func (BaseCall) PreEvaluate(n *Node, pc *PerContext) error                    { return nil }
func (BaseCall) Eval(n *Node, state *EvalState, tx *Transaction)              {}

// CallConstructor produces a fresh, unbound CallImplementation for a call
// node; CallFactory holds one of these per registered name.
type CallConstructor func() CallImplementation

// CallFactory maps call names to constructors. Registration is
// idempotent-forbidding: re-registering an existing name is an error, which
// is exactly the property the template engine relies on to reject
// redefinition (spec.md §4.5).
type CallFactory struct {
	mu    sync.RWMutex
	ctors map[string]CallConstructor
}

// NewCallFactory returns a CallFactory with only the template engine's
// built-in `ref` marker call registered; callers typically load a standard
// call library (package calls) into it before parsing anything.
func NewCallFactory() *CallFactory {
	cf := &CallFactory{ctors: map[string]CallConstructor{}}
	cf.ctors[refCallName] = func() CallImplementation { return &refCall{} }
	return cf
}

// Register adds a new call name. Returns an error if the name already
// exists.
func (cf *CallFactory) Register(name string, ctor CallConstructor) error {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	if _, exists := cf.ctors[name]; exists {
		return fmt.Errorf("%w: call %q is already registered", ErrInvalidTemplate, name)
	}
	cf.ctors[name] = ctor
	return nil
}

// Has reports whether name is registered.
func (cf *CallFactory) Has(name string) bool {
	cf.mu.RLock()
	defer cf.mu.RUnlock()
	_, ok := cf.ctors[name]
	return ok
}

// New constructs a fresh, unmerged call node named name with the given
// arguments. Returns UnknownCallError if name is not registered.
func (cf *CallFactory) New(name string, args []*Node, origin string) (*Node, error) {
	cf.mu.RLock()
	ctor, ok := cf.ctors[name]
	cf.mu.RUnlock()
	if !ok {
		return nil, &UnknownCallError{Name: name, Origin: origin}
	}
	return newCallNode(name, ctor(), args), nil
}

// Names returns the sorted-by-insertion-unspecified set of registered call
// names; mainly useful for diagnostics and tests.
func (cf *CallFactory) Names() []string {
	cf.mu.RLock()
	defer cf.mu.RUnlock()
	names := make([]string, 0, len(cf.ctors))
	for name := range cf.ctors {
		names = append(names, name)
	}
	return names
}

// Clone returns a new CallFactory with the same registrations. Used when a
// child context wants its own template definitions without affecting a
// sibling or the parent.
func (cf *CallFactory) Clone() *CallFactory {
	cf.mu.RLock()
	defer cf.mu.RUnlock()
	out := NewCallFactory()
	for name, ctor := range cf.ctors {
		out.ctors[name] = ctor
	}
	return out
}
