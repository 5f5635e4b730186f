package predicate

import (
	"errors"
	"testing"

	"github.com/matryer/is"
)

// literalEqCall is a minimal two-argument structural-equality call, used
// only so context/eval tests don't need the real calls package.
type literalEqCall struct{ BaseCall }

func (c *literalEqCall) Eval(n *Node, state *EvalState, tx *Transaction) {
	if state.Finished(n) {
		return
	}
	children := n.Children()
	state.Eval(children[0], tx)
	state.Eval(children[1], tx)
	a, _ := state.Value(children[0])
	b, _ := state.Value(children[1])
	result := NumberValue(0)
	if a.Equal(b) {
		result = NumberValue(1)
	}
	state.Set(n, result)
}

func contextTestFactory(t *testing.T) *CallFactory {
	cf := NewCallFactory()
	is := is.New(t)
	is.NoErr(cf.Register("eq", func() CallImplementation { return &literalEqCall{} }))
	return cf
}

func TestAcquireAfterCloseFails(t *testing.T) {
	is := is.New(t)
	ctx := NewContext(contextTestFactory(t))
	is.NoErr(ctx.Close())

	_, err := ctx.Acquire(`1`, "test:1")
	is.True(err != nil)
	is.True(errors.Is(err, ErrQueryAfterClose))
}

func TestQueryBeforeCloseFails(t *testing.T) {
	is := is.New(t)
	ctx := NewContext(contextTestFactory(t))
	o, err := ctx.Acquire(`1`, "test:1")
	is.NoErr(err)

	_, _, err = o.Query(NewTransaction(nil))
	is.True(err != nil)
	is.True(errors.Is(err, ErrQueryBeforeClose))
}

func TestOracleQueryAfterClose(t *testing.T) {
	is := is.New(t)
	ctx := NewContext(contextTestFactory(t))
	o, err := ctx.Acquire(`(eq 1 1)`, "test:1")
	is.NoErr(err)
	is.NoErr(ctx.Close())

	v, finished, err := o.Query(NewTransaction(nil))
	is.NoErr(err)
	is.True(finished)
	is.True(v.Equal(NumberValue(1)))
}

func TestNewChildContextInheritsAndIsolates(t *testing.T) {
	is := is.New(t)
	parent := NewContext(contextTestFactory(t))
	_, err := parent.Acquire(`(eq 1 1)`, "parent:1")
	is.NoErr(err)

	child, err := NewChildContext(parent)
	is.NoErr(err)

	// Acquiring in the child must not affect the parent's graph.
	_, err = child.Acquire(`(eq 2 2)`, "child:1")
	is.NoErr(err)

	is.NoErr(parent.Close())
	is.NoErr(child.Close())

	is.Equal(parent.IndexLimit(), 2) // (eq 1 1) collapses to 2 nodes: the call, and 1 (merged)
	is.Equal(child.IndexLimit(), 4)  // parent's 2 nodes plus (eq 2 2)'s own 2
}
