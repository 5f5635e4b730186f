package predicate

import (
	"testing"

	"github.com/matryer/is"
)

// streamingCall emits the first N elements of its (literal) children, where
// N is the transaction's "phase" field, finishing only once it has emitted
// them all - the per-phase growth spec.md §4.6/S4 describes. Reading N from
// the transaction lets a test drive it across multiple Query calls.
type streamingCall struct{ BaseCall }

func (c *streamingCall) Eval(n *Node, state *EvalState, tx *Transaction) {
	if state.Finished(n) {
		return
	}
	phase := int(tx.Field("phase").Num)
	children := n.Children()
	if phase > len(children) {
		phase = len(children)
	}
	emitted := make([]Value, phase)
	for i := 0; i < phase; i++ {
		emitted[i] = children[i].Literal()
	}
	if phase >= len(children) {
		state.Set(n, ListValue(emitted))
		return
	}
	state.SetPartial(n, ListValue(emitted))
}

func TestQueryIsMonotoneAcrossCallsOnSameTransaction(t *testing.T) {
	is := is.New(t)
	cf := NewCallFactory()
	is.NoErr(cf.Register("stream", func() CallImplementation { return &streamingCall{} }))

	ctx := NewContext(cf)
	o, err := ctx.Acquire(`(stream 'a' 'b' 'c')`, "test:1")
	is.NoErr(err)
	is.NoErr(ctx.Close())

	tx := NewTransaction(map[string]Value{"phase": NumberValue(1)})

	v, finished, err := o.Query(tx)
	is.NoErr(err)
	is.True(!finished)
	is.Equal(len(v.List), 1)
	is.True(v.List[0].Equal(StringValue("a")))

	tx.Fields["phase"] = NumberValue(2)
	v, finished, err = o.Query(tx)
	is.NoErr(err)
	is.True(!finished)
	is.Equal(len(v.List), 2)
	is.True(v.List[1].Equal(StringValue("b")))

	tx.Fields["phase"] = NumberValue(3)
	v, finished, err = o.Query(tx)
	is.NoErr(err)
	is.True(finished)
	is.Equal(len(v.List), 3)
	is.True(v.List[2].Equal(StringValue("c")))

	// Once finished, further queries (even with a "later" phase) must not
	// change the value: eval short-circuits on the finished flag.
	tx.Fields["phase"] = NumberValue(99)
	v, finished, err = o.Query(tx)
	is.NoErr(err)
	is.True(finished)
	is.Equal(len(v.List), 3)
}

func TestQuerySharesEvalStateAcrossOraclesInSameContext(t *testing.T) {
	is := is.New(t)
	cf := NewCallFactory()
	counter := &countingEvalCall{}
	is.NoErr(cf.Register("count-eval", func() CallImplementation { return counter }))
	is.NoErr(cf.Register("passthrough", func() CallImplementation { return &passthroughCall{} }))

	ctx := NewContext(cf)
	shared, err := cf.New("count-eval", nil, "")
	is.NoErr(err)

	wrapA, err := cf.New("passthrough", []*Node{shared}, "")
	is.NoErr(err)
	oA, err := ctx.AcquireNode(wrapA, "test:a")
	is.NoErr(err)

	oB, err := ctx.AcquireNode(shared, "test:b")
	is.NoErr(err)

	is.NoErr(ctx.Close())

	tx := NewTransaction(nil)
	_, _, err = oA.Query(tx)
	is.NoErr(err)
	_, _, err = oB.Query(tx)
	is.NoErr(err)

	// shared is reachable from both oracles (oA through the passthrough
	// wrapper, oB directly); a single transaction-scoped EvalState must
	// evaluate it exactly once regardless.
	is.Equal(counter.evals, 1)
}

// countingEvalCall counts how many times its Eval body actually ran (as
// opposed to short-circuiting on an already-finished node), to prove a
// shared sub-expression is evaluated once per transaction regardless of how
// many roots reach it.
type countingEvalCall struct {
	BaseCall
	evals int
}

func (c *countingEvalCall) Eval(n *Node, state *EvalState, tx *Transaction) {
	if state.Finished(n) {
		return
	}
	c.evals++
	state.Set(n, NumberValue(1))
}

// passthroughCall just forwards its single child's value, so a test can wrap
// a shared node without itself counting as another evaluation of it.
type passthroughCall struct{ BaseCall }

func (c *passthroughCall) Eval(n *Node, state *EvalState, tx *Transaction) {
	if state.Finished(n) {
		return
	}
	child := n.Children()[0]
	state.Eval(child, tx)
	v, _ := state.Value(child)
	state.Set(n, v)
}
