package calls_test

import (
	"testing"

	"github.com/matryer/is"

	"github.com/qualys/predicate"
	"github.com/qualys/predicate/calls"
)

func newTestContext(t *testing.T) (*predicate.PerContext, *is.I) {
	t.Helper()
	is := is.New(t)
	cf := predicate.NewCallFactory()
	is.NoErr(calls.Load(cf))
	return predicate.NewContext(cf), is
}

func eval(t *testing.T, expr string, fields map[string]predicate.Value) (predicate.Value, bool) {
	t.Helper()
	ctx, is := newTestContext(t)
	o, err := ctx.Acquire(expr, "test:1")
	is.NoErr(err)
	is.NoErr(ctx.Close())
	v, finished, err := o.Query(predicate.NewTransaction(fields))
	is.NoErr(err)
	return v, finished
}

func TestAndShortCircuits(t *testing.T) {
	is := is.New(t)
	v, finished := eval(t, `(and (field 'a') (field 'b'))`, map[string]predicate.Value{
		"a": predicate.NumberValue(0),
		// "b" deliberately absent: if `and` didn't short-circuit, this
		// would still resolve to Null, so this alone wouldn't prove it.
	})
	is.True(finished)
	is.True(v.Equal(predicate.NumberValue(0))) // first falsy operand's own value
}

func TestAndReturnsLastWhenAllTruthy(t *testing.T) {
	v, finished := eval(t, `(and 1 2 3)`, nil)
	if !finished || !v.Equal(predicate.NumberValue(3)) {
		t.Fatalf("got %v finished=%v, want 3", v, finished)
	}
}

func TestOrReturnsFirstTruthy(t *testing.T) {
	v, finished := eval(t, `(or 0 '' 5 9)`, nil)
	if !finished || !v.Equal(predicate.NumberValue(5)) {
		t.Fatalf("got %v finished=%v, want 5", v, finished)
	}
}

func TestNot(t *testing.T) {
	is := is.New(t)
	v, finished := eval(t, `(not 0)`, nil)
	is.True(finished)
	is.True(v.Equal(predicate.NumberValue(1)))

	v, finished = eval(t, `(not 1)`, nil)
	is.True(finished)
	is.True(v.Equal(predicate.NumberValue(0)))
}

func TestEqAndStreq(t *testing.T) {
	is := is.New(t)
	v, _ := eval(t, `(eq 1 1)`, nil)
	is.True(v.Equal(predicate.NumberValue(1)))

	v, _ = eval(t, `(eq 1 '1')`, nil)
	is.True(v.Equal(predicate.NumberValue(0))) // eq is Kind-sensitive

	v, _ = eval(t, `(streq 1 '1')`, nil)
	is.True(v.Equal(predicate.NumberValue(1))) // streq compares rendered strings
}

func TestLtGt(t *testing.T) {
	is := is.New(t)
	v, _ := eval(t, `(lt 1 2)`, nil)
	is.True(v.Equal(predicate.NumberValue(1)))

	v, _ = eval(t, `(gt 1 2)`, nil)
	is.True(v.Equal(predicate.NumberValue(0)))
}

func TestFieldResolvesFromTransaction(t *testing.T) {
	is := is.New(t)
	v, finished := eval(t, `(field 'method')`, map[string]predicate.Value{
		"method": predicate.StringValue("GET"),
	})
	is.True(finished)
	is.True(v.Equal(predicate.StringValue("GET")))
}

func TestFieldMissingIsNull(t *testing.T) {
	is := is.New(t)
	v, finished := eval(t, `(field 'nope')`, nil)
	is.True(finished)
	is.True(v.IsNull())
}

func TestListCollectsAllChildren(t *testing.T) {
	is := is.New(t)
	v, finished := eval(t, `(list 1 'x' (field 'a'))`, map[string]predicate.Value{
		"a": predicate.NumberValue(9),
	})
	is.True(finished)
	is.Equal(v.Kind, predicate.KindList)
	is.Equal(len(v.List), 3)
	is.True(v.List[2].Equal(predicate.NumberValue(9)))
}

func TestConstantFoldingCollapsesLiteralAnd(t *testing.T) {
	ctx, is := newTestContext(t)
	_, err := ctx.Acquire(`(and 1 2 3)`, "test:1")
	is.NoErr(err)
	is.NoErr(ctx.Close())

	nodes := ctx.Nodes()
	is.Equal(len(nodes), 1) // folded down to a single literal node
	is.True(nodes[0].IsLiteral())
}
