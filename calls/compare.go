package calls

import "github.com/qualys/predicate"

func arity2(n *predicate.Node, phase predicate.Phase, name string) []predicate.Diagnostic {
	if phase != predicate.ValidatePost {
		return nil
	}
	if len(n.Children()) != 2 {
		return []predicate.Diagnostic{{
			Severity: predicate.SeverityError,
			Message:  name + " expects exactly 2 arguments",
			Node:     n,
		}}
	}
	return nil
}

func evalChildren2(n *predicate.Node, state *predicate.EvalState, tx *predicate.Transaction) (predicate.Value, predicate.Value) {
	children := n.Children()
	state.Eval(children[0], tx)
	state.Eval(children[1], tx)
	a, _ := state.Value(children[0])
	b, _ := state.Value(children[1])
	return a, b
}

func foldChildren2(n *predicate.Node) (predicate.Value, predicate.Value, bool) {
	children := n.Children()
	if len(children) != 2 || !children[0].IsLiteral() || !children[1].IsLiteral() {
		return predicate.Null, predicate.Null, false
	}
	return children[0].Literal(), children[1].Literal(), true
}

// eqCall implements (eq a b): structural value equality, any Kind.
type eqCall struct{ predicate.BaseCall }

func (c *eqCall) Validate(n *predicate.Node, phase predicate.Phase) []predicate.Diagnostic {
	return arity2(n, phase, "eq")
}

func (c *eqCall) Eval(n *predicate.Node, state *predicate.EvalState, tx *predicate.Transaction) {
	if state.Finished(n) {
		return
	}
	a, b := evalChildren2(n, state, tx)
	state.Set(n, boolValue(a.Equal(b)))
}

func (c *eqCall) Transform(n *predicate.Node, mg *predicate.MergeGraph, cf *predicate.CallFactory) (bool, error) {
	a, b, ok := foldChildren2(n)
	if !ok {
		return false, nil
	}
	return true, mg.Replace(n, predicate.NewLiteral(boolValue(a.Equal(b))))
}

// streqCall implements (streq a b): string equality. Non-string operands
// are first rendered via String(), so unlike (eq), which is Kind-sensitive,
// (streq 1 '1') is true.
type streqCall struct{ predicate.BaseCall }

func (c *streqCall) Validate(n *predicate.Node, phase predicate.Phase) []predicate.Diagnostic {
	return arity2(n, phase, "streq")
}

func (c *streqCall) Eval(n *predicate.Node, state *predicate.EvalState, tx *predicate.Transaction) {
	if state.Finished(n) {
		return
	}
	a, b := evalChildren2(n, state, tx)
	state.Set(n, boolValue(stringOf(a) == stringOf(b)))
}

func (c *streqCall) Transform(n *predicate.Node, mg *predicate.MergeGraph, cf *predicate.CallFactory) (bool, error) {
	a, b, ok := foldChildren2(n)
	if !ok {
		return false, nil
	}
	return true, mg.Replace(n, predicate.NewLiteral(boolValue(stringOf(a) == stringOf(b))))
}

func stringOf(v predicate.Value) string {
	if v.Kind == predicate.KindString {
		return v.Str
	}
	return v.String()
}

// ltCall implements (lt a b): numeric less-than. Non-number operands are
// treated as Null (0) for ordering purposes.
type ltCall struct{ predicate.BaseCall }

func (c *ltCall) Validate(n *predicate.Node, phase predicate.Phase) []predicate.Diagnostic {
	return arity2(n, phase, "lt")
}

func (c *ltCall) Eval(n *predicate.Node, state *predicate.EvalState, tx *predicate.Transaction) {
	if state.Finished(n) {
		return
	}
	a, b := evalChildren2(n, state, tx)
	state.Set(n, boolValue(numberOf(a) < numberOf(b)))
}

func (c *ltCall) Transform(n *predicate.Node, mg *predicate.MergeGraph, cf *predicate.CallFactory) (bool, error) {
	a, b, ok := foldChildren2(n)
	if !ok {
		return false, nil
	}
	return true, mg.Replace(n, predicate.NewLiteral(boolValue(numberOf(a) < numberOf(b))))
}

// gtCall implements (gt a b): numeric greater-than.
type gtCall struct{ predicate.BaseCall }

func (c *gtCall) Validate(n *predicate.Node, phase predicate.Phase) []predicate.Diagnostic {
	return arity2(n, phase, "gt")
}

func (c *gtCall) Eval(n *predicate.Node, state *predicate.EvalState, tx *predicate.Transaction) {
	if state.Finished(n) {
		return
	}
	a, b := evalChildren2(n, state, tx)
	state.Set(n, boolValue(numberOf(a) > numberOf(b)))
}

func (c *gtCall) Transform(n *predicate.Node, mg *predicate.MergeGraph, cf *predicate.CallFactory) (bool, error) {
	a, b, ok := foldChildren2(n)
	if !ok {
		return false, nil
	}
	return true, mg.Replace(n, predicate.NewLiteral(boolValue(numberOf(a) > numberOf(b))))
}

func numberOf(v predicate.Value) float64 {
	if v.Kind == predicate.KindNumber {
		return v.Num
	}
	return 0
}
