package calls

import "github.com/qualys/predicate"

// andCall implements (and a b c ...): evaluates its children left to
// right, stopping at (and returning) the first falsy value; if every child
// is truthy, returns the last one. A no-argument (and) is vacuously true.
type andCall struct{ predicate.BaseCall }

func (c *andCall) Eval(n *predicate.Node, state *predicate.EvalState, tx *predicate.Transaction) {
	if state.Finished(n) {
		return
	}
	children := n.Children()
	if len(children) == 0 {
		state.Set(n, trueValue)
		return
	}
	var last predicate.Value
	for _, child := range children {
		state.Eval(child, tx)
		v, _ := state.Value(child)
		last = v
		if !v.Truthy() {
			state.Set(n, v)
			return
		}
	}
	state.Set(n, last)
}

func (c *andCall) Transform(n *predicate.Node, mg *predicate.MergeGraph, cf *predicate.CallFactory) (bool, error) {
	result, ok := foldLogic(n, false, trueValue)
	if !ok {
		return false, nil
	}
	return true, mg.Replace(n, predicate.NewLiteral(result))
}

// orCall implements (or a b c ...): evaluates its children left to right,
// stopping at (and returning) the first truthy value; if every child is
// falsy, returns the last one. A no-argument (or) is vacuously false.
type orCall struct{ predicate.BaseCall }

func (c *orCall) Eval(n *predicate.Node, state *predicate.EvalState, tx *predicate.Transaction) {
	if state.Finished(n) {
		return
	}
	children := n.Children()
	if len(children) == 0 {
		state.Set(n, falseValue)
		return
	}
	var last predicate.Value
	for _, child := range children {
		state.Eval(child, tx)
		v, _ := state.Value(child)
		last = v
		if v.Truthy() {
			state.Set(n, v)
			return
		}
	}
	state.Set(n, last)
}

func (c *orCall) Transform(n *predicate.Node, mg *predicate.MergeGraph, cf *predicate.CallFactory) (bool, error) {
	result, ok := foldLogic(n, true, falseValue)
	if !ok {
		return false, nil
	}
	return true, mg.Replace(n, predicate.NewLiteral(result))
}

// foldLogic constant-folds n if every one of its children is a literal,
// replicating the stop-on-first-{truthy,falsy} short circuit above over
// literal values instead of evaluated ones. stopTruthy is true for `or`,
// false for `and`; vacuous is the result for a no-argument call.
func foldLogic(n *predicate.Node, stopTruthy bool, vacuous predicate.Value) (predicate.Value, bool) {
	children := n.Children()
	for _, c := range children {
		if !c.IsLiteral() {
			return predicate.Null, false
		}
	}
	if len(children) == 0 {
		return vacuous, true
	}
	var last predicate.Value
	for _, c := range children {
		v := c.Literal()
		last = v
		if v.Truthy() == stopTruthy {
			return v, true
		}
	}
	return last, true
}

// notCall implements (not x): 1 if x is falsy, 0 if x is truthy.
type notCall struct{ predicate.BaseCall }

func (c *notCall) Validate(n *predicate.Node, phase predicate.Phase) []predicate.Diagnostic {
	if phase != predicate.ValidatePost {
		return nil
	}
	if len(n.Children()) != 1 {
		return []predicate.Diagnostic{{
			Severity: predicate.SeverityError,
			Message:  "not expects exactly 1 argument",
			Node:     n,
		}}
	}
	return nil
}

func (c *notCall) Eval(n *predicate.Node, state *predicate.EvalState, tx *predicate.Transaction) {
	if state.Finished(n) {
		return
	}
	child := n.Children()[0]
	state.Eval(child, tx)
	v, _ := state.Value(child)
	state.Set(n, boolValue(!v.Truthy()))
}

func (c *notCall) Transform(n *predicate.Node, mg *predicate.MergeGraph, cf *predicate.CallFactory) (bool, error) {
	children := n.Children()
	if len(children) != 1 || !children[0].IsLiteral() {
		return false, nil
	}
	result := boolValue(!children[0].Literal().Truthy())
	return true, mg.Replace(n, predicate.NewLiteral(result))
}
