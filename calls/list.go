package calls

import "github.com/qualys/predicate"

// listCall implements (list a b c ...): evaluates every child (no
// short-circuiting) and collects the results into a list Value, in order.
type listCall struct{ predicate.BaseCall }

func (c *listCall) Eval(n *predicate.Node, state *predicate.EvalState, tx *predicate.Transaction) {
	if state.Finished(n) {
		return
	}
	children := n.Children()
	vals := make([]predicate.Value, len(children))
	for i, child := range children {
		state.Eval(child, tx)
		v, _ := state.Value(child)
		vals[i] = v
	}
	state.Set(n, predicate.ListValue(vals))
}

func (c *listCall) Transform(n *predicate.Node, mg *predicate.MergeGraph, cf *predicate.CallFactory) (bool, error) {
	children := n.Children()
	vals := make([]predicate.Value, len(children))
	for i, child := range children {
		if !child.IsLiteral() {
			return false, nil
		}
		vals[i] = child.Literal()
	}
	return true, mg.Replace(n, predicate.NewLiteral(predicate.ListValue(vals)))
}
