package calls

import "github.com/qualys/predicate"

// fieldCall implements (field 'name'): resolves name against the
// Transaction's Fields, returning Null if absent. The argument is always a
// string literal naming the field, not itself an evaluated expression.
type fieldCall struct{ predicate.BaseCall }

func (c *fieldCall) Validate(n *predicate.Node, phase predicate.Phase) []predicate.Diagnostic {
	if phase != predicate.ValidatePost {
		return nil
	}
	children := n.Children()
	if len(children) != 1 || !children[0].IsLiteral() || children[0].Literal().Kind != predicate.KindString {
		return []predicate.Diagnostic{{
			Severity: predicate.SeverityError,
			Message:  "field expects exactly 1 string literal argument naming the field",
			Node:     n,
		}}
	}
	return nil
}

func (c *fieldCall) Eval(n *predicate.Node, state *predicate.EvalState, tx *predicate.Transaction) {
	if state.Finished(n) {
		return
	}
	name := n.Children()[0].Literal().Str
	state.Set(n, tx.Field(name))
}
