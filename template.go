package predicate

import "fmt"

// refCallName is the built-in marker call the template engine uses to mark
// a parameter occurrence inside a template body (spec.md §4.5). It is
// registered into every CallFactory by NewCallFactory so that parsing a
// template body never fails with UnknownCallError, but it carries no
// run-time behavior of its own: every ref() must be substituted away during
// transform-to-fixpoint, and one surviving into post-transform validation is
// always an error.
const refCallName = "ref"

type refCall struct{ BaseCall }

func (r *refCall) Validate(n *Node, phase Phase) []Diagnostic {
	if phase != ValidatePost {
		return nil
	}
	return []Diagnostic{{
		Severity: SeverityError,
		Message:  "ref() may only appear inside a template body; it was never substituted",
		Node:     n,
	}}
}

// refParam reports whether n is a single-argument ref() call naming a
// parameter, and returns that parameter name.
func refParam(n *Node) (string, bool) {
	if !n.IsCall() || n.Name() != refCallName || len(n.args) != 1 {
		return "", false
	}
	arg := n.args[0]
	if !arg.IsLiteral() || arg.Literal().Kind != KindString {
		return "", false
	}
	return arg.Literal().Str, true
}

// templateCall is the CallImplementation a defined template registers
// itself under: Transform replaces a use of the template with a
// parameter-substituted copy of its body, re-entering the owning
// MergeGraph so the copy gets fully common-sub-expression-eliminated
// against everything else already there (spec.md §4.5).
type templateCall struct {
	BaseCall
	name   string
	params []string
	body   *Node
}

func (t *templateCall) Validate(n *Node, phase Phase) []Diagnostic {
	if phase != ValidatePost {
		return nil
	}
	if len(n.args) != len(t.params) {
		return []Diagnostic{{
			Severity: SeverityError,
			Message:  fmt.Sprintf("template %q expects %d argument(s), got %d", t.name, len(t.params), len(n.args)),
			Node:     n,
		}}
	}
	return nil
}

func (t *templateCall) Transform(n *Node, mg *MergeGraph, cf *CallFactory) (bool, error) {
	if len(n.args) != len(t.params) {
		// Leave the mismatch for post-transform validation to report with
		// full context; substituting with the wrong arity would only
		// produce a confusing secondary error.
		return false, nil
	}
	bindings := make(map[string]*Node, len(t.params))
	for i, p := range t.params {
		bindings[p] = n.args[i]
	}
	expanded := instantiate(t.body, bindings, cf)
	if err := mg.Replace(n, expanded); err != nil {
		return false, fmt.Errorf("expand template %q: %w", t.name, err)
	}
	return true, nil
}

// instantiate deep-copies body, replacing every ref(param) with bindings[param]
// (shared by reference, not copied again — it is already a live subtree) and
// freshly constructing every other call node via cf so the copy carries its
// own, unshared CallImplementation state.
func instantiate(body *Node, bindings map[string]*Node, cf *CallFactory) *Node {
	if param, ok := refParam(body); ok {
		return bindings[param]
	}
	if body.IsLiteral() {
		return NewLiteral(body.Literal())
	}
	newArgs := make([]*Node, len(body.args))
	for i, c := range body.args {
		newArgs[i] = instantiate(c, bindings, cf)
	}
	node, err := cf.New(body.name, newArgs, "")
	if err != nil {
		// body was already validated against cf when the template was
		// defined, so its call names are always known; this would only
		// fire if cf were swapped out underneath a live template.
		panic(fmt.Sprintf("predicate: template body references unknown call %q: %v", body.name, err))
	}
	return node
}

// defineTemplate validates body (every ref() names a declared parameter)
// and registers name as a new call backed by a templateCall. Redefining an
// existing name is rejected by CallFactory.Register itself.
func defineTemplate(cf *CallFactory, name string, params []string, body *Node, origin string) error {
	declared := map[string]bool{}
	for _, p := range params {
		declared[p] = true
	}
	if err := checkRefs(body, declared); err != nil {
		return &InvalidTemplateError{Name: name, Reason: err.Error()}
	}
	impl := &templateCall{name: name, params: params, body: body}
	if err := cf.Register(name, func() CallImplementation { return impl }); err != nil {
		return fmt.Errorf("%w [%s]", err, origin)
	}
	return nil
}

func checkRefs(n *Node, declared map[string]bool) error {
	if param, ok := refParam(n); ok {
		if !declared[param] {
			return fmt.Errorf("ref(%q) names an undeclared parameter", param)
		}
		return nil
	}
	for _, c := range n.Children() {
		if err := checkRefs(c, declared); err != nil {
			return err
		}
	}
	return nil
}
