package calls

import (
	"fmt"

	"github.com/qualys/predicate"
)

// constructors lists every standard call by name. Load registers each one
// into a fresh predicate.CallFactory; a factory that already has one of
// these names registered (for instance from a previous Load) fails with
// the same "already registered" error a redefined template would.
var constructors = map[string]predicate.CallConstructor{
	"and":    func() predicate.CallImplementation { return &andCall{} },
	"or":     func() predicate.CallImplementation { return &orCall{} },
	"not":    func() predicate.CallImplementation { return &notCall{} },
	"eq":     func() predicate.CallImplementation { return &eqCall{} },
	"streq":  func() predicate.CallImplementation { return &streqCall{} },
	"lt":     func() predicate.CallImplementation { return &ltCall{} },
	"gt":     func() predicate.CallImplementation { return &gtCall{} },
	"field":  func() predicate.CallImplementation { return &fieldCall{} },
	"list":   func() predicate.CallImplementation { return &listCall{} },
}

// Load registers the standard call library into cf.
func Load(cf *predicate.CallFactory) error {
	for name, ctor := range constructors {
		if err := cf.Register(name, ctor); err != nil {
			return fmt.Errorf("loading standard call library: %w", err)
		}
	}
	return nil
}

// Names returns the standard library's call names, for diagnostics and
// tests.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	return names
}

// trueValue and falseValue are the library-wide boolean convention: a
// definite true/false is a number, 1 or 0. Calls that short-circuit (and,
// or) instead return whichever operand's value decided the outcome,
// following the same truthy/falsy convention predicate.Value.Truthy
// documents.
var (
	trueValue  = predicate.NumberValue(1)
	falseValue = predicate.NumberValue(0)
)

func boolValue(b bool) predicate.Value {
	if b {
		return trueValue
	}
	return falseValue
}
