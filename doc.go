// Package predicate implements a stream-evaluated, common-sub-expression
// eliminating rule engine over S-expressions.
//
// An expression is acquired into a PerContext, which merges it into a
// shared MergeGraph so that any sub-expression appearing more than once
// across every acquired expression is represented, and evaluated, exactly
// once. Closing a context drives that graph through validation,
// transform-to-fixpoint (where templates expand and constant folding
// happens), re-validation, indexing, and pre-evaluation, after which it is
// frozen: every acquired root becomes an Oracle that can be queried,
// cheaply and repeatedly, against a Transaction.
//
// Call semantics — what `(eq 'a' (field 'x'))` actually does — live behind
// the CallImplementation interface and are resolved by name from a
// CallFactory; package calls provides the standard library. The core in
// this package knows nothing about any specific call name.
package predicate
