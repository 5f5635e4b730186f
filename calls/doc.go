// Package calls is the standard call library: the concrete
// predicate.CallImplementation that give S-expressions like
// (and (eq (field 'method') 'GET') (not (streq (field 'path') '/health')))
// their meaning. Load registers every call in the library into a
// predicate.CallFactory.
package calls
