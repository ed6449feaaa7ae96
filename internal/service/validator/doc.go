// Package validator resolves who may decide on behalf of an organisational
// scope.
//
// Business Units and Divisions each carry an optional principal and an
// optional adjoint. ResolveValidators returns the full ordered set and is the
// only variant used to fan out approval requests; ResolveValidator is a
// lightweight lookup that picks the principal and falls back to the adjoint.
//
// An empty result is a configuration problem, not a transient one. Callers
// surface ErrNoValidatorConfigured and never retry.
package validator
