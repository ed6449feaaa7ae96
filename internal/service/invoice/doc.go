// Package invoice implements the invoice emission workflow:
//
//	BROUILLON -> SOUMISE_VALIDATION -> SOUMISE_EMISSION -> VALIDEE_EMISSION -> EMISE
//
// with a rejection edge back to BROUILLON from either submitted state and a
// cancellation edge to ANNULEE from any non-terminal state. Validation and
// submission for emission happen in one step.
//
// Who may act is derived per invoice: the mission associate and the
// principal and adjoint of the mission's Business Unit validate; a single
// elevated role handles emission; cancellation takes the elevated role or an
// administrative one.
package invoice
