// Package domain holds the shared vocabulary of the workflow engine:
// prospecting campaigns and their approval fan-out, invoices and their
// emission workflow, notifications with typed payloads, and the
// organisational units that own validators.
//
// Status types are closed string enums. Where a status moves through a
// workflow, the allowed edges live next to the type as a transition table
// and every service consults that table instead of re-deriving the rules.
//
// The package imports nothing from internal/ and carries no storage or
// transport handles; db and json tags are the only concession to the
// outer layers.
package domain
