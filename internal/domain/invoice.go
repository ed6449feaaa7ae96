package domain

import "time"

// InvoiceWorkflowStatus is the fine-grained emission workflow state.
type InvoiceWorkflowStatus string

const (
	InvoiceDraft               InvoiceWorkflowStatus = "BROUILLON"
	InvoiceSubmittedValidation InvoiceWorkflowStatus = "SOUMISE_VALIDATION"
	InvoiceSubmittedEmission   InvoiceWorkflowStatus = "SOUMISE_EMISSION"
	InvoiceValidatedEmission   InvoiceWorkflowStatus = "VALIDEE_EMISSION"
	InvoiceEmitted             InvoiceWorkflowStatus = "EMISE"
	InvoiceCancelled           InvoiceWorkflowStatus = "ANNULEE"
)

// InvoiceAction names an operation of the invoice workflow.
type InvoiceAction string

const (
	ActionSubmitValidation InvoiceAction = "submit_validation"
	ActionValidate         InvoiceAction = "validate"
	ActionReject           InvoiceAction = "reject"
	ActionValidateEmission InvoiceAction = "validate_emission"
	ActionEmit             InvoiceAction = "emit"
	ActionCancel           InvoiceAction = "cancel"
)

// InvoiceTransitions maps each action to the states it may start from and
// the state it lands in.
var InvoiceTransitions = map[InvoiceAction]struct {
	From []InvoiceWorkflowStatus
	To   InvoiceWorkflowStatus
}{
	ActionSubmitValidation: {From: []InvoiceWorkflowStatus{InvoiceDraft}, To: InvoiceSubmittedValidation},
	ActionValidate:         {From: []InvoiceWorkflowStatus{InvoiceSubmittedValidation}, To: InvoiceSubmittedEmission},
	ActionReject:           {From: []InvoiceWorkflowStatus{InvoiceSubmittedValidation, InvoiceSubmittedEmission}, To: InvoiceDraft},
	ActionValidateEmission: {From: []InvoiceWorkflowStatus{InvoiceSubmittedEmission}, To: InvoiceValidatedEmission},
	ActionEmit:             {From: []InvoiceWorkflowStatus{InvoiceValidatedEmission}, To: InvoiceEmitted},
	ActionCancel: {From: []InvoiceWorkflowStatus{
		InvoiceDraft, InvoiceSubmittedValidation, InvoiceSubmittedEmission, InvoiceValidatedEmission,
	}, To: InvoiceCancelled},
}

// Allows reports whether action may run from s.
func (s InvoiceWorkflowStatus) Allows(action InvoiceAction) bool {
	t, ok := InvoiceTransitions[action]
	if !ok {
		return false
	}
	for _, from := range t.From {
		if from == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s InvoiceWorkflowStatus) Terminal() bool {
	return s == InvoiceEmitted || s == InvoiceCancelled
}

// DueDateEditable reports whether the due date may still change.
func (s InvoiceWorkflowStatus) DueDateEditable() bool {
	return s == InvoiceDraft || s == InvoiceSubmittedValidation
}

// Invoice carries the workflow state and its audit trail. Monetary lines are
// owned elsewhere; LineCount is enough for the workflow.
type Invoice struct {
	ID             string                `json:"id" db:"id"`
	Number         string                `json:"numero_facture" db:"numero_facture"`
	MissionID      string                `json:"mission_id" db:"mission_id"`
	Status         string                `json:"statut" db:"statut"`
	WorkflowStatus InvoiceWorkflowStatus `json:"workflow_status" db:"workflow_status"`
	DueDate        *time.Time            `json:"date_echeance" db:"date_echeance"`
	LineCount      int                   `json:"line_count" db:"line_count"`

	SubmittedForValidationAt *time.Time `json:"submitted_for_validation_at" db:"submitted_for_validation_at"`
	SubmittedForValidationBy *string    `json:"submitted_for_validation_by" db:"submitted_for_validation_by"`
	ValidatedAt              *time.Time `json:"validated_at" db:"validated_at"`
	ValidatedBy              *string    `json:"validated_by" db:"validated_by"`
	ValidationNotes          *string    `json:"validation_notes" db:"validation_notes"`
	SubmittedForEmissionAt   *time.Time `json:"submitted_for_emission_at" db:"submitted_for_emission_at"`
	EmissionValidatedAt      *time.Time `json:"emission_validated_at" db:"emission_validated_at"`
	EmissionValidatedBy      *string    `json:"emission_validated_by" db:"emission_validated_by"`
	EmittedAt                *time.Time `json:"emitted_at" db:"emitted_at"`
	EmittedBy                *string    `json:"emitted_by" db:"emitted_by"`
	RejectedAt               *time.Time `json:"rejected_at" db:"rejected_at"`
	RejectedBy               *string    `json:"rejected_by" db:"rejected_by"`
	RejectionReason          *string    `json:"rejection_reason" db:"rejection_reason"`
	CancelledAt              *time.Time `json:"cancelled_at" db:"cancelled_at"`
	CancelledBy              *string    `json:"cancelled_by" db:"cancelled_by"`
	CancellationReason       *string    `json:"cancellation_reason" db:"cancellation_reason"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Mission is the engagement an invoice belongs to. Its associate and its
// business unit determine who may validate.
type Mission struct {
	ID             string  `json:"id" db:"id"`
	Name           string  `json:"nom" db:"nom"`
	AssociateID    *string `json:"associe_id" db:"associe_id"`
	BusinessUnitID *string `json:"business_unit_id" db:"business_unit_id"`
}
