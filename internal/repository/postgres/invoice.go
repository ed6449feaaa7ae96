package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ignite/resource-workflow/internal/domain"
	"github.com/ignite/resource-workflow/internal/service/invoice"
)

// InvoiceRepo implements invoice.Repository against PostgreSQL.
type InvoiceRepo struct{ base }

// NewInvoiceRepo creates a Postgres-backed invoice repository.
func NewInvoiceRepo(db *sqlx.DB) *InvoiceRepo { return &InvoiceRepo{base{db: db}} }

const invoiceSelect = `
	SELECT i.id, i.numero_facture, i.mission_id, i.statut, i.workflow_status, i.date_echeance,
	       (SELECT COUNT(*) FROM invoice_lines il WHERE il.invoice_id = i.id) AS line_count,
	       i.submitted_for_validation_at, i.submitted_for_validation_by,
	       i.validated_at, i.validated_by, i.validation_notes,
	       i.submitted_for_emission_at, i.emission_validated_at, i.emission_validated_by,
	       i.emitted_at, i.emitted_by,
	       i.rejected_at, i.rejected_by, i.rejection_reason,
	       i.cancelled_at, i.cancelled_by, i.cancellation_reason,
	       i.created_at, i.updated_at
	FROM invoices i
	WHERE i.id = $1`

func (r *InvoiceRepo) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	return r.invoice(ctx, invoiceSelect, id)
}

func (r *InvoiceRepo) LockInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	return r.invoice(ctx, invoiceSelect+` FOR UPDATE OF i`, id)
}

func (r *InvoiceRepo) invoice(ctx context.Context, query, id string) (*domain.Invoice, error) {
	inv := &domain.Invoice{}
	err := sqlx.GetContext(ctx, r.q(ctx), inv, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, invoice.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return inv, nil
}

func (r *InvoiceRepo) UpdateInvoiceWorkflow(ctx context.Context, inv *domain.Invoice, from domain.InvoiceWorkflowStatus) (bool, error) {
	res, err := r.q(ctx).ExecContext(ctx, `
		UPDATE invoices SET
			workflow_status = $3, statut = $4, date_echeance = $5,
			submitted_for_validation_at = $6, submitted_for_validation_by = $7,
			validated_at = $8, validated_by = $9, validation_notes = $10,
			submitted_for_emission_at = $11, emission_validated_at = $12, emission_validated_by = $13,
			emitted_at = $14, emitted_by = $15,
			rejected_at = $16, rejected_by = $17, rejection_reason = $18,
			cancelled_at = $19, cancelled_by = $20, cancellation_reason = $21,
			updated_at = NOW()
		WHERE id = $1 AND workflow_status = $2
	`,
		inv.ID, from, inv.WorkflowStatus, inv.Status, inv.DueDate,
		inv.SubmittedForValidationAt, inv.SubmittedForValidationBy,
		inv.ValidatedAt, inv.ValidatedBy, inv.ValidationNotes,
		inv.SubmittedForEmissionAt, inv.EmissionValidatedAt, inv.EmissionValidatedBy,
		inv.EmittedAt, inv.EmittedBy,
		inv.RejectedAt, inv.RejectedBy, inv.RejectionReason,
		inv.CancelledAt, inv.CancelledBy, inv.CancellationReason,
	)
	if err != nil {
		return false, fmt.Errorf("update invoice workflow: %w", err)
	}
	return affected(res)
}

func (r *InvoiceRepo) ListPaymentAllocations(ctx context.Context, invoiceID string) ([]string, error) {
	var ids []string
	err := sqlx.SelectContext(ctx, r.q(ctx), &ids, `
		SELECT id FROM payment_allocations WHERE invoice_id = $1 ORDER BY id
	`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list payment allocations: %w", err)
	}
	return ids, nil
}
