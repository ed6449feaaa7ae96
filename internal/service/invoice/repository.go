package invoice

import (
	"context"

	"github.com/ignite/resource-workflow/internal/domain"
)

// Repository defines the data access contract for the invoice workflow.
// Implementations must be safe for concurrent use.
type Repository interface {
	// RunInTx runs fn in one atomic unit of work. Repository calls made with
	// the context handed to fn join it; an error from fn rolls back.
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error

	// GetInvoice returns ErrNotFound if the invoice doesn't exist.
	GetInvoice(ctx context.Context, id string) (*domain.Invoice, error)

	// LockInvoice reads the invoice and holds it until the transaction ends.
	LockInvoice(ctx context.Context, id string) (*domain.Invoice, error)

	// UpdateInvoiceWorkflow writes the workflow status, business status, due
	// date and audit columns of inv, only if the stored workflow status is
	// still from. It reports whether the row was updated.
	UpdateInvoiceWorkflow(ctx context.Context, inv *domain.Invoice, from domain.InvoiceWorkflowStatus) (bool, error)

	// ListPaymentAllocations returns the ids of payment allocations that
	// reference the invoice.
	ListPaymentAllocations(ctx context.Context, invoiceID string) ([]string, error)
}
