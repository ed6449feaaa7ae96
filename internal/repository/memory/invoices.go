package memory

import (
	"context"

	"github.com/ignite/resource-workflow/internal/domain"
	"github.com/ignite/resource-workflow/internal/service/invoice"
)

// PutInvoice inserts or replaces an invoice.
func (s *Store) PutInvoice(inv domain.Invoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv.WorkflowStatus == "" {
		inv.WorkflowStatus = domain.InvoiceDraft
	}
	s.st.invoices[inv.ID] = inv
}

// PutAllocation records a payment allocation against an invoice.
func (s *Store) PutAllocation(invoiceID, allocationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.allocations[invoiceID] = append(s.st.allocations[invoiceID], allocationID)
}

func (s *Store) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	var out *domain.Invoice
	err := s.view(ctx, func(st *state) error {
		inv, ok := st.invoices[id]
		if !ok {
			return invoice.ErrNotFound
		}
		out = &inv
		return nil
	})
	return out, err
}

func (s *Store) LockInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	return s.GetInvoice(ctx, id)
}

func (s *Store) UpdateInvoiceWorkflow(ctx context.Context, inv *domain.Invoice, from domain.InvoiceWorkflowStatus) (bool, error) {
	var ok bool
	err := s.update(ctx, func(st *state) error {
		cur, found := st.invoices[inv.ID]
		if !found {
			return invoice.ErrNotFound
		}
		if cur.WorkflowStatus != from {
			return nil
		}
		st.invoices[inv.ID] = *inv
		ok = true
		return nil
	})
	return ok, err
}

func (s *Store) ListPaymentAllocations(ctx context.Context, invoiceID string) ([]string, error) {
	var out []string
	err := s.view(ctx, func(st *state) error {
		out = append(out, st.allocations[invoiceID]...)
		return nil
	})
	return out, err
}
