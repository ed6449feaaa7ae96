// Package memory is an in-process implementation of every repository
// interface, used by the service, worker and API tests.
//
// A transaction works on a private copy of the whole store and swaps it in
// on success, holding the store lock for its duration. Concurrent
// transactions are therefore fully serialised, which is what the
// first-decision-wins tests rely on.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ignite/resource-workflow/internal/domain"
)

// Stage is a pipeline stage seeded for the overdue-stage scan.
type Stage struct {
	ID            string
	Name          string
	OpportunityID string
	Status        string
	DueDate       time.Time
}

// PipelineOpportunity is a sales opportunity seeded for the scans.
type PipelineOpportunity struct {
	ID           string
	Name         string
	Status       string
	OwnerUserID  string
	LastActivity time.Time
}

// TimeSheet is a weekly time sheet seeded for the lateness scan.
type TimeSheet struct {
	ID          string
	UserID      string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Status      string
}

type linkKey struct{ campaignID, companyID string }

type state struct {
	units         map[string]domain.OrgUnit
	missions      map[string]domain.Mission
	users         map[string]domain.User
	collaborators map[string]domain.Collaborator

	campaigns     map[string]domain.Campaign
	companies     map[string]string
	links         map[linkKey]domain.CampaignCompanyLink
	linkOrder     []linkKey
	requests      map[string]domain.CampaignValidationRequest
	requestOrder  []string
	decisions     map[string][]domain.CompanyDecision
	events        []domain.ExecutionEvent
	opportunities map[string]domain.Opportunity

	invoices    map[string]domain.Invoice
	allocations map[string][]string

	notifications map[string]domain.Notification
	notifOrder    []string

	stages     []Stage
	pipeline   map[string]PipelineOpportunity
	timeSheets []TimeSheet
}

func newState() *state {
	return &state{
		units:         make(map[string]domain.OrgUnit),
		missions:      make(map[string]domain.Mission),
		users:         make(map[string]domain.User),
		collaborators: make(map[string]domain.Collaborator),
		campaigns:     make(map[string]domain.Campaign),
		companies:     make(map[string]string),
		links:         make(map[linkKey]domain.CampaignCompanyLink),
		requests:      make(map[string]domain.CampaignValidationRequest),
		decisions:     make(map[string][]domain.CompanyDecision),
		opportunities: make(map[string]domain.Opportunity),
		invoices:      make(map[string]domain.Invoice),
		allocations:   make(map[string][]string),
		notifications: make(map[string]domain.Notification),
		pipeline:      make(map[string]PipelineOpportunity),
	}
}

// clone copies every table. Struct values are copied; pointer fields are
// shared because stored records are replaced, never mutated in place.
func (st *state) clone() *state {
	cp := newState()
	for k, v := range st.units {
		cp.units[k] = v
	}
	for k, v := range st.missions {
		cp.missions[k] = v
	}
	for k, v := range st.users {
		cp.users[k] = v
	}
	for k, v := range st.collaborators {
		cp.collaborators[k] = v
	}
	for k, v := range st.campaigns {
		cp.campaigns[k] = v
	}
	for k, v := range st.companies {
		cp.companies[k] = v
	}
	for k, v := range st.links {
		cp.links[k] = v
	}
	cp.linkOrder = append([]linkKey(nil), st.linkOrder...)
	for k, v := range st.requests {
		cp.requests[k] = v
	}
	cp.requestOrder = append([]string(nil), st.requestOrder...)
	for k, v := range st.decisions {
		cp.decisions[k] = append([]domain.CompanyDecision(nil), v...)
	}
	cp.events = append([]domain.ExecutionEvent(nil), st.events...)
	for k, v := range st.opportunities {
		cp.opportunities[k] = v
	}
	for k, v := range st.invoices {
		cp.invoices[k] = v
	}
	for k, v := range st.allocations {
		cp.allocations[k] = append([]string(nil), v...)
	}
	for k, v := range st.notifications {
		cp.notifications[k] = v
	}
	cp.notifOrder = append([]string(nil), st.notifOrder...)
	cp.stages = append([]Stage(nil), st.stages...)
	for k, v := range st.pipeline {
		cp.pipeline[k] = v
	}
	cp.timeSheets = append([]TimeSheet(nil), st.timeSheets...)
	return cp
}

// Store is the in-memory repository. The zero value is not usable; call New.
type Store struct {
	mu sync.Mutex
	st *state
}

// New returns an empty store.
func New() *Store {
	return &Store{st: newState()}
}

type txKey struct{}

type txHandle struct {
	store *Store
	st    *state
}

func (s *Store) txFrom(ctx context.Context) *txHandle {
	h, ok := ctx.Value(txKey{}).(*txHandle)
	if !ok || h.store != s {
		return nil
	}
	return h
}

// RunInTx runs fn against a private copy of the store and commits the copy
// if fn succeeds. A nested call joins the outer transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.txFrom(ctx) != nil {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	h := &txHandle{store: s, st: s.st.clone()}
	if err := fn(context.WithValue(ctx, txKey{}, h)); err != nil {
		return err
	}
	s.st = h.st
	return nil
}

// LockKey is a no-op: transactions are already serialised.
func (s *Store) LockKey(ctx context.Context, key string) error {
	return ctx.Err()
}

// view runs fn on the transaction's copy when ctx carries one, otherwise on
// the committed state under the store lock.
func (s *Store) view(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if h := s.txFrom(ctx); h != nil {
		return fn(h.st)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// update is view for writes. Outside a transaction the change lands on the
// committed state directly.
func (s *Store) update(ctx context.Context, fn func(st *state) error) error {
	return s.view(ctx, fn)
}
