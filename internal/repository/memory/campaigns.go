package memory

import (
	"context"
	"time"

	"github.com/ignite/resource-workflow/internal/domain"
	"github.com/ignite/resource-workflow/internal/service/campaign"
)

// PutCampaign inserts or replaces a campaign.
func (s *Store) PutCampaign(c domain.Campaign) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.campaigns[c.ID] = c
}

// PutCompany registers a company name for the follow-up scan.
func (s *Store) PutCompany(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.companies[id] = name
}

// PutLink inserts or replaces a campaign/company link. A missing execution
// status defaults to pending.
func (s *Store) PutLink(l domain.CampaignCompanyLink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ExecutionStatus == "" {
		l.ExecutionStatus = domain.ExecutionPending
	}
	if l.ValidationStatus == "" {
		l.ValidationStatus = domain.LinkPending
	}
	k := linkKey{l.CampaignID, l.CompanyID}
	if _, ok := s.st.links[k]; !ok {
		s.st.linkOrder = append(s.st.linkOrder, k)
	}
	s.st.links[k] = l
}

// Opportunities returns every opportunity created so far.
func (s *Store) Opportunities() []domain.Opportunity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Opportunity, 0, len(s.st.opportunities))
	for _, o := range s.st.opportunities {
		out = append(out, o)
	}
	return out
}

func (s *Store) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	var out *domain.Campaign
	err := s.view(ctx, func(st *state) error {
		c, ok := st.campaigns[id]
		if !ok {
			return campaign.ErrNotFound
		}
		out = &c
		return nil
	})
	return out, err
}

func (s *Store) LockCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.GetCampaign(ctx, id)
}

func (s *Store) UpdateCampaignValidation(ctx context.Context, id string, u campaign.ValidationUpdate) error {
	return s.update(ctx, func(st *state) error {
		c, ok := st.campaigns[id]
		if !ok {
			return campaign.ErrNotFound
		}
		c.ValidationStatus = u.ValidationStatus
		c.Status = u.ValidationStatus.BusinessStatus()
		c.SubmittedAt = copyTime(u.SubmittedAt)
		c.DecidedAt = copyTime(u.DecidedAt)
		c.UpdatedAt = time.Now().UTC()
		st.campaigns[id] = c
		return nil
	})
}

func (s *Store) CreateValidationRequests(ctx context.Context, reqs []domain.CampaignValidationRequest) error {
	return s.update(ctx, func(st *state) error {
		for _, r := range reqs {
			if _, ok := st.requests[r.ID]; !ok {
				st.requestOrder = append(st.requestOrder, r.ID)
			}
			st.requests[r.ID] = r
		}
		return nil
	})
}

func (s *Store) DeleteValidationRequests(ctx context.Context, campaignID string) (int, error) {
	var n int
	err := s.update(ctx, func(st *state) error {
		kept := st.requestOrder[:0:0]
		for _, id := range st.requestOrder {
			if st.requests[id].CampaignID != campaignID {
				kept = append(kept, id)
				continue
			}
			delete(st.requests, id)
			delete(st.decisions, id)
			n++
		}
		st.requestOrder = kept
		return nil
	})
	return n, err
}

func (s *Store) GetValidationRequest(ctx context.Context, id string) (*domain.CampaignValidationRequest, error) {
	var out *domain.CampaignValidationRequest
	err := s.view(ctx, func(st *state) error {
		r, ok := st.requests[id]
		if !ok {
			return campaign.ErrRequestNotFound
		}
		out = &r
		return nil
	})
	return out, err
}

func (s *Store) LockValidationRequest(ctx context.Context, id string) (*domain.CampaignValidationRequest, error) {
	return s.GetValidationRequest(ctx, id)
}

func (s *Store) ListValidationRequests(ctx context.Context, campaignID string) ([]domain.CampaignValidationRequest, error) {
	var out []domain.CampaignValidationRequest
	err := s.view(ctx, func(st *state) error {
		for _, id := range st.requestOrder {
			if r := st.requests[id]; r.CampaignID == campaignID {
				out = append(out, r)
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) ResolveValidationRequest(ctx context.Context, id string, res campaign.Resolution) (bool, error) {
	var ok bool
	err := s.update(ctx, func(st *state) error {
		r, found := st.requests[id]
		if !found {
			return campaign.ErrRequestNotFound
		}
		if r.Status != domain.RequestPending {
			return nil
		}
		at, by := res.At, res.DecidedBy
		r.Status = res.Status
		r.DecisionComment = res.Comment
		r.DecidedBy = &by
		r.DecidedAt = &at
		st.requests[id] = r
		ok = true
		return nil
	})
	return ok, err
}

func (s *Store) ResolvePendingSiblings(ctx context.Context, campaignID, exceptID, note string, at time.Time) (int, error) {
	var n int
	err := s.update(ctx, func(st *state) error {
		for _, id := range st.requestOrder {
			r := st.requests[id]
			if r.CampaignID != campaignID || id == exceptID || r.Status != domain.RequestPending {
				continue
			}
			decidedAt := at
			r.Status = domain.RequestResolvedByOther
			r.DecisionComment = note
			r.DecidedAt = &decidedAt
			st.requests[id] = r
			n++
		}
		return nil
	})
	return n, err
}

func (s *Store) ReplaceCompanyDecisions(ctx context.Context, requestID string, ds []domain.CompanyDecision) error {
	return s.update(ctx, func(st *state) error {
		if _, ok := st.requests[requestID]; !ok {
			return campaign.ErrRequestNotFound
		}
		st.decisions[requestID] = append([]domain.CompanyDecision(nil), ds...)
		return nil
	})
}

func (s *Store) ListCompanyDecisions(ctx context.Context, requestID string) ([]domain.CompanyDecision, error) {
	var out []domain.CompanyDecision
	err := s.view(ctx, func(st *state) error {
		out = append(out, st.decisions[requestID]...)
		return nil
	})
	return out, err
}

func (s *Store) ListLinks(ctx context.Context, campaignID string) ([]domain.CampaignCompanyLink, error) {
	var out []domain.CampaignCompanyLink
	err := s.view(ctx, func(st *state) error {
		for _, k := range st.linkOrder {
			if k.campaignID == campaignID {
				out = append(out, st.links[k])
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) LockLink(ctx context.Context, campaignID, companyID string) (*domain.CampaignCompanyLink, error) {
	var out *domain.CampaignCompanyLink
	err := s.view(ctx, func(st *state) error {
		l, ok := st.links[linkKey{campaignID, companyID}]
		if !ok {
			return campaign.ErrLinkNotFound
		}
		out = &l
		return nil
	})
	return out, err
}

func (s *Store) SetLinkValidation(ctx context.Context, campaignID, companyID string, status domain.LinkValidationStatus) error {
	return s.update(ctx, func(st *state) error {
		k := linkKey{campaignID, companyID}
		l, ok := st.links[k]
		if !ok {
			return campaign.ErrLinkNotFound
		}
		l.ValidationStatus = status
		st.links[k] = l
		return nil
	})
}

func (s *Store) UpdateLinkExecution(ctx context.Context, campaignID, companyID string, from, to domain.ExecutionStatus, at time.Time) (bool, error) {
	var ok bool
	err := s.update(ctx, func(st *state) error {
		k := linkKey{campaignID, companyID}
		l, found := st.links[k]
		if !found {
			return campaign.ErrLinkNotFound
		}
		if l.ExecutionStatus != from {
			return nil
		}
		l.ExecutionStatus = to
		if to != domain.ExecutionPending {
			date := at
			l.ExecutionDate = &date
		}
		st.links[k] = l
		ok = true
		return nil
	})
	return ok, err
}

func (s *Store) AppendExecutionEvent(ctx context.Context, e *domain.ExecutionEvent) error {
	return s.update(ctx, func(st *state) error {
		st.events = append(st.events, *e)
		return nil
	})
}

func (s *Store) ListExecutionEvents(ctx context.Context, campaignID, companyID string) ([]domain.ExecutionEvent, error) {
	var out []domain.ExecutionEvent
	err := s.view(ctx, func(st *state) error {
		for _, e := range st.events {
			if e.CampaignID == campaignID && e.CompanyID == companyID {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) CreateOpportunity(ctx context.Context, o *domain.Opportunity) error {
	return s.update(ctx, func(st *state) error {
		st.opportunities[o.ID] = *o
		return nil
	})
}

func (s *Store) MarkLinkConverted(ctx context.Context, campaignID, companyID, opportunityID string) (bool, error) {
	var ok bool
	err := s.update(ctx, func(st *state) error {
		k := linkKey{campaignID, companyID}
		l, found := st.links[k]
		if !found {
			return campaign.ErrLinkNotFound
		}
		if l.ConvertedToOpportunity || l.OpportunityID != nil {
			return nil
		}
		oppID := opportunityID
		l.ConvertedToOpportunity = true
		l.OpportunityID = &oppID
		st.links[k] = l
		ok = true
		return nil
	})
	return ok, err
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
