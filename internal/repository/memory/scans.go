package memory

import (
	"context"
	"sort"
	"time"

	"github.com/ignite/resource-workflow/internal/domain"
)

// Statuses the detector scans look for.
const (
	StageStatusPending    = "PENDING"
	StageStatusInProgress = "IN_PROGRESS"
	OpportunityOpen       = "EN_COURS"
	TimeSheetDraft        = "BROUILLON"
	TimeSheetInProgress   = "EN_COURS"
)

// PutStage adds a pipeline stage.
func (s *Store) PutStage(st Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.stages = append(s.st.stages, st)
}

// PutPipelineOpportunity inserts or replaces a sales opportunity.
func (s *Store) PutPipelineOpportunity(o PipelineOpportunity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.pipeline[o.ID] = o
}

// PutTimeSheet adds a time sheet.
func (s *Store) PutTimeSheet(ts TimeSheet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.timeSheets = append(s.st.timeSheets, ts)
}

func (s *Store) ScanOverdueStages(ctx context.Context, now time.Time) ([]domain.OverdueStage, error) {
	var out []domain.OverdueStage
	err := s.view(ctx, func(st *state) error {
		for _, stage := range st.stages {
			if stage.Status != StageStatusPending && stage.Status != StageStatusInProgress {
				continue
			}
			if !stage.DueDate.Before(now) {
				continue
			}
			opp, ok := st.pipeline[stage.OpportunityID]
			if !ok || opp.Status != OpportunityOpen || opp.OwnerUserID == "" {
				continue
			}
			out = append(out, domain.OverdueStage{
				StageID:         stage.ID,
				StageName:       stage.Name,
				OpportunityID:   opp.ID,
				OpportunityName: opp.Name,
				DueDate:         stage.DueDate,
				RecipientID:     opp.OwnerUserID,
			})
		}
		return nil
	})
	return out, err
}

func (s *Store) ScanInactiveOpportunities(ctx context.Context, inactiveSince, notBefore time.Time) ([]domain.InactiveOpportunity, error) {
	var out []domain.InactiveOpportunity
	err := s.view(ctx, func(st *state) error {
		for _, o := range st.pipeline {
			if o.Status != OpportunityOpen || o.OwnerUserID == "" {
				continue
			}
			if !o.LastActivity.Before(inactiveSince) || !o.LastActivity.After(notBefore) {
				continue
			}
			out = append(out, domain.InactiveOpportunity{
				OpportunityID:   o.ID,
				OpportunityName: o.Name,
				LastActivity:    o.LastActivity,
				RecipientID:     o.OwnerUserID,
			})
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].OpportunityID < out[j].OpportunityID })
	return out, err
}

func (s *Store) ScanLateTimeSheets(ctx context.Context, now time.Time) ([]domain.LateTimeSheet, error) {
	var out []domain.LateTimeSheet
	err := s.view(ctx, func(st *state) error {
		for _, ts := range st.timeSheets {
			if ts.Status != TimeSheetDraft && ts.Status != TimeSheetInProgress {
				continue
			}
			if !ts.PeriodEnd.Before(now) || ts.UserID == "" {
				continue
			}
			out = append(out, domain.LateTimeSheet{
				TimeSheetID: ts.ID,
				PeriodStart: ts.PeriodStart,
				PeriodEnd:   ts.PeriodEnd,
				Status:      ts.Status,
				RecipientID: ts.UserID,
			})
		}
		return nil
	})
	return out, err
}

func (s *Store) ScanOverdueCampaigns(ctx context.Context, scheduledBefore time.Time) ([]domain.OverdueCampaign, error) {
	var out []domain.OverdueCampaign
	err := s.view(ctx, func(st *state) error {
		for _, c := range st.campaigns {
			if c.Status != domain.CampaignValidated || c.ScheduledDate == nil || !c.ScheduledDate.Before(scheduledBefore) {
				continue
			}
			recipient := st.campaignOwner(c)
			if recipient == "" {
				continue
			}
			oc := domain.OverdueCampaign{
				CampaignID:    c.ID,
				CampaignName:  c.Name,
				ScheduledDate: *c.ScheduledDate,
				RecipientID:   recipient,
			}
			for _, k := range st.linkOrder {
				l := st.links[k]
				if k.campaignID != c.ID {
					continue
				}
				oc.Total++
				if l.ExecutionStatus.Completed() {
					oc.Completed++
				}
			}
			out = append(out, oc)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CampaignID < out[j].CampaignID })
	return out, err
}

func (s *Store) ScanFollowupCandidates(ctx context.Context, lastContactBefore time.Time) ([]domain.FollowupCandidate, error) {
	var out []domain.FollowupCandidate
	err := s.view(ctx, func(st *state) error {
		for _, k := range st.linkOrder {
			l := st.links[k]
			if l.ConvertedToOpportunity || l.ValidationStatus == domain.LinkRejected {
				continue
			}
			c, ok := st.campaigns[k.campaignID]
			if !ok || (c.Status != domain.CampaignValidated && c.Status != domain.CampaignSent) {
				continue
			}
			contact := c.CreatedAt
			switch {
			case l.ExecutionDate != nil:
				contact = *l.ExecutionDate
			case c.ScheduledDate != nil:
				contact = *c.ScheduledDate
			}
			if !contact.Before(lastContactBefore) {
				continue
			}
			recipient := st.campaignOwner(c)
			if recipient == "" {
				continue
			}
			fc := domain.FollowupCandidate{
				CampaignID:     c.ID,
				CampaignName:   c.Name,
				CompanyID:      l.CompanyID,
				CompanyName:    st.companies[l.CompanyID],
				ExecutionDate:  contact,
				RecipientID:    recipient,
				BusinessUnitID: c.BusinessUnitID,
			}
			if c.ResponsibleID != nil {
				fc.ResponsibleID = *c.ResponsibleID
			}
			out = append(out, fc)
		}
		return nil
	})
	return out, err
}

// campaignOwner is the responsible collaborator's account, else the creator.
func (st *state) campaignOwner(c domain.Campaign) string {
	if uid := st.userForCollaborator(c.ResponsibleID); uid != "" {
		return uid
	}
	if c.CreatedBy != nil {
		return *c.CreatedBy
	}
	return ""
}
