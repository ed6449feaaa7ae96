package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/resource-workflow/internal/domain"
	"github.com/ignite/resource-workflow/internal/service/campaign"
	"github.com/ignite/resource-workflow/internal/service/invoice"
	"github.com/ignite/resource-workflow/internal/service/notification"
	"github.com/ignite/resource-workflow/internal/service/validator"
)

var (
	_ campaign.Repository     = (*CampaignRepo)(nil)
	_ invoice.Repository      = (*InvoiceRepo)(nil)
	_ notification.Repository = (*NotificationRepo)(nil)
	_ validator.Repository    = (*PeopleRepo)(nil)
)

func setupMock(t *testing.T) (*Repositories, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "postgres")), mock
}

func TestRunInTx_CommitsAndNestedCallsJoin(t *testing.T) {
	repos, mock := setupMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE prospecting_campaigns").
		WithArgs("c1", domain.ValidationPending, domain.CampaignPendingValidation, sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("notify:c1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	now := time.Now()
	err := repos.Campaigns.RunInTx(ctx, func(ctx context.Context) error {
		if err := repos.Campaigns.UpdateCampaignValidation(ctx, "c1", campaign.ValidationUpdate{
			ValidationStatus: domain.ValidationPending,
			SubmittedAt:      &now,
		}); err != nil {
			return err
		}
		return repos.Notifications.RunInTx(ctx, func(ctx context.Context) error {
			return repos.Notifications.LockKey(ctx, "notify:c1")
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTx_RollsBackOnError(t *testing.T) {
	repos, mock := setupMock(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := repos.Invoices.RunInTx(context.Background(), func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockKey_OutsideTransaction(t *testing.T) {
	repos, mock := setupMock(t)
	err := repos.Notifications.LockKey(context.Background(), "k")
	assert.ErrorIs(t, err, ErrNoTx)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCampaign_NotFound(t *testing.T) {
	repos, mock := setupMock(t)
	mock.ExpectQuery("FROM prospecting_campaigns WHERE id = \\$1").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repos.Campaigns.GetCampaign(context.Background(), "missing")
	assert.ErrorIs(t, err, campaign.ErrNotFound)
}

func TestLockCampaign_ScansRow(t *testing.T) {
	repos, mock := setupMock(t)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "name", "channel", "business_unit_id", "division_id", "status", "validation_statut",
		"responsible_id", "created_by", "scheduled_date", "date_soumission", "date_validation",
		"created_at", "updated_at",
	}).AddRow("c1", "Spring", "EMAIL", "bu-1", nil, "DRAFT", "BROUILLON",
		"col-1", nil, nil, nil, nil, created, created)
	mock.ExpectQuery("FOR UPDATE").WithArgs("c1").WillReturnRows(rows)

	c, err := repos.Campaigns.LockCampaign(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignDraft, c.Status)
	assert.Equal(t, domain.ValidationDraft, c.ValidationStatus)
	require.NotNil(t, c.BusinessUnitID)
	assert.Equal(t, "bu-1", *c.BusinessUnitID)
	assert.Nil(t, c.DivisionID)
}

func TestResolveValidationRequest(t *testing.T) {
	res := campaign.Resolution{Status: domain.RequestApproved, Comment: "ok", DecidedBy: "col-1", At: time.Now()}

	tests := []struct {
		name     string
		affected int64
		exists   bool
		wantOK   bool
		wantErr  error
	}{
		{name: "pending request is resolved", affected: 1, wantOK: true},
		{name: "already resolved", affected: 0, exists: true},
		{name: "unknown request", affected: 0, exists: false, wantErr: campaign.ErrRequestNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repos, mock := setupMock(t)
			mock.ExpectExec("UPDATE prospecting_campaign_validations").
				WithArgs("r1", domain.RequestApproved, "ok", "col-1", sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))
			if tt.affected == 0 {
				mock.ExpectQuery("SELECT EXISTS").
					WithArgs("r1").
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(tt.exists))
			}

			ok, err := repos.Campaigns.ResolveValidationRequest(context.Background(), "r1", res)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantOK, ok)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUpdateLinkExecution_PendingKeepsDate(t *testing.T) {
	repos, mock := setupMock(t)
	mock.ExpectExec("UPDATE prospecting_campaign_companies").
		WithArgs("c1", "co1", domain.ExecutionFailed, domain.ExecutionPending, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repos.Campaigns.UpdateLinkExecution(context.Background(), "c1", "co1",
		domain.ExecutionFailed, domain.ExecutionPending, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationExists_BuildsMetadataFilter(t *testing.T) {
	repos, mock := setupMock(t)
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("user_id = $3 AND metadata->>($4::text) = $5 AND metadata->>($6::text) = $7")).
		WithArgs(domain.NotifCompanyFollowup, since, "u1", "campaign_id", "c1", "company_id", "co1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repos.Notifications.NotificationExists(context.Background(), notification.DedupQuery{
		Type:        domain.NotifCompanyFollowup,
		RecipientID: "u1",
		Match:       map[string]string{"company_id": "co1", "campaign_id": "c1"},
		Since:       since,
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNotification_DecodesMetadata(t *testing.T) {
	repos, mock := setupMock(t)
	rows := sqlmock.NewRows([]string{"id", "type", "user_id", "priority", "title", "message", "metadata", "created_at", "read_at"}).
		AddRow("n1", string(domain.NotifCampaignOverdue), "u1", "HIGH", "t", "m",
			[]byte(`{"campaign_id":"c1"}`), time.Now(), nil)
	mock.ExpectQuery("FROM notifications WHERE id = \\$1").WithArgs("n1").WillReturnRows(rows)

	n, err := repos.Notifications.GetNotification(context.Background(), "n1")
	require.NoError(t, err)
	assert.Equal(t, domain.NotifCampaignOverdue, n.Type)
	assert.Equal(t, domain.PriorityHigh, n.Priority)
	assert.JSONEq(t, `{"campaign_id":"c1"}`, string(n.Metadata))
	assert.Nil(t, n.ReadAt)
}

func TestMarkNotificationRead_NotFound(t *testing.T) {
	repos, mock := setupMock(t)
	mock.ExpectExec("UPDATE notifications SET read_at").
		WithArgs("n1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repos.Notifications.MarkNotificationRead(context.Background(), "n1", time.Now())
	assert.ErrorIs(t, err, notification.ErrNotFound)
}

func TestDeleteNotificationsBatch(t *testing.T) {
	repos, mock := setupMock(t)
	mock.ExpectExec("DELETE FROM notifications").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 1000).
		WillReturnResult(sqlmock.NewResult(0, 42))

	n, err := repos.Notifications.DeleteNotificationsBatch(context.Background(), time.Now(), time.Now(), 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}

func TestUpdateInvoiceWorkflow_StaleStatus(t *testing.T) {
	repos, mock := setupMock(t)
	inv := &domain.Invoice{ID: "inv-1", WorkflowStatus: domain.InvoiceSubmittedValidation, Status: "EN_VALIDATION"}
	mock.ExpectExec("UPDATE invoices SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repos.Invoices.UpdateInvoiceWorkflow(context.Background(), inv, domain.InvoiceDraft)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetInvoice_NotFound(t *testing.T) {
	repos, mock := setupMock(t)
	mock.ExpectQuery("FROM invoices i").WithArgs("nope").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repos.Invoices.GetInvoice(context.Background(), "nope")
	assert.ErrorIs(t, err, invoice.ErrNotFound)
}

func TestGetOrgUnit(t *testing.T) {
	repos, mock := setupMock(t)
	mock.ExpectQuery("FROM divisions").
		WithArgs("div-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "nom", "responsable_principal_id", "responsable_adjoint_id"}).
			AddRow("div-1", "Audit", "col-1", nil))

	u, err := repos.People.GetOrgUnit(context.Background(), domain.UnitDivision, "div-1")
	require.NoError(t, err)
	assert.Equal(t, domain.UnitDivision, u.Kind)
	require.NotNil(t, u.PrincipalID)
	assert.Equal(t, "col-1", *u.PrincipalID)
	assert.Nil(t, u.AdjointID)

	_, err = repos.People.GetOrgUnit(context.Background(), domain.UnitKind("TEAM"), "x")
	assert.ErrorIs(t, err, validator.ErrUnitNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScanOverdueCampaigns(t *testing.T) {
	repos, mock := setupMock(t)
	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	scheduled := cutoff.AddDate(0, 0, -3)
	mock.ExpectQuery("FROM prospecting_campaigns pc").
		WithArgs(cutoff).
		WillReturnRows(sqlmock.NewRows([]string{"campaign_id", "campaign_name", "scheduled_date", "user_id", "completed", "total"}).
			AddRow("c1", "Spring outreach", scheduled, "u-owner", 2, 4))

	rows, err := repos.Scans.ScanOverdueCampaigns(context.Background(), cutoff)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "u-owner", rows[0].RecipientID)
	assert.Equal(t, 2, rows[0].Completed)
	assert.Equal(t, 4, rows[0].Total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
