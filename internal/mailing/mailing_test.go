package mailing

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/resource-workflow/internal/domain"
)

type fakeSES struct {
	inputs []*sesv2.SendEmailInput
	err    error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func notificationOf(t *testing.T, p domain.NotificationPayload, title, message string) *domain.Notification {
	t.Helper()
	meta, err := domain.EncodePayload(p)
	require.NoError(t, err)
	return &domain.Notification{
		ID:        "n1",
		Type:      p.NotificationType(),
		Title:     title,
		Message:   message,
		Priority:  domain.PriorityNormal,
		Metadata:  meta,
		CreatedAt: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

var alice = &domain.User{ID: "u1", Email: "alice@example.com", Name: "Alice"}

func TestRenderNotification_TypeTemplate(t *testing.T) {
	r := NewRenderer("https://app.example.com/")
	n := notificationOf(t, domain.CampaignOverduePayload{
		CampaignID:       "c1",
		CampaignName:     "Printemps <PME>",
		ScheduledDate:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		DaysOverdue:      9,
		ProgressSnapshot: domain.NewProgressSnapshot(1, 4),
	}, "Campaign overdue", "late")

	subject, html, text, err := r.RenderNotification(n, alice)
	require.NoError(t, err)
	assert.Equal(t, "Campagne en retard : Printemps <PME>", subject)
	assert.Contains(t, html, "Printemps &lt;PME&gt;")
	assert.Contains(t, html, "01/03/2026")
	assert.Contains(t, html, "9 jours")
	assert.Contains(t, text, "25 %")
}

func TestRenderNotification_Fallback(t *testing.T) {
	r := NewRenderer("https://app.example.com")
	n := notificationOf(t, domain.InvoicePayload{
		Type:      domain.NotifInvoiceSubmitted,
		InvoiceID: "inv-1",
	}, "Invoice workflow", "Invoice F-12 submitted for validation")

	subject, html, text, err := r.RenderNotification(n, alice)
	require.NoError(t, err)
	assert.Equal(t, "Invoice workflow", subject)
	assert.Contains(t, html, "Bonjour Alice")
	assert.Contains(t, html, "https://app.example.com/notifications")
	assert.True(t, strings.HasSuffix(text, "Invoice F-12 submitted for validation"))
}

func TestRenderNotification_DecisionBranches(t *testing.T) {
	r := NewRenderer("")
	for decision, want := range map[domain.Decision]string{
		domain.DecisionApprove: "Campagne validée : Q2",
		domain.DecisionReject:  "Campagne refusée : Q2",
	} {
		n := notificationOf(t, domain.CampaignDecisionPayload{CampaignName: "Q2", Decision: decision}, "t", "m")
		subject, _, _, err := r.RenderNotification(n, alice)
		require.NoError(t, err)
		assert.Equal(t, want, subject)
	}
}

func TestRenderNotification_BadMetadata(t *testing.T) {
	r := NewRenderer("")
	n := &domain.Notification{Type: domain.NotifStageOverdue, Metadata: json.RawMessage("not json")}
	_, _, _, err := r.RenderNotification(n, alice)
	assert.Error(t, err)
}

func TestSetTemplate(t *testing.T) {
	r := NewRenderer("")
	require.NoError(t, r.SetTemplate(domain.NotifInvoiceEmitted, Template{
		Subject: "Facture émise {{ data.invoice_number }}",
		HTML:    "<p>{{ data.invoice_number }}</p>",
		Text:    "{{ data.invoice_number }}",
	}))
	n := notificationOf(t, domain.InvoicePayload{Type: domain.NotifInvoiceEmitted, InvoiceNumber: "F-7"}, "t", "m")
	subject, _, _, err := r.RenderNotification(n, alice)
	require.NoError(t, err)
	assert.Equal(t, "Facture émise F-7", subject)

	assert.Error(t, r.SetTemplate(domain.NotifInvoiceEmitted, Template{Subject: "{% if %}"}))
}

func TestSESMailer_Send(t *testing.T) {
	fake := &fakeSES{}
	m := newSESMailer(fake, "workflow")

	res, err := m.Send(context.Background(), &domain.EmailMessage{
		NotificationID: "n1",
		To:             "alice@example.com",
		FromName:       "Workflow",
		FromEmail:      "noreply@example.com",
		Subject:        "s",
		HTMLContent:    "<p>h</p>",
		TextContent:    "h",
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "msg-1", res.MessageID)

	require.Len(t, fake.inputs, 1)
	in := fake.inputs[0]
	assert.Equal(t, "Workflow <noreply@example.com>", aws.ToString(in.FromEmailAddress))
	assert.Equal(t, []string{"alice@example.com"}, in.Destination.ToAddresses)
	assert.Equal(t, "workflow", aws.ToString(in.ConfigurationSetName))
	require.NotNil(t, in.Content.Simple.Body.Text)
}

func TestSESMailer_RejectionIsResult(t *testing.T) {
	m := newSESMailer(&fakeSES{err: errors.New("throttled")}, "")
	res, err := m.Send(context.Background(), &domain.EmailMessage{To: "a@example.com", FromEmail: "n@example.com"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "throttled", res.Error)
}

func TestSESMailer_NoRecipient(t *testing.T) {
	m := newSESMailer(&fakeSES{}, "")
	_, err := m.Send(context.Background(), &domain.EmailMessage{NotificationID: "n1"})
	assert.Error(t, err)
}
