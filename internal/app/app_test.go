package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ignite/resource-workflow/internal/config"
	"github.com/ignite/resource-workflow/internal/domain"
)

func TestAlertConfig(t *testing.T) {
	cfg := &config.Config{
		Alerts: config.AlertsConfig{
			OverdueCampaignDays:      10,
			OverdueCampaignDedupDays: 2,
			InactiveMinDays:          5,
			InactiveMaxDays:          20,
			FollowupUserDays:         0,
			FollowupManagementDays:   14,
		},
		Notifications: config.NotificationConfig{Retention: config.RetentionConfig{ReadDays: 30, UnreadDays: 90}},
	}
	ac := AlertConfig(cfg)
	day := 24 * time.Hour
	assert.Equal(t, 10*day, ac.OverdueCampaignAfter)
	assert.Equal(t, 2*day, ac.OverdueCampaignDedup)
	assert.Equal(t, 5*day, ac.InactiveMin)
	assert.Equal(t, 20*day, ac.InactiveMax)
	assert.Zero(t, ac.FollowupAfter)
	assert.Equal(t, 14*day, ac.EscalateAfter)
	assert.Equal(t, 90*day, ac.UnreadRetention)
	assert.NotEmpty(t, ac.EscalationRoles)
}

func TestInvoicePolicy(t *testing.T) {
	p := invoicePolicy(config.InvoiceConfig{ElevatedRole: "PARTNER", AdminRoles: []string{"ADMIN"}})
	assert.Equal(t, domain.UserRolePartner, p.ElevatedRole)
	assert.Equal(t, []domain.UserRole{domain.UserRoleAdmin}, p.AdminRoles)
}
