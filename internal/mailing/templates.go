package mailing

import "github.com/ignite/resource-workflow/internal/domain"

const layoutHead = `<!DOCTYPE html><html><body style="font-family:Arial,sans-serif;color:#1f2933">`
const layoutFoot = `<p style="color:#7b8794;font-size:12px">Notification {{ notification.type }}</p></body></html>`

var fallbackTemplate = Template{
	Subject: `{{ notification.title }}`,
	HTML: layoutHead + `
<p>Bonjour {{ recipient.name | default: "" | escape }},</p>
<p>{{ notification.message | escape }}</p>
{% if app_url != "" %}<p><a href="{{ app_url }}/notifications">Voir mes notifications</a></p>{% endif %}
` + layoutFoot,
	Text: `Bonjour {{ recipient.name }},

{{ notification.message }}`,
}

var builtinTemplates = map[domain.NotificationType]Template{
	domain.NotifCampaignSubmitted: {
		Subject: `Validation requise : {{ data.campaign_name }}`,
		HTML: layoutHead + `
<p>Bonjour {{ recipient.name | escape }},</p>
<p>La campagne <strong>{{ data.campaign_name | escape }}</strong> attend votre validation.</p>
{% if data.comment %}<blockquote>{{ data.comment | escape }}</blockquote>{% endif %}
{% if app_url != "" %}<p><a href="{{ app_url }}/prospecting/campaigns/{{ data.campaign_id }}/validation">Examiner la campagne</a></p>{% endif %}
` + layoutFoot,
		Text: `La campagne {{ data.campaign_name }} attend votre validation.`,
	},
	domain.NotifCampaignDecision: {
		Subject: `{% if data.decision == "APPROVE" %}Campagne validée{% else %}Campagne refusée{% endif %} : {{ data.campaign_name }}`,
		HTML: layoutHead + `
<p>Bonjour {{ recipient.name | escape }},</p>
<p>La campagne <strong>{{ data.campaign_name | escape }}</strong> a été {% if data.decision == "APPROVE" %}validée{% else %}refusée{% endif %}.</p>
{% if data.comment %}<blockquote>{{ data.comment | escape }}</blockquote>{% endif %}
` + layoutFoot,
		Text: `La campagne {{ data.campaign_name }} a été {% if data.decision == "APPROVE" %}validée{% else %}refusée{% endif %}.`,
	},
	domain.NotifCampaignOverdue: {
		Subject: `Campagne en retard : {{ data.campaign_name }}`,
		HTML: layoutHead + `
<p>La campagne <strong>{{ data.campaign_name | escape }}</strong> prévue le {{ data.scheduled_date | fr_date }} est en retard de {{ data.days_overdue | days }}.</p>
<p>Avancement : {{ data.completed }}/{{ data.total }} ({{ data.progress_percentage | percentage }}).</p>
` + layoutFoot,
		Text: `La campagne {{ data.campaign_name }} est en retard de {{ data.days_overdue | days }}. Avancement : {{ data.progress_percentage | percentage }}.`,
	},
	domain.NotifCampaignProgress: {
		Subject: `{{ data.campaign_name }} : {{ data.threshold | percentage }} atteint`,
		HTML: layoutHead + `
<p>La campagne <strong>{{ data.campaign_name | escape }}</strong> a franchi {{ data.threshold | percentage }} ({{ data.completed }}/{{ data.total }}).</p>
` + layoutFoot,
		Text: `La campagne {{ data.campaign_name }} a franchi {{ data.threshold | percentage }} ({{ data.completed }}/{{ data.total }}).`,
	},
	domain.NotifCompanyFollowup: {
		Subject: `Relance à prévoir : {{ data.company_name }}`,
		HTML: layoutHead + `
<p>Bonjour {{ recipient.name | escape }},</p>
<p>{{ data.company_name | escape }} a été contactée il y a {{ data.days_since_execution | days }} dans le cadre de la campagne <strong>{{ data.campaign_name | escape }}</strong>, sans suite pour l'instant.</p>
` + layoutFoot,
		Text: `{{ data.company_name }} a été contactée il y a {{ data.days_since_execution | days }} (campagne {{ data.campaign_name }}).`,
	},
	domain.NotifCompanyFollowupEscalate: {
		Subject: `Relance en attente depuis {{ data.days_since_execution | days }} : {{ data.company_name }}`,
		HTML: layoutHead + `
<p>Aucune suite n'a été donnée à {{ data.company_name | escape }} depuis {{ data.days_since_execution | days }} (campagne <strong>{{ data.campaign_name | escape }}</strong>).</p>
` + layoutFoot,
		Text: `Aucune suite pour {{ data.company_name }} depuis {{ data.days_since_execution | days }} (campagne {{ data.campaign_name }}).`,
	},
	domain.NotifStageOverdue: {
		Subject: `Étape en retard : {{ data.stage_name }}`,
		HTML: layoutHead + `
<p>L'étape <strong>{{ data.stage_name | escape }}</strong> devait être terminée le {{ data.due_date | fr_date }} ({{ data.days_overdue | days }} de retard).</p>
` + layoutFoot,
		Text: `L'étape {{ data.stage_name }} est en retard de {{ data.days_overdue | days }}.`,
	},
	domain.NotifTimesheetLate: {
		Subject: `Feuille de temps à compléter`,
		HTML: layoutHead + `
<p>Votre feuille de temps du {{ data.period_start | fr_date }} au {{ data.period_end | fr_date }} n'a pas encore été soumise.</p>
` + layoutFoot,
		Text: `Votre feuille de temps du {{ data.period_start | fr_date }} au {{ data.period_end | fr_date }} n'a pas encore été soumise.`,
	},
}
