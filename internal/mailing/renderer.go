// Package mailing turns stored notifications into email and hands them to
// the delivery channel.
//
// Rendering uses the Liquid template language. Every notification type may
// carry its own subject and bodies; types without one fall back to a generic
// layout built from the notification title and message.
package mailing

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/osteele/liquid"

	"github.com/ignite/resource-workflow/internal/domain"
)

// Template is the Liquid source for one notification type.
type Template struct {
	Subject string
	HTML    string
	Text    string
}

// Renderer renders notifications with parsed-template caching.
// It is safe for concurrent use.
type Renderer struct {
	engine    *liquid.Engine
	appURL    string
	templates map[domain.NotificationType]Template
	cache     sync.Map // map[string]*liquid.Template
}

// NewRenderer creates a renderer with the built-in templates. appURL is
// exposed to templates for deep links.
func NewRenderer(appURL string) *Renderer {
	r := &Renderer{
		engine:    liquid.NewEngine(),
		appURL:    strings.TrimRight(appURL, "/"),
		templates: make(map[domain.NotificationType]Template, len(builtinTemplates)),
	}
	for t, tpl := range builtinTemplates {
		r.templates[t] = tpl
	}
	r.registerFilters()
	return r
}

// SetTemplate replaces the template of one notification type.
func (r *Renderer) SetTemplate(t domain.NotificationType, tpl Template) error {
	for _, src := range []string{tpl.Subject, tpl.HTML, tpl.Text} {
		if _, err := r.engine.ParseString(src); err != nil {
			return fmt.Errorf("parse %s template: %w", t, err)
		}
	}
	r.templates[t] = tpl
	for _, part := range []string{"subject", "html", "text"} {
		r.cache.Delete(string(t) + ":" + part)
	}
	return nil
}

func (r *Renderer) registerFilters() {
	// {{ data.due_date | fr_date }}
	r.engine.RegisterFilter("fr_date", func(v interface{}) string {
		t, ok := asTime(v)
		if !ok {
			return fmt.Sprintf("%v", v)
		}
		return t.Format("02/01/2006")
	})

	// {{ data.days_overdue | days }}
	r.engine.RegisterFilter("days", func(v interface{}) string {
		n := fmt.Sprintf("%v", v)
		if n == "1" || n == "0" {
			return n + " jour"
		}
		return n + " jours"
	})

	// {{ data.progress_percentage | percentage }}
	r.engine.RegisterFilter("percentage", func(v interface{}) string {
		return fmt.Sprintf("%v %%", v)
	})

	r.engine.RegisterFilter("escape", func(s string) string {
		return html.EscapeString(s)
	})
}

func asTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		return parsed, err == nil
	}
	return time.Time{}, false
}

// RenderNotification renders the subject and bodies of n for recipient.
func (r *Renderer) RenderNotification(n *domain.Notification, recipient *domain.User) (subject, htmlBody, text string, err error) {
	data := map[string]interface{}{}
	if len(n.Metadata) > 0 {
		if err := json.Unmarshal(n.Metadata, &data); err != nil {
			return "", "", "", fmt.Errorf("decode %s metadata: %w", n.Type, err)
		}
	}
	bindings := map[string]interface{}{
		"notification": map[string]interface{}{
			"id":         n.ID,
			"type":       string(n.Type),
			"title":      n.Title,
			"message":    n.Message,
			"priority":   string(n.Priority),
			"created_at": n.CreatedAt.Format(time.RFC3339),
		},
		"recipient": map[string]interface{}{
			"name":  recipient.Name,
			"email": recipient.Email,
		},
		"data":    data,
		"app_url": r.appURL,
	}

	tpl, ok := r.templates[n.Type]
	if !ok {
		tpl = fallbackTemplate
	}
	if subject, err = r.render(n.Type, "subject", tpl.Subject, bindings); err != nil {
		return "", "", "", err
	}
	if htmlBody, err = r.render(n.Type, "html", tpl.HTML, bindings); err != nil {
		return "", "", "", err
	}
	if text, err = r.render(n.Type, "text", tpl.Text, bindings); err != nil {
		return "", "", "", err
	}
	return strings.TrimSpace(subject), htmlBody, strings.TrimSpace(text), nil
}

func (r *Renderer) render(t domain.NotificationType, part, src string, bindings map[string]interface{}) (string, error) {
	key := string(t) + ":" + part
	if _, ok := r.templates[t]; !ok {
		key = "fallback:" + part
	}
	var tpl *liquid.Template
	if cached, ok := r.cache.Load(key); ok {
		tpl = cached.(*liquid.Template)
	} else {
		parsed, err := r.engine.ParseString(src)
		if err != nil {
			return "", fmt.Errorf("parse %s %s template: %w", t, part, err)
		}
		r.cache.Store(key, parsed)
		tpl = parsed
	}
	out, err := tpl.RenderString(bindings)
	if err != nil {
		return "", fmt.Errorf("render %s %s: %w", t, part, err)
	}
	return out, nil
}
