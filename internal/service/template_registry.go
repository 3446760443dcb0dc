package service

import (
	"strings"

	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/models"
)

// RenderedMessage is the per-channel output of template substitution.
type RenderedMessage struct {
	Subject   string
	EmailBody string
	SMSBody   string
	PushBody  string
}

// TemplateRegistry is a process-wide read-only lookup from event name to
// notification template. Unknown events resolve to a generic fallback so the
// dispatch pipeline never blocks on a missing template.
type TemplateRegistry struct {
	templates map[string]models.NotificationTemplate
	fallback  models.NotificationTemplate
}

// NewTemplateRegistry constructs the registry with the built-in template set.
func NewTemplateRegistry() *TemplateRegistry {
	registry := &TemplateRegistry{
		templates: make(map[string]models.NotificationTemplate),
		fallback: models.NotificationTemplate{
			Event:     "generic",
			Subject:   "Transport grievance update",
			EmailBody: "Hello {{recipientName}},\n\nThere is an update on grievance {{grievanceId}}.\n\nCollege Transport Office",
			SMSBody:   "Update on grievance {{grievanceId}}. Check the portal for details.",
			PushBody:  "Update on grievance {{grievanceId}}",
			Variables: []string{"recipientName", "grievanceId"},
		},
	}
	for _, template := range builtinTemplates {
		registry.templates[template.Event] = template
	}
	return registry
}

// Resolve returns the template for an event. The second return is false when
// the fallback was used.
func (r *TemplateRegistry) Resolve(event string) (models.NotificationTemplate, bool) {
	if template, ok := r.templates[event]; ok {
		return template, true
	}
	return r.fallback, false
}

// Render substitutes every declared variable into the subject and all body
// variants. Variables missing from vars render as empty strings.
func (r *TemplateRegistry) Render(template models.NotificationTemplate, vars map[string]string) RenderedMessage {
	return RenderedMessage{
		Subject:   substitute(template.Subject, template.Variables, vars),
		EmailBody: substitute(template.EmailBody, template.Variables, vars),
		SMSBody:   substitute(template.SMSBody, template.Variables, vars),
		PushBody:  substitute(template.PushBody, template.Variables, vars),
	}
}

func substitute(body string, declared []string, vars map[string]string) string {
	for _, name := range declared {
		body = strings.ReplaceAll(body, "{{"+name+"}}", vars[name])
	}
	return body
}

var builtinTemplates = []models.NotificationTemplate{
	{
		Event:     models.EventGrievanceSubmitted,
		Subject:   "Grievance {{grievanceId}} received",
		EmailBody: "Hello {{studentName}},\n\nYour grievance \"{{subject}}\" has been received and registered as {{grievanceId}}.\nWe aim to respond within {{slaHours}} hours.\n\nCollege Transport Office",
		SMSBody:   "Grievance {{grievanceId}} received. Expected response within {{slaHours}} hours.",
		PushBody:  "Grievance {{grievanceId}} received",
		Variables: []string{"studentName", "subject", "grievanceId", "slaHours"},
	},
	{
		Event:     models.EventGrievanceAssigned,
		Subject:   "Grievance {{grievanceId}} assigned to {{assigneeName}}",
		EmailBody: "Hello {{recipientName}},\n\nGrievance {{grievanceId}} (\"{{subject}}\") is now being handled by {{assigneeName}}.\n\nCollege Transport Office",
		SMSBody:   "Grievance {{grievanceId}} is now handled by {{assigneeName}}.",
		PushBody:  "Grievance {{grievanceId}} assigned",
		Variables: []string{"recipientName", "subject", "grievanceId", "assigneeName"},
	},
	{
		Event:     models.EventGrievanceStatusUpdate,
		Subject:   "Grievance {{grievanceId}} is now {{newStatus}}",
		EmailBody: "Hello {{recipientName}},\n\nThe status of grievance {{grievanceId}} changed from {{oldStatus}} to {{newStatus}}.\n\nCollege Transport Office",
		SMSBody:   "Grievance {{grievanceId}} status: {{newStatus}}.",
		PushBody:  "Grievance {{grievanceId}}: {{newStatus}}",
		Variables: []string{"recipientName", "grievanceId", "oldStatus", "newStatus"},
	},
	{
		Event:     models.EventGrievanceResolved,
		Subject:   "Grievance {{grievanceId}} resolved",
		EmailBody: "Hello {{studentName}},\n\nYour grievance {{grievanceId}} has been resolved.\nResolution: {{resolution}}\n\nIf the issue persists, you can reopen it from the portal.\n\nCollege Transport Office",
		SMSBody:   "Grievance {{grievanceId}} resolved. See the portal for details.",
		PushBody:  "Grievance {{grievanceId}} resolved",
		Variables: []string{"studentName", "grievanceId", "resolution"},
	},
	{
		Event:     models.EventGrievanceEscalated,
		Subject:   "Escalated: grievance {{grievanceId}}",
		EmailBody: "Hello {{recipientName}},\n\nGrievance {{grievanceId}} (\"{{subject}}\") has been escalated.\nReason: {{reason}}\n\nPlease review it as a priority.\n\nCollege Transport Office",
		SMSBody:   "Escalated: grievance {{grievanceId}}. Reason: {{reason}}.",
		PushBody:  "Grievance {{grievanceId}} escalated",
		Variables: []string{"recipientName", "subject", "grievanceId", "reason"},
	},
	{
		Event:     models.EventGrievanceComment,
		Subject:   "New comment on grievance {{grievanceId}}",
		EmailBody: "Hello {{recipientName}},\n\n{{authorName}} commented on grievance {{grievanceId}}:\n\n{{comment}}\n\nCollege Transport Office",
		SMSBody:   "New comment on grievance {{grievanceId}} by {{authorName}}.",
		PushBody:  "New comment on grievance {{grievanceId}}",
		Variables: []string{"recipientName", "authorName", "grievanceId", "comment"},
	},
	{
		Event:     models.EventSLAWarning,
		Subject:   "SLA warning: grievance {{grievanceId}}",
		EmailBody: "Hello {{assigneeName}},\n\nGrievance {{grievanceId}} (\"{{subject}}\") has been open for {{hoursOpen}} hours.\nThe SLA of {{slaHours}} hours expires soon.\n\nCollege Transport Office",
		SMSBody:   "SLA warning: grievance {{grievanceId}} open {{hoursOpen}}h of {{slaHours}}h.",
		PushBody:  "SLA warning for grievance {{grievanceId}}",
		Variables: []string{"assigneeName", "subject", "grievanceId", "hoursOpen", "slaHours"},
	},
}
