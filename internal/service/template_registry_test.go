package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/models"
)

func TestTemplateRegistryResolveKnownEvent(t *testing.T) {
	registry := NewTemplateRegistry()

	template, known := registry.Resolve(models.EventGrievanceSubmitted)
	require.True(t, known)
	require.Equal(t, models.EventGrievanceSubmitted, template.Event)
}

func TestTemplateRegistryUnknownEventFallsBack(t *testing.T) {
	registry := NewTemplateRegistry()

	template, known := registry.Resolve("never_registered")
	require.False(t, known)
	require.Equal(t, "generic", template.Event)

	rendered := registry.Render(template, map[string]string{
		"recipientName": "Asha",
		"grievanceId":   "G42",
	})
	require.Contains(t, rendered.EmailBody, "Asha")
	require.Contains(t, rendered.EmailBody, "G42")
}

func TestTemplateRegistryRenderSubstitutesAllVariables(t *testing.T) {
	registry := NewTemplateRegistry()
	template, _ := registry.Resolve(models.EventGrievanceSubmitted)

	rendered := registry.Render(template, map[string]string{
		"studentName": "Asha",
		"subject":     "Bus overcrowded",
		"grievanceId": "G42",
		"slaHours":    "72",
	})

	require.Contains(t, rendered.Subject, "G42")
	require.Contains(t, rendered.EmailBody, "Asha")
	require.Contains(t, rendered.EmailBody, "Bus overcrowded")
	require.Contains(t, rendered.EmailBody, "72")
	require.NotContains(t, rendered.EmailBody, "{{")
	require.NotContains(t, rendered.SMSBody, "{{")
	require.NotContains(t, rendered.PushBody, "{{")
}

func TestTemplateRegistryMissingVariableRendersEmpty(t *testing.T) {
	registry := NewTemplateRegistry()
	template, _ := registry.Resolve(models.EventGrievanceResolved)

	rendered := registry.Render(template, map[string]string{
		"studentName": "Asha",
		"grievanceId": "G42",
	})

	require.False(t, strings.Contains(rendered.EmailBody, "{{resolution}}"))
	require.Contains(t, rendered.EmailBody, "Resolution: \n")
}
