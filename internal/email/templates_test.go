package email

import (
	"strings"
	"testing"
)

func TestRenderClientAssignedEscapesNames(t *testing.T) {
	html, err := renderEmailTemplate("client_assigned.html", clientAssignedEmailData{
		baseEmailData: baseEmailData{
			Title:    "New client assigned",
			Heading:  "New client assigned",
			CTALabel: "Open client",
			CTAURL:   "https://app.rivo.test/dashboard/clients/42",
		},
		CSMName:    "Cara",
		ClientName: "<b>Jane</b>",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(html, "&lt;b&gt;Jane&lt;/b&gt;") {
		t.Fatal("client name must be HTML-escaped")
	}
	if !strings.Contains(html, `href="https://app.rivo.test/dashboard/clients/42"`) {
		t.Fatal("missing call to action link")
	}
	if !strings.Contains(html, "Hi Cara,") {
		t.Fatal("missing greeting")
	}
}
