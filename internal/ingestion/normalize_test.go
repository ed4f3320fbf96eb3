package ingestion

import (
	"strings"
	"testing"

	"github.com/bidfit/backend/internal/storage/models"
)

func TestNormalizeRecordStripsHTML(t *testing.T) {
	o := &models.Opportunity{
		Title:       "  IT   Support\tServices ",
		Description: "<p>Provide <b>helpdesk</b> coverage.</p><script>alert(1)</script>",
	}

	if err := normalizeRecord(o); err != nil {
		t.Fatalf("normalizeRecord failed: %v", err)
	}

	if o.Title != "IT Support Services" {
		t.Errorf("unexpected title: %q", o.Title)
	}
	if o.Description != "Provide helpdesk coverage." {
		t.Errorf("unexpected description: %q", o.Description)
	}
	if strings.Contains(o.Description, "alert") {
		t.Errorf("script content leaked into description: %q", o.Description)
	}
}

func TestNormalizeRecordPlainText(t *testing.T) {
	o := &models.Opportunity{
		Title:       "Plain",
		Description: "no markup at all",
	}

	if err := normalizeRecord(o); err != nil {
		t.Fatalf("normalizeRecord failed: %v", err)
	}
	if o.Description != "no markup at all" {
		t.Errorf("plain text mangled: %q", o.Description)
	}
}
