package ingestion

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/bidfit/backend/internal/storage/models"
)

var whitespacePattern = regexp.MustCompile(`\s+`)

// normalizeRecord cleans a raw feed record in place: descriptions arrive as
// HTML fragments from some sources, and titles and identifiers carry stray
// whitespace.
func normalizeRecord(o *models.Opportunity) error {
	o.Title = collapseWhitespace(o.Title)
	o.Organization = collapseWhitespace(o.Organization)
	o.SolicitationNumber = strings.TrimSpace(o.SolicitationNumber)
	o.PostedDate = strings.TrimSpace(o.PostedDate)
	o.Deadline = strings.TrimSpace(o.Deadline)

	if strings.Contains(o.Description, "<") {
		text, err := stripHTML(o.Description)
		if err != nil {
			return fmt.Errorf("failed to clean description: %w", err)
		}
		o.Description = text
	}
	o.Description = collapseWhitespace(o.Description)

	return nil
}

func stripHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	return doc.Text(), nil
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}
