package extractor

import (
	"fmt"
	"strings"
	"time"

	"directory-scraper/browser"
	"directory-scraper/config"
	"directory-scraper/models"

	"github.com/PuerkitoBio/goquery"
)

// timestampField is the column a scrape timestamp is written under
// when the job enables it.
const timestampField = "scraped_at"

// Extractor pulls structured records out of a page using a container
// selector and an ordered field-name to selector schema. Extraction is
// read-only: running it twice on the same page yields the same records.
type Extractor struct {
	container string
	fields    []config.Field
	timestamp bool
	now       func() time.Time
}

// New creates an extractor for the given container and field schema.
// When withTimestamp is set, every record carries a scraped_at column.
func New(container string, fields []config.Field, withTimestamp bool) *Extractor {
	return &Extractor{
		container: container,
		fields:    fields,
		timestamp: withTimestamp,
		now:       time.Now,
	}
}

// FieldNames returns the record schema in output column order.
func (e *Extractor) FieldNames() []string {
	names := make([]string, 0, len(e.fields)+1)
	for _, f := range e.fields {
		names = append(names, f.Name)
	}
	if e.timestamp {
		names = append(names, timestampField)
	}
	return names
}

// Extract returns the records visible on the page. A container
// selector that matches nothing yields an empty slice, not an error;
// a field selector that matches nothing inside its container yields an
// empty string for that field, and the record is still emitted.
func (e *Extractor) Extract(page browser.Page) ([]models.Record, error) {
	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to read page content: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var records []models.Record
	doc.Find(e.container).Each(func(i int, s *goquery.Selection) {
		rec := models.Record{}
		for _, f := range e.fields {
			rec[f.Name] = strings.TrimSpace(s.Find(f.Selector).First().Text())
		}
		if e.timestamp {
			rec[timestampField] = e.now().Format("2006-01-02 15:04:05")
		}
		records = append(records, rec)
	})

	return records, nil
}
