package scraper

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"directory-scraper/browser"
	"directory-scraper/config"
	"directory-scraper/extractor"
	"directory-scraper/models"
	"directory-scraper/pager"
	"directory-scraper/policy"
	"directory-scraper/sink"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	page    browser.Page
	openErr error
	closed  bool
}

func (s *fakeSession) Open(url string) (browser.Page, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	return s.page, nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

// fakePage serves a scripted sequence of documents. Clicking the next
// control moves to the following document; a page configured to stall
// accepts the click but never stabilizes.
type fakePage struct {
	pages      []string
	idx        int
	stallAfter int // 1-based page whose turn never settles, 0 = never
	stalled    bool
	events     *[]string
}

func (p *fakePage) Navigate(url string) error { return nil }

func (p *fakePage) HTML() (string, error) { return p.pages[p.idx], nil }

func (p *fakePage) Has(selector string) (bool, error) {
	if p.events != nil {
		*p.events = append(*p.events, "probe")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.pages[p.idx]))
	if err != nil {
		return false, err
	}
	return doc.Find(selector).Length() > 0, nil
}

func (p *fakePage) Click(selector string) error {
	ok, err := p.Has(selector)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no element matches %q", selector)
	}
	if p.stallAfter > 0 && p.idx+1 == p.stallAfter {
		p.stalled = true
		return nil
	}
	p.idx++
	return nil
}

func (p *fakePage) WaitStable(timeout time.Duration) error {
	if p.stalled {
		return errors.New("timeout waiting for stable page")
	}
	return nil
}

// recordingSink logs append calls for ordering assertions.
type recordingSink struct {
	events *[]string
	rows   int
}

func (s *recordingSink) WriteHeader(fields []string) error { return nil }

func (s *recordingSink) Append(records []models.Record) (int, error) {
	*s.events = append(*s.events, "append")
	s.rows += len(records)
	return len(records), nil
}

func (s *recordingSink) Close() error { return nil }

var testFields = []config.Field{
	{Name: "name", Selector: ".name"},
	{Name: "location", Selector: ".location"},
}

func pageHTML(hasNext bool, names ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, n := range names {
		fmt.Fprintf(&b, `<div class="company-item"><span class="name">%s</span><span class="location">Berlin</span></div>`, n)
	}
	if hasNext {
		b.WriteString(`<a class="next" href="?page=2">Next</a>`)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func newTestJob(t *testing.T, page *fakePage, maxPages int) (*Job, *fakeSession, string) {
	t.Helper()

	sess := &fakeSession{page: page}
	out := filepath.Join(t.TempDir(), "out.csv")
	csvSink, err := sink.NewCSV(out)
	require.NoError(t, err)

	job := New(
		"https://example.com/directory",
		maxPages,
		func() (browser.Session, error) { return sess, nil },
		extractor.New(".company-item", testFields, false),
		&pager.NextButton{Selector: "a.next", StabilizeTimeout: time.Second},
		csvSink,
		policy.NoDelay{},
	)
	return job, sess, out
}

func dataRows(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := strings.TrimRight(string(data), "\n")
	if content == "" {
		return 0
	}
	return len(strings.Split(content, "\n")) - 1 // minus header
}

func TestJobRunAllPages(t *testing.T) {
	page := &fakePage{pages: []string{
		pageHTML(true, "Acme GmbH", "Beta AG"),
		pageHTML(true, "Gamma KG", "Delta SE"),
		pageHTML(false, "Epsilon GmbH"),
	}}
	job, sess, out := newTestJob(t, page, 0)

	report := job.Run()

	assert.Equal(t, models.StateDone, report.State)
	assert.NoError(t, report.Err)
	assert.Equal(t, 3, report.PagesVisited)
	assert.Equal(t, 5, report.RecordsWritten)
	assert.True(t, sess.closed)

	// Rows on disk must match the report exactly.
	assert.Equal(t, report.RecordsWritten, dataRows(t, out))
}

func TestJobStopsOnEmptyPage(t *testing.T) {
	page := &fakePage{pages: []string{
		pageHTML(true, "Acme GmbH"),
		pageHTML(true, "Beta AG"),
		pageHTML(true), // no items, next control still present
		pageHTML(true, "Never Visited"),
	}}
	job, sess, out := newTestJob(t, page, 0)

	report := job.Run()

	assert.Equal(t, models.StateDone, report.State)
	assert.Equal(t, 3, report.PagesVisited)
	assert.Equal(t, 2, report.RecordsWritten)
	assert.Equal(t, 2, page.idx, "job must not paginate past the empty page")
	assert.True(t, sess.closed)
	assert.Equal(t, 2, dataRows(t, out))
}

func TestJobPaginationStall(t *testing.T) {
	var logs bytes.Buffer
	log.SetOutput(&logs)
	defer log.SetOutput(os.Stderr)

	page := &fakePage{
		pages: []string{
			pageHTML(true, "Acme GmbH"),
			pageHTML(true, "Beta AG"),
			pageHTML(false, "Never Visited"),
		},
		stallAfter: 2,
	}
	job, sess, out := newTestJob(t, page, 0)

	report := job.Run()

	// A stalled page turn is a graceful stop, not a failure.
	assert.Equal(t, models.StateDone, report.State)
	assert.NoError(t, report.Err)
	assert.Equal(t, 2, report.PagesVisited)
	assert.Equal(t, 2, report.RecordsWritten)
	assert.True(t, sess.closed)
	assert.Equal(t, 2, dataRows(t, out))

	// The stall is logged distinctly from a clean no-next-page stop.
	assert.Contains(t, logs.String(), "pagination timeout after page 2")
	assert.NotContains(t, logs.String(), "no next page")
}

func TestJobPageLimit(t *testing.T) {
	page := &fakePage{pages: []string{
		pageHTML(true, "P1"),
		pageHTML(true, "P2"),
		pageHTML(true, "P3"),
		pageHTML(true, "P4"),
		pageHTML(false, "P5"),
	}}
	job, sess, _ := newTestJob(t, page, 2)

	report := job.Run()

	assert.Equal(t, models.StateDone, report.State)
	assert.Equal(t, 2, report.PagesVisited)
	assert.Equal(t, 2, report.RecordsWritten)
	assert.Equal(t, 1, page.idx, "job must not paginate past the limit")
	assert.True(t, sess.closed)
}

func TestJobStartupFailure(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.csv")
	csvSink, err := sink.NewCSV(out)
	require.NoError(t, err)

	job := New(
		"https://example.com/directory",
		0,
		func() (browser.Session, error) { return nil, errors.New("browser launch failed") },
		extractor.New(".company-item", testFields, false),
		&pager.NextButton{Selector: "a.next"},
		csvSink,
		policy.NoDelay{},
	)

	report := job.Run()

	assert.Equal(t, models.StateFailed, report.State)
	assert.Error(t, report.Err)
	assert.Equal(t, 0, report.PagesVisited)
	assert.Equal(t, 0, report.RecordsWritten)
	assert.Equal(t, 0, dataRows(t, out))
}

func TestJobStartURLFailure(t *testing.T) {
	sess := &fakeSession{openErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	out := filepath.Join(t.TempDir(), "out.csv")
	csvSink, err := sink.NewCSV(out)
	require.NoError(t, err)

	job := New(
		"https://example.invalid/directory",
		0,
		func() (browser.Session, error) { return sess, nil },
		extractor.New(".company-item", testFields, false),
		&pager.NextButton{Selector: "a.next"},
		csvSink,
		policy.NoDelay{},
	)

	report := job.Run()

	assert.Equal(t, models.StateFailed, report.State)
	assert.Error(t, report.Err)
	assert.True(t, sess.closed, "session must be released on the failure path")
}

func TestJobExtractsBeforePaginating(t *testing.T) {
	var events []string
	page := &fakePage{
		pages: []string{
			pageHTML(true, "Acme GmbH"),
			pageHTML(false, "Beta AG"),
		},
		events: &events,
	}
	sess := &fakeSession{page: page}
	rec := &recordingSink{events: &events}

	job := New(
		"https://example.com/directory",
		0,
		func() (browser.Session, error) { return sess, nil },
		extractor.New(".company-item", testFields, false),
		&pager.NextButton{Selector: "a.next", StabilizeTimeout: time.Second},
		rec,
		policy.NoDelay{},
	)

	report := job.Run()
	require.Equal(t, models.StateDone, report.State)

	// Per page: records are appended before the pager is consulted.
	// Page 1 probes twice (HasNext, then the click re-probe), page 2
	// once (HasNext finds nothing).
	assert.Equal(t, []string{"append", "probe", "probe", "append", "probe"}, events)
	assert.Equal(t, 2, rec.rows)
}
