package manager

import (
	"errors"
	"fmt"
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
	"directory-scraper/scraper"
	"directory-scraper/sink"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	page    browser.Page
	openErr error
}

func (s *fakeSession) Open(url string) (browser.Page, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	return s.page, nil
}

func (s *fakeSession) Close() error { return nil }

type fakePage struct {
	pages []string
	idx   int
}

func (p *fakePage) Navigate(url string) error { return nil }

func (p *fakePage) HTML() (string, error) { return p.pages[p.idx], nil }

func (p *fakePage) Has(selector string) (bool, error) {
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
	p.idx++
	return nil
}

func (p *fakePage) WaitStable(timeout time.Duration) error { return nil }

var testFields = []config.Field{{Name: "name", Selector: ".name"}}

func pageHTML(hasNext bool, names ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, n := range names {
		fmt.Fprintf(&b, `<div class="company-item"><span class="name">%s</span></div>`, n)
	}
	if hasNext {
		b.WriteString(`<a class="next" href="?page=2">Next</a>`)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func newFakeJob(t *testing.T, out string, sess browser.Session) *scraper.Job {
	t.Helper()
	csvSink, err := sink.NewCSV(out)
	require.NoError(t, err)
	return scraper.New(
		"https://example.com/directory",
		0,
		func() (browser.Session, error) { return sess, nil },
		extractor.New(".company-item", testFields, false),
		&pager.NextButton{Selector: "a.next", StabilizeTimeout: time.Second},
		csvSink,
		policy.NoDelay{},
	)
}

func TestManagerSequentialFailureIsolation(t *testing.T) {
	dir := t.TempDir()
	outA := filepath.Join(dir, "a.csv")
	outB := filepath.Join(dir, "b.csv")

	failing := newFakeJob(t, outA, &fakeSession{openErr: errors.New("browser crashed")})
	healthy := newFakeJob(t, outB, &fakeSession{page: &fakePage{pages: []string{pageHTML(false, "Beta AG")}}})

	m := New()
	m.AddJob(failing, outA)
	m.AddJob(healthy, outB)

	reports := m.Run(false)
	require.Len(t, reports, 2)

	// The first job's failure does not prevent the second from running.
	assert.Equal(t, models.StateFailed, reports[0].State)
	assert.Equal(t, models.StateDone, reports[1].State)
	assert.Equal(t, 1, reports[1].RecordsWritten)
	assert.Equal(t, outB, reports[1].Output)
}

func TestManagerConcurrentNoCrossContamination(t *testing.T) {
	dir := t.TempDir()
	outA := filepath.Join(dir, "a.csv")
	outB := filepath.Join(dir, "b.csv")

	jobA := newFakeJob(t, outA, &fakeSession{page: &fakePage{pages: []string{
		pageHTML(true, "Alpha One", "Alpha Two"),
		pageHTML(false, "Alpha Three"),
	}}})
	jobB := newFakeJob(t, outB, &fakeSession{page: &fakePage{pages: []string{
		pageHTML(true, "Bravo One"),
		pageHTML(false, "Bravo Two"),
	}}})

	m := New()
	m.AddJob(jobA, outA)
	m.AddJob(jobB, outB)

	reports := m.Run(true)
	require.Len(t, reports, 2)
	assert.Equal(t, models.StateDone, reports[0].State)
	assert.Equal(t, models.StateDone, reports[1].State)
	assert.Equal(t, 3, reports[0].RecordsWritten)
	assert.Equal(t, 2, reports[1].RecordsWritten)

	contentA := readFile(t, outA)
	contentB := readFile(t, outB)

	assert.Contains(t, contentA, "Alpha One")
	assert.Contains(t, contentA, "Alpha Three")
	assert.NotContains(t, contentA, "Bravo")

	assert.Contains(t, contentB, "Bravo One")
	assert.Contains(t, contentB, "Bravo Two")
	assert.NotContains(t, contentB, "Alpha")
}

func TestManagerAddValidatesConfig(t *testing.T) {
	m := New()

	err := m.Add(config.JobConfig{URL: ""})
	assert.Error(t, err)
	assert.Equal(t, 0, m.Len())
}

func TestManagerAddRegistersJob(t *testing.T) {
	m := New()

	cfg := config.JobConfig{
		URL:       "https://example.com/directory",
		Output:    filepath.Join(t.TempDir(), "out.csv"),
		Engine:    config.EngineStatic,
		Container: ".company-item",
		Fields:    testFields,
		Pagination: config.Pagination{
			Mode:         config.PaginationNext,
			NextSelector: "a.next",
		},
	}

	require.NoError(t, m.Add(cfg))
	assert.Equal(t, 1, m.Len())
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
