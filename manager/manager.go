package manager

import (
	"fmt"
	"log"
	"sync"
	"time"

	"directory-scraper/browser"
	"directory-scraper/config"
	"directory-scraper/extractor"
	"directory-scraper/models"
	"directory-scraper/pager"
	"directory-scraper/policy"
	"directory-scraper/scraper"
	"directory-scraper/sink"
)

// Manager owns a collection of scraper jobs and runs them either
// sequentially or concurrently. Jobs share nothing: each has its own
// browser session and output destination, so no locking is needed
// between them.
type Manager struct {
	identity policy.Identity
	entries  []entry
}

type entry struct {
	job    *scraper.Job
	output string
}

// New creates a manager that assigns each job a user agent drawn from
// the default pool.
func New() *Manager {
	return &Manager{identity: policy.NewRandomIdentity()}
}

// NewWithIdentity creates a manager with an explicit identity policy,
// letting tests pin a fixed user agent.
func NewWithIdentity(identity policy.Identity) *Manager {
	return &Manager{identity: identity}
}

// Add validates the config, wires a job from it and registers the job.
// It may be called any number of times before Run.
func (m *Manager) Add(cfg config.JobConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid job config: %w", err)
	}

	out, err := buildSink(cfg)
	if err != nil {
		return err
	}

	ext := extractor.New(cfg.Container, cfg.Fields, cfg.Timestamp)
	pgr := buildPager(cfg)
	delay := policy.NewUniformDelay(cfg.Delay.Min, cfg.Delay.Max)
	factory := m.buildSessionFactory(cfg)

	job := scraper.New(cfg.URL, cfg.MaxPages, factory, ext, pgr, out, delay)
	m.entries = append(m.entries, entry{job: job, output: outputName(cfg)})
	return nil
}

// AddJob registers a pre-assembled job writing to the named output.
func (m *Manager) AddJob(job *scraper.Job, output string) {
	m.entries = append(m.entries, entry{job: job, output: output})
}

// Len returns the number of registered jobs.
func (m *Manager) Len() int {
	return len(m.entries)
}

// Run executes every registered job to a terminal state and returns
// one report per job, in registration order. A job's failure never
// prevents or aborts its siblings.
func (m *Manager) Run(concurrent bool) []models.JobReport {
	if concurrent {
		return m.runConcurrent()
	}
	return m.runSequential()
}

func (m *Manager) runSequential() []models.JobReport {
	reports := make([]models.JobReport, len(m.entries))
	for i, e := range m.entries {
		reports[i] = m.runOne(e)
	}
	return reports
}

func (m *Manager) runConcurrent() []models.JobReport {
	reports := make([]models.JobReport, len(m.entries))

	var wg sync.WaitGroup
	for i, e := range m.entries {
		wg.Add(1)
		go func(i int, e entry) {
			defer wg.Done()
			reports[i] = m.runOne(e)
		}(i, e)
	}
	wg.Wait()

	return reports
}

func (m *Manager) runOne(e entry) models.JobReport {
	start := time.Now()
	report := e.job.Run()
	report.Output = e.output

	if report.Failed() {
		log.Printf("Job %s failed after %s: %v\n", report.ID, time.Since(start).Round(time.Millisecond), report.Err)
	} else {
		log.Printf("Job %s done in %s: %d pages, %d records -> %s\n",
			report.ID, time.Since(start).Round(time.Millisecond), report.PagesVisited, report.RecordsWritten, report.Output)
	}
	return report
}

func (m *Manager) buildSessionFactory(cfg config.JobConfig) scraper.SessionFactory {
	userAgent := m.identity.UserAgent()
	if cfg.Engine == config.EngineStatic {
		return func() (browser.Session, error) {
			return browser.NewStaticSession(userAgent), nil
		}
	}
	return func() (browser.Session, error) {
		return browser.NewRodSession(userAgent)
	}
}

func buildPager(cfg config.JobConfig) pager.Pager {
	if cfg.Pagination.Mode == config.PaginationQuery {
		return &pager.QueryParam{
			BaseURL: cfg.URL,
			Param:   cfg.Pagination.Param,
		}
	}
	return &pager.NextButton{
		Selector:         cfg.Pagination.NextSelector,
		DisabledSelector: cfg.Pagination.DisabledSelector,
	}
}

func buildSink(cfg config.JobConfig) (sink.Sink, error) {
	if cfg.SpreadsheetURL != "" {
		spreadsheetID := sink.ExtractSpreadsheetID(cfg.SpreadsheetURL)
		if spreadsheetID == "" {
			return nil, fmt.Errorf("could not extract spreadsheet ID from URL: %s", cfg.SpreadsheetURL)
		}
		return sink.NewSheets(spreadsheetID, "")
	}
	return sink.NewCSV(cfg.Output)
}

func outputName(cfg config.JobConfig) string {
	if cfg.SpreadsheetURL != "" {
		return cfg.SpreadsheetURL
	}
	return cfg.Output
}
