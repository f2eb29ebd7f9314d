package scraper

import (
	"fmt"
	"log"

	"directory-scraper/browser"
	"directory-scraper/extractor"
	"directory-scraper/models"
	"directory-scraper/pager"
	"directory-scraper/policy"
	"directory-scraper/sink"

	"github.com/google/uuid"
)

// SessionFactory creates the browser session a job will own. The
// session is launched lazily inside Run so that concurrent jobs each
// get their own browser and a failed launch stays contained to its
// job.
type SessionFactory func() (browser.Session, error)

// Job drives one scrape target through the extract, append, paginate
// loop. It owns one browser session, one output sink and one delay
// policy for the duration of a run; none of that state is shared with
// other jobs.
type Job struct {
	id        string
	url       string
	maxPages  int
	newSess   SessionFactory
	extractor *extractor.Extractor
	pager     pager.Pager
	sink      sink.Sink
	delay     policy.Delay
}

// New assembles a job. maxPages of zero means unbounded.
func New(url string, maxPages int, newSess SessionFactory, ext *extractor.Extractor, pgr pager.Pager, out sink.Sink, delay policy.Delay) *Job {
	return &Job{
		id:        uuid.New().String(),
		url:       url,
		maxPages:  maxPages,
		newSess:   newSess,
		extractor: ext,
		pager:     pgr,
		sink:      out,
		delay:     delay,
	}
}

// ID returns the job's run identifier.
func (j *Job) ID() string {
	return j.id
}

// Run executes the job to a terminal state and reports the outcome.
// The session and sink are released on every exit path; rows appended
// before a failure stay persisted.
func (j *Job) Run() models.JobReport {
	report := models.JobReport{
		ID:    j.id,
		URL:   j.url,
		State: models.StateFailed,
	}

	log.Printf("[job %s] starting scrape of %s\n", j.id, j.url)

	defer func() {
		if err := j.sink.Close(); err != nil {
			log.Printf("[job %s] Warning: failed to close output: %v\n", j.id, err)
		}
	}()

	session, err := j.newSess()
	if err != nil {
		report.Err = fmt.Errorf("failed to open session for %s: %w", j.url, err)
		log.Printf("[job %s] startup failure: %v\n", j.id, report.Err)
		return report
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Printf("[job %s] Warning: failed to close session: %v\n", j.id, err)
		} else {
			log.Printf("[job %s] session closed\n", j.id)
		}
	}()

	page, err := session.Open(j.url)
	if err != nil {
		report.Err = fmt.Errorf("failed to load start URL %s: %w", j.url, err)
		log.Printf("[job %s] startup failure: %v\n", j.id, report.Err)
		return report
	}
	log.Printf("[job %s] loaded %s\n", j.id, j.url)

	if err := j.sink.WriteHeader(j.extractor.FieldNames()); err != nil {
		report.Err = fmt.Errorf("failed to prepare output: %w", err)
		log.Printf("[job %s] %v\n", j.id, report.Err)
		return report
	}

	for {
		records, err := j.extractor.Extract(page)
		if err != nil {
			report.Err = fmt.Errorf("extraction failed on page %d of %s: %w", report.PagesVisited+1, j.url, err)
			log.Printf("[job %s] session fault: %v\n", j.id, report.Err)
			return report
		}
		report.PagesVisited++

		if len(records) == 0 {
			// Nothing matched the container selector: end of data.
			log.Printf("[job %s] page %d matched no items, finishing\n", j.id, report.PagesVisited)
			report.State = models.StateDone
			return report
		}

		written, err := j.sink.Append(records)
		report.RecordsWritten += written
		if err != nil {
			report.Err = fmt.Errorf("failed to persist page %d records: %w", report.PagesVisited, err)
			log.Printf("[job %s] %v\n", j.id, report.Err)
			return report
		}
		log.Printf("[job %s] page %d: extracted %d records\n", j.id, report.PagesVisited, written)

		if j.maxPages > 0 && report.PagesVisited >= j.maxPages {
			log.Printf("[job %s] page limit %d reached, finishing\n", j.id, j.maxPages)
			report.State = models.StateDone
			return report
		}

		hasNext, err := j.pager.HasNext(page)
		if err != nil {
			report.Err = fmt.Errorf("failed to probe pagination on page %d of %s: %w", report.PagesVisited, j.url, err)
			log.Printf("[job %s] session fault: %v\n", j.id, report.Err)
			return report
		}
		if !hasNext {
			log.Printf("[job %s] no next page after page %d, finishing\n", j.id, report.PagesVisited)
			report.State = models.StateDone
			return report
		}

		j.delay.Sleep()

		if err := j.pager.Advance(page); err != nil {
			// A page turn that never settles ends pagination without
			// discarding anything already written.
			log.Printf("[job %s] pagination timeout after page %d of %s: %v\n", j.id, report.PagesVisited, j.url, err)
			report.State = models.StateDone
			return report
		}
	}
}
