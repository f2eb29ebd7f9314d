package models

// Record represents one structured item extracted from a page.
// Keys are field names from the extractor schema. Values are never
// absent: a selector that matched nothing yields an empty string.
type Record map[string]string

// PageResult holds what a single navigated page produced. It is not
// retained beyond immediate persistence.
type PageResult struct {
	Records []Record
	HasNext bool
}

// Job terminal states.
const (
	StateDone   = "done"
	StateFailed = "failed"
)

// JobReport summarizes one job execution.
type JobReport struct {
	ID             string
	URL            string
	Output         string
	PagesVisited   int
	RecordsWritten int
	State          string
	Err            error
}

// Failed reports whether the job ended in the failed state.
func (r JobReport) Failed() bool {
	return r.State == StateFailed
}
