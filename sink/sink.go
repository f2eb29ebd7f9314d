package sink

import "directory-scraper/models"

// Sink receives extracted records for one job. Rows must survive a
// crash of the process, so implementations persist on every Append
// rather than buffering for the whole run.
type Sink interface {
	// WriteHeader fixes the column order and writes the header row if
	// the destination does not already have one.
	WriteHeader(fields []string) error
	// Append persists the records and returns how many rows were
	// written. Existing rows are never rewritten or truncated.
	Append(records []models.Record) (int, error)
	// Close flushes and releases the destination.
	Close() error
}
