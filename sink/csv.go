package sink

import (
	"encoding/csv"
	"fmt"
	"os"

	"directory-scraper/models"
)

// CSV appends records to a UTF-8 CSV file. The file is opened in
// append mode and never truncated; the header row is written only when
// the file is new or empty, so re-running a job keeps adding rows to
// the same destination.
type CSV struct {
	path   string
	file   *os.File
	writer *csv.Writer
	fields []string
}

// NewCSV opens (or creates) the output file for appending.
func NewCSV(path string) (*CSV, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file %s: %w", path, err)
	}
	return &CSV{
		path:   path,
		file:   file,
		writer: csv.NewWriter(file),
	}, nil
}

// Path returns the output file path.
func (c *CSV) Path() string {
	return c.path
}

func (c *CSV) WriteHeader(fields []string) error {
	c.fields = fields

	info, err := c.file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat output file %s: %w", c.path, err)
	}
	if info.Size() > 0 {
		// Appending to an existing file, header already present.
		return nil
	}

	if err := c.writer.Write(fields); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		return fmt.Errorf("failed to flush header: %w", err)
	}
	return nil
}

func (c *CSV) Append(records []models.Record) (int, error) {
	if len(c.fields) == 0 {
		return 0, fmt.Errorf("header not written for %s", c.path)
	}

	written := 0
	for _, rec := range records {
		row := make([]string, len(c.fields))
		for i, name := range c.fields {
			row[i] = rec[name]
		}
		if err := c.writer.Write(row); err != nil {
			return written, fmt.Errorf("failed to write row: %w", err)
		}
		written++
	}

	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		return written, fmt.Errorf("failed to flush rows: %w", err)
	}
	return written, nil
}

func (c *CSV) Close() error {
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		c.file.Close()
		return fmt.Errorf("failed to flush output file %s: %w", c.path, err)
	}
	return c.file.Close()
}
