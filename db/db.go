package db

import (
	"database/sql"
	"fmt"
	"os"

	"directory-scraper/models"

	_ "github.com/lib/pq"
)

// DB wraps the run-history database connection. It records job
// outcomes only; it is not a checkpoint, runs are never resumed from
// it.
type DB struct {
	conn *sql.DB
}

// NewDB opens the run-history database. The connection string comes
// from DATABASE_URL, or is built from DB_* environment variables.
func NewDB() (*DB, error) {
	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		host := getEnvOrDefault("DB_HOST", "localhost")
		port := getEnvOrDefault("DB_PORT", "5432")
		user := getEnvOrDefault("DB_USER", "directory_scraper")
		password := getEnvOrDefault("DB_PASSWORD", "")
		dbname := getEnvOrDefault("DB_NAME", "directory_scraper")
		sslmode := getEnvOrDefault("DB_SSLMODE", "disable")

		connStr = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			host, port, user, password, dbname, sslmode)
	}

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the run-history table if it doesn't exist.
func (db *DB) initSchema() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS scrape_runs (
			id UUID PRIMARY KEY,
			url TEXT NOT NULL,
			output TEXT NOT NULL,
			state VARCHAR(20) NOT NULL,
			pages_visited INTEGER NOT NULL DEFAULT 0,
			records_written INTEGER NOT NULL DEFAULT 0,
			error_detail TEXT,
			finished_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT valid_state CHECK (state IN ('done', 'failed'))
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create scrape_runs table: %w", err)
	}
	return nil
}

// SaveReport records the outcome of one job run.
func (db *DB) SaveReport(report models.JobReport) error {
	var errDetail *string
	if report.Err != nil {
		s := report.Err.Error()
		errDetail = &s
	}

	_, err := db.conn.Exec(`
		INSERT INTO scrape_runs (id, url, output, state, pages_visited, records_written, error_detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, report.ID, report.URL, report.Output, report.State, report.PagesVisited, report.RecordsWritten, errDetail)
	if err != nil {
		return fmt.Errorf("failed to save run report: %w", err)
	}
	return nil
}
