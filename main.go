package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"directory-scraper/config"
	"directory-scraper/db"
	"directory-scraper/manager"
	"directory-scraper/models"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the job configuration file")
	concurrent := flag.Bool("concurrent", false, "Run all jobs concurrently instead of sequentially")
	logDir := flag.String("log-dir", ".", "Directory the run log file is written to")
	flag.Parse()

	// Load .env if present; real environment variables take precedence
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	logFile := setupLogging(*logDir)
	if logFile != nil {
		defer logFile.Close()
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v\n", err)
	}
	if len(cfg.Jobs) == 0 {
		log.Fatalf("No jobs defined in %s\n", *configPath)
	}

	mgr := manager.New()
	for _, jc := range cfg.Jobs {
		if err := mgr.Add(jc); err != nil {
			log.Fatalf("Failed to register job: %v\n", err)
		}
	}

	runConcurrent := *concurrent || cfg.Concurrent
	log.Printf("Running %d job(s), concurrent=%v\n", mgr.Len(), runConcurrent)

	reports := mgr.Run(runConcurrent)

	saveRunHistory(reports)
	printSummary(reports)

	for _, r := range reports {
		if r.Failed() {
			os.Exit(1)
		}
	}
}

// setupLogging mirrors the log stream to a timestamped file alongside
// stderr. Returns nil (stderr only) when the file cannot be created.
func setupLogging(dir string) *os.File {
	name := fmt.Sprintf("%s/scraping_%s.log", dir, time.Now().Format("20060102_150405"))
	file, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Printf("Warning: Failed to create log file %s: %v\n", name, err)
		return nil
	}
	log.SetOutput(io.MultiWriter(os.Stderr, file))
	log.Printf("Logging to %s\n", name)
	return file
}

// saveRunHistory records job outcomes in Postgres when DATABASE_URL is
// configured. History is best-effort: a storage failure never changes
// the run outcome.
func saveRunHistory(reports []models.JobReport) {
	if os.Getenv("DATABASE_URL") == "" {
		return
	}

	database, err := db.NewDB()
	if err != nil {
		log.Printf("Warning: Failed to open run-history database: %v\n", err)
		return
	}
	defer database.Close()

	for _, r := range reports {
		if err := database.SaveReport(r); err != nil {
			log.Printf("Warning: Failed to save run report %s: %v\n", r.ID, err)
		}
	}
}

func printSummary(reports []models.JobReport) {
	fmt.Println("\n=== Run Summary ===")
	failed := 0
	for _, r := range reports {
		status := "done"
		if r.Failed() {
			status = "FAILED"
			failed++
		}
		fmt.Printf("%s  %-6s  pages=%d records=%d  -> %s\n", r.URL, status, r.PagesVisited, r.RecordsWritten, r.Output)
		if r.Err != nil {
			fmt.Printf("  error: %v\n", r.Err)
		}
	}
	fmt.Printf("%d job(s), %d failed\n", len(reports), failed)
}
