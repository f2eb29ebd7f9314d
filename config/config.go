package config

import (
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// Pagination modes.
const (
	PaginationNext  = "next"  // click a configured next-page control
	PaginationQuery = "query" // rewrite a ?page=N style query parameter
)

// Scrape engines.
const (
	EngineBrowser = "browser" // headless browser (JS-rendered sites)
	EngineStatic  = "static"  // plain HTTP fetch (server-rendered sites)
)

// Field maps an output column name to the DOM selector that fills it,
// evaluated relative to the item container.
type Field struct {
	Name     string `yaml:"name"`
	Selector string `yaml:"selector"`
}

// Delay is the inter-page delay range in seconds.
type Delay struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Pagination configures how the job turns pages.
type Pagination struct {
	Mode             string `yaml:"mode"`
	NextSelector     string `yaml:"next_selector"`
	DisabledSelector string `yaml:"disabled_selector"`
	Param            string `yaml:"param"`
}

// JobConfig describes one scrape target. It is immutable once the job
// starts.
type JobConfig struct {
	URL            string     `yaml:"url"`
	Output         string     `yaml:"output"`
	SpreadsheetURL string     `yaml:"spreadsheet_url"`
	Engine         string     `yaml:"engine"`
	Delay          Delay      `yaml:"delay"`
	MaxPages       int        `yaml:"max_pages"`
	Container      string     `yaml:"container"`
	Fields         []Field    `yaml:"fields"`
	Pagination     Pagination `yaml:"pagination"`
	Timestamp      bool       `yaml:"timestamp"`
}

// Config is the top-level job file.
type Config struct {
	Concurrent bool        `yaml:"concurrent"`
	Jobs       []JobConfig `yaml:"jobs"`
}

// LoadConfig loads configuration from a YAML file and applies defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	for i := range cfg.Jobs {
		cfg.Jobs[i].applyDefaults()
	}

	return &cfg, nil
}

func (j *JobConfig) applyDefaults() {
	if j.Engine == "" {
		j.Engine = EngineBrowser
	}
	if j.Pagination.Mode == "" {
		j.Pagination.Mode = PaginationNext
	}
	if j.Pagination.Param == "" {
		j.Pagination.Param = "page"
	}
}

// Validate checks the config invariants before a job is registered.
func (j *JobConfig) Validate() error {
	if j.URL == "" {
		return fmt.Errorf("job url must not be empty")
	}
	u, err := url.Parse(j.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("job url %q is not a well-formed URL", j.URL)
	}
	if j.Output == "" && j.SpreadsheetURL == "" {
		return fmt.Errorf("job %s: either output or spreadsheet_url must be set", j.URL)
	}
	if j.Engine != EngineBrowser && j.Engine != EngineStatic {
		return fmt.Errorf("job %s: unknown engine %q", j.URL, j.Engine)
	}
	if j.Delay.Min < 0 || j.Delay.Max < 0 {
		return fmt.Errorf("job %s: delay values must be non-negative", j.URL)
	}
	if j.Delay.Min > j.Delay.Max {
		return fmt.Errorf("job %s: delay min %.2f exceeds max %.2f", j.URL, j.Delay.Min, j.Delay.Max)
	}
	if j.MaxPages < 0 {
		return fmt.Errorf("job %s: max_pages must be positive or zero for unbounded", j.URL)
	}
	if j.Container == "" {
		return fmt.Errorf("job %s: container selector must not be empty", j.URL)
	}
	if len(j.Fields) == 0 {
		return fmt.Errorf("job %s: at least one field selector is required", j.URL)
	}
	for _, f := range j.Fields {
		if f.Name == "" || f.Selector == "" {
			return fmt.Errorf("job %s: field entries need both name and selector", j.URL)
		}
	}
	switch j.Pagination.Mode {
	case PaginationNext:
		if j.Pagination.NextSelector == "" {
			return fmt.Errorf("job %s: pagination mode %q requires next_selector", j.URL, PaginationNext)
		}
	case PaginationQuery:
	default:
		return fmt.Errorf("job %s: unknown pagination mode %q", j.URL, j.Pagination.Mode)
	}
	return nil
}
