package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"directory-scraper/models"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// sheetRange is where rows are appended; the Sheets API extends the
// table below the last populated row.
const sheetRange = "Sheet1!A1"

// Sheets appends records to a Google Sheets spreadsheet, as an
// alternative output destination to a local CSV file.
type Sheets struct {
	service       *sheets.Service
	spreadsheetID string
	fields        []string
}

// NewSheets creates a Google Sheets sink. Credentials come from the
// given service-account JSON file, or from the
// GOOGLE_SHEETS_CREDENTIALS environment variable when the path is
// empty.
func NewSheets(spreadsheetID string, credentialsPath string) (*Sheets, error) {
	ctx := context.Background()

	var credsJSON []byte
	var err error

	if credentialsPath != "" {
		credsJSON, err = os.ReadFile(credentialsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
	} else {
		credsEnv := strings.TrimSpace(os.Getenv("GOOGLE_SHEETS_CREDENTIALS"))
		if credsEnv == "" {
			return nil, fmt.Errorf("credentials not found: GOOGLE_SHEETS_CREDENTIALS environment variable is empty or not set")
		}
		credsJSON = []byte(credsEnv)
	}

	var creds map[string]interface{}
	if err := json.Unmarshal(credsJSON, &creds); err != nil {
		return nil, fmt.Errorf("invalid credentials JSON: %w", err)
	}
	if creds["type"] != "service_account" {
		return nil, fmt.Errorf("credentials must be a service account JSON file (type: service_account), got type: %v", creds["type"])
	}

	service, err := sheets.NewService(ctx, option.WithCredentialsJSON(credsJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Sheets{
		service:       service,
		spreadsheetID: spreadsheetID,
	}, nil
}

func (s *Sheets) WriteHeader(fields []string) error {
	s.fields = fields

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, sheetRange).Do()
	if err != nil {
		return fmt.Errorf("failed to read sheet: %w", err)
	}
	if len(resp.Values) > 0 {
		// Sheet already has a header row from a previous run.
		return nil
	}

	header := make([]interface{}, len(fields))
	for i, name := range fields {
		header[i] = name
	}
	return s.appendValues([][]interface{}{header})
}

func (s *Sheets) Append(records []models.Record) (int, error) {
	if len(s.fields) == 0 {
		return 0, fmt.Errorf("header not written for spreadsheet %s", s.spreadsheetID)
	}
	if len(records) == 0 {
		return 0, nil
	}

	values := make([][]interface{}, 0, len(records))
	for _, rec := range records {
		row := make([]interface{}, len(s.fields))
		for i, name := range s.fields {
			row[i] = rec[name]
		}
		values = append(values, row)
	}

	if err := s.appendValues(values); err != nil {
		return 0, err
	}
	log.Printf("Appended %d rows to spreadsheet %s\n", len(values), s.spreadsheetID)
	return len(values), nil
}

// Close is a no-op; every Append is already persisted remotely.
func (s *Sheets) Close() error {
	return nil
}

func (s *Sheets) appendValues(values [][]interface{}) error {
	valueRange := &sheets.ValueRange{Values: values}
	_, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, sheetRange, valueRange).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Do()
	if err != nil {
		return fmt.Errorf("failed to append to sheets: %w", err)
	}
	return nil
}

// ExtractSpreadsheetID extracts the spreadsheet ID from a Google
// Sheets URL such as
// https://docs.google.com/spreadsheets/d/SPREADSHEET_ID/edit?usp=sharing.
func ExtractSpreadsheetID(url string) string {
	parts := strings.Split(url, "/d/")
	if len(parts) < 2 {
		return ""
	}

	idPart := parts[1]
	if idx := strings.Index(idPart, "/"); idx != -1 {
		idPart = idPart[:idx]
	}
	if idx := strings.Index(idPart, "?"); idx != -1 {
		idPart = idPart[:idx]
	}

	return strings.TrimSpace(idPart)
}
