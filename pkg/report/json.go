package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// JSONReport is the document written by the JSON file reporter.
type JSONReport struct {
	Title       string        `json:"title,omitempty"`
	Subtitle    string        `json:"subtitle,omitempty"`
	GeneratedAt time.Time     `json:"generated_at"`
	Total       int           `json:"total"`
	Passed      int           `json:"passed"`
	Failed      int           `json:"failed"`
	Duration    time.Duration `json:"duration_ns"`
	Tests       []*TestRecord `json:"tests"`
}

// JSONReporter accumulates records and writes one JSON document on Flush.
type JSONReporter struct {
	mu       sync.Mutex
	path     string
	title    string
	subtitle string
	records  []*TestRecord
}

// NewJSONReporter writes its report to dir/filename. A missing filename
// defaults to report.json.
func NewJSONReporter(dir, filename, title, subtitle string) *JSONReporter {
	if filename == "" {
		filename = "report.json"
	}
	return &JSONReporter{
		path:     filepath.Join(dir, filename),
		title:    title,
		subtitle: subtitle,
	}
}

// Path returns the target file path.
func (j *JSONReporter) Path() string { return j.path }

// Report buffers the record until Flush.
func (j *JSONReporter) Report(rec *TestRecord) error {
	j.mu.Lock()
	j.records = append(j.records, rec)
	j.mu.Unlock()
	return nil
}

// Flush writes the accumulated report, creating parent directories.
func (j *JSONReporter) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	doc := JSONReport{
		Title:       j.title,
		Subtitle:    j.subtitle,
		GeneratedAt: time.Now().UTC(),
		Total:       len(j.records),
		Tests:       j.records,
	}
	for _, rec := range j.records {
		if rec.Passed {
			doc.Passed++
		} else {
			doc.Failed++
		}
		doc.Duration += rec.Duration
	}

	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(j.path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
