package report

import (
	"strings"

	"github.com/ersinghrajkr/restified/internal/config"
)

// FromConfig builds the reporters named by the reporting configuration.
// Console output is always on; reporting.enabled adds the file formats.
func FromConfig(cfg config.ReportingConfig) []Reporter {
	reporters := []Reporter{NewConsoleReporter()}
	if !cfg.Enabled {
		return reporters
	}
	for _, format := range cfg.Formats {
		switch strings.ToLower(format) {
		case "json":
			reporters = append(reporters,
				NewJSONReporter(cfg.OutputDir, cfg.Filename, cfg.Title, cfg.Subtitle))
		case "console":
			// already present
		}
	}
	return reporters
}
