package report

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

// ColorScheme groups the colorizers used by the console reporter.
type ColorScheme struct {
	Pass    *color.Color
	Fail    *color.Color
	Method  *color.Color
	URL     *color.Color
	Detail  *color.Color
	Summary *color.Color
}

// DefaultColorScheme returns the scheme used when none is provided.
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		Pass:    color.New(color.FgGreen, color.Bold),
		Fail:    color.New(color.FgRed, color.Bold),
		Method:  color.New(color.FgCyan, color.Bold),
		URL:     color.New(color.FgBlue),
		Detail:  color.New(color.FgYellow),
		Summary: color.New(color.FgMagenta, color.Bold),
	}
}

// ConsoleReporter writes human-readable test results to a writer.
type ConsoleReporter struct {
	mu      sync.Mutex
	out     io.Writer
	scheme  *ColorScheme
	verbose bool
	counter uint64
}

// ConsoleOption customizes a ConsoleReporter.
type ConsoleOption func(*ConsoleReporter)

// WithOutput redirects console output, stdout by default.
func WithOutput(w io.Writer) ConsoleOption {
	return func(c *ConsoleReporter) { c.out = w }
}

// WithColorScheme overrides the default colors.
func WithColorScheme(s *ColorScheme) ConsoleOption {
	return func(c *ConsoleReporter) { c.scheme = s }
}

// WithVerbose enables per-assertion output for passing tests too.
func WithVerbose(v bool) ConsoleOption {
	return func(c *ConsoleReporter) { c.verbose = v }
}

// NewConsoleReporter builds a console reporter.
func NewConsoleReporter(opts ...ConsoleOption) *ConsoleReporter {
	c := &ConsoleReporter{out: os.Stdout, scheme: DefaultColorScheme()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Report prints one test record.
func (c *ConsoleReporter) Report(rec *TestRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := atomic.AddUint64(&c.counter, 1)
	status := c.scheme.Pass.Sprint("PASS")
	if !rec.Passed {
		status = c.scheme.Fail.Sprint("FAIL")
	}

	fmt.Fprintf(c.out, "[%03d] %s %s", n, status, rec.Name)
	if rec.Method != "" {
		fmt.Fprintf(c.out, "  %s %s",
			c.scheme.Method.Sprint(rec.Method),
			c.scheme.URL.Sprint(rec.URL))
	}
	if rec.Status != 0 {
		fmt.Fprintf(c.out, "  (%d)", rec.Status)
	}
	fmt.Fprintf(c.out, "  %s", rec.Duration.Round(humanizeUnit(rec.Duration)))
	if rec.FromCache {
		fmt.Fprintf(c.out, "  %s", c.scheme.Detail.Sprint("cached"))
	}
	if rec.Deduplicated {
		fmt.Fprintf(c.out, "  %s", c.scheme.Detail.Sprint("deduplicated"))
	}
	if rec.Streamed {
		fmt.Fprintf(c.out, "  %s", c.scheme.Detail.Sprint("streamed"))
	}
	fmt.Fprintln(c.out)

	for _, a := range rec.Assertions {
		if a.Passed && !c.verbose {
			continue
		}
		mark := c.scheme.Pass.Sprint("ok")
		if !a.Passed {
			mark = c.scheme.Fail.Sprint("not ok")
		}
		fmt.Fprintf(c.out, "      %s %s", mark, a.Kind)
		if a.Target != "" {
			fmt.Fprintf(c.out, " %s", a.Target)
		}
		if a.Message != "" {
			fmt.Fprintf(c.out, ": %s", a.Message)
		}
		fmt.Fprintln(c.out)
	}
	for _, msg := range rec.Errors {
		fmt.Fprintf(c.out, "      %s %s\n", c.scheme.Fail.Sprint("error"), msg)
	}
	return nil
}

// PrintSummary writes a run summary line.
func (c *ConsoleReporter) PrintSummary(s Summary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s %s total, %d passed, %d failed in %s\n",
		c.scheme.Summary.Sprint("==>"),
		humanize.Comma(int64(s.Total)), s.Passed, s.Failed,
		s.Duration.Round(humanizeUnit(s.Duration)))
}

// Flush is a no-op for the console reporter.
func (c *ConsoleReporter) Flush() error { return nil }

// humanizeUnit picks a rounding unit proportional to the duration so the
// printed value stays three significant digits or fewer.
func humanizeUnit(d time.Duration) time.Duration {
	switch {
	case d >= time.Second:
		return time.Millisecond
	case d >= time.Millisecond:
		return time.Microsecond
	default:
		return time.Nanosecond
	}
}
