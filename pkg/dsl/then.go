package dsl

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ersinghrajkr/restified/pkg/errkind"
	"github.com/ersinghrajkr/restified/pkg/report"
	"github.com/ersinghrajkr/restified/pkg/request"
	"github.com/ersinghrajkr/restified/pkg/utility"
)

// ThenStep holds the response record and a queue of assertions. Assertions
// register in insertion order and evaluate together in End; a failure never
// suppresses later assertions.
type ThenStep struct {
	given     *GivenStep
	spec      *request.Specification
	rec       *request.Record
	startedAt time.Time
	checks    []check
}

type check struct {
	kind   string
	target string
	eval   func(t *ThenStep) report.AssertionResult
}

// Response returns the underlying record.
func (t *ThenStep) Response() *request.Record { return t.rec }

func (t *ThenStep) add(kind, target string, eval func(t *ThenStep) report.AssertionResult) *ThenStep {
	t.checks = append(t.checks, check{kind: kind, target: target, eval: eval})
	return t
}

// StatusCode asserts the exact response status.
func (t *ThenStep) StatusCode(want int) *ThenStep {
	return t.add("statusCode", "", func(t *ThenStep) report.AssertionResult {
		res := report.AssertionResult{Kind: "statusCode", Expected: want, Actual: t.rec.Status}
		res.Passed = t.rec.Status == want
		if !res.Passed {
			res.Message = fmt.Sprintf("expected status %d, got %d %s", want, t.rec.Status, t.rec.StatusText)
		}
		return res
	})
}

// StatusIn asserts the status is one of the given codes.
func (t *ThenStep) StatusIn(codes ...int) *ThenStep {
	return t.add("statusIn", "", func(t *ThenStep) report.AssertionResult {
		res := report.AssertionResult{Kind: "statusIn", Expected: codes, Actual: t.rec.Status}
		for _, c := range codes {
			if t.rec.Status == c {
				res.Passed = true
				return res
			}
		}
		res.Message = fmt.Sprintf("status %d not in %v", t.rec.Status, codes)
		return res
	})
}

// HeaderExists asserts the header is present, case-insensitively.
func (t *ThenStep) HeaderExists(name string) *ThenStep {
	return t.add("header", name, func(t *ThenStep) report.AssertionResult {
		res := report.AssertionResult{Kind: "header", Target: name}
		_, res.Passed = t.rec.Header(name)
		if !res.Passed {
			res.Message = fmt.Sprintf("header %q not present", name)
		}
		return res
	})
}

// Header asserts the header carries an exact value.
func (t *ThenStep) Header(name, want string) *ThenStep {
	return t.add("header", name, func(t *ThenStep) report.AssertionResult {
		res := report.AssertionResult{Kind: "header", Target: name, Expected: want}
		got, ok := t.rec.Header(name)
		res.Actual = got
		if !ok {
			res.Message = fmt.Sprintf("header %q not present", name)
			return res
		}
		res.Passed = got == want
		if !res.Passed {
			res.Message = fmt.Sprintf("header %q = %q, want %q", name, got, want)
		}
		return res
	})
}

// HeaderMatches asserts the header value matches a regular expression.
func (t *ThenStep) HeaderMatches(name, pattern string) *ThenStep {
	return t.add("headerMatches", name, func(t *ThenStep) report.AssertionResult {
		res := report.AssertionResult{Kind: "headerMatches", Target: name, Expected: pattern}
		got, ok := t.rec.Header(name)
		res.Actual = got
		if !ok {
			res.Message = fmt.Sprintf("header %q not present", name)
			return res
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			res.Message = fmt.Sprintf("invalid pattern %q: %v", pattern, err)
			return res
		}
		res.Passed = re.MatchString(got)
		if !res.Passed {
			res.Message = fmt.Sprintf("header %q = %q does not match %q", name, got, pattern)
		}
		return res
	})
}

// BodyContains asserts the raw body contains a substring.
func (t *ThenStep) BodyContains(substr string) *ThenStep {
	return t.add("bodyContains", "", func(t *ThenStep) report.AssertionResult {
		res := report.AssertionResult{Kind: "bodyContains", Expected: substr}
		res.Passed = strings.Contains(string(t.rec.RawBody), substr)
		if !res.Passed {
			res.Message = fmt.Sprintf("body does not contain %q", substr)
		}
		return res
	})
}

// JSONPath asserts the path resolves in the parsed body. With no expected
// value the assertion passes when the path resolves at all, a null value
// included; a missing path fails.
func (t *ThenStep) JSONPath(path string, expected ...interface{}) *ThenStep {
	return t.add("jsonPath", path, func(t *ThenStep) report.AssertionResult {
		res := report.AssertionResult{Kind: "jsonPath", Target: path}
		got, err := evalJSONPath(path, t.rec.Body)
		if err != nil {
			res.Message = fmt.Sprintf("path %s: %v", path, err)
			return res
		}
		res.Actual = got
		if len(expected) == 0 {
			res.Passed = true
			return res
		}
		res.Expected = expected[0]
		res.Passed = equalValues(got, expected[0])
		if !res.Passed {
			res.Message = fmt.Sprintf("path %s = %v, want %v", path, got, expected[0])
		}
		return res
	})
}

// JSONPathMatches runs a predicate over the value at path.
func (t *ThenStep) JSONPathMatches(path string, predicate func(value interface{}) bool, description string) *ThenStep {
	return t.add("jsonPath", path, func(t *ThenStep) report.AssertionResult {
		res := report.AssertionResult{Kind: "jsonPath", Target: path, Message: description}
		got, err := evalJSONPath(path, t.rec.Body)
		if err != nil {
			res.Message = fmt.Sprintf("path %s: %v", path, err)
			return res
		}
		res.Actual = got
		res.Passed = predicate(got)
		if res.Passed {
			res.Message = ""
		}
		return res
	})
}

// JSONSchema validates the parsed body against a JSON Schema document,
// given as a JSON string, raw bytes, or an already-parsed value.
func (t *ThenStep) JSONSchema(schema interface{}) *ThenStep {
	return t.add("jsonSchema", "", func(t *ThenStep) report.AssertionResult {
		res := report.AssertionResult{Kind: "jsonSchema"}
		failures, err := validateSchema(schema, t.rec.Body)
		if err != nil {
			res.Message = fmt.Sprintf("%v: %v", errkind.ErrSchemaInvalid, err)
			return res
		}
		res.Passed = len(failures) == 0
		if !res.Passed {
			res.Message = strings.Join(failures, "; ")
		}
		return res
	})
}

// ResponseTimeBelow asserts the response arrived within the bound.
func (t *ThenStep) ResponseTimeBelow(bound time.Duration) *ThenStep {
	return t.add("responseTime", "", func(t *ThenStep) report.AssertionResult {
		res := report.AssertionResult{
			Kind:     "responseTime",
			Expected: bound.Milliseconds(),
			Actual:   t.rec.ResponseTimeMs,
		}
		res.Passed = t.rec.ResponseTimeMs < bound.Milliseconds()
		if !res.Passed {
			res.Message = fmt.Sprintf("response took %dms, want below %dms", t.rec.ResponseTimeMs, bound.Milliseconds())
		}
		return res
	})
}

// Custom runs an arbitrary predicate over the record.
func (t *ThenStep) Custom(description string, predicate func(rec *request.Record) bool) *ThenStep {
	return t.add("custom", description, func(t *ThenStep) report.AssertionResult {
		res := report.AssertionResult{Kind: "custom", Target: description}
		res.Passed = predicate(t.rec)
		if !res.Passed {
			res.Message = description
		}
		return res
	})
}

// Extract evaluates the JSONPath and stores the value in the extracted
// variable scope. A missing path is an assertion failure and leaves the
// variable unset.
func (t *ThenStep) Extract(path, name string) *ThenStep {
	return t.add("extract", path, func(t *ThenStep) report.AssertionResult {
		res := report.AssertionResult{Kind: "extract", Target: path}
		got, err := evalJSONPath(path, t.rec.Body)
		if err != nil {
			res.Message = fmt.Sprintf("%v: path %s: %v", errkind.ErrExtractionFailed, path, err)
			return res
		}
		t.given.deps.Vars.SetExtracted(name, got)
		res.Actual = got
		res.Passed = true
		return res
	})
}

// ExtractHeader stores a response header in the extracted scope.
func (t *ThenStep) ExtractHeader(header, name string) *ThenStep {
	return t.add("extract", header, func(t *ThenStep) report.AssertionResult {
		res := report.AssertionResult{Kind: "extract", Target: header}
		got, ok := t.rec.Header(header)
		if !ok {
			res.Message = fmt.Sprintf("%v: header %q not present", errkind.ErrExtractionFailed, header)
			return res
		}
		t.given.deps.Vars.SetExtracted(name, got)
		res.Actual = got
		res.Passed = true
		return res
	})
}

// SaveResponse snapshots the record into the suite response store.
func (t *ThenStep) SaveResponse(name string) *ThenStep {
	if t.given.deps.Responses != nil {
		t.given.deps.Responses.Save(name, t.rec)
	}
	return t
}

// End evaluates the queued assertions in insertion order, reports the test
// record, and returns AssertionFailed when any assertion failed.
func (t *ThenStep) End() error {
	g := t.given

	rec := &report.TestRecord{
		Name:           g.name,
		Tags:           g.tags,
		Method:         t.spec.Method,
		URL:            t.spec.URL,
		RequestHeaders: maskHeaders(t.spec.Headers),
		Status:         t.rec.Status,
		StartedAt:      t.startedAt,
		Passed:         true,
		FromCache:      t.rec.FromCache,
		Deduplicated:   t.rec.Deduplicated,
		Streamed:       t.rec.Streamed,
	}

	failed := 0
	for _, c := range t.checks {
		res := c.eval(t)
		rec.Assertions = append(rec.Assertions, res)
		if !res.Passed {
			failed++
			rec.Passed = false
		}
	}
	rec.Duration = time.Since(t.startedAt)

	var err error
	if failed > 0 {
		err = fmt.Errorf("%w: %d of %d assertions failed", errkind.ErrAssertionFailed, failed, len(t.checks))
		rec.Errors = append(rec.Errors, err.Error())
	}
	if g.deps.Collector != nil {
		g.deps.Collector.Record(rec)
	}
	return err
}

// maskHeaders copies headers with credential-bearing values replaced, for
// report output.
func maskHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if utility.SensitiveKey(k) {
			out[k] = utility.MaskValue
		} else {
			out[k] = v
		}
	}
	return out
}
