// Package perf implements the performance layer: response caching,
// in-flight deduplication, request batching and streamed responses, wired
// together by Manager.
package perf

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/ersinghrajkr/restified/pkg/request"
)

// volatileHeaders never participate in the fingerprint: they change per
// request without changing the response identity.
var volatileHeaders = map[string]struct{}{
	"date":             {},
	"x-request-id":     {},
	"x-correlation-id": {},
	"x-trace-id":       {},
}

// Fingerprint derives the content-addressed key for a specification. An
// explicit CacheKey wins; otherwise the key hashes method, URL, sorted query
// parameters, sorted non-volatile headers and the canonical JSON body.
func Fingerprint(spec *request.Specification) string {
	if spec.CacheKey != "" {
		return spec.CacheKey
	}

	base, embedded := splitQuery(spec.URL)

	d := xxhash.New()
	d.WriteString(strings.ToUpper(spec.Method))
	d.WriteString("\n")
	d.WriteString(base)
	d.WriteString("\n")

	writeSortedQuery(d, mergeQuery(embedded, spec.Query))
	d.WriteString("\n")
	writeSorted(d, spec.Headers, volatileHeaders)
	d.WriteString("\n")

	if spec.Body != nil {
		raw, err := json.Marshal(spec.Body)
		if err != nil {
			// Unmarshalable bodies still need a stable-ish identity.
			raw = []byte(fmt.Sprintf("%v", spec.Body))
		}
		d.Write(raw)
	}

	return strconv.FormatUint(d.Sum64(), 16)
}

// splitQuery separates a query string embedded in the URL from the rest, so
// parameter order inside the URL never influences the fingerprint.
// Unparsable URLs keep their raw form.
func splitQuery(raw string) (string, url.Values) {
	u, err := url.Parse(raw)
	if err != nil {
		return raw, nil
	}
	q := u.Query()
	u.RawQuery = ""
	return u.String(), q
}

// mergeQuery overlays explicit query parameters on top of the ones embedded
// in the URL. An explicit value replaces an embedded one under the same key.
func mergeQuery(embedded url.Values, explicit map[string]string) url.Values {
	if embedded == nil {
		embedded = url.Values{}
	}
	for k, v := range explicit {
		embedded.Set(k, v)
	}
	return embedded
}

func writeSortedQuery(d *xxhash.Digest, q url.Values) {
	if len(q) == 0 {
		return
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		vals := append([]string(nil), q[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			d.WriteString(k)
			d.WriteString("=")
			d.WriteString(v)
			d.WriteString("&")
		}
	}
}

func writeSorted(d *xxhash.Digest, m map[string]string, skip map[string]struct{}) {
	if len(m) == 0 {
		return
	}
	lowered := make(map[string]string, len(m))
	keys := make([]string, 0, len(m))
	for k, v := range m {
		lk := strings.ToLower(k)
		if skip != nil {
			if _, volatile := skip[lk]; volatile {
				continue
			}
		}
		if _, seen := lowered[lk]; !seen {
			keys = append(keys, lk)
		}
		lowered[lk] = v
	}
	sort.Strings(keys)
	for _, lk := range keys {
		d.WriteString(lk)
		d.WriteString("=")
		d.WriteString(lowered[lk])
		d.WriteString("&")
	}
}
