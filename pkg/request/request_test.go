package request

import (
	"testing"
	"time"
)

func TestNewRecordParsesJSONBody(t *testing.T) {
	spec := &Specification{Method: "GET", URL: "/users/1"}
	rec := NewRecord(spec, 200, "200 OK",
		map[string]string{"Content-Type": "application/json; charset=utf-8"},
		[]byte(`{"id":1,"name":"alice"}`), 120*time.Millisecond)

	body, ok := rec.Body.(map[string]interface{})
	if !ok {
		t.Fatalf("body = %T, want parsed object", rec.Body)
	}
	if body["name"] != "alice" {
		t.Fatalf("body = %v", body)
	}
	if rec.ResponseTimeMs != 120 {
		t.Fatalf("response time = %d", rec.ResponseTimeMs)
	}
	if rec.Request != spec {
		t.Fatal("record should keep its specification")
	}
}

func TestNewRecordKeepsTextBody(t *testing.T) {
	rec := NewRecord(nil, 200, "200 OK",
		map[string]string{"Content-Type": "text/plain"},
		[]byte("hello"), 0)
	if rec.Body != "hello" {
		t.Fatalf("body = %v", rec.Body)
	}
}

func TestNewRecordMalformedJSONFallsBack(t *testing.T) {
	rec := NewRecord(nil, 200, "200 OK",
		map[string]string{"Content-Type": "application/json"},
		[]byte("{not json"), 0)
	if rec.Body != "{not json" {
		t.Fatalf("body = %v", rec.Body)
	}
}

func TestHeaderLookupIsCaseInsensitive(t *testing.T) {
	rec := NewRecord(nil, 200, "200 OK",
		map[string]string{"X-Request-ID": "abc"}, nil, 0)

	if v, ok := rec.Header("x-request-id"); !ok || v != "abc" {
		t.Fatalf("lookup = %q, %v", v, ok)
	}
	if v, ok := rec.Header("X-REQUEST-ID"); !ok || v != "abc" {
		t.Fatalf("upper lookup = %q, %v", v, ok)
	}
}

func TestWantsCacheDefaults(t *testing.T) {
	get := &Specification{Method: "GET"}
	if !get.WantsCache() {
		t.Fatal("GET should cache by default")
	}
	post := &Specification{Method: "POST"}
	if post.WantsCache() {
		t.Fatal("POST should not cache by default")
	}

	no := false
	get.Cacheable = &no
	if get.WantsCache() {
		t.Fatal("explicit opt-out should win")
	}
	yes := true
	post.Cacheable = &yes
	if !post.WantsCache() {
		t.Fatal("explicit opt-in should win")
	}
}

func TestCloneIsolatesMaps(t *testing.T) {
	orig := &Specification{
		Method:  "GET",
		Headers: map[string]string{"A": "1"},
		Query:   map[string]string{"q": "x"},
	}
	yes := true
	orig.Cacheable = &yes

	c := orig.Clone()
	c.Headers["A"] = "2"
	c.Query["q"] = "y"
	*c.Cacheable = false

	if orig.Headers["A"] != "1" || orig.Query["q"] != "x" {
		t.Fatalf("clone mutated original: %+v", orig)
	}
	if *orig.Cacheable != true {
		t.Fatal("clone shares the cacheable flag")
	}
}
