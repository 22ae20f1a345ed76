package dsl

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/xeipuuv/gojsonschema"
)

// evalJSONPath evaluates a JSONPath expression over a parsed body. Bare
// paths without the "$." root are accepted.
func evalJSONPath(path string, body interface{}) (interface{}, error) {
	if body == nil {
		return nil, fmt.Errorf("response body is empty")
	}
	if !strings.HasPrefix(path, "$") {
		path = "$." + path
	}
	return jsonpath.Get(path, body)
}

// equalValues compares with JSON semantics: all numeric types compare by
// value, composites compare deeply after JSON normalization.
func equalValues(got, want interface{}) bool {
	if gf, ok := toFloat(got); ok {
		wf, ok := toFloat(want)
		return ok && gf == wf
	}
	if reflect.DeepEqual(got, want) {
		return true
	}
	gj, errG := json.Marshal(got)
	wj, errW := json.Marshal(want)
	if errG != nil || errW != nil {
		return false
	}
	var gn, wn interface{}
	if json.Unmarshal(gj, &gn) != nil || json.Unmarshal(wj, &wn) != nil {
		return false
	}
	return reflect.DeepEqual(gn, wn)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// validateSchema validates a parsed body against a Draft-07 schema. The
// schema may be a JSON string, raw bytes, or an already-parsed document.
// It returns the per-field failure messages, empty when the body conforms.
func validateSchema(schema, body interface{}) ([]string, error) {
	var schemaLoader gojsonschema.JSONLoader
	switch s := schema.(type) {
	case string:
		schemaLoader = gojsonschema.NewStringLoader(s)
	case []byte:
		schemaLoader = gojsonschema.NewBytesLoader(s)
	default:
		schemaLoader = gojsonschema.NewGoLoader(s)
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(body))
	if err != nil {
		return nil, err
	}
	if result.Valid() {
		return nil, nil
	}
	failures := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		failures = append(failures, desc.String())
	}
	return failures, nil
}
