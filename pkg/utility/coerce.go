package utility

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// toString coerces any argument to its string form.
func toString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	case float64:
		// Render integral floats without a trailing .0 so piped JSON
		// numbers behave like integers.
		if s == float64(int64(s)) {
			return strconv.FormatInt(int64(s), 10)
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}

func toInt(v interface{}) (int, error) {
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func toBool(v interface{}) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(b))
	default:
		return false, fmt.Errorf("not a boolean: %T", v)
	}
}

// dateLayouts are tried in order when parsing date arguments.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// toTime parses a date argument: time.Time passes through, numbers are unix
// seconds (or milliseconds when large enough), strings try known layouts.
func toTime(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case float64, int, int64:
		n, _ := toFloat(t)
		// Heuristic boundary between unix seconds and milliseconds
		if n > 1e12 {
			return time.UnixMilli(int64(n)).UTC(), nil
		}
		return time.Unix(int64(n), 0).UTC(), nil
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("unparseable date: %q", s)
	default:
		return time.Time{}, fmt.Errorf("unparseable date: %T", v)
	}
}

func argAt(args []interface{}, i int) (interface{}, error) {
	if i >= len(args) {
		return nil, fmt.Errorf("missing argument %d", i+1)
	}
	return args[i], nil
}

func stringArg(args []interface{}, i int) (string, error) {
	v, err := argAt(args, i)
	if err != nil {
		return "", err
	}
	return toString(v), nil
}

func floatArg(args []interface{}, i int) (float64, error) {
	v, err := argAt(args, i)
	if err != nil {
		return 0, err
	}
	return toFloat(v)
}

func intArg(args []interface{}, i int) (int, error) {
	v, err := argAt(args, i)
	if err != nil {
		return 0, err
	}
	return toInt(v)
}

func timeArg(args []interface{}, i int) (time.Time, error) {
	v, err := argAt(args, i)
	if err != nil {
		return time.Time{}, err
	}
	return toTime(v)
}

func optionalString(args []interface{}, i int, def string) string {
	if i >= len(args) || args[i] == nil {
		return def
	}
	return toString(args[i])
}

func optionalInt(args []interface{}, i int, def int) int {
	if i >= len(args) || args[i] == nil {
		return def
	}
	n, err := toInt(args[i])
	if err != nil {
		return def
	}
	return n
}
