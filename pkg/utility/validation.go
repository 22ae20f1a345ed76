package utility

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	emailPattern        = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phonePattern        = regexp.MustCompile(`^\+?[0-9][0-9\s\-().]{6,18}$`)
	numericPattern      = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)
	alphanumericPattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
)

func registerValidationFuncs(r *Registry) {
	reg(r, "validation", "isEmail", "Validate email shape", func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		return emailPattern.MatchString(s), nil
	}, Param{Name: "value", Type: "string", Required: true})

	reg(r, "validation", "isUrl", "Validate absolute URL", func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		u, parseErr := url.Parse(s)
		return parseErr == nil && u.Scheme != "" && u.Host != "", nil
	}, Param{Name: "value", Type: "string", Required: true})

	reg(r, "validation", "isUUID", "Validate UUID", func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		_, parseErr := uuid.Parse(s)
		return parseErr == nil, nil
	}, Param{Name: "value", Type: "string", Required: true})

	reg(r, "validation", "isPhoneNumber", "Validate phone number shape", func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		return phonePattern.MatchString(strings.TrimSpace(s)), nil
	}, Param{Name: "value", Type: "string", Required: true})

	reg(r, "validation", "isJSON", "Validate JSON document", func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		return json.Valid([]byte(s)), nil
	}, Param{Name: "value", Type: "string", Required: true})

	reg(r, "validation", "isNumeric", "Validate numeric string", func(args []interface{}) (interface{}, error) {
		v, err := argAt(args, 0)
		if err != nil {
			return nil, err
		}
		switch v.(type) {
		case float64, float32, int, int64:
			return true, nil
		}
		return numericPattern.MatchString(strings.TrimSpace(toString(v))), nil
	}, Param{Name: "value", Type: "any", Required: true})

	reg(r, "validation", "isAlphaNumeric", "Validate letters and digits only", func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		return alphanumericPattern.MatchString(s), nil
	}, Param{Name: "value", Type: "string", Required: true})

	reg(r, "validation", "isLength", "Validate string length within bounds", func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		min, err := intArg(args, 1)
		if err != nil {
			return nil, err
		}
		max := optionalInt(args, 2, -1)
		n := len([]rune(s))
		if n < min {
			return false, nil
		}
		if max >= 0 && n > max {
			return false, nil
		}
		return true, nil
	}, Param{Name: "value", Type: "string", Required: true},
		Param{Name: "min", Type: "number", Required: true},
		Param{Name: "max", Type: "number"})

	reg(r, "validation", "matches", "Validate against a regular expression", func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		pattern, err := stringArg(args, 1)
		if err != nil {
			return nil, err
		}
		re, compileErr := regexp.Compile(pattern)
		if compileErr != nil {
			return nil, compileErr
		}
		return re.MatchString(s), nil
	}, Param{Name: "value", Type: "string", Required: true},
		Param{Name: "pattern", Type: "string", Required: true})
}
