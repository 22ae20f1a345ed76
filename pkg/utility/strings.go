package utility

import (
	"fmt"
	"strings"
	"unicode"
)

func registerStringFuncs(r *Registry) {
	reg(r, "string", "upper", "Uppercase a string", func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		return strings.ToUpper(s), nil
	}, Param{Name: "value", Type: "string", Required: true})

	reg(r, "string", "lower", "Lowercase a string", func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		return strings.ToLower(s), nil
	}, Param{Name: "value", Type: "string", Required: true})

	reg(r, "string", "trim", "Trim surrounding whitespace", func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		return strings.TrimSpace(s), nil
	}, Param{Name: "value", Type: "string", Required: true})

	reg(r, "string", "substring", "Slice a string by rune offsets", func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		start, err := intArg(args, 1)
		if err != nil {
			return nil, err
		}
		runes := []rune(s)
		end := optionalInt(args, 2, len(runes))
		if start < 0 {
			start = 0
		}
		if end > len(runes) {
			end = len(runes)
		}
		if start > end {
			return "", nil
		}
		return string(runes[start:end]), nil
	}, Param{Name: "value", Type: "string", Required: true},
		Param{Name: "start", Type: "number", Required: true},
		Param{Name: "end", Type: "number"})

	reg(r, "string", "replace", "Replace all occurrences of a substring", func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		old, err := stringArg(args, 1)
		if err != nil {
			return nil, err
		}
		newVal, err := stringArg(args, 2)
		if err != nil {
			return nil, err
		}
		return strings.ReplaceAll(s, old, newVal), nil
	}, Param{Name: "value", Type: "string", Required: true},
		Param{Name: "old", Type: "string", Required: true},
		Param{Name: "new", Type: "string", Required: true})

	reg(r, "string", "split", "Split a string by separator", func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		sep := optionalString(args, 1, ",")
		parts := strings.Split(s, sep)
		out := make([]interface{}, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return out, nil
	}, Param{Name: "value", Type: "string", Required: true},
		Param{Name: "separator", Type: "string", Default: ","})

	reg(r, "string", "join", "Join array elements with separator", func(args []interface{}) (interface{}, error) {
		v, err := argAt(args, 0)
		if err != nil {
			return nil, err
		}
		items, ok := v.([]interface{})
		if !ok {
			return nil, fmt.Errorf("join expects an array, got %T", v)
		}
		sep := optionalString(args, 1, ",")
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = toString(item)
		}
		return strings.Join(parts, sep), nil
	}, Param{Name: "value", Type: "array", Required: true},
		Param{Name: "separator", Type: "string", Default: ","})

	reg(r, "string", "padStart", "Left-pad a string to a target length", func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		length, err := intArg(args, 1)
		if err != nil {
			return nil, err
		}
		pad := optionalString(args, 2, " ")
		return padString(s, length, pad, true), nil
	}, Param{Name: "value", Type: "string", Required: true},
		Param{Name: "length", Type: "number", Required: true},
		Param{Name: "pad", Type: "string", Default: " "})

	reg(r, "string", "padEnd", "Right-pad a string to a target length", func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		length, err := intArg(args, 1)
		if err != nil {
			return nil, err
		}
		pad := optionalString(args, 2, " ")
		return padString(s, length, pad, false), nil
	}, Param{Name: "value", Type: "string", Required: true},
		Param{Name: "length", Type: "number", Required: true},
		Param{Name: "pad", Type: "string", Default: " "})

	reg(r, "string", "reverse", "Reverse a string", func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		runes := []rune(s)
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return string(runes), nil
	}, Param{Name: "value", Type: "string", Required: true})

	reg(r, "string", "camelCase", "Convert to camelCase", func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		return toCamelCase(s, false), nil
	}, Param{Name: "value", Type: "string", Required: true})

	reg(r, "string", "pascalCase", "Convert to PascalCase", func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		return toCamelCase(s, true), nil
	}, Param{Name: "value", Type: "string", Required: true})

	reg(r, "string", "kebabCase", "Convert to kebab-case", func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		return strings.Join(splitWords(s), "-"), nil
	}, Param{Name: "value", Type: "string", Required: true})

	reg(r, "string", "snakeCase", "Convert to snake_case", func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		return strings.Join(splitWords(s), "_"), nil
	}, Param{Name: "value", Type: "string", Required: true})
}

func padString(s string, length int, pad string, left bool) string {
	if pad == "" || len([]rune(s)) >= length {
		return s
	}
	runes := []rune(s)
	padRunes := []rune(pad)
	var b strings.Builder
	for i := 0; len(runes)+b.Len() < length; i++ {
		b.WriteRune(padRunes[i%len(padRunes)])
	}
	filler := b.String()
	// Trim overshoot from a multi-rune pad
	need := length - len(runes)
	fillerRunes := []rune(filler)
	if len(fillerRunes) > need {
		fillerRunes = fillerRunes[:need]
	}
	if left {
		return string(fillerRunes) + s
	}
	return s + string(fillerRunes)
}

// splitWords decomposes identifiers into lowercase words, splitting on
// non-alphanumerics and camelCase boundaries.
func splitWords(s string) []string {
	var words []string
	var current []rune
	flush := func() {
		if len(current) > 0 {
			words = append(words, strings.ToLower(string(current)))
			current = nil
		}
	}
	var prev rune
	for _, r := range s {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r) && prev != 0 && !unicode.IsUpper(prev):
			flush()
			current = append(current, r)
		default:
			current = append(current, r)
		}
		prev = r
	}
	flush()
	return words
}

func toCamelCase(s string, upperFirst bool) string {
	words := splitWords(s)
	var b strings.Builder
	for i, w := range words {
		if i == 0 && !upperFirst {
			b.WriteString(w)
			continue
		}
		b.WriteString(strings.ToUpper(w[:1]))
		b.WriteString(w[1:])
	}
	return b.String()
}
