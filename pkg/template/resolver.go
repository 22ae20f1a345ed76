// Package template resolves {{ … }} placeholders against the variable store
// and the utility registry. Resolution is recursive: values pulled in by one
// pass may themselves contain placeholders, up to a fixed pass limit that
// catches cyclic definitions.
package template

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ersinghrajkr/restified/internal/logger"
	"github.com/ersinghrajkr/restified/pkg/errkind"
	"github.com/ersinghrajkr/restified/pkg/utility"
	"github.com/ersinghrajkr/restified/pkg/vars"
)

// MaxPasses bounds template re-resolution before a cycle is assumed.
const MaxPasses = 10

// Resolver substitutes placeholders in strings, maps and slices.
type Resolver struct {
	vars   *vars.Store
	utils  *utility.Registry
	log    logger.Logger
	strict bool
}

// NewResolver builds a resolver. In strict mode unresolved placeholders and
// failed utility calls are errors; otherwise they are logged and left
// literal.
func NewResolver(store *vars.Store, utils *utility.Registry, log logger.Logger, strict bool) *Resolver {
	return &Resolver{vars: store, utils: utils, log: log, strict: strict}
}

// Resolve walks value and substitutes every placeholder. Strings that consist
// of exactly one placeholder keep the resolved value's native type; strings
// with surrounding text stringify each substitution.
func (r *Resolver) Resolve(ctx context.Context, value interface{}) (interface{}, error) {
	return r.resolveValue(ctx, value, 0)
}

// ResolveString resolves a single template string.
func (r *Resolver) ResolveString(ctx context.Context, s string) (interface{}, error) {
	return r.resolveString(ctx, s, 0)
}

func (r *Resolver) resolveValue(ctx context.Context, value interface{}, depth int) (interface{}, error) {
	if depth > MaxPasses {
		return nil, fmt.Errorf("template nesting exceeds %d levels: %w", MaxPasses, errkind.ErrCyclicTemplate)
	}
	switch v := value.(type) {
	case string:
		return r.resolveString(ctx, v, depth)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, inner := range v {
			resolvedKey := key
			if containsToken(key) {
				rk, err := r.resolveString(ctx, key, depth)
				if err != nil {
					return nil, err
				}
				resolvedKey = stringify(rk)
			}
			resolved, err := r.resolveValue(ctx, inner, depth)
			if err != nil {
				return nil, err
			}
			out[resolvedKey] = resolved
		}
		return out, nil
	case map[string]string:
		out := make(map[string]string, len(v))
		for key, inner := range v {
			resolved, err := r.resolveString(ctx, inner, depth)
			if err != nil {
				return nil, err
			}
			out[key] = stringify(resolved)
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, inner := range v {
			resolved, err := r.resolveValue(ctx, inner, depth)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return value, nil
	}
}

func (r *Resolver) resolveString(ctx context.Context, s string, depth int) (interface{}, error) {
	if depth > MaxPasses {
		return nil, fmt.Errorf("template %q: %w", snippet(s), errkind.ErrCyclicTemplate)
	}

	// A string that is exactly one placeholder keeps the value's type.
	if inner, ok := soleToken(s); ok {
		value, found, err := r.resolveToken(ctx, inner, depth)
		if err != nil {
			return nil, err
		}
		if !found {
			return r.unresolved(s, inner)
		}
		if text, isString := value.(string); isString && containsToken(text) {
			return r.resolveString(ctx, text, depth+1)
		}
		switch value.(type) {
		case map[string]interface{}, []interface{}:
			return r.resolveValue(ctx, value, depth+1)
		}
		return value, nil
	}

	current := s
	for pass := 0; pass < MaxPasses; pass++ {
		next, changed, err := r.sweep(ctx, current, depth)
		if err != nil {
			return nil, err
		}
		if !changed {
			return next, nil
		}
		current = next
		if !containsToken(current) {
			return current, nil
		}
	}
	return nil, fmt.Errorf("template %q: %w", snippet(s), errkind.ErrCyclicTemplate)
}

// sweep resolves every placeholder currently present, innermost first, in a
// single left-to-right pass. Substituted text is not rescanned within the
// same sweep, so values that contain further placeholders resolve on the
// next pass.
func (r *Resolver) sweep(ctx context.Context, s string, depth int) (string, bool, error) {
	var b strings.Builder
	changed := false
	rest := s

	for {
		start, end, ok := innermostToken(rest)
		if !ok {
			b.WriteString(rest)
			break
		}
		inner := rest[start+2 : end]
		value, found, err := r.resolveToken(ctx, inner, depth)
		if err != nil {
			return "", false, err
		}
		b.WriteString(rest[:start])
		if found {
			b.WriteString(stringify(value))
			changed = true
		} else {
			if r.strict {
				return "", false, fmt.Errorf("placeholder %q: %w", strings.TrimSpace(inner), errkind.ErrTemplateUnresolved)
			}
			r.log.Warn("Unresolved template placeholder", "placeholder", strings.TrimSpace(inner))
			b.WriteString(rest[start : end+2])
		}
		rest = rest[end+2:]
	}
	return b.String(), changed, nil
}

// resolveToken resolves the text between braces: a $category.fn(…) utility
// invocation, or a variable path.
func (r *Resolver) resolveToken(ctx context.Context, inner string, depth int) (interface{}, bool, error) {
	name := strings.TrimSpace(inner)
	if name == "" {
		return nil, false, nil
	}

	if strings.HasPrefix(name, "$") {
		return r.invokeUtility(ctx, name, depth)
	}

	value, ok := r.vars.Get(name)
	return value, ok, nil
}

func (r *Resolver) invokeUtility(ctx context.Context, call string, depth int) (interface{}, bool, error) {
	path, rawArgs, err := splitInvocation(call)
	if err != nil {
		if r.strict {
			return nil, false, fmt.Errorf("%s: %w", call, errkind.ErrTemplateUnresolved)
		}
		r.log.Warn("Malformed utility invocation", "call", call, "error", err.Error())
		return nil, false, nil
	}

	args := make([]interface{}, 0, len(rawArgs))
	for _, raw := range rawArgs {
		arg, argErr := r.resolveArg(ctx, raw, depth)
		if argErr != nil {
			return nil, false, argErr
		}
		args = append(args, arg)
	}

	res := r.utils.Execute(ctx, path, args)
	if !res.Success {
		if r.strict {
			return nil, false, fmt.Errorf("utility %s: %w", path, res.Err)
		}
		r.log.Warn("Utility invocation failed", "path", path, "error", res.Err.Error())
		return nil, false, nil
	}
	return res.Value, true, nil
}

// resolveArg turns one raw argument into a value: quoted text is a string
// literal, numerics and booleans parse to their types, and anything else is
// looked up as a variable, falling back to the literal word.
func (r *Resolver) resolveArg(ctx context.Context, raw string, depth int) (interface{}, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if len(raw) >= 2 {
		if (raw[0] == '\'' && raw[len(raw)-1] == '\'') || (raw[0] == '"' && raw[len(raw)-1] == '"') {
			literal := raw[1 : len(raw)-1]
			if containsToken(literal) {
				resolved, err := r.resolveString(ctx, literal, depth+1)
				if err != nil {
					return nil, err
				}
				return stringify(resolved), nil
			}
			return literal, nil
		}
	}
	if containsToken(raw) {
		return r.resolveString(ctx, raw, depth+1)
	}
	switch raw {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null", "nil":
		return nil, nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f, nil
	}
	if value, ok := r.vars.Get(raw); ok {
		return value, nil
	}
	return raw, nil
}

func (r *Resolver) unresolved(original, inner string) (interface{}, error) {
	name := strings.TrimSpace(inner)
	if r.strict {
		return nil, fmt.Errorf("placeholder %q: %w", name, errkind.ErrTemplateUnresolved)
	}
	r.log.Warn("Unresolved template placeholder", "placeholder", name)
	return original, nil
}

// splitInvocation parses "$category.fn(arg, arg)" into path and raw args.
// A bare "$category.fn" is a zero-argument call.
func splitInvocation(call string) (string, []string, error) {
	open := strings.IndexByte(call, '(')
	if open < 0 {
		return call, nil, nil
	}
	if !strings.HasSuffix(call, ")") {
		return "", nil, fmt.Errorf("missing closing parenthesis in %q", call)
	}
	path := call[:open]
	body := call[open+1 : len(call)-1]
	if strings.TrimSpace(body) == "" {
		return path, nil, nil
	}
	return path, splitArgs(body), nil
}

// splitArgs splits on commas that sit outside quotes, parentheses and braces.
func splitArgs(body string) []string {
	var args []string
	var b strings.Builder
	parens, braces := 0, 0
	var quote byte

	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
			b.WriteByte(c)
		case c == '\'' || c == '"':
			quote = c
			b.WriteByte(c)
		case c == '(':
			parens++
			b.WriteByte(c)
		case c == ')':
			parens--
			b.WriteByte(c)
		case c == '{':
			braces++
			b.WriteByte(c)
		case c == '}':
			braces--
			b.WriteByte(c)
		case c == ',' && parens == 0 && braces == 0:
			args = append(args, b.String())
			b.Reset()
		default:
			b.WriteByte(c)
		}
	}
	args = append(args, b.String())
	return args
}

func containsToken(s string) bool {
	start := strings.Index(s, "{{")
	if start < 0 {
		return false
	}
	return strings.Index(s[start+2:], "}}") >= 0
}

// innermostToken finds the deepest {{ … }} pair: the last opener before the
// first closer.
func innermostToken(s string) (int, int, bool) {
	end := strings.Index(s, "}}")
	if end < 0 {
		return 0, 0, false
	}
	start := strings.LastIndex(s[:end], "{{")
	if start < 0 {
		return 0, 0, false
	}
	return start, end, true
}

// soleToken reports whether s is exactly one balanced placeholder and
// returns its inner text.
func soleToken(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{{") || !strings.HasSuffix(trimmed, "}}") {
		return "", false
	}
	inner := trimmed[2 : len(trimmed)-2]
	// Reject "{{a}} and {{b}}", whose trimmed form also starts and ends
	// with braces.
	depth := 1
	for i := 0; i < len(inner)-1; i++ {
		switch {
		case inner[i] == '{' && inner[i+1] == '{':
			depth++
			i++
		case inner[i] == '}' && inner[i+1] == '}':
			depth--
			i++
			if depth == 0 {
				return "", false
			}
		}
	}
	return inner, true
}

func stringify(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return stringify(float64(v))
	case bool:
		return strconv.FormatBool(v)
	case map[string]interface{}, []interface{}:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(raw)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func snippet(s string) string {
	if len(s) > 60 {
		return s[:57] + "..."
	}
	return s
}
