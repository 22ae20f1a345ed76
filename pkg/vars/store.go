// Package vars implements the multi-scope variable store. Resolution walks
// scopes by priority: extracted, local, global, environment.
package vars

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/ersinghrajkr/restified/pkg/errkind"
)

// Scope identifies one variable scope.
type Scope string

const (
	ScopeExtracted   Scope = "extracted"
	ScopeLocal       Scope = "local"
	ScopeGlobal      Scope = "global"
	ScopeEnvironment Scope = "environment"
)

// EnvPrefix addresses the environment scope explicitly, as in env.API_KEY.
const EnvPrefix = "env."

// Store is a thread-safe multi-scope key-value store.
type Store struct {
	mu        sync.RWMutex
	extracted map[string]interface{}
	local     map[string]interface{}
	global    map[string]interface{}
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		extracted: make(map[string]interface{}),
		local:     make(map[string]interface{}),
		global:    make(map[string]interface{}),
	}
}

// SetGlobal sets a suite-scoped variable.
func (s *Store) SetGlobal(key string, value interface{}) {
	s.mu.Lock()
	s.global[key] = value
	s.mu.Unlock()
}

// SetLocal sets a test-scoped variable. The runner clears locals between
// tests via ClearLocal.
func (s *Store) SetLocal(key string, value interface{}) {
	s.mu.Lock()
	s.local[key] = value
	s.mu.Unlock()
}

// SetExtracted stores a value extracted from a response.
func (s *Store) SetExtracted(key string, value interface{}) {
	s.mu.Lock()
	s.extracted[key] = value
	s.mu.Unlock()
}

// SetScoped writes into the named scope. Writes to the environment scope
// fail with errkind.ErrReadOnlyScope.
func (s *Store) SetScoped(scope Scope, key string, value interface{}) error {
	switch scope {
	case ScopeExtracted:
		s.SetExtracted(key, value)
	case ScopeLocal:
		s.SetLocal(key, value)
	case ScopeGlobal:
		s.SetGlobal(key, value)
	case ScopeEnvironment:
		return fmt.Errorf("set %q: %w", key, errkind.ErrReadOnlyScope)
	default:
		return fmt.Errorf("unknown scope %q", scope)
	}
	return nil
}

// Get walks extracted → local → global → environment and returns the first
// hit. Keys of the form env.NAME address the environment directly. Dotted
// paths descend into stored maps and slices.
func (s *Store) Get(key string) (interface{}, bool) {
	if strings.HasPrefix(key, EnvPrefix) {
		return lookupEnv(strings.TrimPrefix(key, EnvPrefix))
	}

	root, rest := splitPath(key)

	s.mu.RLock()
	for _, scope := range []map[string]interface{}{s.extracted, s.local, s.global} {
		if value, ok := scope[root]; ok {
			s.mu.RUnlock()
			if rest == "" {
				return value, true
			}
			return descend(value, rest)
		}
	}
	s.mu.RUnlock()

	return lookupEnv(key)
}

// GetScoped reads from one scope only.
func (s *Store) GetScoped(scope Scope, key string) (interface{}, bool) {
	if scope == ScopeEnvironment {
		return lookupEnv(strings.TrimPrefix(key, EnvPrefix))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var m map[string]interface{}
	switch scope {
	case ScopeExtracted:
		m = s.extracted
	case ScopeLocal:
		m = s.local
	case ScopeGlobal:
		m = s.global
	default:
		return nil, false
	}
	value, ok := m[key]
	return value, ok
}

// ClearLocal removes all test-scoped variables, restoring visibility of any
// shadowed globals.
func (s *Store) ClearLocal() {
	s.mu.Lock()
	s.local = make(map[string]interface{})
	s.mu.Unlock()
}

// ClearExtracted removes all extracted variables.
func (s *Store) ClearExtracted() {
	s.mu.Lock()
	s.extracted = make(map[string]interface{})
	s.mu.Unlock()
}

// Snapshot returns a merged view of the writable scopes, priority applied.
func (s *Store) Snapshot() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	merged := make(map[string]interface{}, len(s.global)+len(s.local)+len(s.extracted))
	for k, v := range s.global {
		merged[k] = v
	}
	for k, v := range s.local {
		merged[k] = v
	}
	for k, v := range s.extracted {
		merged[k] = v
	}
	return merged
}

func lookupEnv(name string) (interface{}, bool) {
	if value, ok := os.LookupEnv(name); ok {
		return value, true
	}
	return nil, false
}

func splitPath(key string) (string, string) {
	if idx := strings.IndexByte(key, '.'); idx >= 0 {
		return key[:idx], key[idx+1:]
	}
	return key, ""
}

// descend resolves a dotted path inside a stored value. Map keys and numeric
// slice indexes are supported.
func descend(value interface{}, path string) (interface{}, bool) {
	current := value
	for _, part := range strings.Split(path, ".") {
		switch v := current.(type) {
		case map[string]interface{}:
			next, ok := v[part]
			if !ok {
				return nil, false
			}
			current = next
		case map[string]string:
			next, ok := v[part]
			if !ok {
				return nil, false
			}
			current = next
		case []interface{}:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, false
			}
			current = v[idx]
		default:
			return nil, false
		}
	}
	return current, true
}
