package template

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ersinghrajkr/restified/internal/logger"
	"github.com/ersinghrajkr/restified/pkg/errkind"
	"github.com/ersinghrajkr/restified/pkg/utility"
	"github.com/ersinghrajkr/restified/pkg/vars"
)

func newTestResolver(t *testing.T, strict bool) (*Resolver, *vars.Store) {
	t.Helper()
	store := vars.NewStore()
	utils := utility.NewRegistry(utility.Options{}, logger.Nop())
	return NewResolver(store, utils, logger.Nop(), strict), store
}

func TestResolveSimpleVariable(t *testing.T) {
	r, store := newTestResolver(t, true)
	store.SetGlobal("name", "alice")

	out, err := r.ResolveString(context.Background(), "hello {{name}}")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if out != "hello alice" {
		t.Fatalf("got %q", out)
	}
}

func TestSolePlaceholderKeepsType(t *testing.T) {
	r, store := newTestResolver(t, true)
	store.SetGlobal("count", 42)
	store.SetGlobal("user", map[string]interface{}{"id": 7})

	out, err := r.ResolveString(context.Background(), "{{count}}")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if out != 42 {
		t.Fatalf("sole placeholder must keep the int, got %T %v", out, out)
	}

	out, err = r.ResolveString(context.Background(), "{{user}}")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	m, ok := out.(map[string]interface{})
	if !ok || m["id"] != 7 {
		t.Fatalf("sole placeholder must keep the map, got %T %v", out, out)
	}

	// With surrounding text the value stringifies.
	out, err = r.ResolveString(context.Background(), "count={{count}}")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if out != "count=42" {
		t.Fatalf("got %q", out)
	}
}

func TestResolveNestedTemplates(t *testing.T) {
	r, store := newTestResolver(t, true)
	store.SetGlobal("envName", "staging")
	store.SetGlobal("urlTemplate", "https://{{envName}}.example.com")

	out, err := r.ResolveString(context.Background(), "{{urlTemplate}}/users")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if out != "https://staging.example.com/users" {
		t.Fatalf("got %q", out)
	}
}

func TestCyclicTemplateDetected(t *testing.T) {
	r, store := newTestResolver(t, true)
	store.SetGlobal("a", "{{b}}")
	store.SetGlobal("b", "{{a}}")

	_, err := r.ResolveString(context.Background(), "{{a}}")
	if !errors.Is(err, errkind.ErrCyclicTemplate) {
		t.Fatalf("expected cyclic template error, got %v", err)
	}
}

func TestUnresolvedStrictVsPermissive(t *testing.T) {
	strict, _ := newTestResolver(t, true)
	_, err := strict.ResolveString(context.Background(), "hi {{missing}}")
	if !errors.Is(err, errkind.ErrTemplateUnresolved) {
		t.Fatalf("strict mode should fail, got %v", err)
	}

	permissive, _ := newTestResolver(t, false)
	out, err := permissive.ResolveString(context.Background(), "hi {{missing}}")
	if err != nil {
		t.Fatalf("permissive mode must not fail: %v", err)
	}
	if out != "hi {{missing}}" {
		t.Fatalf("placeholder must stay literal, got %q", out)
	}
}

func TestUtilityInvocation(t *testing.T) {
	r, store := newTestResolver(t, true)
	store.SetGlobal("word", "go")

	out, err := r.ResolveString(context.Background(), "{{$string.toUpper('hello')}}")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if out != "HELLO" {
		t.Fatalf("got %v", out)
	}

	// Bare-word args resolve against the variable store.
	out, err = r.ResolveString(context.Background(), "{{$string.toUpper(word)}}")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if out != "GO" {
		t.Fatalf("got %v", out)
	}
}

func TestUtilityInvocationWithNestedPlaceholder(t *testing.T) {
	r, store := newTestResolver(t, true)
	store.SetGlobal("base", "abc")

	out, err := r.ResolveString(context.Background(), "{{$string.toUpper('{{base}}')}}")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if out != "ABC" {
		t.Fatalf("got %v", out)
	}
}

func TestUtilityNumericArgs(t *testing.T) {
	r, _ := newTestResolver(t, true)

	out, err := r.ResolveString(context.Background(), "{{$math.max(3, 9, 4)}}")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if out != 9.0 {
		t.Fatalf("got %T %v", out, out)
	}
}

func TestEnvPrefixLookup(t *testing.T) {
	r, _ := newTestResolver(t, true)
	t.Setenv("TEMPLATE_TEST_TOKEN", "tok-1")

	out, err := r.ResolveString(context.Background(), "Bearer {{env.TEMPLATE_TEST_TOKEN}}")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if out != "Bearer tok-1" {
		t.Fatalf("got %q", out)
	}
}

func TestResolveMapAndSlice(t *testing.T) {
	r, store := newTestResolver(t, true)
	store.SetGlobal("id", 12)
	store.SetGlobal("host", "api.local")

	out, err := r.Resolve(context.Background(), map[string]interface{}{
		"url":   "https://{{host}}/users/{{id}}",
		"ids":   []interface{}{"{{id}}", "static"},
		"plain": 5,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	m := out.(map[string]interface{})
	if m["url"] != "https://api.local/users/12" {
		t.Fatalf("url: %v", m["url"])
	}
	ids := m["ids"].([]interface{})
	if ids[0] != 12 || ids[1] != "static" {
		t.Fatalf("ids: %v", ids)
	}
	if m["plain"] != 5 {
		t.Fatalf("non-string values must pass through untouched")
	}
}

func TestScopePriorityThroughResolver(t *testing.T) {
	r, store := newTestResolver(t, true)
	store.SetGlobal("v", "global")
	store.SetLocal("v", "local")
	store.SetExtracted("v", "extracted")

	out, err := r.ResolveString(context.Background(), "{{v}}")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if out != "extracted" {
		t.Fatalf("extracted scope must win, got %v", out)
	}

	store.ClearExtracted()
	out, _ = r.ResolveString(context.Background(), "{{v}}")
	if out != "local" {
		t.Fatalf("local scope next, got %v", out)
	}
}

func TestResolveFixtureYAML(t *testing.T) {
	r, store := newTestResolver(t, true)
	store.SetGlobal("userId", 3)

	dir := t.TempDir()
	path := filepath.Join(dir, "payload.yaml")
	content := "user:\n  id: \"{{userId}}\"\n  name: fixed\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	out, err := r.ResolveFixture(context.Background(), path)
	if err != nil {
		t.Fatalf("resolve fixture: %v", err)
	}
	user := out.(map[string]interface{})["user"].(map[string]interface{})
	if user["id"] != 3 {
		t.Fatalf("id: %T %v", user["id"], user["id"])
	}
	if user["name"] != "fixed" {
		t.Fatalf("name: %v", user["name"])
	}
}
