package vars

import (
	"errors"
	"testing"

	"github.com/ersinghrajkr/restified/pkg/errkind"
)

func TestScopePriority(t *testing.T) {
	s := NewStore()
	s.SetGlobal("x", "g")
	s.SetLocal("x", "l")

	if v, _ := s.Get("x"); v != "l" {
		t.Fatalf("local should shadow global, got %v", v)
	}

	s.SetExtracted("x", "e")
	if v, _ := s.Get("x"); v != "e" {
		t.Fatalf("extracted should shadow local, got %v", v)
	}

	s.ClearExtracted()
	if v, _ := s.Get("x"); v != "l" {
		t.Fatalf("after clearing extracted, got %v", v)
	}
	s.ClearLocal()
	if v, _ := s.Get("x"); v != "g" {
		t.Fatalf("after clearing local, got %v", v)
	}
}

func TestEnvironmentScope(t *testing.T) {
	t.Setenv("STORE_TEST_KEY", "from-env")
	s := NewStore()

	if v, ok := s.Get("env.STORE_TEST_KEY"); !ok || v != "from-env" {
		t.Fatalf("env. prefix lookup = %v, %v", v, ok)
	}
	// Bare names fall through to the environment last.
	if v, ok := s.Get("STORE_TEST_KEY"); !ok || v != "from-env" {
		t.Fatalf("fallthrough lookup = %v, %v", v, ok)
	}

	s.SetGlobal("STORE_TEST_KEY", "shadow")
	if v, _ := s.Get("STORE_TEST_KEY"); v != "shadow" {
		t.Fatalf("store value should win over environment, got %v", v)
	}
}

func TestEnvironmentScopeIsReadOnly(t *testing.T) {
	s := NewStore()
	err := s.SetScoped(ScopeEnvironment, "PATH", "/tmp")
	if !errors.Is(err, errkind.ErrReadOnlyScope) {
		t.Fatalf("err = %v, want ReadOnlyScope", err)
	}
}

func TestSetScopedUnknownScope(t *testing.T) {
	s := NewStore()
	if err := s.SetScoped(Scope("session"), "x", 1); err == nil {
		t.Fatal("unknown scope should error")
	}
}

func TestDottedPathDescent(t *testing.T) {
	s := NewStore()
	s.SetGlobal("user", map[string]interface{}{
		"name": "alice",
		"roles": []interface{}{
			map[string]interface{}{"id": 1, "label": "admin"},
		},
	})

	if v, _ := s.Get("user.name"); v != "alice" {
		t.Fatalf("user.name = %v", v)
	}
	if v, _ := s.Get("user.roles.0.label"); v != "admin" {
		t.Fatalf("user.roles.0.label = %v", v)
	}
	if _, ok := s.Get("user.roles.5.label"); ok {
		t.Fatal("out-of-range index should miss")
	}
	if _, ok := s.Get("user.missing"); ok {
		t.Fatal("missing key should miss")
	}
}

func TestGetScoped(t *testing.T) {
	s := NewStore()
	s.SetGlobal("k", "g")
	s.SetLocal("k", "l")

	if v, _ := s.GetScoped(ScopeGlobal, "k"); v != "g" {
		t.Fatalf("global read = %v", v)
	}
	if v, _ := s.GetScoped(ScopeLocal, "k"); v != "l" {
		t.Fatalf("local read = %v", v)
	}
	if _, ok := s.GetScoped(ScopeExtracted, "k"); ok {
		t.Fatal("extracted scope should be empty")
	}
}

func TestSnapshotAppliesPriority(t *testing.T) {
	s := NewStore()
	s.SetGlobal("a", 1)
	s.SetGlobal("b", 1)
	s.SetLocal("b", 2)
	s.SetExtracted("c", 3)

	snap := s.Snapshot()
	if snap["a"] != 1 || snap["b"] != 2 || snap["c"] != 3 {
		t.Fatalf("snapshot = %v", snap)
	}
	// Mutating the snapshot must not touch the store.
	snap["a"] = 99
	if v, _ := s.Get("a"); v != 1 {
		t.Fatalf("store mutated through snapshot: %v", v)
	}
}
