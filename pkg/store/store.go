// Package store keeps named response snapshots so later steps can assert
// against earlier responses.
package store

import (
	"sync"

	"github.com/ersinghrajkr/restified/pkg/request"
)

// Responses is a thread-safe name → response snapshot map.
type Responses struct {
	mu      sync.RWMutex
	records map[string]*request.Record
}

// NewResponses creates an empty snapshot store.
func NewResponses() *Responses {
	return &Responses{records: make(map[string]*request.Record)}
}

// Save stores rec under name, replacing any previous snapshot.
func (s *Responses) Save(name string, rec *request.Record) {
	s.mu.Lock()
	s.records[name] = rec
	s.mu.Unlock()
}

// Get returns the snapshot stored under name.
func (s *Responses) Get(name string) (*request.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[name]
	return rec, ok
}

// Names lists stored snapshot names.
func (s *Responses) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.records))
	for name := range s.records {
		out = append(out, name)
	}
	return out
}

// Remove drops one snapshot.
func (s *Responses) Remove(name string) {
	s.mu.Lock()
	delete(s.records, name)
	s.mu.Unlock()
}

// Clear drops every snapshot.
func (s *Responses) Clear() {
	s.mu.Lock()
	s.records = make(map[string]*request.Record)
	s.mu.Unlock()
}
