// Package feeds turns raw watch-list payloads into canonical records.
//
// Each adapter owns exactly one source format and is a leaf: it never touches
// the store. Structural failures (unreadable XML, a missing header line) are
// reported as *ParseError and abort the run with no records; field-level
// problems (a bad date, a row without its natural key) only drop that row.
package feeds

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"pldft/internal/sanctions/models"
	"pldft/pkg/platform/sentinel"
)

// Adapter parses one feed format.
type Adapter interface {
	// Source is the scope every produced record belongs to.
	Source() string
	// Parse returns records in source order. Duplicates are left in place;
	// reconciliation resolves them last-write-wins.
	Parse(raw []byte) (*Batch, error)
}

// Batch is the output of one parse.
type Batch struct {
	Records []models.CanonicalRecord
	// Skipped counts entries dropped for field-level reasons.
	Skipped int
}

// ErrHeaderNotFound is the cause of a ParseError when a located-header feed
// carries no line with the expected marker columns.
var ErrHeaderNotFound = errors.New("header line not found")

// ParseError reports a structural failure that aborts an ingestion run.
type ParseError struct {
	Source string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s feed: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s feed: %s", e.Source, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Registry maps source scopes to their adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry builds a registry from adapters. A later adapter for the same
// source replaces an earlier one.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Source()] = a
}

// Lookup returns the adapter for source or an error wrapping
// sentinel.ErrNotFound.
func (r *Registry) Lookup(source string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[source]
	if !ok {
		return nil, fmt.Errorf("no adapter for source %q: %w", source, sentinel.ErrNotFound)
	}
	return a, nil
}

// Sources lists the registered scopes in lexical order.
func (r *Registry) Sources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.adapters))
	for s := range r.adapters {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
