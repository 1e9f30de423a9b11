package registry

import (
	"sort"
	"sync"

	"github.com/shaderconv/converter/internal/diagnostics"
	"github.com/shaderconv/converter/internal/shader"
)

// FrontEnd is the interface each source format implementation must satisfy.
// Parse returns a non-nil error only for hard failures (the header cannot be
// trusted); everything else is reported through diagnostics.
type FrontEnd interface {
	Format() shader.Format
	Parse(source string) (*shader.Parsed, []diagnostics.Diagnostic, error)
}

// Default is the global front-end registry, filled by package frontend's init.
var Default = New()

// Registry holds front ends keyed by format.
type Registry struct {
	mu        sync.RWMutex
	frontends map[shader.Format]FrontEnd
}

// New returns a new empty registry.
func New() *Registry {
	return &Registry{frontends: make(map[shader.Format]FrontEnd)}
}

// Register adds a front end for its format, replacing any previous one.
func (r *Registry) Register(fe FrontEnd) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frontends[fe.Format()] = fe
}

// Get returns the front end for the format, or nil and false.
func (r *Registry) Get(f shader.Format) (FrontEnd, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fe, ok := r.frontends[f]
	return fe, ok
}

// Formats returns all registered formats in ascending order.
func (r *Registry) Formats() []shader.Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]shader.Format, 0, len(r.frontends))
	for f := range r.frontends {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
