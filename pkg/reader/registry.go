package reader

import (
	"sort"
	"sync"

	"github.com/edbennett/meson-analysis/pkg/correlator"
	merrors "github.com/edbennett/meson-analysis/pkg/errors"
)

// Reader turns one input (a file or a directory) into a frozen ensemble.
type Reader interface {
	// Format returns the name the reader is registered under.
	Format() string

	// Read parses the input at path.
	Read(path string, opts Options) (*correlator.Ensemble, error)
}

// Func adapts a path based parse function to the Reader interface.
type Func struct {
	Name string
	Fn   func(path string, opts Options) (*correlator.Ensemble, error)
}

// Format implements Reader.
func (f Func) Format() string { return f.Name }

// Read implements Reader.
func (f Func) Read(path string, opts Options) (*correlator.Ensemble, error) {
	return f.Fn(path, opts)
}

// Registry manages available readers.
type Registry struct {
	readers map[string]Reader
	mu      sync.RWMutex
}

// NewRegistry creates a new reader registry.
func NewRegistry() *Registry {
	return &Registry{
		readers: make(map[string]Reader),
	}
}

// Register adds a reader under its format name.
func (r *Registry) Register(reader Reader) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := reader.Format()
	if _, exists := r.readers[name]; exists {
		return merrors.Configf(merrors.ErrFormatAlreadyRegistered, "reader %q already registered", name)
	}
	r.readers[name] = reader
	return nil
}

// Get retrieves a reader by format name.
func (r *Registry) Get(format string) (Reader, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reader, ok := r.readers[format]
	return reader, ok
}

// List returns all registered format names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, 0, len(r.readers))
	for name := range r.readers {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// Read dispatches to the reader registered for format.
func (r *Registry) Read(format, path string, opts Options) (*correlator.Ensemble, error) {
	reader, ok := r.Get(format)
	if !ok {
		return nil, merrors.Configf(merrors.ErrUnknownFormat, "no reader for format %q", format).
			WithContext("format", format)
	}
	return reader.Read(path, opts)
}

// Default creates a registry with the built-in readers.
func Default() *Registry {
	registry := NewRegistry()
	// Errors impossible here since registry is freshly created (no duplicates)
	_ = registry.Register(Func{Name: FormatHirep, Fn: ReadHirep})
	_ = registry.Register(Func{Name: FormatHadrons, Fn: ReadHadrons})
	_ = registry.Register(Func{Name: FormatFlexlatsim, Fn: ReadFlexlatsim})
	return registry
}
