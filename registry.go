package pickle

import (
	"io"
	"reflect"
	"sync"
)

// ObjectPickler writes the pickle representation of values of one Go type.
//
// Pickle is called with the value to encode and the output of the current
// pickle. It can emit opcodes to w directly, and encode nested values with
// e.Save, which goes through the regular dispatch, memo included.
//
// The emitted opcodes must leave exactly one value on the unpickler stack.
type ObjectPickler interface {
	Pickle(v any, w io.Writer, e *Encoder) error
}

// ObjectPicklerFunc adapts a function to ObjectPickler.
type ObjectPicklerFunc func(v any, w io.Writer, e *Encoder) error

// Pickle calls f(v, w, e).
func (f ObjectPicklerFunc) Pickle(v any, w io.Writer, e *Encoder) error {
	return f(v, w, e)
}

// Registry maps Go types to custom picklers.
//
// Lookup is by exact type, checked again at each pointer indirection: a
// pickler registered for T also serves *T, but not other types implementing
// the same interfaces. A registered pickler takes
// precedence over the built-in encoding of its type.
//
// A Registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	picklers map[reflect.Type]ObjectPickler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{picklers: make(map[reflect.Type]ObjectPickler)}
}

// Register installs p as the pickler for typ, replacing any previous one.
//
// Registering a nil pickler removes the entry for typ.
func (r *Registry) Register(typ reflect.Type, p ObjectPickler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p == nil {
		delete(r.picklers, typ)
		return
	}
	r.picklers[typ] = p
}

// Lookup returns the pickler registered for typ, or nil.
func (r *Registry) Lookup(typ reflect.Type) ObjectPickler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.picklers[typ]
}

// RegisterFunc registers f as the pickler for values of type T in r.
func RegisterFunc[T any](r *Registry, f func(v T, w io.Writer, e *Encoder) error) {
	r.Register(reflect.TypeFor[T](), ObjectPicklerFunc(func(v any, w io.Writer, e *Encoder) error {
		return f(v.(T), w, e)
	}))
}

// DefaultRegistry is the registry used by encoders whose config does not
// name one.
var DefaultRegistry = NewRegistry()

// RegisterCustomPickler installs p as the pickler for typ in DefaultRegistry.
//
// Registration should happen before encoders start using the type
// concurrently; the last registration for a type wins.
func RegisterCustomPickler(typ reflect.Type, p ObjectPickler) {
	DefaultRegistry.Register(typ, p)
}
