package pickle
// Python-like Dict and Set that handle keys by Python-like equality on access.
//
// For example Dict.Get() will access the same element for all keys int(1), float64(1.0) and big.Int(1).

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aristanetworks/gomap"
)

// Dict represents dict from Python in PyDict mode.
//
// It mirrors Python with respect to which types are allowed to be used as
// keys, and with respect to keys equality. For example Tuple is allowed to be
// used as key, and all int(1), float64(1.0) and big.Int(1) are considered to be
// equal.
//
// For strings, similarly to Python3, [Bytes] and string are considered to be not
// equal, even if their underlying content is the same. However with same
// underlying content [ByteString], because it represents str type from Python2,
// is treated equal to both [Bytes] and string.
//
// Note: similarly to builtin map Dict is pointer-like type: its zero-value
// represents nil dictionary that is empty and invalid to use Set on.
type Dict struct {
	m *gomap.Map[any, any]
}

// NewDict returns new empty dictionary.
func NewDict() Dict {
	return NewDictWithSizeHint(0)
}

// NewDictWithSizeHint returns new empty dictionary with preallocated space for size items.
func NewDictWithSizeHint(size int) Dict {
	return Dict{m: gomap.NewHint[any, any](size, equal, hash)}
}

// NewDictWithData returns new dictionary with preset data.
//
// kv should be key₁, value₁, key₂, value₂, ...
func NewDictWithData(kv ...any) Dict {
	l := len(kv)
	if l%2 != 0 {
		panic("odd number of arguments")
	}
	l /= 2
	d := NewDictWithSizeHint(l)
	for i := 0; i < l; i++ {
		d.Set(kv[2*i], kv[2*i+1])
	}
	return d
}

// Get returns value associated with equal key.
//
// nil is returned if no matching key is present in the dictionary.
//
// Get panics if key's type is not allowed to be used as Dict key.
func (d Dict) Get(key any) any {
	value, _ := d.Get_(key)
	return value
}

// Get_ is comma-ok version of Get.
func (d Dict) Get_(key any) (value any, ok bool) {
	if d.m == nil {
		return nil, false
	}
	return d.m.Get(key)
}

// Set sets key to be associated with value.
//
// Any previous keys, equal to the new key, are removed from the dictionary
// before the assignment.
//
// Set panics if key's type is not allowed to be used as Dict key.
func (d Dict) Set(key, value any) {
	d.Del(key)
	d.m.Set(key, value)
}

// Del removes equal keys from the dictionary.
//
// Del panics if key's type is not allowed to be used as Dict key.
func (d Dict) Del(key any) {
	if d.m == nil {
		return
	}
	// ByteString is equal to both string and Bytes, so more than one entry
	// may match.
	for {
		d.m.Delete(key)
		if _, have := d.m.Get(key); !have {
			break
		}
	}
}

// Len returns the number of items in the dictionary.
func (d Dict) Len() int {
	if d.m == nil {
		return 0
	}
	return d.m.Len()
}

// Iter returns iterator over all elements in the dictionary.
//
// The order to visit entries is arbitrary.
func (d Dict) Iter() func(yield func(any, any) bool) {
	return func(yield func(any, any) bool) {
		if d.m == nil {
			return
		}
		it := d.m.Iter()
		for it.Next() {
			if !yield(it.Key(), it.Elem()) {
				break
			}
		}
	}
}

// String returns human-readable representation of the dictionary.
func (d Dict) String() string {
	return d.sprintf("%v")
}

// GoString returns detailed human-readable representation of the dictionary.
func (d Dict) GoString() string {
	return fmt.Sprintf("%T%s", d, d.sprintf("%#v"))
}

// sprintf serves String and GoString.
func (d Dict) sprintf(format string) string {
	items := make([]string, 0, d.Len())
	d.Iter()(func(k, v any) bool {
		items = append(items, fmt.Sprintf(format, k)+": "+fmt.Sprintf(format, v))
		return true
	})
	sort.Strings(items)
	return "{" + strings.Join(items, ", ") + "}"
}

// Set represents set and frozenset from Python.
//
// Membership follows the same equality as Dict keys.
//
// Similarly to Dict, Set is pointer-like type and its zero value is an empty
// set that is invalid to Add to.
type Set struct {
	m *gomap.Map[any, struct{}]
}

// NewSet returns new set holding items.
func NewSet(items ...any) Set {
	s := Set{m: gomap.NewHint[any, struct{}](len(items), equal, hash)}
	for _, item := range items {
		s.Add(item)
	}
	return s
}

// Add inserts item into the set.
//
// Add panics if item's type is not hashable.
func (s Set) Add(item any) {
	if s.Has(item) {
		return
	}
	s.m.Set(item, struct{}{})
}

// Has tells whether an item equal to item is present in the set.
func (s Set) Has(item any) bool {
	if s.m == nil {
		return false
	}
	_, ok := s.m.Get(item)
	return ok
}

// Del removes items equal to item.
func (s Set) Del(item any) {
	if s.m == nil {
		return
	}
	for s.Has(item) {
		s.m.Delete(item)
	}
}

// Len returns the number of items in the set.
func (s Set) Len() int {
	if s.m == nil {
		return 0
	}
	return s.m.Len()
}

// Iter returns iterator over all items in the set in arbitrary order.
func (s Set) Iter() func(yield func(any) bool) {
	return func(yield func(any) bool) {
		if s.m == nil {
			return
		}
		it := s.m.Iter()
		for it.Next() {
			if !yield(it.Key()) {
				break
			}
		}
	}
}

// Items returns the set items as a slice in arbitrary order.
func (s Set) Items() []any {
	items := make([]any, 0, s.Len())
	s.Iter()(func(item any) bool {
		items = append(items, item)
		return true
	})
	return items
}

// String returns human-readable representation of the set.
func (s Set) String() string {
	items := make([]string, 0, s.Len())
	for _, item := range s.Items() {
		items = append(items, fmt.Sprintf("%v", item))
	}
	sort.Strings(items)
	return "set(" + strings.Join(items, ", ") + ")"
}
