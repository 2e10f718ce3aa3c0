package pickle

import (
	"reflect"
	"unsafe"
)

// memoKey is the identity of a Go value for memoization.
//
// Two values have the same key iff they refer to the same underlying object:
// the same pointer, map or Dict, or the same slice or string data with the
// same length. The type participates so that e.g. a struct and its first
// field, living at the same address, stay distinct.
type memoKey struct {
	ptr unsafe.Pointer
	typ reflect.Type
	n   int
}

// identityOf returns the identity of rv, if rv has one.
//
// Scalars, structs held by value, empty strings and zero-capacity slices
// have no identity and are never memoized.
func identityOf(rv reflect.Value) (memoKey, bool) {
	typ := rv.Type()
	if typ == typeDict || typ == typeSet {
		// both wrap a single *gomap.Map
		m := rv.Field(0)
		if m.IsNil() {
			return memoKey{}, false
		}
		return memoKey{ptr: m.UnsafePointer(), typ: typ}, true
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Map:
		if rv.IsNil() {
			return memoKey{}, false
		}
		return memoKey{ptr: rv.UnsafePointer(), typ: typ}, true

	case reflect.Slice:
		if rv.Cap() == 0 || typ.Elem().Size() == 0 {
			return memoKey{}, false
		}
		return memoKey{ptr: rv.UnsafePointer(), typ: typ, n: rv.Len()}, true

	case reflect.String:
		s := rv.String()
		if s == "" {
			return memoKey{}, false
		}
		return memoKey{ptr: unsafe.Pointer(unsafe.StringData(s)), typ: typ, n: len(s)}, true
	}

	return memoKey{}, false
}

// memoTable maps value identities to memo slots on the encoding side.
//
// Slots are assigned densely from 0 in the order values are first emitted.
type memoTable map[memoKey]int

// lookup returns the slot previously assigned to key.
func (m memoTable) lookup(key memoKey) (int, bool) {
	slot, ok := m[key]
	return slot, ok
}

// assign gives key the next free slot and returns it.
func (m memoTable) assign(key memoKey) int {
	slot := len(m)
	m[key] = slot
	return slot
}
