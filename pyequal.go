package pickle
// Python-like equality and hashing, used by Dict and Set for their keys.

import (
	"encoding/binary"
	"fmt"
	"hash/maphash"
	"math"
	"math/big"
	"reflect"
)

// numKind classifies a Python number after normalization.
type numKind int

const (
	numInt numKind = iota + 1
	numFloat
	numComplex
)

// pynum is a number normalized the way Python compares numbers: integral
// floats and complexes with zero imaginary part collapse to their simpler
// forms, so that 1 == 1.0 == (1+0j) == True.
type pynum struct {
	kind numKind
	i    *big.Int
	f    float64
	c    complex128
}

// numberOf returns x as a normalized Python number.
//
// ok is false if x is not a number.
func numberOf(x any) (n pynum, ok bool) {
	if b, isBig := x.(*big.Int); isBig {
		if b == nil {
			return pynum{}, false
		}
		return pynum{kind: numInt, i: b}, true
	}
	if _, isChar := x.(Char); isChar {
		return pynum{}, false
	}

	r := reflect.ValueOf(x)
	switch r.Kind() {
	case reflect.Bool:
		return pynum{kind: numInt, i: big.NewInt(bint(r.Bool()))}, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return pynum{kind: numInt, i: big.NewInt(r.Int())}, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return pynum{kind: numInt, i: new(big.Int).SetUint64(r.Uint())}, true
	case reflect.Float32, reflect.Float64:
		return normFloat(r.Float()), true
	case reflect.Complex64, reflect.Complex128:
		c := r.Complex()
		if imag(c) != 0 {
			return pynum{kind: numComplex, c: c}, true
		}
		return normFloat(real(c)), true
	}
	return pynum{}, false
}

// normFloat turns integral finite floats into integers.
func normFloat(f float64) pynum {
	if math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return pynum{kind: numFloat, f: f}
	}
	i, _ := new(big.Float).SetFloat64(f).Int(nil)
	return pynum{kind: numInt, i: i}
}

func (a pynum) equal(b pynum) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case numInt:
		return a.i.Cmp(b.i) == 0
	case numFloat:
		return a.f == b.f
	default:
		return a.c == b.c
	}
}

// equal implements equality matching what Python would return for a == b.
//
// Equality properties:
//
// 1) equality is extension of Go ==
//
//	(a == b) ⇒ equal(a,b)
//
// 2) equality is symmetrical:
//
//	equal(a,b) = equal(b,a)
//
// 3) equality is transitive everywhere except for ByteString and containers
// with ByteString: ByteString("a") equals both "a" and Bytes("a"), which are
// not equal to each other.
func equal(xa, xb any) bool {
	xa = normKey(xa)
	xb = normKey(xb)

	// strings/bytes
	switch a := xa.(type) {
	case string:
		switch b := xb.(type) {
		case string:
			return a == b
		case ByteString:
			return a == string(b)
		default:
			return false
		}

	case ByteString:
		switch b := xb.(type) {
		case string:
			return a == ByteString(b)
		case ByteString:
			return a == b
		case Bytes:
			return a == ByteString(b)
		default:
			return false
		}

	case Bytes:
		switch b := xb.(type) {
		case ByteString:
			return a == Bytes(b)
		case Bytes:
			return a == b
		default:
			return false
		}
	}
	switch xb.(type) {
	case string, ByteString, Bytes:
		return false
	}

	// numbers
	na, aNum := numberOf(xa)
	nb, bNum := numberOf(xb)
	if aNum || bNum {
		return aNum && bNum && na.equal(nb)
	}

	if xa == nil || xb == nil {
		return xa == nil && xb == nil
	}

	// our types that need special handling
	switch a := xa.(type) {
	case Dict:
		switch b := xb.(type) {
		case Dict:
			return eqDictDict(a, b)
		}
		if reflect.ValueOf(xb).Kind() == reflect.Map {
			return eqMapDict(reflect.ValueOf(xb), a)
		}
		return false
	case Set:
		b, ok := xb.(Set)
		return ok && eqSetSet(a, b)
	}
	switch b := xb.(type) {
	case Dict:
		if reflect.ValueOf(xa).Kind() == reflect.Map {
			return eqMapDict(reflect.ValueOf(xa), b)
		}
		return false
	case Set:
		return false
	}

	a := reflect.ValueOf(xa)
	b := reflect.ValueOf(xb)
	ak := a.Kind()
	bk := b.Kind()

	switch {
	case isSeq(ak) && isSeq(bk):
		return eqSeqSeq(a, b)
	case isSeq(ak) || isSeq(bk):
		return false

	case ak == reflect.Map && bk == reflect.Map:
		return eqMapMap(a, b)
	case ak == reflect.Map || bk == reflect.Map:
		return false

	// structs  (also covers None, Class, Call etc...)
	case ak == reflect.Struct && bk == reflect.Struct:
		return eqStructStruct(a, b)
	}

	// fallback to builtin equality
	if a.Type() != b.Type() || !a.Type().Comparable() {
		return false
	}
	return xa == xb
}

// normKey unwraps values that compare like another type.
func normKey(x any) any {
	switch v := x.(type) {
	case *List:
		if v != nil {
			return []any(*v)
		}
	case List:
		return []any(v)
	case Char:
		return string(rune(v))
	}
	return x
}

func isSeq(k reflect.Kind) bool {
	return k == reflect.Slice || k == reflect.Array
}

func eqSeqSeq(a, b reflect.Value) bool {
	al := a.Len()
	if al != b.Len() {
		return false
	}
	for i := 0; i < al; i++ {
		if !equal(a.Index(i).Interface(), b.Index(i).Interface()) {
			return false
		}
	}
	return true
}

// fieldOf returns field i of struct value r, readable even if the field is
// private. r is replaced with an addressable copy if needed.
func fieldOf(r *reflect.Value, i int) reflect.Value {
	typ := r.Type()
	f := r.Field(i)
	ftyp := typ.Field(i)
	if ftyp.IsExported() {
		return f
	}

	// .Interface() is not allowed if the field is private.
	// Work around the protection via unsafe on an addressable copy.
	if !f.CanAddr() {
		c := reflect.New(typ).Elem()
		c.Set(*r)
		*r = c
		f = r.Field(i)
	}
	return reflect.NewAt(ftyp.Type, f.Addr().UnsafePointer()).Elem()
}

func eqStructStruct(a, b reflect.Value) bool {
	if a.Type() != b.Type() {
		return false
	}

	l := a.NumField()
	for i := 0; i < l; i++ {
		af := fieldOf(&a, i)
		bf := fieldOf(&b, i)
		if !equal(af.Interface(), bf.Interface()) {
			return false
		}
	}
	return true
}

// eqDictDict considers dicts D₁ and D₂ equal if
//
//   - len(D₁) = len(D₂)
//   - ∀ k ∈ D₁  equal(D₁[k], D₂[k]) = y
//   - ∀ k ∈ D₂  equal(D₁[k], D₂[k]) = y
//
// both directions are checked because ByteString keys are not transitive.
func eqDictDict(a Dict, b Dict) bool {
	if a.Len() != b.Len() {
		return false
	}

	eq := true
	a.Iter()(func(k, va any) bool {
		vb, ok := b.Get_(k)
		eq = ok && equal(va, vb)
		return eq
	})
	if !eq {
		return false
	}

	b.Iter()(func(k, vb any) bool {
		va, ok := a.Get_(k)
		eq = ok && equal(va, vb)
		return eq
	})
	return eq
}

func eqSetSet(a Set, b Set) bool {
	if a.Len() != b.Len() {
		return false
	}
	eq := true
	a.Iter()(func(k any) bool {
		eq = b.Has(k)
		return eq
	})
	if !eq {
		return false
	}
	b.Iter()(func(k any) bool {
		eq = a.Has(k)
		return eq
	})
	return eq
}

// equal(Map, Dict) and equal(Map, Map) follow semantic of equal(Dict, Dict)

func eqMapDict(a reflect.Value, b Dict) bool {
	if a.Len() != b.Len() {
		return false
	}

	ai := a.MapRange()
	for ai.Next() {
		vb, ok := b.Get_(ai.Key().Interface())
		if !ok || !equal(ai.Value().Interface(), vb) {
			return false
		}
	}

	aKeyType := a.Type().Key()
	eq := true
	b.Iter()(func(k, vb any) bool {
		xk := reflect.ValueOf(k)
		if !xk.IsValid() || !xk.Type().AssignableTo(aKeyType) {
			eq = false
			return false
		}
		xva := a.MapIndex(xk)
		eq = xva.IsValid() && equal(xva.Interface(), vb)
		return eq
	})
	return eq
}

func eqMapMap(a reflect.Value, b reflect.Value) bool {
	if a.Len() != b.Len() {
		return false
	}
	return mapSubset(a, b) && mapSubset(b, a)
}

// mapSubset tells whether every entry of a is present, with an equal value, in b.
func mapSubset(a, b reflect.Value) bool {
	bKeyType := b.Type().Key()
	ai := a.MapRange()
	for ai.Next() {
		k := ai.Key().Interface() // NOTE xk != ai.Key() because that might have type any
		xk := reflect.ValueOf(k)  //      while xk has type of particular contained value
		if !xk.IsValid() || !xk.Type().AssignableTo(bKeyType) {
			return false
		}
		xvb := b.MapIndex(xk)
		if !(xvb.IsValid() && equal(ai.Value().Interface(), xvb.Interface())) {
			return false
		}
	}
	return true
}

// hash returns hash of x consistent with equality implemented by equal.
//
//	equal(a,b)  ⇒  hash(a) = hash(b)
//
// hash panics with "unhashable type: ..." if x is not allowed to be used as Dict key.
func hash(seed maphash.Seed, x any) uint64 {
	x = normKey(x)

	// strings/bytes use standard hash of string
	switch v := x.(type) {
	case string:
		return maphash.String(seed, v)
	case ByteString:
		return maphash.String(seed, string(v))
	case Bytes:
		return maphash.String(seed, string(v))
	}

	var h maphash.Hash
	h.SetSeed(seed)
	hashUint := func(u uint64) {
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], u)
		h.Write(b[:])
	}
	hashFloat := func(f float64) {
		hashUint(math.Float64bits(f))
	}

	if n, ok := numberOf(x); ok {
		switch n.kind {
		case numInt:
			switch {
			case n.i.IsInt64():
				hashUint(uint64(n.i.Int64()))
			case n.i.IsUint64():
				hashUint(n.i.Uint64())
			default:
				h.WriteString("long")
				h.WriteByte(byte(n.i.Sign() + 1))
				h.Write(n.i.Bytes())
			}
		case numFloat:
			hashFloat(n.f)
		case numComplex:
			hashFloat(real(n.c))
			hashFloat(imag(n.c))
		}
		return h.Sum64()
	}

	if x == nil {
		h.WriteString("nil")
		return h.Sum64()
	}

	switch v := x.(type) {
	case Tuple:
		h.WriteString("tuple")
		for _, item := range v {
			hashUint(hash(seed, item))
		}
		return h.Sum64()
	case Dict, Set:
		goto unhashable
	}

	{
		r := reflect.ValueOf(x)
		switch r.Kind() {
		case reflect.Array:
			h.WriteString("tuple")
			for i := 0; i < r.Len(); i++ {
				hashUint(hash(seed, r.Index(i).Interface()))
			}
			return h.Sum64()

		// structs  (also covers None, Class, Call etc)
		case reflect.Struct:
			h.WriteString(r.Type().Name())
			for i := 0; i < r.NumField(); i++ {
				hashUint(hash(seed, fieldOf(&r, i).Interface()))
			}
			return h.Sum64()

		case reflect.Pointer:
			hashUint(uint64(uintptr(r.UnsafePointer())))
			return h.Sum64()
		}
	}

unhashable:
	panic(fmt.Sprintf("unhashable type: %T", x))
}

// bint returns int corresponding to bool.
//
// true  -> 1
// false -> 0
func bint(x bool) int64 {
	if x {
		return 1
	}
	return 0
}
