package pickle
// Utilities that complement std reflect package.

import (
	"reflect"
)

// deepEqual is like reflect.DeepEqual but also supports Dict and Set.
//
// It is needed because reflect.DeepEqual considers two Dicts not-equal because
// each Dict is made with its own seed.
//
// deepEqual descends into *List, Tuple, []any and map[any]any so that Dicts
// and Sets nested inside them are compared the same way. It does not handle
// cyclic values.
func deepEqual(a, b any) bool {
	switch a := a.(type) {
	case Dict:
		db, ok := b.(Dict)
		return ok && dictDeepEqual(a, db)

	case Set:
		sb, ok := b.(Set)
		return ok && eqSetSet(a, sb)

	case *List:
		lb, ok := b.(*List)
		if !ok {
			return false
		}
		if a == nil || lb == nil {
			return a == lb
		}
		return seqDeepEqual(*a, *lb)

	case Tuple:
		tb, ok := b.(Tuple)
		return ok && seqDeepEqual(a, tb)

	case []any:
		sb, ok := b.([]any)
		return ok && seqDeepEqual(a, sb)

	case map[any]any:
		mb, ok := b.(map[any]any)
		if !ok || len(a) != len(mb) {
			return false
		}
		for k, va := range a {
			vb, ok := mb[k]
			if !ok || !deepEqual(va, vb) {
				return false
			}
		}
		return true
	}

	return reflect.DeepEqual(a, b)
}

func seqDeepEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !deepEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// dictDeepEqual compares keys exactly: key types must match, not only
// compare equal in Python sense.
//
// XXX O(n^2) because we want to compare keys exactly and so cannot use
//     db.Get(ka) because Dict.Get uses general equality that would match e.g. int == int64
func dictDeepEqual(da, db Dict) bool {
	if da.Len() != db.Len() {
		return false
	}

	eq := true
	da.Iter()(func(ka, va any) bool {
		keq := false
		db.Iter()(func(kb, vb any) bool {
			// NOTE don't use reflect.Equal(ka,kb) because it does not handle e.g. big.Int
			if reflect.TypeOf(ka) == reflect.TypeOf(kb) && equal(ka, kb) {
				if deepEqual(va, vb) {
					keq = true
				}
				return false
			}
			return true
		})
		if !keq {
			eq = false
			return false
		}
		return true
	})

	return eq
}
