package pickle

import (
	"fmt"
	"hash/maphash"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// halfPrivate has unexported fields, which equal and hash still look into.
type halfPrivate struct {
	x, y any
}

// tryHash returns hash(x), or ok=false if x is not hashable.
func tryHash(seed maphash.Seed, x any) (h uint64, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s, isStr := r.(string)
			if !isStr || !strings.HasPrefix(s, "unhashable type: ") {
				panic(r)
			}
			h, ok = 0, false
		}
	}()
	return hash(seed, x), true
}

// TestEqual checks equal and hash on classes of values: values inside one
// class are all equal to each other, and no value is equal to a value from
// another class.
func TestEqual(t *testing.T) {
	type class []any
	E := func(v ...any) class { return class(v) }
	D := NewDictWithData
	type M = map[any]any

	n1, n1_ := 1, 1
	p1, p1_ := &Class{"a", "b"}, &Class{"a", "b"}

	classes := []class{
		// numbers
		E(int(0), int64(0), int32(0), uint8(0), uint64(0), bigInt("0"), false,
			float32(0), float64(0), complex64(0), complex128(0)),
		E(int(1), int64(1), int16(1), uint16(1), bigInt("1"), true,
			float32(1), float64(1), complex128(1)),
		E(int(-1), int8(-1), int64(-1), bigInt("-1"), float64(-1)),
		E(int64(0x7fffffffffffffff), bigInt("9223372036854775807")),
		E(uint64(0xffffffffffffffff), bigInt("18446744073709551615")),
		E(bigInt("1"+strings.Repeat("0", 22)), float64(1e22), complex128(1e22)),
		E(float64(1.25), float32(1.25), complex64(1.25)),
		E(complex64(complex(0, 1)), complex128(complex(0, 1))),

		// text and binary data never compare equal to each other
		E("a", Char('a')),
		E(Bytes("a")),
		E("мир"),
		E(""),
		E(Bytes("")),

		E(None{}),

		// sequences
		E(Tuple{}, []any{}, List{}, &List{}, [0]int{}, []float32{}),
		E(Tuple{1, "a"}, []any{int64(1), "a"}, [2]any{1.0, Char('a')}, L(bigInt("1"), "a")),
		E(Tuple{Tuple{1}, 2}, []any{L(1), 2.0}),

		// dicts and sets
		E(D(), M{}, map[int]bool{}),
		E(D(1, "a"), M{1: "a"}, map[int]string{1: "a"}),
		E(D("k", bigInt("2")), M{"k": 2.0}, map[string]int{"k": 2}),
		E(D("a", 1, Bytes("a"), 2), M{"a": 1, Bytes("a"): 2}),
		E(NewSet()),
		E(NewSet(1, "a"), NewSet("a", 1.0)),

		// structs
		E(Class{"mod", "cls"}),
		E(Call{Class{"mod", "cls"}, Tuple{"a", 3}}, Call{Class{"mod", "cls"}, Tuple{"a", bigInt("3")}}),
		E(Ref{1}, Ref{bigInt("1")}, Ref{1.0}),
		E(halfPrivate{"a", 1}, halfPrivate{Char('a'), int64(1)}),

		// pointers compare by address
		E(&n1), E(&n1_), E(p1), E(p1_),

		E(nil),
	}

	seed := maphash.MakeSeed()

	check := func(a, b any) bool {
		t.Helper()
		eq := equal(a, b)
		if eq != equal(b, a) {
			t.Errorf("equal not symmetric: %T %#v  %T %#v", a, a, b, b)
		}
		if eq {
			ha, aok := tryHash(seed, a)
			hb, bok := tryHash(seed, b)
			if aok && bok && ha != hb {
				t.Errorf("hash differs for equal values: %T %#v  %T %#v", a, a, b, b)
			}
		}
		return eq
	}

	for i, c1 := range classes {
		for _, a := range c1 {
			for _, b := range c1 {
				if !check(a, b) {
					t.Errorf("not equal: %T %#v  %T %#v", a, a, b, b)
				}
			}
		}
		for j, c2 := range classes {
			if i == j {
				continue
			}
			for _, a := range c1 {
				for _, b := range c2 {
					if check(a, b) {
						t.Errorf("equal: %T %#v  %T %#v", a, a, b, b)
					}
				}
			}
		}
	}
}

// ByteString, coming from py2 str, is equal to both unicode and bytes with
// the same content, while those two are different from each other.
func TestEqualByteString(t *testing.T) {
	assert.True(t, equal(ByteString("a"), "a"))
	assert.True(t, equal(ByteString("a"), Bytes("a")))
	assert.False(t, equal("a", Bytes("a")))
	assert.True(t, equal(Tuple{ByteString("a")}, []any{"a"}))

	seed := maphash.MakeSeed()
	assert.Equal(t, hash(seed, "a"), hash(seed, ByteString("a")))
	assert.Equal(t, hash(seed, Bytes("a")), hash(seed, ByteString("a")))
}

// dictItems returns d's items as sorted "key: value" strings.
func dictItems(d Dict) []string {
	var items []string
	d.Iter()(func(k, v any) bool {
		items = append(items, fmt.Sprintf("%#v: %#v", k, v))
		return true
	})
	sort.Strings(items)
	return items
}

func TestDict(t *testing.T) {
	d := NewDict()
	assert.Equal(t, 0, d.Len())
	assert.Nil(t, d.Get(1))

	d.Set(1, "x")
	for _, k := range []any{1, int64(1), uint8(1), 1.0, bigInt("1"), true, complex(1, 0)} {
		v, ok := d.Get_(k)
		assert.True(t, ok, "%T %v", k, k)
		assert.Equal(t, "x", v, "%T %v", k, k)
	}
	assert.Nil(t, d.Get(2))
	assert.Nil(t, d.Get("1"))

	// setting an equal key replaces the entry together with its key
	d.Set(1.0, "y")
	assert.Equal(t, 1, d.Len())
	assert.Equal(t, []string{"1: \"y\""}, dictItems(d))

	d.Set(2.5, "z")
	assert.Equal(t, "z", d.Get(float32(2.5)))
	assert.Nil(t, d.Get(2))

	d.Del(bigInt("1"))
	assert.Equal(t, 1, d.Len())
	assert.Nil(t, d.Get(1))
	d.Del(2.5)
	assert.Equal(t, 0, d.Len())

	// str, bytes and py2 str
	d.Set("abc", "s")
	d.Set(Bytes("abc"), "b")
	assert.Equal(t, 2, d.Len())
	assert.Equal(t, "s", d.Get("abc"))
	assert.Equal(t, "b", d.Get(Bytes("abc")))

	d.Set(ByteString("abc"), "c")
	assert.Equal(t, 1, d.Len())
	assert.Equal(t, "c", d.Get("abc"))
	assert.Equal(t, "c", d.Get(Bytes("abc")))
	d.Del("abc")
	assert.Equal(t, 0, d.Len())

	// composite keys
	d.Set(None{}, "n")
	d.Set(Tuple{1, "a"}, "t")
	d.Set(Class{"mod", "cls"}, "c")
	d.Set(Ref{"a"}, "r")
	d.Set(halfPrivate{"x", 1}, "p")
	assert.Equal(t, 5, d.Len())
	assert.Equal(t, "n", d.Get(None{}))
	assert.Equal(t, "t", d.Get([2]any{1.0, Char('a')}))
	assert.Equal(t, "c", d.Get(Class{"mod", "cls"}))
	assert.Equal(t, "r", d.Get(Ref{ByteString("a")}))
	assert.Equal(t, "p", d.Get(halfPrivate{"x", bigInt("1")}))
	assert.Nil(t, d.Get(halfPrivate{"x", 2}))

	// pointers are looked up by address
	i, j := 1, 1
	d = NewDict()
	d.Set(&i, 1)
	d.Set(&j, 2)
	assert.Equal(t, 2, d.Len())
	assert.Equal(t, 1, d.Get(&i))
	assert.Equal(t, 2, d.Get(&j))
}

func TestDictIterStop(t *testing.T) {
	d := NewDictWithData(1, 1, 2, 2, 3, 3)
	n := 0
	d.Iter()(func(k, v any) bool {
		n++
		return false
	})
	assert.Equal(t, 1, n)
}

func TestDictUnhashable(t *testing.T) {
	d := NewDictWithData("a", 1)
	vbad := []any{
		[]any{},
		[]any{1, 2, 3},
		[]int{1},
		L(1),
		NewDict(),
		NewSet(1),
		map[any]any{},
		Ref{[]any{}},
		Tuple{1, []any{}},
		halfPrivate{1, []any{}},
	}
	for _, k := range vbad {
		assert.Panics(t, func() { d.Get(k) }, "%#v", k)
		assert.Panics(t, func() { d.Set(k, 1) }, "%#v", k)
		assert.Panics(t, func() { d.Del(k) }, "%#v", k)
		assert.Panics(t, func() { NewDictWithData(k, 1) }, "%#v", k)
		assert.Panics(t, func() { NewSet(k) }, "%#v", k)
	}
	assert.PanicsWithValue(t, "unhashable type: []interface {}", func() { d.Set([]any{}, 1) })
	assert.PanicsWithValue(t, "odd number of arguments", func() { NewDictWithData(1) })
}

func TestDictNil(t *testing.T) {
	var d Dict
	assert.Equal(t, 0, d.Len())
	assert.Nil(t, d.Get(1))
	_, ok := d.Get_("a")
	assert.False(t, ok)
	d.Del(1)
	assert.Empty(t, dictItems(d))
	assert.Panics(t, func() { d.Set(1, "x") })
}

func TestDictString(t *testing.T) {
	d := NewDictWithData("b", 2, "a", 1)
	assert.Equal(t, "{a: 1, b: 2}", d.String())
	assert.Equal(t, `pickle.Dict{"a": 1, "b": 2}`, d.GoString())
}

func TestSet(t *testing.T) {
	s := NewSet(1, "a", 1.0, true)
	require.Equal(t, 2, s.Len())
	assert.True(t, s.Has(bigInt("1")))
	assert.True(t, s.Has(ByteString("a")))
	assert.False(t, s.Has(Bytes("a")))
	assert.False(t, s.Has(2))

	s.Add(Tuple{1, 2})
	s.Add([2]any{1.0, 2.0})
	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Has([2]any{1, 2}))

	s.Del(1.0)
	assert.False(t, s.Has(1))
	assert.Equal(t, 2, s.Len())

	items := s.Items()
	assert.Len(t, items, 2)
	assert.ElementsMatch(t, []any{"a", Tuple{1, 2}}, items)

	assert.Equal(t, "set(1, 2, a)", NewSet("a", int64(2), int64(1)).String())
}

func TestSetNil(t *testing.T) {
	var s Set
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Has(1))
	assert.Empty(t, s.Items())
	s.Del(1)
	assert.Panics(t, func() { s.Add(1) })
}

// benchmarks for map and Dict compare them from performance point of view.

func BenchmarkMapGet(b *testing.B) {
	m := map[any]any{}
	for i := 0; i < 100; i++ {
		m[i] = i
	}
	m["abc"] = 777

	b.Run("string", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = m["abc"]
		}
	})

	b.Run("int", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = m[77]
		}
	})
}

func BenchmarkDictGet(b *testing.B) {
	d := NewDict()
	for i := 0; i < 100; i++ {
		d.Set(i, i)
	}
	d.Set("abc", 777)

	b.Run("string", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = d.Get("abc")
		}
	})

	b.Run("int", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = d.Get(77)
		}
	})
}
