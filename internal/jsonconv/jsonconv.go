// Package jsonconv converts between decoded pickle values and plain trees
// that JSON and YAML can represent.
package jsonconv

import (
	"bytes"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"sort"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/pyrolite-go/pickle"
)

// Recursion replaces a container that appears inside itself.
const Recursion = "<recursion>"

// Plain returns a tree built only of nil, bool, numbers, string,
// []any and map[string]any out of a decoded pickle value.
//
// Python values without a JSON counterpart become strings (classes, bytes,
// times, non-finite floats) or small tagged objects (complex numbers, calls,
// persistent references). Mapping keys are stringified. A container
// reached again while it is still being converted becomes Recursion.
func Plain(v any) any {
	c := converter{active: map[uintptr]bool{}}
	return c.plain(v)
}

type converter struct {
	active map[uintptr]bool // containers on the current path
}

func (c *converter) enter(p uintptr) bool {
	if c.active[p] {
		return false
	}
	c.active[p] = true
	return true
}

func (c *converter) leave(p uintptr) {
	delete(c.active, p)
}

func (c *converter) plain(v any) any {
	switch v := v.(type) {
	case nil, pickle.None:
		return nil
	case bool, string, int64, int, json.Number:
		return v
	case float64:
		return plainFloat(v)
	case *big.Int:
		if v == nil {
			return nil
		}
		return json.Number(v.String())
	case pickle.ByteString:
		return string(v)
	case pickle.Bytes:
		return string(v)
	case pickle.Char:
		return string(rune(v))
	case pickle.Class:
		return v.String()
	case pickle.Ref:
		return map[string]any{"__ref__": c.plain(v.Pid)}
	case pickle.Call:
		return map[string]any{"__call__": v.Callable.String(), "args": c.plain(v.Args)}
	case complex128:
		return map[string]any{"real": plainFloat(real(v)), "imag": plainFloat(imag(v))}
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case time.Duration:
		return v.String()
	case decimal.Decimal:
		return json.Number(v.String())
	case []byte:
		return string(v)

	case *pickle.List:
		if v == nil {
			return nil
		}
		p := reflect.ValueOf(v).Pointer()
		if !c.enter(p) {
			return Recursion
		}
		defer c.leave(p)
		return c.plainSeq(*v)
	case pickle.List:
		return c.plainSeq(v)
	case pickle.Tuple:
		return c.plainSeq(v)
	case []any:
		return c.plainSeq(v)

	case pickle.Dict:
		out := make(map[string]any, v.Len())
		v.Iter()(func(k, item any) bool {
			out[key(k)] = item
			return true
		})
		return c.plainMap(v, out)
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[key(k)] = item
		}
		return c.plainMap(v, out)

	case pickle.Set:
		items := make([]any, 0, v.Len())
		for _, item := range v.Items() {
			items = append(items, c.plain(item))
		}
		sort.Slice(items, func(i, j int) bool {
			return fmt.Sprint(items[i]) < fmt.Sprint(items[j])
		})
		return items
	}

	// remaining typed numbers, slices and maps, e.g. array.array contents
	r := reflect.ValueOf(v)
	switch r.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return r.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return json.Number(strconv.FormatUint(r.Uint(), 10))
	case reflect.Float32:
		return plainFloat(r.Float())
	case reflect.Slice, reflect.Array:
		out := make([]any, r.Len())
		for i := range out {
			out[i] = c.plain(r.Index(i).Interface())
		}
		return out
	case reflect.Map:
		out := make(map[string]any, r.Len())
		it := r.MapRange()
		for it.Next() {
			out[key(it.Key().Interface())] = c.plain(it.Value().Interface())
		}
		return out
	}
	return fmt.Sprintf("%v", v)
}

func (c *converter) plainSeq(items []any) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = c.plain(item)
	}
	return out
}

// plainMap converts the values of out, which are those of mapping m.
func (c *converter) plainMap(m any, out map[string]any) any {
	r := reflect.ValueOf(m)
	if r.Kind() == reflect.Struct {
		// Dict wraps its map behind a pointer
		r = r.Field(0)
	}
	p := r.Pointer()
	if !c.enter(p) {
		return Recursion
	}
	defer c.leave(p)
	for k, item := range out {
		out[k] = c.plain(item)
	}
	return out
}

// key renders a mapping key as a JSON object key.
func key(k any) string {
	switch k := k.(type) {
	case string:
		return k
	case pickle.ByteString:
		return string(k)
	case pickle.Bytes:
		return string(k)
	case nil, pickle.None:
		return "None"
	case bool:
		if k {
			return "True"
		}
		return "False"
	}
	return fmt.Sprintf("%v", k)
}

func plainFloat(f float64) any {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return f
}

// Marshal returns the JSON encoding of a decoded pickle value.
func Marshal(v any, indent bool) ([]byte, error) {
	p := Plain(v)
	if indent {
		return json.MarshalIndent(p, "", "  ")
	}
	return json.Marshal(p)
}

// FromJSON decodes JSON into a value ready to be pickled.
//
// Integers become int64, or *big.Int when they do not fit; other numbers
// become float64.
func FromJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalize(v)
}

// FromYAML decodes a YAML document into a value ready to be pickled.
//
// Mappings with non-string keys stay map[any]any so that the keys keep
// their types.
func FromYAML(data []byte) (any, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return normalize(v)
}

func normalize(v any) (any, error) {
	switch v := v.(type) {
	case json.Number:
		return number(string(v))
	case int:
		return int64(v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			x, err := normalize(item)
			if err != nil {
				return nil, err
			}
			out[i] = x
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			x, err := normalize(item)
			if err != nil {
				return nil, err
			}
			out[k] = x
		}
		return out, nil
	case map[any]any:
		out := make(map[any]any, len(v))
		for k, item := range v {
			nk, err := normalize(k)
			if err != nil {
				return nil, err
			}
			x, err := normalize(item)
			if err != nil {
				return nil, err
			}
			out[nk] = x
		}
		return out, nil
	}
	return v, nil
}

// number parses a JSON number literal.
func number(s string) (any, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	if b, ok := new(big.Int).SetString(s, 10); ok {
		return b, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return f, nil
}
