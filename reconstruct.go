package pickle
// Turning class calls found in a pickle into Go values.

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"time"

	"github.com/shopspring/decimal"
)

// reconstructor builds a Go value for class(*args).
type reconstructor func(d *Decoder, class Class, args Tuple) (any, error)

// reconstructors maps the classes the decoder knows to their builders.
// Calls to other classes decode into generic mappings.
var reconstructors map[Class]reconstructor

func init() {
	reconstructors = map[Class]reconstructor{
		classDatetime:                  buildDatetime,
		classDate:                      buildDate,
		classTime:                      buildTime,
		classTimedelta:                 buildTimedelta,
		classDecimal:                   buildDecimal,
		{"decimal", "Decimal"}:         buildDecimal,
		classArray:                     buildArray,
		classCodecsEnc:                 buildCodecsEncode,
		classOrderedDict:               buildOrderedDict,
		{"copy_reg", "_reconstructor"}: buildReconstructor,
		{"copyreg", "_reconstructor"}:  buildReconstructor,
		{"copy_reg", "__newobj__"}:     buildNewobj,
		{"copyreg", "__newobj__"}:      buildNewobj,
	}
	// py2 and py3 spellings of the builtins module
	for _, protocol := range []int{2, 3} {
		reconstructors[pybuiltin(protocol, "bytearray")] = buildBytearray
		reconstructors[pybuiltin(protocol, "set")] = buildSet
		reconstructors[pybuiltin(protocol, "frozenset")] = buildSet
		reconstructors[pybuiltin(protocol, "complex")] = buildComplex
	}
}

// construct builds class(*args, **kwargs).
//
// kwargs is nil or a dict; only generic objects accept keyword arguments.
func (d *Decoder) construct(class Class, args Tuple, kwargs any) (any, error) {
	if err := userOK(args...); err != nil {
		return nil, err
	}
	build, known := reconstructors[class]
	if !known {
		obj := d.genericObject(class, args)
		if kwargs != nil {
			if err := mergeDict(obj, kwargs); err != nil {
				return nil, err
			}
		}
		return obj, nil
	}
	if dictLen(kwargs) > 0 {
		return nil, reconstructErrorf(class, "unexpected keyword arguments")
	}
	return build(d, class, args)
}

// genericObject represents an instance of a class the decoder does not know
// as a dict with the class path under "__class__".
//
// A single dict argument is merged into the mapping; other arguments are kept
// as a Tuple under "__args__".
func (d *Decoder) genericObject(class Class, args Tuple) any {
	obj := d.newDict(1)
	_ = dictAssign(obj, classKey, class.String())
	if len(args) == 1 && dictLen(args[0]) >= 0 && mergeDict(obj, args[0]) == nil {
		return obj
	}
	if len(args) > 0 {
		_ = dictAssign(obj, argsKey, args)
	}
	return obj
}

// dictLen returns the number of items in a dict of either representation,
// or -1 if x is not a dict.
func dictLen(x any) int {
	switch x := x.(type) {
	case map[any]any:
		return len(x)
	case Dict:
		return x.Len()
	}
	return -1
}

// mergeDict copies all items of src into dst.
func mergeDict(dst, src any) error {
	var err error
	switch src := src.(type) {
	case map[any]any:
		for k, v := range src {
			if err = dictAssign(dst, k, v); err != nil {
				break
			}
		}
	case Dict:
		src.Iter()(func(k, v any) bool {
			err = dictAssign(dst, k, v)
			return err == nil
		})
	default:
		err = fmt.Errorf("state: expected a dict, got %T", src)
	}
	return err
}

// applyState merges BUILD state into inst.
func (d *Decoder) applyState(inst, state any) error {
	if dictLen(inst) < 0 {
		if _, isNone := state.(None); isNone {
			return nil
		}
		return fmt.Errorf("build: cannot set state of %T", inst)
	}

	// (state, slotstate)
	if t, ok := state.(Tuple); ok && len(t) == 2 {
		for _, part := range t {
			if _, isNone := part.(None); isNone {
				continue
			}
			if err := mergeDict(inst, part); err != nil {
				return fmt.Errorf("build: %w", err)
			}
		}
		return nil
	}

	if _, isNone := state.(None); isNone {
		return nil
	}
	if err := mergeDict(inst, state); err != nil {
		return fmt.Errorf("build: %w", err)
	}
	return nil
}

// packedState returns the bytes of a datetime-style packed state argument.
func packedState(x any) ([]byte, bool) {
	switch x := x.(type) {
	case Bytes:
		return []byte(x), true
	case ByteString:
		return []byte(x), true
	case string:
		return []byte(x), true
	}
	return nil, false
}

// intArgs converts args to ints, each within [lo[i], hi[i]].
func intArgs(class Class, args Tuple, lo, hi []int64) ([]int64, error) {
	v := make([]int64, len(args))
	for i, arg := range args {
		n, err := AsInt64(arg)
		if err != nil {
			return nil, reconstructErrorf(class, "argument %d: %s", i, err)
		}
		if n < lo[i] || n > hi[i] {
			return nil, reconstructErrorf(class, "argument %d out of range: %d", i, n)
		}
		v[i] = n
	}
	return v, nil
}

var (
	//                    year  month  day  hour  minute  second  microsecond
	datetimeLo = []int64{1, 1, 1, 0, 0, 0, 0}
	datetimeHi = []int64{9999, 12, 31, 23, 59, 59, 999999}
)

// buildDatetime handles datetime(packed[, tzinfo]) and
// datetime(year, month, day[, hour[, minute[, second[, microsecond[, tzinfo]]]]]).
//
// tzinfo is not interpreted: the result carries the wall clock in UTC.
func buildDatetime(d *Decoder, class Class, args Tuple) (any, error) {
	if len(args) >= 1 && len(args) <= 2 {
		if b, ok := packedState(args[0]); ok {
			if len(b) != 10 {
				return nil, reconstructErrorf(class, "packed state of %d bytes", len(b))
			}
			v := []int64{
				int64(b[0])<<8 | int64(b[1]),
				int64(b[2] & 0x7f), // high bit is fold
				int64(b[3]),
				int64(b[4]),
				int64(b[5]),
				int64(b[6]),
				int64(b[7])<<16 | int64(b[8])<<8 | int64(b[9]),
			}
			return makeDatetime(class, v)
		}
	}
	if len(args) == 8 {
		args = args[:7]
	}
	if len(args) < 3 || len(args) > 7 {
		return nil, reconstructErrorf(class, "want 3..7 arguments, got %d", len(args))
	}
	v, err := intArgs(class, args, datetimeLo, datetimeHi)
	if err != nil {
		return nil, err
	}
	for len(v) < 7 {
		v = append(v, 0)
	}
	return makeDatetime(class, v)
}

func makeDatetime(class Class, v []int64) (any, error) {
	for i := range v {
		if v[i] < datetimeLo[i] || v[i] > datetimeHi[i] {
			return nil, reconstructErrorf(class, "field %d out of range: %d", i, v[i])
		}
	}
	t := time.Date(int(v[0]), time.Month(v[1]), int(v[2]),
		int(v[3]), int(v[4]), int(v[5]), int(v[6])*1000, time.UTC)
	if t.Day() != int(v[2]) {
		return nil, reconstructErrorf(class, "day is out of range for month")
	}
	return t, nil
}

// buildDate handles date(packed) and date(year, month, day).
func buildDate(d *Decoder, class Class, args Tuple) (any, error) {
	if len(args) == 1 {
		b, ok := packedState(args[0])
		if !ok || len(b) != 4 {
			return nil, reconstructErrorf(class, "invalid packed state %T", args[0])
		}
		return makeDatetime(class, []int64{int64(b[0])<<8 | int64(b[1]), int64(b[2]), int64(b[3]), 0, 0, 0, 0})
	}
	if len(args) != 3 {
		return nil, reconstructErrorf(class, "want 3 arguments, got %d", len(args))
	}
	v, err := intArgs(class, args, datetimeLo, datetimeHi)
	if err != nil {
		return nil, err
	}
	return makeDatetime(class, append(v, 0, 0, 0, 0))
}

// buildTime handles time(packed[, tzinfo]) and
// time([hour[, minute[, second[, microsecond[, tzinfo]]]]]).
//
// The result is the time elapsed since midnight.
func buildTime(d *Decoder, class Class, args Tuple) (any, error) {
	lo, hi := datetimeLo[3:], datetimeHi[3:]
	if len(args) >= 1 && len(args) <= 2 {
		if b, ok := packedState(args[0]); ok {
			if len(b) != 6 {
				return nil, reconstructErrorf(class, "packed state of %d bytes", len(b))
			}
			v := []int64{int64(b[0] & 0x7f), int64(b[1]), int64(b[2]), int64(b[3])<<16 | int64(b[4])<<8 | int64(b[5])}
			for i := range v {
				if v[i] > hi[i] {
					return nil, reconstructErrorf(class, "field %d out of range: %d", i, v[i])
				}
			}
			return clockDuration(v), nil
		}
	}
	if len(args) == 5 {
		args = args[:4]
	}
	if len(args) > 4 {
		return nil, reconstructErrorf(class, "want at most 4 arguments, got %d", len(args))
	}
	v, err := intArgs(class, args, lo, hi)
	if err != nil {
		return nil, err
	}
	for len(v) < 4 {
		v = append(v, 0)
	}
	return clockDuration(v), nil
}

// clockDuration returns hour:minute:second.microsecond as time since midnight.
func clockDuration(v []int64) time.Duration {
	return time.Duration(v[0])*time.Hour + time.Duration(v[1])*time.Minute +
		time.Duration(v[2])*time.Second + time.Duration(v[3])*time.Microsecond
}

// buildTimedelta handles timedelta([days[, seconds[, microseconds]]]).
func buildTimedelta(d *Decoder, class Class, args Tuple) (any, error) {
	if len(args) > 3 {
		return nil, reconstructErrorf(class, "want at most 3 arguments, got %d", len(args))
	}
	units := []time.Duration{24 * time.Hour, time.Second, time.Microsecond}
	total := new(big.Int)
	for i, arg := range args {
		n, err := AsInt64(arg)
		if err != nil {
			return nil, reconstructErrorf(class, "argument %d: %s", i, err)
		}
		x := new(big.Int).Mul(big.NewInt(n), big.NewInt(int64(units[i])))
		total.Add(total, x)
	}
	if !total.IsInt64() {
		return nil, reconstructErrorf(class, "duration overflows time.Duration")
	}
	return time.Duration(total.Int64()), nil
}

// buildDecimal handles Decimal(text).
func buildDecimal(d *Decoder, class Class, args Tuple) (any, error) {
	if len(args) != 1 {
		return nil, reconstructErrorf(class, "want 1 argument, got %d", len(args))
	}
	text, err := AsString(args[0])
	if err != nil {
		return nil, reconstructErrorf(class, "%s", err)
	}
	v, err := decimal.NewFromString(text)
	if err != nil {
		return nil, reconstructErrorf(class, "%s", err)
	}
	return v, nil
}

// arrayElem maps array.array typecodes to Go element types.
var arrayElem = map[string]reflect.Type{
	"b": reflect.TypeFor[int8](),
	"B": reflect.TypeFor[uint8](),
	"h": reflect.TypeFor[int16](),
	"H": reflect.TypeFor[uint16](),
	"i": reflect.TypeFor[int32](),
	"I": reflect.TypeFor[uint32](),
	"l": reflect.TypeFor[int64](),
	"L": reflect.TypeFor[uint64](),
	"q": reflect.TypeFor[int64](),
	"Q": reflect.TypeFor[uint64](),
	"f": reflect.TypeFor[float32](),
	"d": reflect.TypeFor[float64](),
}

// buildArray handles array(typecode[, items]) into a typed slice.
//
// 'u' and 'c' arrays become a string.
func buildArray(d *Decoder, class Class, args Tuple) (any, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, reconstructErrorf(class, "want 1 or 2 arguments, got %d", len(args))
	}
	typecode, err := AsString(args[0])
	if err != nil {
		return nil, reconstructErrorf(class, "typecode: %s", err)
	}
	var items []any
	if len(args) == 2 {
		items, err = AsList(args[1])
		if err != nil {
			return nil, reconstructErrorf(class, "items: %s", err)
		}
	}

	if typecode == "u" || typecode == "c" {
		var text []rune
		for _, item := range items {
			s, err := AsString(item)
			if err != nil || len([]rune(s)) != 1 {
				return nil, reconstructErrorf(class, "invalid %q item %v", typecode, item)
			}
			text = append(text, []rune(s)...)
		}
		return string(text), nil
	}

	elem, ok := arrayElem[typecode]
	if !ok {
		return nil, reconstructErrorf(class, "unknown typecode %q", typecode)
	}
	out := reflect.MakeSlice(reflect.SliceOf(elem), len(items), len(items))
	for i, item := range items {
		if err := setArrayItem(out.Index(i), item); err != nil {
			return nil, reconstructErrorf(class, "item %d: %s", i, err)
		}
	}
	return out.Interface(), nil
}

// setArrayItem stores a decoded number into an array element.
func setArrayItem(dst reflect.Value, item any) error {
	switch dst.Kind() {
	case reflect.Float32, reflect.Float64:
		var f float64
		switch x := item.(type) {
		case float64:
			f = x
		case int64:
			f = float64(x)
		default:
			return fmt.Errorf("expect float; got %T", item)
		}
		if dst.Kind() == reflect.Float32 && !math.IsInf(f, 0) && !math.IsNaN(f) && dst.OverflowFloat(f) {
			return fmt.Errorf("%v overflows float32", f)
		}
		dst.SetFloat(f)

	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var u uint64
		switch x := item.(type) {
		case int64:
			if x < 0 {
				return fmt.Errorf("negative value %d", x)
			}
			u = uint64(x)
		case *big.Int:
			if !x.IsUint64() {
				return fmt.Errorf("%v out of range", x)
			}
			u = x.Uint64()
		default:
			return fmt.Errorf("expect int; got %T", item)
		}
		if dst.OverflowUint(u) {
			return fmt.Errorf("%d out of range", u)
		}
		dst.SetUint(u)

	default:
		n, err := AsInt64(item)
		if err != nil {
			return err
		}
		if dst.OverflowInt(n) {
			return fmt.Errorf("%d out of range", n)
		}
		dst.SetInt(n)
	}
	return nil
}

// buildBytearray handles bytearray(), bytearray(bytes), bytearray(list of
// ints) and bytearray(text, 'latin-1').
func buildBytearray(d *Decoder, class Class, args Tuple) (any, error) {
	switch len(args) {
	case 0:
		return []byte{}, nil

	case 1:
		switch x := args[0].(type) {
		case Bytes:
			return []byte(x), nil
		case ByteString:
			return []byte(x), nil
		case string:
			return []byte(x), nil
		}
		items, err := AsList(args[0])
		if err != nil {
			return nil, reconstructErrorf(class, "want (bytes,) ; got (%T,)", args[0])
		}
		data := make([]byte, len(items))
		for i, item := range items {
			n, err := AsInt64(item)
			if err != nil || n < 0 || n > 0xff {
				return nil, reconstructErrorf(class, "item %d is not a byte: %v", i, item)
			}
			data[i] = byte(n)
		}
		return data, nil

	case 2:
		if !stringEQ(args[1], "latin-1") && !stringEQ(args[1], "latin1") {
			return nil, reconstructErrorf(class, "unsupported encoding %v", args[1])
		}
		data, err := decodeLatin1Bytes(args[0])
		if err != nil {
			return nil, reconstructErrorf(class, "%s", err)
		}
		return data, nil
	}
	return nil, reconstructErrorf(class, "want at most 2 arguments, got %d", len(args))
}

// buildSet handles set([items]) and frozenset([items]).
func buildSet(d *Decoder, class Class, args Tuple) (any, error) {
	switch len(args) {
	case 0:
		return NewSet(), nil
	case 1:
		var items []any
		switch x := args[0].(type) {
		case Set:
			items = x.Items()
		default:
			var err error
			items, err = AsList(x)
			if err != nil {
				return nil, reconstructErrorf(class, "%s", err)
			}
		}
		s := NewSet()
		for _, item := range items {
			if !setTryAdd(s, item) {
				return nil, reconstructErrorf(class, "unhashable item %T", item)
			}
		}
		return s, nil
	}
	return nil, reconstructErrorf(class, "want at most 1 argument, got %d", len(args))
}

// buildComplex handles complex([real[, imag]]).
func buildComplex(d *Decoder, class Class, args Tuple) (any, error) {
	if len(args) > 2 {
		return nil, reconstructErrorf(class, "want at most 2 arguments, got %d", len(args))
	}
	var parts [2]float64
	for i, arg := range args {
		switch x := arg.(type) {
		case float64:
			parts[i] = x
		case int64:
			parts[i] = float64(x)
		case *big.Int:
			parts[i], _ = new(big.Float).SetInt(x).Float64()
		default:
			return nil, reconstructErrorf(class, "argument %d: expect number; got %T", i, arg)
		}
	}
	return complex(parts[0], parts[1]), nil
}

// buildCodecsEncode handles _codecs.encode(text, encoding).
//
// For protocols <= 2 Python3 encodes bytes as
// `_codecs.encode(byt.decode('latin1'), 'latin1')`.
func buildCodecsEncode(d *Decoder, class Class, args Tuple) (any, error) {
	if len(args) != 2 {
		return nil, reconstructErrorf(class, "want 2 arguments, got %d", len(args))
	}
	enc, err := AsString(args[1])
	if err != nil {
		return nil, reconstructErrorf(class, "encoding: %s", err)
	}
	switch enc {
	case "latin1", "latin-1":
		data, err := decodeLatin1Bytes(args[0])
		if err != nil {
			return nil, reconstructErrorf(class, "%s", err)
		}
		return Bytes(data), nil
	case "utf-8", "utf8":
		text, err := AsString(args[0])
		if err != nil {
			return nil, reconstructErrorf(class, "%s", err)
		}
		return Bytes(text), nil
	}
	return nil, reconstructErrorf(class, "unsupported encoding %q", enc)
}

// buildOrderedDict handles OrderedDict() and OrderedDict(list of pairs).
func buildOrderedDict(d *Decoder, class Class, args Tuple) (any, error) {
	switch len(args) {
	case 0:
		return d.newDict(0), nil
	case 1:
		items, err := AsList(args[0])
		if err != nil {
			return nil, reconstructErrorf(class, "%s", err)
		}
		m := d.newDict(len(items))
		for i, item := range items {
			pair, err := AsList(item)
			if err != nil || len(pair) != 2 {
				return nil, reconstructErrorf(class, "item %d is not a pair", i)
			}
			if err := dictAssign(m, pair[0], pair[1]); err != nil {
				return nil, reconstructErrorf(class, "%s", err)
			}
		}
		return m, nil
	}
	return nil, reconstructErrorf(class, "want at most 1 argument, got %d", len(args))
}

// buildReconstructor handles copyreg._reconstructor(cls, base, state), which
// protocols 0 and 1 use for instances of user classes.
func buildReconstructor(d *Decoder, class Class, args Tuple) (any, error) {
	if len(args) != 3 {
		return nil, reconstructErrorf(class, "want 3 arguments, got %d", len(args))
	}
	cls, ok := args[0].(Class)
	if !ok {
		return nil, reconstructErrorf(class, "invalid class %T", args[0])
	}
	obj := d.genericObject(cls, nil)
	if err := d.applyState(obj, args[2]); err != nil {
		return nil, reconstructErrorf(class, "%s", err)
	}
	return obj, nil
}

// buildNewobj handles copyreg.__newobj__(cls, *args).
func buildNewobj(d *Decoder, class Class, args Tuple) (any, error) {
	if len(args) < 1 {
		return nil, reconstructErrorf(class, "missing class argument")
	}
	cls, ok := args[0].(Class)
	if !ok {
		return nil, reconstructErrorf(class, "invalid class %T", args[0])
	}
	return d.construct(cls, args[1:], nil)
}
