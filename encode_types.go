package pickle

// Emission strategies of the encoder, one per kind of value.

import (
	"cmp"
	"fmt"
	"math/big"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var (
	classDatetime    = Class{Module: "datetime", Name: "datetime"}
	classDate        = Class{Module: "datetime", Name: "date"}
	classTime        = Class{Module: "datetime", Name: "time"}
	classTimedelta   = Class{Module: "datetime", Name: "timedelta"}
	classDecimal     = Class{Module: "decimal", Name: "Decimal"}
	classArray       = Class{Module: "array", Name: "array"}
	classCodecsEnc   = Class{Module: "_codecs", Name: "encode"}
	classOrderedDict = Class{Module: "collections", Name: "OrderedDict"}
)

func (e *Encoder) saveNone(reflect.Value) error {
	e.emit(opNone)
	return nil
}

func (e *Encoder) saveBool(rv reflect.Value) error {
	if rv.Bool() {
		e.emit(opNewtrue)
	} else {
		e.emit(opNewfalse)
	}
	return nil
}

func (e *Encoder) saveInt(rv reflect.Value) error {
	e.emitInt(rv.Int())
	return nil
}

func (e *Encoder) saveUint(rv reflect.Value) error {
	e.emitUint(rv.Uint())
	return nil
}

func (e *Encoder) saveFloat(rv reflect.Value) error {
	e.emitFloat(rv.Float())
	return nil
}

// saveComplex emits complex(re, im).
func (e *Encoder) saveComplex(rv reflect.Value) error {
	c := rv.Complex()
	e.emitGlobal(pybuiltin(encodeProtocol, "complex"))
	e.emitFloat(real(c))
	e.emitFloat(imag(c))
	e.emit(opTuple2, opReduce)
	return nil
}

func (e *Encoder) saveBigInt(rv reflect.Value) error {
	e.emitLong(rv.Interface().(*big.Int))
	return nil
}

func (e *Encoder) saveString(rv reflect.Value) error {
	e.emitUnicode(rv.String())
	return nil
}

func (e *Encoder) saveChar(rv reflect.Value) error {
	e.emitUnicode(string(rune(rv.Int())))
	return nil
}

func (e *Encoder) saveByteString(rv reflect.Value) error {
	e.emitByteString(rv.String())
	return nil
}

// saveBytes emits _codecs.encode(latin1text, 'latin1') - there are no
// BYTES opcodes in protocol 2.
func (e *Encoder) saveBytes(rv reflect.Value) error {
	e.emitGlobal(classCodecsEnc)
	e.emitUnicode(latin1Text([]byte(rv.String())))
	e.emitUnicode("latin1")
	e.emit(opTuple2, opReduce)
	return nil
}

// saveEnum emits the symbolic name of an enumeration value.
func (e *Encoder) saveEnum(rv reflect.Value) error {
	if !rv.CanInterface() {
		return &UnsupportedTypeError{Type: rv.Type(), Reason: "value is not accessible"}
	}
	e.emitUnicode(rv.Interface().(fmt.Stringer).String())
	return nil
}

func (e *Encoder) saveClass(rv reflect.Value) error {
	class := rv.Interface().(Class)
	if err := checkGlobal(class); err != nil {
		return err
	}
	e.emitGlobal(class)
	return nil
}

// checkGlobal rejects classes that the newline-terminated GLOBAL opcode
// cannot carry.
func checkGlobal(class Class) error {
	if strings.ContainsRune(class.Module, '\n') || strings.ContainsRune(class.Name, '\n') {
		return &UnsupportedTypeError{Type: reflect.TypeOf(class), Reason: "class name contains newline"}
	}
	return nil
}

// saveCall emits GLOBAL callable + args + REDUCE.
func (e *Encoder) saveCall(rv reflect.Value) error {
	call := rv.Interface().(Call)
	if err := checkGlobal(call.Callable); err != nil {
		return err
	}
	e.emitGlobal(call.Callable)
	err := e.save(reflect.ValueOf(call.Args))
	if err != nil {
		return err
	}
	e.emit(opReduce)
	return nil
}

// saveRef emits a persistent reference: pid + BINPERSID.
func (e *Encoder) saveRef(rv reflect.Value) error {
	ref := rv.Interface().(Ref)
	err := e.save(reflect.ValueOf(ref.Pid))
	if err != nil {
		return err
	}
	e.emit(opBinpersid)
	return nil
}

// saveTime emits datetime.datetime(y, m, d, H, M, S, us) with the wall clock
// of t in its own location.
func (e *Encoder) saveTime(rv reflect.Value) error {
	t := rv.Interface().(time.Time)
	e.emitGlobal(classDatetime)
	e.emit(opMark)
	e.emitInt(int64(t.Year()))
	e.emitInt(int64(t.Month()))
	e.emitInt(int64(t.Day()))
	e.emitInt(int64(t.Hour()))
	e.emitInt(int64(t.Minute()))
	e.emitInt(int64(t.Second()))
	e.emitInt(int64(t.Nanosecond() / 1000))
	e.emit(opTuple, opReduce)
	return nil
}

// saveDuration emits datetime.timedelta(days, seconds, microseconds)
// normalized the way Python does: only days may be negative.
func (e *Encoder) saveDuration(rv reflect.Value) error {
	days, secs, us := splitDuration(time.Duration(rv.Int()))
	e.emitGlobal(classTimedelta)
	e.emitInt(days)
	e.emitInt(secs)
	e.emitInt(us)
	e.emit(opTuple3, opReduce)
	return nil
}

// splitDuration splits d into timedelta components. Precision below one
// microsecond is dropped.
func splitDuration(d time.Duration) (days, secs, us int64) {
	const usPerDay = 24 * 60 * 60 * 1000000
	total := d.Microseconds()
	days = total / usPerDay
	rem := total % usPerDay
	if rem < 0 {
		rem += usPerDay
		days--
	}
	return days, rem / 1000000, rem % 1000000
}

// saveDecimal emits decimal.Decimal(text).
func (e *Encoder) saveDecimal(rv reflect.Value) error {
	d := rv.Interface().(decimal.Decimal)
	text := d.String()
	if exp := d.Exponent(); exp < 0 {
		// keep trailing zeros: Decimal("1.50") != Decimal("1.5") textually
		text = d.StringFixed(-exp)
	}
	e.emitGlobal(classDecimal)
	e.emitUnicode(text)
	e.emit(opTuple1, opReduce)
	return nil
}

// ---- fixed-size arrays ----

// saveTuple emits a fixed array as tuple.
func (e *Encoder) saveTuple(rv reflect.Value) error {
	n := rv.Len()
	if n > 3 {
		e.emit(opMark)
	}
	for i := 0; i < n; i++ {
		err := e.save(rv.Index(i))
		if err != nil {
			return err
		}
	}
	e.emitTupleOf(n)
	return nil
}

// saveCharArray emits an array of characters as one string.
func (e *Encoder) saveCharArray(rv reflect.Value) error {
	r := make([]rune, rv.Len())
	for i := range r {
		r[i] = rune(rv.Index(i).Int())
	}
	e.emitUnicode(string(r))
	return nil
}

// saveByteArray emits bytearray(latin1text, 'latin-1').
func (e *Encoder) saveByteArray(rv reflect.Value) error {
	data := make([]byte, rv.Len())
	for i := range data {
		data[i] = byte(rv.Index(i).Uint())
	}
	e.emitGlobal(pybuiltin(encodeProtocol, "bytearray"))
	e.emitUnicode(latin1Text(data))
	e.emitUnicode("latin-1")
	e.emit(opTuple2, opReduce)
	return nil
}

// arrayTypecode returns the array module typecode for elements of type
// elem, or 0 if such elements are not stored in array.array.
//
// Only unnamed numeric types qualify: named ones (time.Duration, enums, ...)
// have their own encoding and go into tuples.
func arrayTypecode(elem reflect.Type) byte {
	if elem.PkgPath() != "" {
		return 0
	}
	switch elem.Kind() {
	case reflect.Int8:
		return 'b'
	case reflect.Int16:
		return 'h'
	case reflect.Uint16:
		return 'H'
	case reflect.Int32:
		return 'i'
	case reflect.Uint32:
		return 'I'
	case reflect.Int, reflect.Int64:
		return 'l'
	case reflect.Uint, reflect.Uint64, reflect.Uintptr:
		return 'L'
	case reflect.Float32:
		return 'f'
	case reflect.Float64:
		return 'd'
	}
	return 0
}

// saveTypedArray emits array.array(typecode, [items]).
func (e *Encoder) saveTypedArray(rv reflect.Value) error {
	elem := rv.Type().Elem()
	e.emitGlobal(classArray)
	e.emitByteString(string(arrayTypecode(elem)))
	e.emit(opEmptyList)
	n := rv.Len()
	for i := 0; i < n; i += batchSize {
		e.emit(opMark)
		for j := i; j < min(i+batchSize, n); j++ {
			item := rv.Index(j)
			switch elem.Kind() {
			case reflect.Float32, reflect.Float64:
				e.emitFloat(item.Float())
			case reflect.Uint, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
				e.emitUint(item.Uint())
			default:
				e.emitInt(item.Int())
			}
		}
		e.emit(opAppends)
	}
	e.emit(opTuple2, opReduce)
	return nil
}

// ---- lists ----

func (e *Encoder) saveEmptyList(reflect.Value) error {
	e.emit(opEmptyList)
	return nil
}

// fillList appends the items of a slice to the list just emitted.
func (e *Encoder) fillList(rv reflect.Value) error {
	n := rv.Len()
	for i := 0; i < n; i += batchSize {
		e.emit(opMark)
		for j := i; j < min(i+batchSize, n); j++ {
			err := e.save(rv.Index(j))
			if err != nil {
				return err
			}
		}
		e.emit(opAppends)
	}
	return nil
}

// ---- sets ----

// saveSet emits set([items]) for Set.
func (e *Encoder) saveSet(rv reflect.Value) error {
	s := rv.Interface().(Set)
	items := make([]reflect.Value, 0, s.Len())
	s.Iter()(func(item any) bool {
		items = append(items, reflect.ValueOf(item))
		return true
	})
	return e.emitSet(items)
}

// saveGoSet emits set([keys]) for map[K]struct{}.
func (e *Encoder) saveGoSet(rv reflect.Value) error {
	return e.emitSet(rv.MapKeys())
}

func (e *Encoder) emitSet(items []reflect.Value) error {
	sortKeys(items)
	e.emitGlobal(pybuiltin(encodeProtocol, "set"))
	e.emit(opEmptyList)
	for i := 0; i < len(items); i += batchSize {
		e.emit(opMark)
		for _, item := range items[i:min(i+batchSize, len(items))] {
			err := e.save(item)
			if err != nil {
				return err
			}
		}
		e.emit(opAppends)
	}
	e.emit(opTuple1, opReduce)
	return nil
}

// ---- dicts ----

func (e *Encoder) saveEmptyDict(reflect.Value) error {
	e.emit(opEmptyDict)
	return nil
}

// fillMap adds the entries of a Go map to the dict just emitted.
func (e *Encoder) fillMap(rv reflect.Value) error {
	keys := rv.MapKeys()
	sortKeys(keys)
	return e.setItems(len(keys), func(i int) (reflect.Value, reflect.Value) {
		return keys[i], rv.MapIndex(keys[i])
	})
}

// fillDict adds the entries of a Dict to the dict just emitted.
func (e *Encoder) fillDict(rv reflect.Value) error {
	type entry struct {
		k reflect.Value
		v any
	}
	d := rv.Interface().(Dict)
	entries := make([]entry, 0, d.Len())
	d.Iter()(func(k, v any) bool {
		entries = append(entries, entry{reflect.ValueOf(k), v})
		return true
	})
	slices.SortStableFunc(entries, func(a, b entry) int {
		return compareKeys(a.k, b.k)
	})
	return e.setItems(len(entries), func(i int) (reflect.Value, reflect.Value) {
		return entries[i].k, reflect.ValueOf(entries[i].v)
	})
}

// setItems emits n key/value pairs in MARK ... SETITEMS batches.
func (e *Encoder) setItems(n int, item func(i int) (k, v reflect.Value)) error {
	for i := 0; i < n; i += batchSize {
		e.emit(opMark)
		for j := i; j < min(i+batchSize, n); j++ {
			k, v := item(j)
			err := e.save(k)
			if err != nil {
				return err
			}
			err = e.save(v)
			if err != nil {
				return err
			}
		}
		e.emit(opSetitems)
	}
	return nil
}

// sortKeys orders map keys so that the output does not depend on map
// iteration order. Keys of unordered kinds keep their relative order.
func sortKeys(keys []reflect.Value) {
	slices.SortStableFunc(keys, compareKeys)
}

// keyRank groups keys: numbers sort before strings, everything else after.
func keyRank(v reflect.Value) int {
	switch v.Kind() {
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return 0
	case reflect.String:
		return 1
	}
	return 2
}

func compareKeys(a, b reflect.Value) int {
	for a.Kind() == reflect.Interface && !a.IsNil() {
		a = a.Elem()
	}
	for b.Kind() == reflect.Interface && !b.IsNil() {
		b = b.Elem()
	}
	ra, rb := keyRank(a), keyRank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch ra {
	case 0:
		return compareNumbers(a, b)
	case 1:
		return cmp.Compare(a.String(), b.String())
	}
	return 0
}

func compareNumbers(a, b reflect.Value) int {
	ia, aInt := intOf(a)
	ib, bInt := intOf(b)
	if aInt && bInt {
		return ia.Cmp(ib)
	}
	return cmp.Compare(floatOf(a), floatOf(b))
}

func intOf(v reflect.Value) (*big.Int, bool) {
	switch v.Kind() {
	case reflect.Bool:
		return big.NewInt(bint(v.Bool())), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return big.NewInt(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return new(big.Int).SetUint64(v.Uint()), true
	}
	return nil, false
}

func floatOf(v reflect.Value) float64 {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float()
	}
	i, _ := intOf(v)
	f, _ := new(big.Float).SetInt(i).Float64()
	return f
}

// ---- generic objects ----

// structInfo is what the encoder needs to know about a struct type.
type structInfo struct {
	class  string // "pkgpath.Name"; empty for anonymous types
	fields []fieldInfo
}

type fieldInfo struct {
	name  string
	index []int
}

var structInfoCache sync.Map // reflect.Type -> *structInfo

// structInfoOf returns the exported fields of typ, embedded structs
// flattened, honoring `pickle:"name"` and `pickle:"-"` tags.
func structInfoOf(typ reflect.Type) *structInfo {
	if info, ok := structInfoCache.Load(typ); ok {
		return info.(*structInfo)
	}

	info := &structInfo{}
	if typ.Name() != "" {
		info.class = typ.PkgPath() + "." + typ.Name()
	}
	for _, f := range reflect.VisibleFields(typ) {
		if !f.IsExported() {
			continue
		}
		ftyp := f.Type
		if ftyp.Kind() == reflect.Pointer {
			ftyp = ftyp.Elem()
		}
		if f.Anonymous && ftyp.Kind() == reflect.Struct {
			continue // its fields are promoted
		}

		name := f.Name
		if tag, ok := f.Tag.Lookup("pickle"); ok {
			if tag == "-" {
				continue
			}
			if tag != "" {
				name = tag
			}
		}
		info.fields = append(info.fields, fieldInfo{name: name, index: f.Index})
	}

	actual, _ := structInfoCache.LoadOrStore(typ, info)
	return actual.(*structInfo)
}

// saveObjectShell emits the empty dict of a generic object.
func (e *Encoder) saveObjectShell(rv reflect.Value) error {
	if len(structInfoOf(rv.Type()).fields) == 0 {
		return &UnsupportedTypeError{Type: rv.Type(), Reason: "no exported fields"}
	}
	e.emit(opEmptyDict)
	return nil
}

// fillObject adds "__class__" and the exported fields of a struct to the dict
// just emitted.
func (e *Encoder) fillObject(rv reflect.Value) error {
	info := structInfoOf(rv.Type())
	e.emit(opMark)
	if info.class != "" {
		err := e.saveStrings(classKey, info.class)
		if err != nil {
			return err
		}
	}
	for _, f := range info.fields {
		err := e.save(reflect.ValueOf(f.name))
		if err != nil {
			return err
		}
		v, err := rv.FieldByIndexErr(f.index)
		if err != nil {
			// through nil embedded pointer
			v = reflect.Value{}
		}
		err = e.save(v)
		if err != nil {
			return err
		}
	}
	e.emit(opSetitems)
	return nil
}

func (e *Encoder) saveStrings(sv ...string) error {
	for _, s := range sv {
		err := e.save(reflect.ValueOf(s))
		if err != nil {
			return err
		}
	}
	return nil
}
