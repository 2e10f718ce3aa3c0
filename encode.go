package pickle

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultMaxDepth is the encode nesting limit used when EncoderConfig.MaxDepth is 0.
const DefaultMaxDepth = 1000

// batchSize is the maximum number of items emitted per APPENDS/SETITEMS.
const batchSize = 1000

// An Encoder encodes Go data structures into pickle byte stream.
//
// The produced pickles use protocol 2. Each call to Encode writes one
// complete pickle and starts with an empty memo.
//
// An Encoder must not be used from several goroutines at the same time.
type Encoder struct {
	w      io.Writer
	config *EncoderConfig
	reg    *Registry

	out    []byte           // pickle being built
	memo   memoTable        // identity -> memo slot
	arrays map[memoKey]bool // fixed arrays currently being emitted
	depth  int              // current save nesting
}

// EncoderConfig allows to tune Encoder.
type EncoderConfig struct {
	// DisableMemo turns memoization off.
	//
	// Without memo shared values are emitted once per reference, and a
	// value that contains itself cannot be encoded: it fails with ErrMaxDepth.
	DisableMemo bool

	// MaxDepth limits how deeply values may nest. 0 means DefaultMaxDepth;
	// a negative value removes the limit.
	MaxDepth int

	// Registry, if !nil, is consulted for custom picklers instead of
	// DefaultRegistry.
	Registry *Registry

	// PersistentRef, if !nil, will be used by encoder to encode objects as persistent references.
	//
	// Whenever the encoders sees pointer to a Go struct object, it will call
	// PersistentRef to find out how to encode that object. If PersistentRef
	// returns nil, the object is encoded regularly. If !nil - the object
	// will be encoded as an object reference.
	//
	// See Ref documentation for more details.
	PersistentRef func(obj any) *Ref
}

// NewEncoder returns a new Encoder with the default configuration.
func NewEncoder(w io.Writer) *Encoder {
	return NewEncoderWithConfig(w, &EncoderConfig{})
}

// NewEncoderWithConfig is similar to NewEncoder, but allows specifying the encoder configuration.
func NewEncoderWithConfig(w io.Writer, config *EncoderConfig) *Encoder {
	if config == nil {
		config = &EncoderConfig{}
	}
	reg := config.Registry
	if reg == nil {
		reg = DefaultRegistry
	}
	return &Encoder{w: w, config: config, reg: reg}
}

// Dumps returns the pickle of v.
func Dumps(v any) ([]byte, error) {
	return DumpsWithConfig(v, &EncoderConfig{})
}

// DumpsWithConfig returns the pickle of v encoded according to config.
func DumpsWithConfig(v any, config *EncoderConfig) ([]byte, error) {
	var buf bytes.Buffer
	err := NewEncoderWithConfig(&buf, config).Encode(v)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes the pickle encoding of v to w, the encoder's writer.
//
// The pickle is built in memory and written with a single Write; nothing is
// written if encoding fails.
func (e *Encoder) Encode(v any) error {
	e.out = append(e.out[:0], opProto, encodeProtocol)
	e.memo = make(memoTable)
	e.arrays = make(map[memoKey]bool)
	e.depth = 0

	err := e.Save(v)
	if err != nil {
		return err
	}
	e.out = append(e.out, opStop)

	n, err := e.w.Write(e.out)
	if err == nil && n != len(e.out) {
		err = io.ErrShortWrite
	}
	return err
}

// Save appends the encoding of v to the pickle being built.
//
// It is meant to be used by custom picklers to encode nested values.
func (e *Encoder) Save(v any) error {
	return e.save(reflect.ValueOf(v))
}

// strategy is how values of one type are emitted.
//
// emit writes the value (atomic strategies) or an empty shell of it
// (containers). The value is memoized right after emit, and fill, if set,
// then populates the shell. This way a container is in the memo before its
// items are emitted and can contain itself.
//
// array strategies emit fixed-size arrays, which are atomic and therefore
// must not be re-entered while being emitted.
type strategy struct {
	emit  func(e *Encoder, rv reflect.Value) error
	fill  func(e *Encoder, rv reflect.Value) error
	array bool
}

// save is the central dispatch: memo lookup, strategy selection, emit,
// memoize, fill.
func (e *Encoder) save(rv reflect.Value) error {
	for rv.IsValid() && rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		e.emit(opNone)
		return nil
	}

	maxDepth := e.config.MaxDepth
	if maxDepth == 0 {
		maxDepth = DefaultMaxDepth
	}
	if maxDepth > 0 && e.depth >= maxDepth {
		return fmt.Errorf("pickle: %v: %w (%d levels)", rv.Type(), ErrMaxDepth, maxDepth)
	}
	e.depth++
	defer func() { e.depth-- }()

	key, hasID := identityOf(rv)
	memoize := hasID && !e.config.DisableMemo
	if memoize {
		if slot, ok := e.memo.lookup(key); ok {
			e.emitGet(slot)
			return nil
		}
	}

	if getref := e.config.PersistentRef; getref != nil && rv.CanInterface() {
		if ref := getref(rv.Interface()); ref != nil {
			return e.saveRef(reflect.ValueOf(*ref))
		}
	}

	st, target, err := e.strategyFor(rv)
	if err != nil {
		return err
	}

	if st.array && hasID {
		if e.arrays[key] {
			return fmt.Errorf("pickle: %v: %w", rv.Type(), ErrRecursiveArray)
		}
		e.arrays[key] = true
		defer delete(e.arrays, key)
	}

	err = st.emit(e, target)
	if err != nil {
		return err
	}
	if memoize {
		e.emitPut(e.memo.assign(key))
	}
	if st.fill != nil {
		return st.fill(e, target)
	}
	return nil
}

// strategyFor selects how rv is emitted.
//
// Pointers are followed until a registered pickler, a built-in type or a
// plain kind is found. The returned value is the one the strategy applies to.
func (e *Encoder) strategyFor(rv reflect.Value) (strategy, reflect.Value, error) {
	for {
		typ := rv.Type()
		switch rv.Kind() {
		case reflect.Pointer, reflect.Interface:
			if rv.IsNil() {
				return strategy{emit: (*Encoder).saveNone}, rv, nil
			}
		}

		if p := e.reg.Lookup(typ); p != nil {
			return customStrategy(p), rv, nil
		}
		if st, ok := builtinStrategy(typ); ok {
			return st, rv, nil
		}
		if isEnum(typ) {
			return strategy{emit: (*Encoder).saveEnum}, rv, nil
		}

		switch rv.Kind() {
		case reflect.Pointer, reflect.Interface:
			rv = rv.Elem()
			continue
		}

		if st, ok := kindStrategy(typ); ok {
			return st, rv, nil
		}
		return strategy{}, rv, &UnsupportedTypeError{Type: typ}
	}
}

// customStrategy wraps a registered pickler. Its output is atomic.
func customStrategy(p ObjectPickler) strategy {
	return strategy{emit: func(e *Encoder, rv reflect.Value) error {
		if !rv.CanInterface() {
			return &UnsupportedTypeError{Type: rv.Type(), Reason: "value is not accessible"}
		}
		return p.Pickle(rv.Interface(), pickleWriter{e}, e)
	}}
}

var (
	typeNone       = reflect.TypeFor[None]()
	typeChar       = reflect.TypeFor[Char]()
	typeBytes      = reflect.TypeFor[Bytes]()
	typeByteString = reflect.TypeFor[ByteString]()
	typeTuple      = reflect.TypeFor[Tuple]()
	typeDict       = reflect.TypeFor[Dict]()
	typeSet        = reflect.TypeFor[Set]()
	typeClass      = reflect.TypeFor[Class]()
	typeCall       = reflect.TypeFor[Call]()
	typeRef        = reflect.TypeFor[Ref]()
	typeBigInt     = reflect.TypeFor[*big.Int]()
	typeTime       = reflect.TypeFor[time.Time]()
	typeDuration   = reflect.TypeFor[time.Duration]()
	typeDecimal    = reflect.TypeFor[decimal.Decimal]()
	typeStringer   = reflect.TypeFor[fmt.Stringer]()
)

// builtinStrategy returns the strategy for types this package knows by name.
func builtinStrategy(typ reflect.Type) (strategy, bool) {
	switch typ {
	case typeNone:
		return strategy{emit: (*Encoder).saveNone}, true
	case typeChar:
		return strategy{emit: (*Encoder).saveChar}, true
	case typeBytes:
		return strategy{emit: (*Encoder).saveBytes}, true
	case typeByteString:
		return strategy{emit: (*Encoder).saveByteString}, true
	case typeTuple:
		return strategy{emit: (*Encoder).saveTuple, array: true}, true
	case typeDict:
		return strategy{emit: (*Encoder).saveEmptyDict, fill: (*Encoder).fillDict}, true
	case typeSet:
		return strategy{emit: (*Encoder).saveSet}, true
	case typeClass:
		return strategy{emit: (*Encoder).saveClass}, true
	case typeCall:
		return strategy{emit: (*Encoder).saveCall}, true
	case typeRef:
		return strategy{emit: (*Encoder).saveRef}, true
	case typeBigInt:
		return strategy{emit: (*Encoder).saveBigInt}, true
	case typeTime:
		return strategy{emit: (*Encoder).saveTime}, true
	case typeDuration:
		return strategy{emit: (*Encoder).saveDuration}, true
	case typeDecimal:
		return strategy{emit: (*Encoder).saveDecimal}, true
	}
	return strategy{}, false
}

// isEnum tells whether typ is an enumeration: a named integer type with a
// String method. Enumerations are emitted by their symbolic name.
func isEnum(typ reflect.Type) bool {
	switch typ.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return typ.PkgPath() != "" && typ.Implements(typeStringer)
	}
	return false
}

// kindStrategy returns the strategy for plain Go kinds.
func kindStrategy(typ reflect.Type) (strategy, bool) {
	switch typ.Kind() {
	case reflect.Bool:
		return strategy{emit: (*Encoder).saveBool}, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strategy{emit: (*Encoder).saveInt}, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strategy{emit: (*Encoder).saveUint}, true
	case reflect.Float32, reflect.Float64:
		return strategy{emit: (*Encoder).saveFloat}, true
	case reflect.Complex64, reflect.Complex128:
		return strategy{emit: (*Encoder).saveComplex}, true
	case reflect.String:
		return strategy{emit: (*Encoder).saveString}, true

	case reflect.Slice:
		if typ.Elem().Kind() == reflect.Uint8 {
			return strategy{emit: (*Encoder).saveByteArray}, true
		}
		return strategy{emit: (*Encoder).saveEmptyList, fill: (*Encoder).fillList}, true

	case reflect.Array:
		return arrayStrategy(typ.Elem()), true

	case reflect.Map:
		if elem := typ.Elem(); elem.Kind() == reflect.Struct && elem.NumField() == 0 {
			return strategy{emit: (*Encoder).saveGoSet}, true
		}
		return strategy{emit: (*Encoder).saveEmptyDict, fill: (*Encoder).fillMap}, true

	case reflect.Struct:
		return strategy{emit: (*Encoder).saveObjectShell, fill: (*Encoder).fillObject}, true
	}
	return strategy{}, false
}

// arrayStrategy returns the strategy for Go arrays with elements of type elem.
func arrayStrategy(elem reflect.Type) strategy {
	switch {
	case elem.Kind() == reflect.Uint8:
		return strategy{emit: (*Encoder).saveByteArray, array: true}
	case elem == typeChar:
		return strategy{emit: (*Encoder).saveCharArray, array: true}
	case arrayTypecode(elem) != 0:
		return strategy{emit: (*Encoder).saveTypedArray, array: true}
	}
	return strategy{emit: (*Encoder).saveTuple, array: true}
}

// pickleWriter appends to the pickle being built.
type pickleWriter struct {
	e *Encoder
}

func (w pickleWriter) Write(p []byte) (int, error) {
	w.e.out = append(w.e.out, p...)
	return len(p), nil
}

// ---- opcode emission ----

func (e *Encoder) emit(ops ...byte) {
	e.out = append(e.out, ops...)
}

// emitInt emits v with the shortest of BININT1, BININT2, BININT and INT.
func (e *Encoder) emitInt(v int64) {
	switch {
	case 0 <= v && v <= math.MaxUint8:
		e.out = append(e.out, opBinint1, byte(v))
	case 0 <= v && v <= math.MaxUint16:
		e.out = append(e.out, opBinint2)
		e.out = appendUint16(e.out, uint16(v))
	case math.MinInt32 <= v && v <= math.MaxInt32:
		e.out = append(e.out, opBinint)
		e.out = appendInt32(e.out, int32(v))
	default:
		e.out = append(e.out, opInt)
		e.out = appendDecimalLine(e.out, strconv.FormatInt(v, 10))
	}
}

func (e *Encoder) emitUint(v uint64) {
	if v <= math.MaxInt64 {
		e.emitInt(int64(v))
		return
	}
	e.out = append(e.out, opInt)
	e.out = appendDecimalLine(e.out, strconv.FormatUint(v, 10))
}

// emitLong emits v as Python long.
func (e *Encoder) emitLong(v *big.Int) {
	data := encodeLong(v)
	if len(data) < 256 {
		e.out = append(e.out, opLong1, byte(len(data)))
	} else {
		e.out = append(e.out, opLong4)
		e.out = appendUint32(e.out, uint32(len(data)))
	}
	e.out = append(e.out, data...)
}

func (e *Encoder) emitFloat(f float64) {
	e.out = append(e.out, opBinfloat)
	e.out = appendFloat64(e.out, f)
}

// emitUnicode emits s as BINUNICODE.
func (e *Encoder) emitUnicode(s string) {
	e.out = append(e.out, opBinunicode)
	e.out = appendCounted4(e.out, s)
}

// emitByteString emits s as SHORT_BINSTRING or BINSTRING.
func (e *Encoder) emitByteString(s string) {
	if len(s) < 256 {
		e.out = append(e.out, opShortBinstring, byte(len(s)))
		e.out = append(e.out, s...)
		return
	}
	e.out = append(e.out, opBinstring)
	e.out = appendCounted4(e.out, s)
}

func (e *Encoder) emitGlobal(class Class) {
	e.out = append(e.out, opGlobal)
	e.out = append(e.out, class.Module...)
	e.out = append(e.out, '\n')
	e.out = append(e.out, class.Name...)
	e.out = append(e.out, '\n')
}

func (e *Encoder) emitGet(slot int) {
	if slot <= math.MaxUint8 {
		e.out = append(e.out, opBinget, byte(slot))
		return
	}
	e.out = append(e.out, opLongBinget)
	e.out = appendUint32(e.out, uint32(slot))
}

func (e *Encoder) emitPut(slot int) {
	if slot <= math.MaxUint8 {
		e.out = append(e.out, opBinput, byte(slot))
		return
	}
	e.out = append(e.out, opLongBinput)
	e.out = appendUint32(e.out, uint32(slot))
}

// emitTupleOf emits TUPLE1/2/3 or TUPLE for n items already emitted; items
// beyond 3 need a MARK before them.
func (e *Encoder) emitTupleOf(n int) {
	switch n {
	case 0:
		e.emit(opEmptyTuple)
	case 1:
		e.emit(opTuple1)
	case 2:
		e.emit(opTuple2)
	case 3:
		e.emit(opTuple3)
	default:
		e.emit(opTuple)
	}
}
