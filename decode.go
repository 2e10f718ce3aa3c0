package pickle

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"strconv"
)

// Decoder is a decoder for pickle streams.
type Decoder struct {
	r      *bufio.Reader
	cr     *countingReader
	config *DecoderConfig
	stack  []any
	memo   map[int]any

	// a reusable buffer that can be used by the various decoding functions
	// functions using this should call buf.Reset to clear the old contents
	buf bytes.Buffer

	// reusable buffer for readLine
	line []byte

	// protocol version seen in last PROTO opcode; 0 by default.
	protocol int
}

// DecoderConfig allows to tune Decoder.
type DecoderConfig struct {
	// PersistentLoad, if !nil, will be used by decoder to handle persistent references.
	//
	// Whenever the decoder finds an object reference in the pickle stream
	// it will call PersistentLoad. If PersistentLoad returns !nil object
	// without error, the decoder will use that object instead of Ref in
	// the resulted built Go object.
	//
	// See Ref documentation for more details.
	PersistentLoad func(ref Ref) (any, error)

	// PyDict, when true, makes the decoder return Python dicts as Dict
	// instead of map[any]any. Dict accepts every key Python accepts,
	// Tuple included, and compares keys the way Python does.
	PyDict bool

	// StrictUnicode, when true, makes the decoder return Python2 str
	// (STRING, BINSTRING, SHORT_BINSTRING) as ByteString instead of string,
	// so that it stays distinguishable from unicode.
	StrictUnicode bool
}

// countingReader counts the bytes read from r.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// NewDecoder constructs a new Decoder which will decode the pickle stream in r.
func NewDecoder(r io.Reader) *Decoder {
	return NewDecoderWithConfig(r, &DecoderConfig{})
}

// NewDecoderWithConfig is similar to NewDecoder, but allows specifying decoder configuration.
func NewDecoderWithConfig(r io.Reader, config *DecoderConfig) *Decoder {
	if config == nil {
		config = &DecoderConfig{}
	}
	cr := &countingReader{r: r}
	return &Decoder{
		r:      bufio.NewReader(cr),
		cr:     cr,
		config: config,
		stack:  make([]any, 0),
		memo:   make(map[int]any),
	}
}

// Loads decodes one pickle from data.
//
// Dicts decode into map[any]any, so a dict keyed by a value Go maps cannot
// hold, such as a Tuple, fails to decode. Use LoadsWithConfig with PyDict set
// to decode such dicts into Dict.
func Loads(data []byte) (any, error) {
	return LoadsWithConfig(data, &DecoderConfig{})
}

// LoadsWithConfig is similar to Loads, but allows specifying decoder configuration.
func LoadsWithConfig(data []byte, config *DecoderConfig) (any, error) {
	v, err := NewDecoderWithConfig(bytes.NewReader(data), config).Decode()
	if err == io.EOF {
		err = &ProtocolError{Pos: 0, Op: opStop, Err: io.ErrUnexpectedEOF}
	}
	return v, err
}

// tell returns the offset in the input of the next byte to be decoded.
func (d *Decoder) tell() int64 {
	return d.cr.n - int64(d.r.Buffered())
}

// Decode decodes the next pickle from the stream and returns the result or an error.
//
// io.EOF is returned if the stream ends cleanly before the pickle starts.
// Malformed input is reported as *ProtocolError. A known class called
// with arguments it cannot be built from is reported as *ReconstructionError.
func (d *Decoder) Decode() (any, error) {
	d.stack = d.stack[:0]
	clear(d.memo)
	d.protocol = 0

	insn := 0
loop:
	for {
		pos := d.tell()
		key, err := d.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				if insn == 0 {
					return nil, io.EOF
				}
				err = io.ErrUnexpectedEOF
			}
			return nil, &ProtocolError{Pos: pos, Op: opStop, Err: err}
		}

		insn++

		switch key {
		case opMark:
			d.mark()
		case opStop:
			break loop
		case opPop:
			_, err = d.pop()
		case opPopMark:
			err = d.popMark()
		case opDup:
			err = d.dup()
		case opFloat:
			err = d.loadFloat()
		case opInt:
			err = d.loadInt()
		case opBinint:
			err = d.loadBinInt()
		case opBinint1:
			err = d.loadBinInt1()
		case opLong:
			err = d.loadLong()
		case opBinint2:
			err = d.loadBinInt2()
		case opNone:
			err = d.loadNone()
		case opPersid:
			err = d.loadPersid()
		case opBinpersid:
			err = d.loadBinPersid()
		case opReduce:
			err = d.reduce()
		case opString:
			err = d.loadString()
		case opBinstring:
			err = d.loadBinString()
		case opShortBinstring:
			err = d.loadShortBinString()
		case opUnicode:
			err = d.loadUnicode()
		case opBinunicode:
			err = d.loadBinUnicode()
		case opAppend:
			err = d.loadAppend()
		case opBuild:
			err = d.build()
		case opGlobal:
			err = d.global()
		case opDict:
			err = d.loadDict()
		case opEmptyDict:
			err = d.loadEmptyDict()
		case opAppends:
			err = d.loadAppends()
		case opGet:
			err = d.get()
		case opBinget:
			err = d.binGet()
		case opInst:
			err = d.inst()
		case opLong1:
			err = d.loadLong1()
		case opLong4:
			err = d.loadLong4()
		case opNewfalse:
			err = d.loadBool(false)
		case opNewtrue:
			err = d.loadBool(true)
		case opLongBinget:
			err = d.longBinGet()
		case opList:
			err = d.loadList()
		case opEmptyList:
			d.push(&List{})
		case opObj:
			err = d.obj()
		case opNewobj:
			err = d.newobj()
		case opNewobjEx:
			err = d.newobjEx()
		case opPut:
			err = d.loadPut()
		case opBinput:
			err = d.binPut()
		case opLongBinput:
			err = d.longBinPut()
		case opSetitem:
			err = d.loadSetItem()
		case opTuple:
			err = d.loadTuple()
		case opTuple1:
			err = d.loadTuple1()
		case opTuple2:
			err = d.loadTuple2()
		case opTuple3:
			err = d.loadTuple3()
		case opEmptyTuple:
			d.push(Tuple{})
		case opSetitems:
			err = d.loadSetItems()
		case opBinfloat:
			err = d.binFloat()
		case opBinbytes:
			err = d.loadBinBytes()
		case opShortBinbytes:
			err = d.loadShortBinBytes()
		case opBinbytes8:
			err = d.loadBinBytes8()
		case opFrame:
			err = d.loadFrame()
		case opShortBinUnicode:
			err = d.loadShortBinUnicode()
		case opBinunicode8:
			err = d.loadBinUnicode8()
		case opEmptySet:
			d.push(NewSet())
		case opAddItems:
			err = d.loadAddItems()
		case opFrozenSet:
			err = d.loadFrozenSet()
		case opStackGlobal:
			err = d.stackGlobal()
		case opMemoize:
			err = d.loadMemoize()
		case opBytearray8:
			err = d.loadBytearray8()
		case opExt1, opExt2, opExt4:
			err = d.loadExt(key)
		case opNextBuffer:
			err = d.loadNextBuffer()
		case opReadOnlyBuffer:
			err = d.readOnlyBuffer()
		case opProto:
			var v byte
			v, err = d.r.ReadByte()
			if err == nil && v > highestProtocol {
				// We support protocol opcodes for up to protocol 5.
				//
				// The PROTO opcode documentation says protocol version must be in [2, 256).
				// However CPython also loads PROTO with version 0 and 1 without error.
				// So we allow all supported versions as PROTO argument.
				err = ErrInvalidPickleVersion
			}
			if err == nil {
				d.protocol = int(v)
			}

		default:
			err = OpcodeError{key, insn}
		}

		if err != nil {
			var rerr *ReconstructionError
			if errors.As(err, &rerr) {
				return nil, err
			}
			if err == errNotImplemented {
				err = OpcodeError{key, insn}
			}
			// EOF from individual opcode decoder is unexpected end of stream
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, &ProtocolError{Pos: pos, Op: key, Err: err}
		}
	}

	v, err := d.popResult()
	if err != nil {
		return nil, &ProtocolError{Pos: d.tell() - 1, Op: opStop, Err: err}
	}
	return v, nil
}

// readLine reads next line from pickle stream.
//
// returned line does not contain \n.
// returned line is valid only till next call to readLine.
func (d *Decoder) readLine() ([]byte, error) {
	var (
		data []byte
		err  error
	)
	d.line = d.line[:0]
	for {
		data, err = d.r.ReadSlice('\n')
		d.line = append(d.line, data...)

		// either have read till \n or got another error
		if err != bufio.ErrBufferFull {
			break
		}
	}

	// trim trailing \n
	if l := len(d.line); l > 0 && d.line[l-1] == '\n' {
		d.line = d.line[:l-1]
	}

	return d.line, err
}

// userOK tells whether it is ok to return all objects to user.
//
// for example it is not ok to return the mark object.
func userOK(objv ...any) error {
	for _, obj := range objv {
		switch obj.(type) {
		case mark:
			return errNoMarkUse
		}
	}

	return nil
}

// Push a marker
func (d *Decoder) mark() {
	d.push(mark{})
}

// Return the position of the topmost marker
func (d *Decoder) marker() (int, error) {
	m := mark{}
	for k := len(d.stack) - 1; k >= 0; k-- {
		if d.stack[k] == m {
			return k, nil
		}
	}
	return 0, errNoMarker
}

// Append a new value
func (d *Decoder) push(v any) {
	d.stack = append(d.stack, v)
}

// Pop a value
// The returned error is errStackUnderflow if decoder stack is empty
func (d *Decoder) pop() (any, error) {
	ln := len(d.stack) - 1
	if ln < 0 {
		return nil, errStackUnderflow
	}
	v := d.stack[ln]
	d.stack = d.stack[:ln]
	return v, nil
}

// Pop a value (when you know for sure decoder stack is not empty)
func (d *Decoder) xpop() any {
	v, err := d.pop()
	if err != nil {
		panic(err)
	}
	return v
}

// popUser pops stack value and checks whether it is ok to return to user.
func (d *Decoder) popUser() (any, error) {
	v, err := d.pop()
	if err != nil {
		return nil, err
	}
	if err := userOK(v); err != nil {
		return nil, err
	}
	return v, nil
}

// popResult pops the value STOP returns. It must be the only thing left on
// the stack.
func (d *Decoder) popResult() (any, error) {
	if len(d.stack) > 1 {
		return nil, errStackLeftover
	}
	return d.popUser()
}

// Discard the stack through to the topmost marker
func (d *Decoder) popMark() error {
	k, err := d.marker()
	if err != nil {
		return err
	}
	d.stack = d.stack[:k]
	return nil
}

// Duplicate the top stack item
func (d *Decoder) dup() error {
	if len(d.stack) < 1 {
		return errStackUnderflow
	}
	d.stack = append(d.stack, d.stack[len(d.stack)-1])
	return nil
}

// Push a float
func (d *Decoder) loadFloat() error {
	line, err := d.readLine()
	if err != nil {
		return err
	}
	v, err := strconv.ParseFloat(string(line), 64)
	if err != nil {
		return err
	}
	d.push(v)
	return nil
}

// Push an int
func (d *Decoder) loadInt() error {
	line, err := d.readLine()
	if err != nil {
		return err
	}

	var val any

	switch string(line) {
	case opFalse[1:3]:
		val = false
	case opTrue[1:3]:
		val = true
	default:
		val, err = parseDecimalInt(string(line))
		if err != nil {
			return err
		}
	}

	d.push(val)
	return nil
}

// Push a four-byte signed int
func (d *Decoder) loadBinInt() error {
	var b [4]byte
	_, err := io.ReadFull(d.r, b[:])
	if err != nil {
		return err
	}
	v := binary.LittleEndian.Uint32(b[:])
	d.push(int64(int32(v))) // NOTE signed: uint32 -> int32, and only then -> int64
	return nil
}

// Push a 1-byte unsigned int
func (d *Decoder) loadBinInt1() error {
	b, err := d.r.ReadByte()
	if err != nil {
		return err
	}
	d.push(int64(b))
	return nil
}

// Push a long
func (d *Decoder) loadLong() error {
	line, err := d.readLine()
	if err != nil {
		return err
	}
	l := len(line)
	// py2 writes the L suffix, py3 may not
	if l > 0 && line[l-1] == 'L' {
		l--
	}
	v := new(big.Int)
	_, ok := v.SetString(string(line[:l]), 10)
	if !ok {
		return fmt.Errorf("loadLong: invalid string %q", line)
	}
	d.push(v)
	return nil
}

// Push a long1
func (d *Decoder) loadLong1() error {
	n, err := d.r.ReadByte()
	if err != nil {
		return err
	}
	return d.pushLong(uint64(n))
}

// Push a long4
func (d *Decoder) loadLong4() error {
	var b [4]byte
	_, err := io.ReadFull(d.r, b[:])
	if err != nil {
		return err
	}
	n := int32(binary.LittleEndian.Uint32(b[:]))
	if n < 0 {
		return fmt.Errorf("loadLong4: negative byte count %d", n)
	}
	return d.pushLong(uint64(n))
}

// pushLong reads n bytes of two's complement little-endian integer and
// pushes it. It serves LONG1 and LONG4.
func (d *Decoder) pushLong(n uint64) error {
	err := d.bufLoadBytesData(n)
	if err != nil {
		return err
	}
	v, err := decodeLong(d.buf.String())
	if err != nil {
		return err
	}
	d.push(v)
	return nil
}

// Push a 2-byte unsigned int
func (d *Decoder) loadBinInt2() error {
	var b [2]byte
	_, err := io.ReadFull(d.r, b[:])
	if err != nil {
		return err
	}
	v := binary.LittleEndian.Uint16(b[:])
	d.push(int64(v))
	return nil
}

// Push None
func (d *Decoder) loadNone() error {
	d.push(None{})
	return nil
}

// Push a persistent object id
func (d *Decoder) loadPersid() error {
	pid, err := d.readLine()
	if err != nil {
		return err
	}

	return d.handleRef(Ref{Pid: string(pid)})
}

// Push a persistent object id from items on the stack
func (d *Decoder) loadBinPersid() error {
	pid, err := d.popUser()
	if err != nil {
		return err
	}
	return d.handleRef(Ref{Pid: pid})
}

// handleRef is common place to handle Refs.
func (d *Decoder) handleRef(ref Ref) error {
	if load := d.config.PersistentLoad; load != nil {
		obj, err := load(ref)
		if err != nil {
			return fmt.Errorf("handleRef: %w", err)
		}
		if obj == nil {
			// PersistentLoad asked to leave the reference as is.
			obj = ref
		}
		d.push(obj)
	} else {
		d.push(ref)
	}
	return nil
}

func (d *Decoder) reduce() error {
	if len(d.stack) < 2 {
		return errStackUnderflow
	}
	xargs := d.xpop()
	xclass := d.xpop()
	args, ok := xargs.(Tuple)
	if !ok {
		return fmt.Errorf("reduce: invalid args: %T", xargs)
	}
	class, ok := xclass.(Class)
	if !ok {
		return fmt.Errorf("reduce: invalid class: %T", xclass)
	}
	return d.call(class, args, nil)
}

// call builds class(*args, **kwargs) and pushes the result.
func (d *Decoder) call(class Class, args Tuple, kwargs any) error {
	v, err := d.construct(class, args, kwargs)
	if err != nil {
		return err
	}
	d.push(v)
	return nil
}

// pushStr pushes Python2 str data.
func (d *Decoder) pushStr(s string) {
	if d.config.StrictUnicode {
		d.push(ByteString(s))
	} else {
		d.push(s)
	}
}

// Push a string
func (d *Decoder) loadString() error {
	line, err := d.readLine()
	if err != nil {
		return err
	}

	if len(line) < 2 {
		return io.ErrUnexpectedEOF
	}

	var delim byte
	switch line[0] {
	case '\'':
		delim = '\''
	case '"':
		delim = '"'
	default:
		return fmt.Errorf("invalid string delimiter: %c", line[0])
	}

	if line[len(line)-1] != delim {
		return io.ErrUnexpectedEOF
	}

	s, err := pydecodeStringEscape(string(line[1 : len(line)-1]))
	if err != nil {
		return err
	}

	d.pushStr(s)
	return nil
}

// bufLoadBinData4 decodes `len(LE32) [len]data` into d.buf .
// it serves loadBin{String,Bytes,Unicode}.
func (d *Decoder) bufLoadBinData4() error {
	var b [4]byte
	_, err := io.ReadFull(d.r, b[:])
	if err != nil {
		return err
	}
	v := binary.LittleEndian.Uint32(b[:])
	return d.bufLoadBytesData(uint64(v))
}

// bufLoadBinData8 decodes `len(LE64) [len]data into d.buf .
// it serves loadBytearray8, loadBinBytes8 and loadBinUnicode8.
func (d *Decoder) bufLoadBinData8() error {
	var b [8]byte
	_, err := io.ReadFull(d.r, b[:])
	if err != nil {
		return err
	}
	v := binary.LittleEndian.Uint64(b[:])
	return d.bufLoadBytesData(v)
}

// bufLoadBytesData fetches [l]data into d.buf.
func (d *Decoder) bufLoadBytesData(l uint64) error {
	d.buf.Reset()
	if l > math.MaxInt64 {
		return fmt.Errorf("size([]data) > maxint64")
	}
	// don't allow malicious `BINSTRING <bigsize> nodata` to make us out of memory
	prealloc := l
	if maxgrow := uint64(0x10000); prealloc > maxgrow {
		prealloc = maxgrow
	}
	d.buf.Grow(int(prealloc))
	n, err := io.CopyN(&d.buf, d.r, int64(l))
	if err == io.EOF && uint64(n) < l {
		err = io.ErrUnexpectedEOF
	}
	return err
}

// bufLoadShortBinBytes decodes `len(U8) [len]data` into d.buf .
// it serves loadShortBin{String,Bytes,Unicode} .
func (d *Decoder) bufLoadShortBinBytes() error {
	b, err := d.r.ReadByte()
	if err != nil {
		return err
	}
	return d.bufLoadBytesData(uint64(b))
}

func (d *Decoder) loadBinString() error {
	var b [4]byte
	_, err := io.ReadFull(d.r, b[:])
	if err != nil {
		return err
	}
	n := int32(binary.LittleEndian.Uint32(b[:]))
	if n < 0 {
		return fmt.Errorf("loadBinString: negative length %d", n)
	}
	err = d.bufLoadBytesData(uint64(n))
	if err != nil {
		return err
	}
	d.pushStr(d.buf.String())
	return nil
}

func (d *Decoder) loadShortBinString() error {
	err := d.bufLoadShortBinBytes()
	if err != nil {
		return err
	}
	d.pushStr(d.buf.String())
	return nil
}

func (d *Decoder) loadBinBytes() error {
	err := d.bufLoadBinData4()
	if err != nil {
		return err
	}
	d.push(Bytes(d.buf.Bytes()))
	return nil
}

func (d *Decoder) loadShortBinBytes() error {
	err := d.bufLoadShortBinBytes()
	if err != nil {
		return err
	}
	d.push(Bytes(d.buf.Bytes()))
	return nil
}

func (d *Decoder) loadBinBytes8() error {
	err := d.bufLoadBinData8()
	if err != nil {
		return err
	}
	d.push(Bytes(d.buf.Bytes()))
	return nil
}

func (d *Decoder) loadUnicode() error {
	line, err := d.readLine()
	if err != nil {
		return err
	}

	text, err := pydecodeRawUnicodeEscape(string(line))
	if err != nil {
		return err
	}

	d.push(text)
	return nil
}

func (d *Decoder) loadBinUnicode() error {
	err := d.bufLoadBinData4()
	if err != nil {
		return err
	}
	d.push(d.buf.String())
	return nil
}

func (d *Decoder) loadShortBinUnicode() error {
	err := d.bufLoadShortBinBytes()
	if err != nil {
		return err
	}
	d.push(d.buf.String())
	return nil
}

func (d *Decoder) loadBinUnicode8() error {
	err := d.bufLoadBinData8()
	if err != nil {
		return err
	}
	d.push(d.buf.String())
	return nil
}

func (d *Decoder) loadAppend() error {
	if len(d.stack) < 2 {
		return errStackUnderflow
	}
	v := d.xpop()
	l := d.stack[len(d.stack)-1]
	if err := userOK(v); err != nil {
		return err
	}
	switch l := l.(type) {
	case *List:
		*l = append(*l, v)
	default:
		return fmt.Errorf("loadAppend: expected a list, got %T", l)
	}
	return nil
}

// build applies BUILD state to the object below it.
//
// Only generic mappings take state: a dict state, or the dict parts of a
// (state, slotstate) pair, are merged in. None state is a no-op.
func (d *Decoder) build() error {
	if len(d.stack) < 2 {
		return errStackUnderflow
	}
	state := d.xpop()
	inst := d.stack[len(d.stack)-1]
	if err := userOK(state, inst); err != nil {
		return err
	}
	return d.applyState(inst, state)
}

func (d *Decoder) global() error {
	module, err := d.readLine()
	if err != nil {
		return err
	}
	smodule := string(module)
	name, err := d.readLine()
	if err != nil {
		return err
	}
	sname := string(name)
	d.push(Class{Module: smodule, Name: sname})
	return nil
}

// mapTryAssign tries to do `m[key] = value`.
//
// It checks whether key is of appropriate type, and if yes - succeeds.
// If key is not appropriate - the map stays unchanged and false is returned.
func mapTryAssign(m map[any]any, key, value any) (ok bool) {
	// lists and dicts are hashable in Go, by pointer, but not in Python
	switch key.(type) {
	case *List, Dict, Set:
		return false
	}

	// use panic/recover to detect inappropriate keys.
	//
	// We could try to use reflect.TypeOf(key).Comparable() instead, but that
	// is not generally enough: with Comparable, key type structure has to
	// be manually walked recursively and each subfield checked for
	// comparability. -> panic/recover is simpler to use instead.
	defer func() {
		// on invalid dynamic key type runtime panics like below:
		//
		//	`panic: runtime error: hash of unhashable type []interface {}`
		//
		// we don't try to detect the exact message as mapTryAssign does
		// only 1 operation.
		if r := recover(); r != nil {
			ok = false
		}
	}()

	m[key] = value
	ok = true
	return
}

// dictTryAssign is mapTryAssign for Dict.
func dictTryAssign(m Dict, key, value any) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	m.Set(key, value)
	return true
}

// setTryAdd adds item to s unless item is unhashable.
func setTryAdd(s Set, item any) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	s.Add(item)
	return true
}

// newDict returns an empty dict in the representation selected by config.
func (d *Decoder) newDict(size int) any {
	if d.config.PyDict {
		return NewDictWithSizeHint(size)
	}
	return make(map[any]any, size)
}

// dictAssign does dict[key] = value for both dict representations.
func dictAssign(dict, key, value any) error {
	switch m := dict.(type) {
	case map[any]any:
		if !mapTryAssign(m, key, value) {
			return fmt.Errorf("invalid key type %T", key)
		}
	case Dict:
		if !dictTryAssign(m, key, value) {
			return fmt.Errorf("invalid key type %T", key)
		}
	default:
		return fmt.Errorf("expected a dict, got %T", dict)
	}
	return nil
}

func (d *Decoder) loadDict() error {
	k, err := d.marker()
	if err != nil {
		return err
	}

	items := d.stack[k+1:]
	if len(items)%2 != 0 {
		return fmt.Errorf("loadDict: odd # of elements")
	}
	m := d.newDict(len(items) / 2)
	for i := 0; i < len(items); i += 2 {
		if err := dictAssign(m, items[i], items[i+1]); err != nil {
			return fmt.Errorf("loadDict: %w", err)
		}
	}
	d.stack = append(d.stack[:k], m)
	return nil
}

func (d *Decoder) loadEmptyDict() error {
	d.push(d.newDict(0))
	return nil
}

func (d *Decoder) loadAppends() error {
	k, err := d.marker()
	if err != nil {
		return err
	}
	if k < 1 {
		return errStackUnderflow
	}

	switch l := d.stack[k-1].(type) {
	case *List:
		*l = append(*l, d.stack[k+1:]...)
		d.stack = d.stack[:k]
	default:
		return fmt.Errorf("loadAppends: expected a list, got %T", l)
	}
	return nil
}

// memoGet pushes memo[key].
func (d *Decoder) memoGet(key int) error {
	v, ok := d.memo[key]
	if !ok {
		return fmt.Errorf("memo: key error %d", key)
	}
	d.push(v)
	return nil
}

func (d *Decoder) get() error {
	line, err := d.readLine()
	if err != nil {
		return err
	}
	key, err := strconv.Atoi(string(line))
	if err != nil {
		return fmt.Errorf("memo: invalid key %q", line)
	}
	return d.memoGet(key)
}

func (d *Decoder) binGet() error {
	b, err := d.r.ReadByte()
	if err != nil {
		return err
	}
	return d.memoGet(int(b))
}

func (d *Decoder) longBinGet() error {
	var b [4]byte
	_, err := io.ReadFull(d.r, b[:])
	if err != nil {
		return err
	}
	return d.memoGet(int(binary.LittleEndian.Uint32(b[:])))
}

// inst handles INST: module and name as text lines, args from the topmost mark.
func (d *Decoder) inst() error {
	module, err := d.readLine()
	if err != nil {
		return err
	}
	smodule := string(module)
	name, err := d.readLine()
	if err != nil {
		return err
	}
	class := Class{Module: smodule, Name: string(name)}

	k, err := d.marker()
	if err != nil {
		return err
	}
	args := append(Tuple{}, d.stack[k+1:]...)
	d.stack = d.stack[:k]
	return d.call(class, args, nil)
}

// obj handles OBJ: class and args above the topmost mark.
func (d *Decoder) obj() error {
	k, err := d.marker()
	if err != nil {
		return err
	}
	if len(d.stack) < k+2 {
		return errStackUnderflow
	}
	xclass := d.stack[k+1]
	class, ok := xclass.(Class)
	if !ok {
		return fmt.Errorf("obj: invalid class: %T", xclass)
	}
	args := append(Tuple{}, d.stack[k+2:]...)
	d.stack = d.stack[:k]
	return d.call(class, args, nil)
}

// newobj handles NEWOBJ: cls.__new__(cls, *args).
func (d *Decoder) newobj() error {
	if len(d.stack) < 2 {
		return errStackUnderflow
	}
	xargs := d.xpop()
	xclass := d.xpop()
	args, ok := xargs.(Tuple)
	if !ok {
		return fmt.Errorf("newobj: invalid args: %T", xargs)
	}
	class, ok := xclass.(Class)
	if !ok {
		return fmt.Errorf("newobj: invalid class: %T", xclass)
	}
	return d.call(class, args, nil)
}

// newobjEx handles NEWOBJ_EX: cls.__new__(cls, *args, **kwargs).
func (d *Decoder) newobjEx() error {
	if len(d.stack) < 3 {
		return errStackUnderflow
	}
	kwargs := d.xpop()
	xargs := d.xpop()
	xclass := d.xpop()
	args, ok := xargs.(Tuple)
	if !ok {
		return fmt.Errorf("newobj_ex: invalid args: %T", xargs)
	}
	class, ok := xclass.(Class)
	if !ok {
		return fmt.Errorf("newobj_ex: invalid class: %T", xclass)
	}
	switch kwargs.(type) {
	case map[any]any, Dict:
	default:
		return fmt.Errorf("newobj_ex: invalid kwargs: %T", kwargs)
	}
	return d.call(class, args, kwargs)
}

func (d *Decoder) loadBool(b bool) error {
	d.push(b)
	return nil
}

func (d *Decoder) loadList() error {
	k, err := d.marker()
	if err != nil {
		return err
	}

	v := append(List{}, d.stack[k+1:]...)
	d.stack = append(d.stack[:k], &v)
	return nil
}

func (d *Decoder) loadTuple() error {
	k, err := d.marker()
	if err != nil {
		return err
	}

	v := append(Tuple{}, d.stack[k+1:]...)
	d.stack = append(d.stack[:k], v)
	return nil
}

// tupleN(n) creates tuple from top n stack objects.
// it serves TUPLE{1,2,3} opcode handlers.
func (d *Decoder) tupleN(n int) error {
	if len(d.stack) < n {
		return errStackUnderflow
	}
	k := len(d.stack) - n
	if err := userOK(d.stack[k:]...); err != nil {
		return err
	}
	v := append(Tuple{}, d.stack[k:]...)
	d.stack = append(d.stack[:k], v)
	return nil
}

func (d *Decoder) loadTuple1() error {
	return d.tupleN(1)
}

func (d *Decoder) loadTuple2() error {
	return d.tupleN(2)
}

func (d *Decoder) loadTuple3() error {
	return d.tupleN(3)
}

// memoTop puts top of the stack into memo[key]; the stack is not changed.
// it is the worker for handling PUT, BINPUT, ... opcodes
func (d *Decoder) memoTop(key int) error {
	if len(d.stack) < 1 {
		return errStackUnderflow
	}

	obj := d.stack[len(d.stack)-1]
	if err := userOK(obj); err != nil {
		return err
	}

	d.memo[key] = obj
	return nil
}

func (d *Decoder) loadPut() error {
	line, err := d.readLine()
	if err != nil {
		return err
	}
	key, err := strconv.Atoi(string(line))
	if err != nil {
		return fmt.Errorf("memo: invalid key %q", line)
	}
	return d.memoTop(key)
}

func (d *Decoder) binPut() error {
	b, err := d.r.ReadByte()
	if err != nil {
		return err
	}
	return d.memoTop(int(b))
}

func (d *Decoder) longBinPut() error {
	var b [4]byte
	_, err := io.ReadFull(d.r, b[:])
	if err != nil {
		return err
	}
	return d.memoTop(int(binary.LittleEndian.Uint32(b[:])))
}

func (d *Decoder) loadSetItem() error {
	if len(d.stack) < 3 {
		return errStackUnderflow
	}
	v := d.xpop()
	k := d.xpop()
	if err := userOK(k, v); err != nil {
		return err
	}
	if err := dictAssign(d.stack[len(d.stack)-1], k, v); err != nil {
		return fmt.Errorf("loadSetItem: %w", err)
	}
	return nil
}

func (d *Decoder) loadSetItems() error {
	k, err := d.marker()
	if err != nil {
		return err
	}
	if k < 1 {
		return errStackUnderflow
	}

	m := d.stack[k-1]
	if (len(d.stack)-(k+1))%2 != 0 {
		return fmt.Errorf("loadSetItems: odd # of elements")
	}
	for i := k + 1; i < len(d.stack); i += 2 {
		if err := dictAssign(m, d.stack[i], d.stack[i+1]); err != nil {
			return fmt.Errorf("loadSetItems: %w", err)
		}
	}
	d.stack = d.stack[:k]
	return nil
}

func (d *Decoder) binFloat() error {
	var b [8]byte
	_, err := io.ReadFull(d.r, b[:])
	if err != nil {
		return err
	}
	u := binary.BigEndian.Uint64(b[:])
	d.push(math.Float64frombits(u))
	return nil
}

// loadFrame discards the framing opcode+information, this information is useful to do one large read (instead of many small reads)
// https://www.python.org/dev/peps/pep-3154/#framing
func (d *Decoder) loadFrame() error {
	var b [8]byte
	_, err := io.ReadFull(d.r, b[:])
	if err != nil {
		return err
	}
	return nil
}

// loadAddItems adds items above the topmost mark to the set below it.
func (d *Decoder) loadAddItems() error {
	k, err := d.marker()
	if err != nil {
		return err
	}
	if k < 1 {
		return errStackUnderflow
	}

	s, ok := d.stack[k-1].(Set)
	if !ok {
		return fmt.Errorf("loadAddItems: expected a set, got %T", d.stack[k-1])
	}
	for _, item := range d.stack[k+1:] {
		if !setTryAdd(s, item) {
			return fmt.Errorf("loadAddItems: unhashable item %T", item)
		}
	}
	d.stack = d.stack[:k]
	return nil
}

func (d *Decoder) loadFrozenSet() error {
	k, err := d.marker()
	if err != nil {
		return err
	}

	s := NewSet()
	for _, item := range d.stack[k+1:] {
		if !setTryAdd(s, item) {
			return fmt.Errorf("loadFrozenSet: unhashable item %T", item)
		}
	}
	d.stack = append(d.stack[:k], s)
	return nil
}

func (d *Decoder) stackGlobal() error {
	if len(d.stack) < 2 {
		return errStackUnderflow
	}
	xname := d.xpop()
	xmodule := d.xpop()

	name, err := AsString(xname)
	if err != nil {
		return fmt.Errorf("stackGlobal: invalid name: %T", xname)
	}
	module, err := AsString(xmodule)
	if err != nil {
		return fmt.Errorf("stackGlobal: invalid module: %T", xmodule)
	}

	d.push(Class{Module: module, Name: name})
	return nil
}

func (d *Decoder) loadMemoize() error {
	return d.memoTop(len(d.memo))
}

func (d *Decoder) loadBytearray8() error {
	err := d.bufLoadBinData8()
	if err != nil {
		return err
	}
	d.push(d.buf.Bytes())
	d.buf = bytes.Buffer{} // fully reset .buf to unalias just pushed []byte
	return nil
}

// loadExt rejects EXT1, EXT2 and EXT4: there is no extension registry.
func (d *Decoder) loadExt(op byte) error {
	var n int
	switch op {
	case opExt1:
		n = 1
	case opExt2:
		n = 2
	default:
		n = 4
	}
	var b [4]byte
	_, err := io.ReadFull(d.r, b[:n])
	if err != nil {
		return err
	}
	return fmt.Errorf("%s: extension registry is not supported (code %d)",
		opcodeName(op), binary.LittleEndian.Uint32(b[:]))
}

func (d *Decoder) loadNextBuffer() error {
	return fmt.Errorf("next_buffer: no out-of-band data")
}

func (d *Decoder) readOnlyBuffer() error {
	return fmt.Errorf("read_only_buffer: stack top is not buffer")
}

// unquoteChar is like strconv.UnquoteChar, but returns io.ErrUnexpectedEOF
// instead of strconv.ErrSyntax, when input is prematurely terminted.
//
// XXX remove if ever something like https://golang.org/cl/37052 is accepted.
func unquoteChar(s string, quote byte) (value rune, multibyte bool, tail string, err error) {
	if s == "" {
		return 0, false, "", io.ErrUnexpectedEOF
	}

	value, multibyte, tail, err = strconv.UnquoteChar(s, quote)
	if err == nil {
		return
	}

	// now we have to find out whether it was due to input cut.
	if len(s) > 10 { // \U12345678
		return
	}

	// + "0"*9 should make s valid if it was cut, e.g. "\U012" becomes "\U012000000000".
	// On the other hand, if s was invalid, e.g. "\Uz"
	// it will remain invaild even with the suffix.
	_, _, _, err2 := strconv.UnquoteChar(s+"000000000", quote)
	if err2 == nil {
		err = io.ErrUnexpectedEOF
	}

	return
}
