package pickle

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Dis writes a symbolic listing of the pickle read from r to w, similar to
// what Python's pickletools.dis prints.
//
// Each line holds the offset of an opcode, its name and its argument. Items
// pushed after a MARK are indented until the opcode that consumes the mark.
// Dis stops after STOP. It does not execute the pickle, so it can show
// pickles Decode rejects.
func Dis(w io.Writer, r io.Reader) error {
	br := bufio.NewReader(r)
	var pos int64
	level := 0

	read := func(n int) ([]byte, error) {
		b := make([]byte, n)
		k, err := io.ReadFull(br, b)
		pos += int64(k)
		return b, err
	}
	readLine := func() (string, error) {
		line, err := br.ReadString('\n')
		pos += int64(len(line))
		if err != nil {
			return "", err
		}
		return line[:len(line)-1], nil
	}

	for {
		at := pos
		b, err := read(1)
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return &ProtocolError{Pos: at, Op: opStop, Err: err}
		}
		op := b[0]
		info, ok := opcodeTable[op]
		if !ok {
			return &ProtocolError{Pos: at, Op: op, Err: OpcodeError{Key: op, Pos: int(at)}}
		}

		arg, err := disArg(op, info.arg, read, readLine)
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return &ProtocolError{Pos: at, Op: op, Err: err}
		}

		if consumesMark(op) && level > 0 {
			level--
		}
		line := fmt.Sprintf("%5d: %s%s", at, strings.Repeat("  ", level), info.name)
		if arg != "" {
			line += " " + arg
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
		if op == opMark {
			level++
		}
		if op == opStop {
			return nil
		}
	}
}

// consumesMark tells whether op pops the stack through the topmost MARK.
func consumesMark(op byte) bool {
	switch op {
	case opTuple, opList, opDict, opAppends, opSetitems, opObj, opInst,
		opPopMark, opAddItems, opFrozenSet:
		return true
	}
	return false
}

// disArg reads and formats the argument of op.
func disArg(op byte, kind argKind, read func(int) ([]byte, error), readLine func() (string, error)) (string, error) {
	switch kind {
	case argNone:
		return "", nil

	case argUint1:
		b, err := read(1)
		if err != nil {
			return "", err
		}
		return strconv.Itoa(int(b[0])), nil

	case argUint2:
		b, err := read(2)
		if err != nil {
			return "", err
		}
		return strconv.Itoa(int(binary.LittleEndian.Uint16(b))), nil

	case argInt4:
		b, err := read(4)
		if err != nil {
			return "", err
		}
		return strconv.Itoa(int(int32(binary.LittleEndian.Uint32(b)))), nil

	case argUint4:
		b, err := read(4)
		if err != nil {
			return "", err
		}
		return strconv.FormatUint(uint64(binary.LittleEndian.Uint32(b)), 10), nil

	case argUint8:
		b, err := read(8)
		if err != nil {
			return "", err
		}
		return strconv.FormatUint(binary.LittleEndian.Uint64(b), 10), nil

	case argFloat8:
		b, err := read(8)
		if err != nil {
			return "", err
		}
		f := math.Float64frombits(binary.BigEndian.Uint64(b))
		return strconv.FormatFloat(f, 'g', -1, 64), nil

	case argLine:
		line, err := readLine()
		if err != nil {
			return "", err
		}
		switch op {
		case opString, opUnicode, opPersid:
			return pyquote(line), nil
		}
		return line, nil

	case argLine2:
		module, err := readLine()
		if err != nil {
			return "", err
		}
		name, err := readLine()
		if err != nil {
			return "", err
		}
		return pyquote(module + " " + name), nil

	case argBytes1, argLong1:
		b, err := read(1)
		if err != nil {
			return "", err
		}
		return disData(kind, read, uint64(b[0]))

	case argBytes4, argLong4:
		b, err := read(4)
		if err != nil {
			return "", err
		}
		n := binary.LittleEndian.Uint32(b)
		if int32(n) < 0 && (op == opBinstring || op == opLong4) {
			return "", fmt.Errorf("negative length %d", int32(n))
		}
		return disData(kind, read, uint64(n))

	case argBytes8:
		b, err := read(8)
		if err != nil {
			return "", err
		}
		return disData(kind, read, binary.LittleEndian.Uint64(b))
	}
	return "", fmt.Errorf("unknown argument kind %d", kind)
}

// disData reads n bytes of counted data and formats them.
func disData(kind argKind, read func(int) ([]byte, error), n uint64) (string, error) {
	// counted data is read in chunks so that a bogus length does not make
	// us allocate it all upfront
	const chunk = 0x10000
	var data []byte
	for n > 0 {
		k := min(n, chunk)
		b, err := read(int(k))
		if err != nil {
			return "", err
		}
		data = append(data, b...)
		n -= k
	}
	if kind == argLong1 || kind == argLong4 {
		v, err := decodeLong(string(data))
		if err != nil {
			return "", err
		}
		return v.String(), nil
	}
	return pyquote(string(data)), nil
}
