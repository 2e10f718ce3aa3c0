package pickle

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrInvalidPickleVersion is reported when PROTO names a version the
	// decoder does not know.
	ErrInvalidPickleVersion = errors.New("invalid pickle version")

	// ErrRecursiveArray is reported when a fixed-size array is reached again
	// while it is still being encoded. Tuples cannot be memoized before their
	// items are known, so such a cycle has no pickle representation.
	ErrRecursiveArray = errors.New("recursive array not supported, use a list")

	// ErrMaxDepth is reported when encoding nests deeper than
	// EncoderConfig.MaxDepth. This is what an unmemoized cycle ends in.
	ErrMaxDepth = errors.New("recursion too deep")
)

var (
	errNotImplemented = errors.New("unimplemented opcode")
	errNoMarker       = errors.New("no marker in stack")
	errNoMarkUse      = errors.New("MARK object cannot be exposed")
	errStackUnderflow = errors.New("stack underflow")
	errStackLeftover  = errors.New("STOP with more than one value on the stack")
)

// OpcodeError is the error that Decode returns when it sees unknown pickle opcode.
type OpcodeError struct {
	Key byte
	Pos int
}

func (e OpcodeError) Error() string {
	return fmt.Sprintf("unknown opcode %d (%c) at instruction %d: %q", e.Key, e.Key, e.Pos, e.Key)
}

// UnsupportedTypeError is returned by the encoder for values no strategy can
// represent: channels, functions, structs without exported fields, ...
type UnsupportedTypeError struct {
	Type   reflect.Type
	Reason string
}

func (e *UnsupportedTypeError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("pickle: unsupported type %v", e.Type)
	}
	return fmt.Sprintf("pickle: unsupported type %v: %s", e.Type, e.Reason)
}

// ProtocolError reports a malformed pickle stream.
//
// Pos is the offset of the offending opcode in the input and Op the opcode
// byte. Err is the underlying cause; a stream cut short wraps
// io.ErrUnexpectedEOF.
type ProtocolError struct {
	Pos int64
	Op  byte
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("pickle: at %d (opcode %q): %s", e.Pos, e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// ReconstructionError is returned when a known class is asked to be built
// from arguments it does not accept.
type ReconstructionError struct {
	Class  Class
	Reason string
}

func (e *ReconstructionError) Error() string {
	return fmt.Sprintf("pickle: cannot reconstruct %s: %s", e.Class, e.Reason)
}

// reconstructErrorf is a shorthand to build ReconstructionError.
func reconstructErrorf(class Class, format string, argv ...any) error {
	return &ReconstructionError{Class: class, Reason: fmt.Sprintf(format, argv...)}
}
