package pickle

import (
	"fmt"
)

// None is a representation of Python's None.
type None struct{}

// Tuple is a representation of Python's tuple.
//
// On encoding a Tuple is a fixed-size array: it is emitted with the TUPLE*
// opcodes and cannot contain itself.
type Tuple []any

// List is a representation of Python's list.
//
// The decoder returns lists as *List so that a list can be shared between
// several places in the decoded graph, including itself.
type List []any

// Bytes represents Python's bytes.
type Bytes string

// ByteString represents str from Python2 in StrictUnicode mode.
//
// On encoding it is emitted with the SHORT_BINSTRING/BINSTRING opcodes.
type ByteString string

// Char is a single text character.
//
// It is encoded as a one character unicode string, and a fixed array of Char
// collapses to one string.
type Char rune

// Class represents a Python class.
type Class struct {
	Module, Name string
}

// String returns the dotted class path, e.g. "datetime.datetime".
func (c Class) String() string {
	return c.Module + "." + c.Name
}

// Call represents Python's call: Callable(*Args).
//
// Encoding a Call emits GLOBAL + args + REDUCE.
type Call struct {
	Callable Class
	Args     Tuple
}

// Ref is the default representation for a Python persistent reference.
//
// Such references are used when one pickle somehow references another pickle
// in e.g. a database.
//
// See DecoderConfig.PersistentLoad and EncoderConfig.PersistentRef for ways to
// tune Decoder and Encoder to handle persistent references with user-specified
// application logic.
type Ref struct {
	// persistent ID of referenced object.
	Pid any
}

// mark is the special marker pushed by MARK.
type mark struct{}

// classKey is the reserved mapping key naming the class of a generic object.
const classKey = "__class__"

// argsKey is the mapping key holding constructor arguments of an unknown
// class that are not dict-shaped.
const argsKey = "__args__"

// pybuiltin returns Class corresponding to Python builtin name.
func pybuiltin(protocol int, name string) Class {
	module := "builtins" // py3
	if protocol <= 2 {
		module = "__builtin__" // py2
	}

	return Class{Module: module, Name: name}
}

// GoString makes %#v of Bytes show its type.
func (b Bytes) GoString() string {
	return fmt.Sprintf("pickle.Bytes(%q)", string(b))
}

// GoString makes %#v of ByteString show its type.
func (s ByteString) GoString() string {
	return fmt.Sprintf("pickle.ByteString(%q)", string(s))
}

// GoString makes %#v of Char read like a rune literal.
func (c Char) GoString() string {
	return fmt.Sprintf("pickle.Char(%q)", rune(c))
}
