// Package pickle is a library for encoding Go values into Python's pickle
// format at protocol 2 and for decoding pickles of any protocol up to 5.
//
// The output is byte-compatible with what Pyrolite, and so Pyro, produces and
// expects on the wire.
//
// Use Dumps and Loads for one-off conversions:
//
//	data, err := pickle.Dumps(obj)
//	obj, err := pickle.Loads(data) // obj is any representing decoded Python object
//
// Use Encoder and Decoder to work with streams, for example:
//
//	e := pickle.NewEncoder(w)
//	err := e.Encode(obj)
//
//	d := pickle.NewDecoder(r)
//	obj, err := d.Decode()
//
// The following table summarizes mapping of basic types in between Python and Go:
//
//	Python	   Go
//	------	   --
//
//	None	   ↔  pickle.None
//	bool	   ↔  bool
//	int	   ↔  int64
//	int	   ←  int, intX, uintX
//	long	   ↔  *big.Int
//	float	   ↔  float64
//	float	   ←  float32
//	complex	   ↔  complex128
//	list	   ↔  *pickle.List
//	list	   ←  []T (except []byte)
//	tuple	   ↔  pickle.Tuple
//	tuple	   ←  [N]T
//	dict	   ↔  map[any]any      (pickle.Dict in PyDict mode)
//	dict	   ←  map[K]V, struct
//	set	   ↔  pickle.Set
//	set	   ←  map[K]struct{}
//
//	unicode	   ↔  string
//	str	   →  string           (pickle.ByteString in StrictUnicode mode)
//	str	   ←  pickle.ByteString
//	bytes	   ↔  pickle.Bytes
//	bytearray  ↔  []byte
//
//	datetime.datetime  ↔  time.Time
//	datetime.date      →  time.Time
//	datetime.timedelta ↔  time.Duration
//	datetime.time      →  time.Duration
//	decimal.Decimal    ↔  decimal.Decimal (github.com/shopspring/decimal)
//	array.array        ↔  []intX, []uintX, []floatX by typecode; [N]T of the same on encoding
//
// Lists are decoded as *List so that a list can be shared by several parts of
// the decoded graph, or contain itself.
//
// Go structs are encoded as dicts of their exported fields, with the
// "pkgpath.Name" of the type under the "__class__" key. Field names can be
// changed with a `pickle:"name"` tag and fields skipped with `pickle:"-"`.
//
// Named integer types implementing fmt.Stringer are treated as enumerations
// and encoded as their symbolic name.
//
//
// Classes
//
// Python classes are mapped to Class. A pickle referring to a class the
// decoder does not know is decoded into a dict with the class path under the
// "__class__" key, and the call arguments, if any, under "__args__". Unlike
// Python, decoding never runs code, so it is safe to decode pickles from
// untrusted sources.
//
// Call can be used to encode an arbitrary class call:
//
//	pickle.Call{
//		Callable: pickle.Class{Module: "decimal", Name: "Decimal"},
//		Args:     pickle.Tuple{"3.14"},
//	}
//
//
// Memoization
//
// The encoder tracks values by identity: pointers, maps, slices, non-empty
// strings, Dict and Set. A value met again is emitted as a reference to its
// first occurrence, which keeps shared values shared and lets lists and
// dicts contain themselves. Fixed-size arrays and tuples cannot contain
// themselves; encoding such a value fails with ErrRecursiveArray.
//
// Memoization can be turned off with EncoderConfig.DisableMemo. Shared
// values are then emitted as many times as they are referenced, and cyclic
// values fail with ErrMaxDepth.
//
//
// Custom picklers
//
// The encoding of a Go type can be replaced by registering an ObjectPickler
// for it, either in DefaultRegistry with RegisterCustomPickler, or in a
// Registry given to the encoder through EncoderConfig.Registry:
//
//	pickle.RegisterFunc(reg, func(p Point, w io.Writer, e *pickle.Encoder) error {
//		return e.Save(pickle.Tuple{p.X, p.Y})
//	})
//
//
// Pickle protocol versions
//
// Over the time the pickle stream format was evolving. The original protocol
// version 0 is human-readable with versions 1 and 2 extending the protocol in
// backward-compatible way with binary encodings for efficiency. Protocol
// version 2 is the highest protocol version that is understood by standard
// pickle module of Python2. Protocol versions 3, 4 and 5 added opcodes for
// bytes, sets, framing and out-of-band data. Please see
// https://docs.python.org/3/library/pickle.html#data-stream-format for details.
//
// The encoder always produces protocol 2. The decoder detects which protocol
// is being used and automatically handles all necessary details. Out-of-band
// buffers and the extension registry are not supported.
//
//
// Persistent references
//
// Pickle was originally created for serialization in ZODB (http://zodb.org)
// object database, where on-disk objects can reference each other similarly to
// how one in-RAM object can have a reference to another in-RAM object.
//
// When a pickle with such persistent reference is decoded, it is represented
// with Ref placeholder similarly to Class. However it is possible to hook
// into decoding and process such references in application specific way, for
// example loading the referenced object from the database:
//
//	d := pickle.NewDecoderWithConfig(r, &pickle.DecoderConfig{
//		PersistentLoad: ...
//	})
//	obj, err := d.Decode()
//
// Similarly, for encoding, an application can hook into serialization process
// and turn pointers to some in-RAM objects into persistent references.
//
// Please see DecoderConfig.PersistentLoad and EncoderConfig.PersistentRef for details.
//
//
// Errors
//
// Malformed input is reported as *ProtocolError carrying the offset and the
// opcode where decoding stopped; input cut short wraps io.ErrUnexpectedEOF.
// A known class called with arguments it cannot be built from is reported
// as *ReconstructionError. Values that cannot be encoded are reported as
// *UnsupportedTypeError.
//
// Dis prints a pickle opcode by opcode, which helps when looking into why a
// pickle does not decode.
package pickle
