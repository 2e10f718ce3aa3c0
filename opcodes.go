package pickle

// Opcodes
const (
	// Protocol 0

	opMark     byte = '(' // push special markobject on stack
	opStop     byte = '.' // every pickle ends with STOP
	opPop      byte = '0' // discard topmost stack item
	opDup      byte = '2' // duplicate top stack item
	opFloat    byte = 'F' // push float object; decimal string argument
	opInt      byte = 'I' // push integer or bool; decimal string argument
	opLong     byte = 'L' // push long; decimal string argument
	opNone     byte = 'N' // push None
	opPersid   byte = 'P' // push persistent object; id is taken from string arg
	opReduce   byte = 'R' // apply callable to argtuple, both on stack
	opString   byte = 'S' // push string; NL-terminated string argument
	opUnicode  byte = 'V' // push Unicode string; raw-unicode-escaped"d argument
	opAppend   byte = 'a' // append stack top to list below it
	opBuild    byte = 'b' // call __setstate__ or __dict__.update()
	opGlobal   byte = 'c' // push self.find_class(modname, name); 2 string args
	opDict     byte = 'd' // build a dict from stack items
	opGet      byte = 'g' // push item from memo on stack; index is string arg
	opInst     byte = 'i' // build & push class instance
	opList     byte = 'l' // build list from topmost stack items
	opPut      byte = 'p' // store stack top in memo; index is string arg
	opSetitem  byte = 's' // add key+value pair to dict
	opTuple    byte = 't' // build tuple from topmost stack items

	opTrue  = "I01\n" // not an opcode; see INT docs in pickletools.py
	opFalse = "I00\n" // not an opcode; see INT docs in pickletools.py

	// Protocol 1

	opPopMark        byte = '1' // discard stack top through topmost markobject
	opBinint         byte = 'J' // push four-byte signed int
	opBinint1        byte = 'K' // push 1-byte unsigned int
	opBinint2        byte = 'M' // push 2-byte unsigned int
	opBinpersid      byte = 'Q' // push persistent object; id is taken from stack
	opBinstring      byte = 'T' // push string; counted binary string argument
	opShortBinstring byte = 'U' //  "     "   ;    "      "       "      " < 256 bytes
	opBinunicode     byte = 'X' // push Unicode string; counted UTF-8 string argument
	opAppends        byte = 'e' // extend list on stack by topmost stack slice
	opBinget         byte = 'h' // push item from memo on stack; index is 1-byte arg
	opLongBinget     byte = 'j' //  "    "    "    "    "   "  ;   "    " 4-byte arg
	opEmptyList      byte = ']' // push empty list
	opEmptyTuple     byte = ')' // push empty tuple
	opEmptyDict      byte = '}' // push empty dict
	opObj            byte = 'o' // build & push class instance
	opBinput         byte = 'q' // store stack top in memo; index is 1-byte arg
	opLongBinput     byte = 'r' //   "     "    "   "   " ;   "    " 4-byte arg
	opSetitems       byte = 'u' // modify dict by adding topmost key+value pairs
	opBinfloat       byte = 'G' // push float; arg is 8-byte float encoding

	// Protocol 2

	opProto    byte = '\x80' // identify pickle protocol
	opNewobj   byte = '\x81' // build object by applying cls.__new__ to argtuple
	opExt1     byte = '\x82' // push object from extension registry; 1-byte index
	opExt2     byte = '\x83' // ditto, but 2-byte index
	opExt4     byte = '\x84' // ditto, but 4-byte index
	opTuple1   byte = '\x85' // build 1-tuple from stack top
	opTuple2   byte = '\x86' // build 2-tuple from two topmost stack items
	opTuple3   byte = '\x87' // build 3-tuple from three topmost stack items
	opNewtrue  byte = '\x88' // push True
	opNewfalse byte = '\x89' // push False
	opLong1    byte = '\x8a' // push long from < 256 bytes
	opLong4    byte = '\x8b' // push really big long

	// Protocol 3

	opBinbytes      byte = 'B' // push a Python bytes object (len ule32; [len]data)
	opShortBinbytes byte = 'C' //  "     "      "      "     (len ule8; [len]data)

	// Protocol 4

	opShortBinUnicode byte = '\x8c' // push short string; UTF-8 length < 256 bytes
	opBinunicode8     byte = '\x8d' // push Unicode string (len ule64; [len]data)
	opBinbytes8       byte = '\x8e' // push a Python bytes object (len ule64; [len]data)
	opEmptySet        byte = '\x8f' // push empty set
	opAddItems        byte = '\x90' // add items to existing set
	opFrozenSet       byte = '\x91' // build a frozenset out of mark..top
	opNewobjEx        byte = '\x92' // build object: cls argv kw -> cls.__new__(*argv, **kw)
	opStackGlobal     byte = '\x93' // same as OpGlobal but using names on the stacks
	opMemoize         byte = '\x94' // store top of the stack in memo
	opFrame           byte = '\x95' // indicate the beginning of a new frame

	// Protocol 5

	opBytearray8     byte = '\x96' // push a Python bytearray object (len ule64; [len]data)
	opNextBuffer     byte = '\x97' // push next out-of-band buffer
	opReadOnlyBuffer byte = '\x98' // turn out-of-band buffer at stack top to be read-only
)

// highestProtocol is the highest PROTO version the decoder accepts.
const highestProtocol = 5

// encodeProtocol is the protocol version the encoder produces.
const encodeProtocol = 2

// argKind describes how the argument of an opcode is laid out in the stream.
type argKind int

const (
	argNone    argKind = iota
	argUint1           // 1 byte
	argUint2           // 2 bytes LE
	argInt4            // 4 bytes LE signed
	argUint4           // 4 bytes LE unsigned
	argUint8           // 8 bytes LE unsigned
	argLine            // text up to \n
	argLine2           // two \n-terminated lines: module, name
	argFloat8          // 8 bytes BE IEEE-754
	argBytes1          // 1-byte length + data
	argBytes4          // 4-byte LE length + data
	argBytes8          // 8-byte LE length + data
	argLong1           // 1-byte length + two's complement LE
	argLong4           // 4-byte length + two's complement LE
)

// opcodeInfo is the static description of one opcode.
type opcodeInfo struct {
	name  string
	arg   argKind
	proto int
}

// opcodeTable describes every opcode the decoder knows. The disassembler is
// driven by it.
var opcodeTable = map[byte]opcodeInfo{
	opMark:    {"MARK", argNone, 0},
	opStop:    {"STOP", argNone, 0},
	opPop:     {"POP", argNone, 0},
	opDup:     {"DUP", argNone, 0},
	opFloat:   {"FLOAT", argLine, 0},
	opInt:     {"INT", argLine, 0},
	opLong:    {"LONG", argLine, 0},
	opNone:    {"NONE", argNone, 0},
	opPersid:  {"PERSID", argLine, 0},
	opReduce:  {"REDUCE", argNone, 0},
	opString:  {"STRING", argLine, 0},
	opUnicode: {"UNICODE", argLine, 0},
	opAppend:  {"APPEND", argNone, 0},
	opBuild:   {"BUILD", argNone, 0},
	opGlobal:  {"GLOBAL", argLine2, 0},
	opDict:    {"DICT", argNone, 0},
	opGet:     {"GET", argLine, 0},
	opInst:    {"INST", argLine2, 0},
	opList:    {"LIST", argNone, 0},
	opPut:     {"PUT", argLine, 0},
	opSetitem: {"SETITEM", argNone, 0},
	opTuple:   {"TUPLE", argNone, 0},

	opPopMark:        {"POP_MARK", argNone, 1},
	opBinint:         {"BININT", argInt4, 1},
	opBinint1:        {"BININT1", argUint1, 1},
	opBinint2:        {"BININT2", argUint2, 1},
	opBinpersid:      {"BINPERSID", argNone, 1},
	opBinstring:      {"BINSTRING", argBytes4, 1},
	opShortBinstring: {"SHORT_BINSTRING", argBytes1, 1},
	opBinunicode:     {"BINUNICODE", argBytes4, 1},
	opAppends:        {"APPENDS", argNone, 1},
	opBinget:         {"BINGET", argUint1, 1},
	opLongBinget:     {"LONG_BINGET", argUint4, 1},
	opEmptyList:      {"EMPTY_LIST", argNone, 1},
	opEmptyTuple:     {"EMPTY_TUPLE", argNone, 1},
	opEmptyDict:      {"EMPTY_DICT", argNone, 1},
	opObj:            {"OBJ", argNone, 1},
	opBinput:         {"BINPUT", argUint1, 1},
	opLongBinput:     {"LONG_BINPUT", argUint4, 1},
	opSetitems:       {"SETITEMS", argNone, 1},
	opBinfloat:       {"BINFLOAT", argFloat8, 1},

	opProto:    {"PROTO", argUint1, 2},
	opNewobj:   {"NEWOBJ", argNone, 2},
	opExt1:     {"EXT1", argUint1, 2},
	opExt2:     {"EXT2", argUint2, 2},
	opExt4:     {"EXT4", argInt4, 2},
	opTuple1:   {"TUPLE1", argNone, 2},
	opTuple2:   {"TUPLE2", argNone, 2},
	opTuple3:   {"TUPLE3", argNone, 2},
	opNewtrue:  {"NEWTRUE", argNone, 2},
	opNewfalse: {"NEWFALSE", argNone, 2},
	opLong1:    {"LONG1", argLong1, 2},
	opLong4:    {"LONG4", argLong4, 2},

	opBinbytes:      {"BINBYTES", argBytes4, 3},
	opShortBinbytes: {"SHORT_BINBYTES", argBytes1, 3},

	opShortBinUnicode: {"SHORT_BINUNICODE", argBytes1, 4},
	opBinunicode8:     {"BINUNICODE8", argBytes8, 4},
	opBinbytes8:       {"BINBYTES8", argBytes8, 4},
	opEmptySet:        {"EMPTY_SET", argNone, 4},
	opAddItems:        {"ADDITEMS", argNone, 4},
	opFrozenSet:       {"FROZENSET", argNone, 4},
	opNewobjEx:        {"NEWOBJ_EX", argNone, 4},
	opStackGlobal:     {"STACK_GLOBAL", argNone, 4},
	opMemoize:         {"MEMOIZE", argNone, 4},
	opFrame:           {"FRAME", argUint8, 4},

	opBytearray8:     {"BYTEARRAY8", argBytes8, 5},
	opNextBuffer:     {"NEXT_BUFFER", argNone, 5},
	opReadOnlyBuffer: {"READONLY_BUFFER", argNone, 5},
}

// opcodeName returns the symbolic name of op, or its hex value if op is unknown.
func opcodeName(op byte) string {
	if info, ok := opcodeTable[op]; ok {
		return info.name
	}
	return "0x" + string("0123456789abcdef"[op>>4]) + string("0123456789abcdef"[op&0xf])
}
