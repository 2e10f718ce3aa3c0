package pickle

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDis(t *testing.T) {
	testv := []struct {
		name    string
		input   string
		listing string
	}{
		{
			"list",
			"\x80\x02]q\x00(K\x01X\x03\x00\x00\x00abce.",
			`    0: PROTO 2
    2: EMPTY_LIST
    3: BINPUT 0
    5: MARK
    6:   BININT1 1
    8:   BINUNICODE "abc"
   16: APPENDS
   17: STOP
`,
		},
		{
			"global + reduce",
			"cfoo\nbar\n)R.",
			`    0: GLOBAL "foo bar"
    9: EMPTY_TUPLE
   10: REDUCE
   11: STOP
`,
		},
		{
			"arguments",
			"\x80\x02(I5\nF1.5\nG?\xf8\x00\x00\x00\x00\x00\x00\x8a\x02\x00\xffU\x02abM\x01\x01J\xff\xff\xff\xffS'a'\nVb\nt.",
			`    0: PROTO 2
    2: MARK
    3:   INT 5
    6:   FLOAT 1.5
   11:   BINFLOAT 1.5
   20:   LONG1 -256
   24:   SHORT_BINSTRING "ab"
   28:   BININT2 257
   31:   BININT -1
   36:   STRING "'a'"
   41:   UNICODE "b"
   44: TUPLE
   45: STOP
`,
		},
		{
			"nested marks",
			"((K\x01t(K\x02tt.",
			`    0: MARK
    1:   MARK
    2:     BININT1 1
    4:   TUPLE
    5:   MARK
    6:     BININT1 2
    8:   TUPLE
    9: TUPLE
   10: STOP
`,
		},
		{
			"stops at STOP",
			"N.garbage",
			`    0: NONE
    1: STOP
`,
		},
	}

	for _, tt := range testv {
		t.Run(tt.name, func(t *testing.T) {
			var out strings.Builder
			err := Dis(&out, strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.listing, out.String())
		})
	}
}

func TestDisError(t *testing.T) {
	testv := []struct {
		input string
		pos   int64
		cause error
	}{
		{"", 0, io.ErrUnexpectedEOF},
		{"N", 1, io.ErrUnexpectedEOF},
		{"X\x05\x00\x00\x00ab", 0, io.ErrUnexpectedEOF},
		{"cfoo\n", 0, io.ErrUnexpectedEOF},
		{"NN\xff.", 2, OpcodeError{Key: 0xff, Pos: 2}},
	}

	for _, tt := range testv {
		t.Run(fmt.Sprintf("%q", tt.input), func(t *testing.T) {
			var out bytes.Buffer
			err := Dis(&out, strings.NewReader(tt.input))
			var perr *ProtocolError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.pos, perr.Pos)
			assert.ErrorIs(t, err, tt.cause)
		})
	}

	t.Run("negative length", func(t *testing.T) {
		err := Dis(io.Discard, strings.NewReader("T\xff\xff\xff\xff."))
		var perr *ProtocolError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, opBinstring, perr.Op)
	})
}

// every test pickle can be disassembled, also the ones the decoder rejects
// for reasons other than malformed opcodes.
func TestDisDecodeTests(t *testing.T) {
	for _, test := range decodeTests {
		for _, pickle := range test.picklev {
			err := Dis(io.Discard, strings.NewReader(pickle.data))
			if err != nil {
				t.Errorf("%s: %q: %s", test.name, pickle.data, err)
			}
		}
	}

	for _, input := range []string{"K\x01K\x02.", ".", "(."} {
		assert.NoError(t, Dis(io.Discard, strings.NewReader(input)), "%q", input)
	}
}

func TestDisEncoded(t *testing.T) {
	data, err := Dumps(map[string]any{"a": []any{1, "x"}, "b": NewSet(int64(1))})
	require.NoError(t, err)

	var out strings.Builder
	require.NoError(t, Dis(&out, bytes.NewReader(data)))
	listing := out.String()
	assert.True(t, strings.HasPrefix(listing, "    0: PROTO 2\n"), listing)
	assert.True(t, strings.HasSuffix(listing, ": STOP\n"), listing)
	assert.Contains(t, listing, `GLOBAL "__builtin__ set"`)
}
