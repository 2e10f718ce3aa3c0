package pickle

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var longTestv = []struct {
	data  string
	value int64 // converted to big.Int by test driver
}{
	{"", 0},
	{"\xff\x00", 255},
	{"\xff\x7f", 32767},
	{"\x00\xff", -256},
	{"\x00\x80", -32768},
	{"\x80", -128},
	{"\x7f", 127},
	{"\x01", 1},
	{"\xff", -1},
	{"\x00\x00\xff", -65536},
}

func TestDecodeLong(t *testing.T) {
	for _, tt := range longTestv {
		value, err := decodeLong(tt.data)
		if err != nil {
			t.Errorf("data %q: %s", tt.data, err)
			continue
		}

		valueOk := big.NewInt(tt.value)
		if valueOk.Cmp(value) != 0 {
			t.Errorf("data %q: ->long: got %s  ; want %s", tt.data, value, valueOk)
		}
	}
}

func TestEncodeLong(t *testing.T) {
	for _, tt := range longTestv {
		data := encodeLong(big.NewInt(tt.value))
		if string(data) != tt.data {
			t.Errorf("%d: long->: got %q  ; want %q", tt.value, data, tt.data)
		}
	}

	// encodeLong and decodeLong are inverse
	for _, s := range []string{
		"12321231232131231231",
		"-12321231232131231231",
		"9223372036854775808",
		"-9223372036854775809",
		"340282366920938463463374607431768211456",
	} {
		v := bigInt(s)
		back, err := decodeLong(string(encodeLong(v)))
		require.NoError(t, err)
		assert.Equal(t, 0, v.Cmp(back), "%s -> %s", v, back)
	}
}

func TestParseDecimalInt(t *testing.T) {
	v, err := parseDecimalInt("-42")
	require.NoError(t, err)
	assert.Equal(t, int64(-42), v)

	v, err = parseDecimalInt("9223372036854775808")
	require.NoError(t, err)
	assert.Equal(t, 0, bigInt("9223372036854775808").Cmp(v.(*big.Int)))

	_, err = parseDecimalInt("12q")
	assert.Error(t, err)
}

func TestLatin1(t *testing.T) {
	data := []byte{0, 'a', 0x7f, 0x80, 0xff}
	text := latin1Text(data)
	assert.Equal(t, "\x00a\x7f\u0080ÿ", text)

	back, err := decodeLatin1Bytes(text)
	require.NoError(t, err)
	assert.Equal(t, data, back)

	_, err = decodeLatin1Bytes("мир")
	assert.Error(t, err)
	_, err = decodeLatin1Bytes(Bytes("abc"))
	assert.Error(t, err)
}

func BenchmarkDecodeLong(b *testing.B) {
	for i := 0; i < b.N; i++ {
		data := "\x00\x80"
		_, err := decodeLong(data)
		if err != nil {
			b.Errorf("Error from decodeLong - %v\n", err)
		}
	}
}
