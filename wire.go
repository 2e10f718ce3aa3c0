package pickle
// Byte-level building blocks of the pickle wire format.

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"strconv"
)

// appendUint16 appends v as 2 bytes little-endian.
func appendUint16(b []byte, v uint16) []byte {
	return binary.LittleEndian.AppendUint16(b, v)
}

// appendInt32 appends v as 4 bytes little-endian two's complement.
func appendInt32(b []byte, v int32) []byte {
	return binary.LittleEndian.AppendUint32(b, uint32(v))
}

// appendUint32 appends v as 4 bytes little-endian.
func appendUint32(b []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(b, v)
}

// appendFloat64 appends f as 8 bytes big-endian IEEE-754, as BINFLOAT wants it.
func appendFloat64(b []byte, f float64) []byte {
	return binary.BigEndian.AppendUint64(b, math.Float64bits(f))
}

// appendCounted4 appends len(s) as uint32 LE followed by s.
func appendCounted4(b []byte, s string) []byte {
	b = appendUint32(b, uint32(len(s)))
	return append(b, s...)
}

// appendDecimalLine appends v in decimal followed by \n, as INT wants it.
func appendDecimalLine(b []byte, v string) []byte {
	b = append(b, v...)
	return append(b, '\n')
}

// encodeLong returns the two's complement little-endian representation of v
// with the minimal number of bytes, as LONG1 and LONG4 carry it.
//
// Zero is represented by no bytes at all.
func encodeLong(v *big.Int) []byte {
	switch v.Sign() {
	case 0:
		return nil

	case 1:
		be := v.Bytes()
		le := make([]byte, len(be), len(be)+1)
		for i, c := range be {
			le[len(be)-1-i] = c
		}
		// keep the sign bit clear
		if le[len(le)-1]&0x80 != 0 {
			le = append(le, 0)
		}
		return le
	}

	// negative: 2^(8n) + v over n bytes, with n wide enough for |v|
	n := v.BitLen()/8 + 1
	x := new(big.Int).Lsh(big.NewInt(1), uint(8*n))
	x.Add(x, v)
	be := x.Bytes()
	le := make([]byte, n)
	for i, c := range be {
		le[len(be)-1-i] = c
	}
	for i := len(be); i < n; i++ {
		le[i] = 0xff
	}
	// drop a redundant sign byte
	if n > 1 && le[n-1] == 0xff && le[n-2]&0x80 != 0 {
		le = le[:n-1]
	}
	return le
}

// decodeLong takes a byte array of 2's compliment little-endian binary words and converts them
// to a big integer
func decodeLong(data string) (*big.Int, error) {
	decoded := new(big.Int)
	l := len(data)
	if l == 0 {
		return decoded, nil
	}

	be := make([]byte, l)
	for i := 0; i < l; i++ {
		be[l-1-i] = data[i]
	}
	decoded.SetBytes(be)

	if data[l-1]&0x80 != 0 {
		// negative: subtract 2^(8l)
		decoded.Sub(decoded, new(big.Int).Lsh(big.NewInt(1), uint(8*l)))
	}
	return decoded, nil
}

// parseDecimalInt parses the argument of INT/LONG.
//
// Values that do not fit into int64 are returned as *big.Int.
func parseDecimalInt(s string) (any, error) {
	i, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return i, nil
	}
	if ne, ok := err.(*strconv.NumError); !ok || ne.Err != strconv.ErrRange {
		return nil, err
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return v, nil
}

// latin1Text returns the text whose code points are the bytes of data.
//
// Python uses such representation of bytes for protocols <= 2 - where there is
// no BYTES* opcodes.
func latin1Text(data []byte) string {
	r := make([]rune, len(data))
	for i, c := range data {
		r[i] = rune(c)
	}
	return string(r)
}

// decodeLatin1Bytes tries to decode bytes from arg assuming it is latin1-encoded unicode.
func decodeLatin1Bytes(arg any) ([]byte, error) {
	// bytes as latin1-decoded unicode
	ulatin1, ok := arg.(string)
	if !ok {
		return nil, fmt.Errorf("latin1: arg must be string, not %T", arg)
	}

	data := make([]byte, 0, len(ulatin1))
	for _, r := range ulatin1 {
		if r >= 0x100 {
			return nil, fmt.Errorf("latin1: cannot encode %q", r)
		}

		data = append(data, byte(r))
	}

	return data, nil
}
