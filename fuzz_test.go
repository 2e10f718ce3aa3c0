package pickle

import (
	"bytes"
	"io"
	"testing"
)

// FuzzDecode checks that the decoder does not panic on arbitrary input, and
// that whatever it decodes and the encoder accepts decodes back.
//
// The corpus is seeded with all test pickles.
func FuzzDecode(f *testing.F) {
	for _, test := range decodeTests {
		for _, pickle := range test.picklev {
			f.Add([]byte(pickle.data))
		}
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		for _, config := range []DecoderConfig{
			{},
			{StrictUnicode: true, PyDict: true},
		} {
			obj, err := NewDecoderWithConfig(bytes.NewReader(data), &config).Decode()
			if err != nil {
				continue
			}

			// Dis reads the same opcodes the decoder executed
			if err := Dis(io.Discard, bytes.NewReader(data)); err != nil {
				t.Errorf("%q: decoded but Dis failed: %s", data, err)
			}

			// not everything decoded has a Go type the encoder accepts,
			// e.g. recursive tuples.
			enc, err := Dumps(obj)
			if err != nil {
				continue
			}
			if _, err := LoadsWithConfig(enc, &config); err != nil {
				t.Errorf("%q: re-encoded %q does not decode: %s", data, enc, err)
			}
		}
	})
}
