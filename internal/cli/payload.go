package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zlib"
	"go.uber.org/zap"
)

// MaxPayload bounds how much a payload may inflate to.
const MaxPayload = 1 << 30

// Open returns the file at path for reading, or stdin if path is "" or "-".
func Open(path string, stdin io.Reader) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(stdin), nil
	}
	return os.Open(path)
}

// Create returns the file at path for writing, or stdout if path is "" or "-".
func Create(path string, stdout io.Writer) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopWriteCloser{stdout}, nil
	}
	return os.Create(path)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// ReadPayload reads all of r, inflating it first if compressed is set.
func ReadPayload(log *zap.Logger, r io.Reader, compressed bool) ([]byte, error) {
	if !compressed {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		log.Debug("read payload", zap.String("size", Size(len(data))))
		return data, nil
	}

	counter := &countingReader{r: r}
	zr, err := zlib.NewReader(counter)
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	defer zr.Close()

	data, err := io.ReadAll(io.LimitReader(zr, MaxPayload+1))
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	if len(data) > MaxPayload {
		return nil, fmt.Errorf("zlib: payload inflates to more than %s", Size(MaxPayload))
	}
	log.Debug("inflated payload",
		zap.String("compressed", Size(int(counter.n))),
		zap.String("size", Size(len(data))))
	return data, nil
}

// WritePayload writes data to w, deflating it first if compressed is set.
func WritePayload(log *zap.Logger, w io.Writer, data []byte, compressed bool) error {
	if !compressed {
		if _, err := w.Write(data); err != nil {
			return err
		}
		log.Debug("wrote payload", zap.String("size", Size(len(data))))
		return nil
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return fmt.Errorf("zlib: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("zlib: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return err
	}
	log.Debug("deflated payload",
		zap.String("size", Size(len(data))),
		zap.String("compressed", Size(buf.Len())))
	return nil
}

// Size formats n bytes for humans, e.g. "1.2 kB".
func Size(n int) string {
	return humanize.Bytes(uint64(n))
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
