package umd

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Function variables for testing injection.
var (
	newZlibWriter = func(w io.Writer, level int) (*zlib.Writer, error) { return zlib.NewWriterLevel(w, level) }
	zlibClose     = func(zw *zlib.Writer) error { return zw.Close() }
	readAll       = io.ReadAll
)

// compressBlock zlib-compresses one raw text block.
func compressBlock(raw []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := newZlibWriter(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(raw); err != nil {
		_ = zlibClose(zw)
		return nil, err
	}
	if err := zlibClose(zw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decompressBlock inflates one stored text block, rejecting output larger
// than BlockSize.
func decompressBlock(in []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(in))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	out, err := readAll(io.LimitReader(zr, BlockSize+1))
	if err != nil {
		return nil, err
	}
	if len(out) > BlockSize {
		return nil, fmt.Errorf("%w: text block inflates beyond %d bytes", ErrLimitExceeded, BlockSize)
	}
	return out, nil
}
