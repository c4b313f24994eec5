// Package export writes and reads the plain-text and image files produced by
// unpacking a UMD book, optionally compressed.
package export

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

var ErrUnknownCompression = errors.New("export: unknown compression")

type Compression uint16

const (
	CompNone Compression = 0x0
	CompZIP  Compression = 0x1
	CompZSTD Compression = 0x2
	CompLZ4  Compression = 0x3
	CompBR   Compression = 0x4
)

var compressionNames = map[Compression]string{
	CompNone: "none",
	CompZIP:  "zip",
	CompZSTD: "zstd",
	CompLZ4:  "lz4",
	CompBR:   "br",
}

var compressionExts = map[Compression]string{
	CompNone: "",
	CompZIP:  ".zip",
	CompZSTD: ".zst",
	CompLZ4:  ".lz4",
	CompBR:   ".br",
}

func (c Compression) String() string {
	if s, ok := compressionNames[c]; ok {
		return s
	}
	return "unknown"
}

// Ext is the suffix appended to exported file names.
func (c Compression) Ext() string { return compressionExts[c] }

// ParseCompression accepts the names printed by String.
func ParseCompression(s string) (Compression, error) {
	for c, name := range compressionNames {
		if strings.EqualFold(s, name) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCompression, s)
}

// FromName reports the compression implied by a file name's suffix and the
// name with that suffix removed.
func FromName(name string) (Compression, string) {
	lower := strings.ToLower(name)
	for c, ext := range compressionExts {
		if ext != "" && strings.HasSuffix(lower, ext) {
			return c, name[:len(name)-len(ext)]
		}
	}
	return CompNone, name
}

// Function variables for testing injection.
var (
	newZstdWriter = func(w io.Writer) (*zstd.Encoder, error) { return zstd.NewWriter(w) }
	zipCreate     = func(zw *zip.Writer, name string) (io.Writer, error) { return zw.Create(name) }
	zipClose      = func(zw *zip.Writer) error { return zw.Close() }
	lz4Close      = func(w *lz4.Writer) error { return w.Close() }
	brotliClose   = func(w *brotli.Writer) error { return w.Close() }
)

// Write stores data in w using c. For CompZIP the archive holds a single
// entry called name.
func Write(w io.Writer, name string, c Compression, data []byte) error {
	switch c {
	case CompNone:
		_, err := w.Write(data)
		return err
	case CompZIP:
		return zipWrite(w, name, data)
	case CompZSTD:
		zw, err := newZstdWriter(w)
		if err != nil {
			return err
		}
		if _, err := zw.Write(data); err != nil {
			_ = zw.Close()
			return err
		}
		return zw.Close()
	case CompLZ4:
		zw := lz4.NewWriter(w)
		if _, err := zw.Write(data); err != nil {
			_ = lz4Close(zw)
			return err
		}
		return lz4Close(zw)
	case CompBR:
		bw := brotli.NewWriter(w)
		if _, err := bw.Write(data); err != nil {
			_ = brotliClose(bw)
			return err
		}
		return brotliClose(bw)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownCompression, c)
	}
}

func zipWrite(w io.Writer, name string, data []byte) error {
	zw := zip.NewWriter(w)
	entry, err := zipCreate(zw, name)
	if err != nil {
		_ = zipClose(zw)
		return err
	}
	if _, err := entry.Write(data); err != nil {
		_ = zipClose(zw)
		return err
	}
	return zipClose(zw)
}

// Read is the inverse of Write. At most max bytes are returned; more is an
// error.
func Read(r io.Reader, c Compression, max int64) ([]byte, error) {
	var src io.Reader
	switch c {
	case CompNone:
		src = r
	case CompZIP:
		raw, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		return zipRead(raw, max)
	case CompZSTD:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		src = dec
	case CompLZ4:
		src = lz4.NewReader(r)
	case CompBR:
		src = brotli.NewReader(r)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, c)
	}
	return readLimited(src, max)
}

func zipRead(raw []byte, max int64) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, err
	}
	if len(zr.File) != 1 {
		return nil, fmt.Errorf("export: zip must contain exactly one entry, has %d", len(zr.File))
	}
	rc, err := zr.File[0].Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return readLimited(rc, max)
}

func readLimited(r io.Reader, max int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > max {
		return nil, fmt.Errorf("export: content exceeds %d bytes", max)
	}
	return b, nil
}
