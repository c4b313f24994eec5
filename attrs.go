package umd

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"golang.org/x/text/encoding/unicode"
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// encodeString converts s to UTF-16LE without BOM or terminator.
func encodeString(s string) ([]byte, error) {
	return utf16le.NewEncoder().Bytes([]byte(s))
}

func decodeString(b []byte) (string, error) {
	out, err := utf16le.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// stringAttr binds a string-valued chunk to a Book field.
type stringAttr struct {
	id   uint16
	name string
	get  func(*Book) string
	set  func(*Book, string) error
}

func dateGetter(field func(*Book) *int) func(*Book) string {
	return func(b *Book) string {
		if v := *field(b); v != 0 {
			return strconv.Itoa(v)
		}
		return ""
	}
}

func dateSetter(field func(*Book) *int) func(*Book, string) error {
	return func(b *Book, s string) error {
		v, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*field(b) = v
		return nil
	}
}

var stringAttrs = []stringAttr{
	{cidTitle, "title", func(b *Book) string { return b.Title }, func(b *Book, s string) error { b.Title = s; return nil }},
	{cidAuthor, "author", func(b *Book) string { return b.Author }, func(b *Book, s string) error { b.Author = s; return nil }},
	{cidYear, "year", dateGetter(func(b *Book) *int { return &b.Year }), dateSetter(func(b *Book) *int { return &b.Year })},
	{cidMonth, "month", dateGetter(func(b *Book) *int { return &b.Month }), dateSetter(func(b *Book) *int { return &b.Month })},
	{cidDay, "day", dateGetter(func(b *Book) *int { return &b.Day }), dateSetter(func(b *Book) *int { return &b.Day })},
	{cidGenre, "genre", func(b *Book) string { return b.Genre }, func(b *Book, s string) error { b.Genre = s; return nil }},
	{cidPublisher, "publisher", func(b *Book) string { return b.Publisher }, func(b *Book, s string) error { b.Publisher = s; return nil }},
	{cidVendor, "vendor", func(b *Book) string { return b.Vendor }, func(b *Book, s string) error { b.Vendor = s; return nil }},
}

func lookupStringAttr(id uint16) (stringAttr, bool) {
	for _, a := range stringAttrs {
		if a.id == id {
			return a, true
		}
	}
	return stringAttr{}, false
}

func writeHead(rw *recordWriter, ct ContentType, seed uint16) error {
	payload := binary.LittleEndian.AppendUint16([]byte{byte(ct)}, seed)
	return rw.writeChunk(cidHead, chunkSingle, payload)
}

func writeAttributes(rw *recordWriter, b *Book) error {
	for _, a := range stringAttrs {
		v := a.get(b)
		if v == "" {
			continue
		}
		payload, err := encodeString(v)
		if err != nil {
			return fmt.Errorf("umd: encode %s: %w", a.name, err)
		}
		if len(payload) > maxChunkPayload {
			return fmt.Errorf("%w: %s is %d bytes in UTF-16LE, max %d", ErrFieldTooLong, a.name, len(payload), maxChunkPayload)
		}
		if err := rw.writeChunk(a.id, chunkSingle, payload); err != nil {
			return err
		}
	}
	return nil
}

func writeUint32Chunk(rw *recordWriter, id uint16, typ chunkType, v uint32) error {
	return rw.writeChunk(id, typ, binary.LittleEndian.AppendUint32(nil, v))
}

func readUint32(id uint16, payload []byte) (uint32, error) {
	if len(payload) < 4 {
		return 0, fmt.Errorf("%w: chunk 0x%x carries %d bytes, want 4", ErrBadLength, id, len(payload))
	}
	return binary.LittleEndian.Uint32(payload), nil
}

// writeBlob emits an opaque key chunk. Nothing is written for an empty key.
func writeBlob(rw *recordWriter, id uint16, blob []byte) error {
	if len(blob) == 0 {
		return nil
	}
	return rw.writeChunk(id, chunkSingle, blob)
}
