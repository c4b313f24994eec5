package umd

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

type chunkHeader struct {
	ID     uint16
	Type   chunkType
	Length uint8 // whole record, separator included
}

type additionHeader struct {
	Check  uint32
	Length uint32 // whole record, separator included
}

func (h chunkHeader) payloadLen() (int, error) {
	n := int(h.Length) - chunkHeaderSize
	if n < 0 {
		return 0, fmt.Errorf("%w: chunk 0x%x declares %d bytes", ErrBadLength, h.ID, h.Length)
	}
	return n, nil
}

func (h additionHeader) payloadLen() (int64, error) {
	n := int64(h.Length) - additionHeaderSize
	if n < 0 {
		return 0, fmt.Errorf("%w: addition declares %d bytes", ErrBadLength, h.Length)
	}
	return n, nil
}

// recordWriter frames chunks and additions and counts the bytes written.
type recordWriter struct {
	w io.Writer
	n int64
}

func (rw *recordWriter) Write(p []byte) (int, error) {
	n, err := rw.w.Write(p)
	rw.n += int64(n)
	return n, err
}

func writeChunkHeader(w io.Writer, h chunkHeader) error {
	var buf [chunkHeaderSize]byte
	buf[0] = chunkSeparator
	binary.LittleEndian.PutUint16(buf[1:3], h.ID)
	buf[3] = byte(h.Type)
	buf[4] = h.Length
	_, err := w.Write(buf[:])
	return err
}

func writeAdditionHeader(w io.Writer, h additionHeader) error {
	var buf [additionHeaderSize]byte
	buf[0] = additionSeparator
	binary.LittleEndian.PutUint32(buf[1:5], h.Check)
	binary.LittleEndian.PutUint32(buf[5:9], h.Length)
	_, err := w.Write(buf[:])
	return err
}

func (rw *recordWriter) writeChunk(id uint16, typ chunkType, payload []byte) error {
	if len(payload) > maxChunkPayload {
		return fmt.Errorf("%w: chunk 0x%x payload is %d bytes, max %d", ErrFieldTooLong, id, len(payload), maxChunkPayload)
	}
	h := chunkHeader{ID: id, Type: typ, Length: uint8(chunkHeaderSize + len(payload))}
	if err := writeChunkHeader(rw, h); err != nil {
		return err
	}
	_, err := rw.Write(payload)
	return err
}

func (rw *recordWriter) writeAddition(check uint32, payload []byte) error {
	if uint64(len(payload)) > 0xFFFFFFFF-additionHeaderSize {
		return fmt.Errorf("%w: addition payload is %d bytes", ErrFieldTooLong, len(payload))
	}
	h := additionHeader{Check: check, Length: uint32(additionHeaderSize + len(payload))}
	if err := writeAdditionHeader(rw, h); err != nil {
		return err
	}
	_, err := rw.Write(payload)
	return err
}

// writeAppended emits an appended chunk carrying prefix and check, followed
// by the addition that holds its bulk payload.
func (rw *recordWriter) writeAppended(id uint16, prefix []byte, check uint32, payload []byte) error {
	chunk := binary.LittleEndian.AppendUint32(append([]byte(nil), prefix...), check)
	if err := rw.writeChunk(id, chunkAppended, chunk); err != nil {
		return err
	}
	return rw.writeAddition(check, payload)
}

// recordReader reads records from a forward-only stream and tracks the
// absolute offset of the next unread byte.
type recordReader struct {
	r   *bufio.Reader
	off int64
}

func newRecordReader(r io.Reader, off int64) *recordReader {
	return &recordReader{r: bufio.NewReader(r), off: off}
}

func (rr *recordReader) readFull(p []byte) error {
	n, err := io.ReadFull(rr.r, p)
	rr.off += int64(n)
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

func (rr *recordReader) discard(n int64) error {
	for n > 0 {
		step := n
		if step > 1<<30 {
			step = 1 << 30
		}
		d, err := rr.r.Discard(int(step))
		rr.off += int64(d)
		n -= int64(d)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.ErrUnexpectedEOF
			}
			return err
		}
	}
	return nil
}

// readSeparator returns io.EOF only when the stream ends on a record boundary.
func (rr *recordReader) readSeparator() (byte, error) {
	b, err := rr.r.ReadByte()
	if err != nil {
		return 0, err
	}
	rr.off++
	if b != chunkSeparator && b != additionSeparator {
		return 0, fmt.Errorf("%w: 0x%02x at offset %d", ErrBadSeparator, b, rr.off-1)
	}
	return b, nil
}

// readChunkHeader reads the header fields that follow a chunk separator.
func (rr *recordReader) readChunkHeader() (chunkHeader, error) {
	var buf [chunkHeaderSize - 1]byte
	if err := rr.readFull(buf[:]); err != nil {
		return chunkHeader{}, err
	}
	return chunkHeader{
		ID:     binary.LittleEndian.Uint16(buf[0:2]),
		Type:   chunkType(buf[2]),
		Length: buf[3],
	}, nil
}

// readAdditionHeader reads the header fields that follow an addition separator.
func (rr *recordReader) readAdditionHeader() (additionHeader, error) {
	var buf [additionHeaderSize - 1]byte
	if err := rr.readFull(buf[:]); err != nil {
		return additionHeader{}, err
	}
	return additionHeader{
		Check:  binary.LittleEndian.Uint32(buf[0:4]),
		Length: binary.LittleEndian.Uint32(buf[4:8]),
	}, nil
}

func (rr *recordReader) readChunk() (chunkHeader, []byte, error) {
	h, err := rr.readChunkHeader()
	if err != nil {
		return h, nil, err
	}
	n, err := h.payloadLen()
	if err != nil {
		return h, nil, err
	}
	payload := make([]byte, n)
	if err := rr.readFull(payload); err != nil {
		return h, nil, err
	}
	return h, payload, nil
}
