package umd

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// pageLayouts are the (font size, screen width) pairs written as page-offset
// placeholders. Readers paginate on their own; the tables carry one zero
// offset each.
var pageLayouts = [...][2]byte{{0x10, 0xB0}, {0x10, 0xD0}}

// Encode writes b to w in the UMD format.
//
// The content variant is taken from b.ContentType (zero means ContentText).
// ContentComic is rejected with ErrUnsupportedVariant before anything is
// written.
//
// For a text book the chapter bodies are spooled to a temporary file (see
// WithTempDir), which is removed before Encode returns. For a cartoon book
// one image per chapter is written, taken from WithCartoonImages or from each
// chapter's Cover. All pages must share one format. A cartoon book without
// any images is written with empty chapter tables.
//
// Check values, the head seed and a missing ContentID are filled from a
// pseudo-random source; use WithSeed for reproducible output.
func Encode(w io.Writer, b *Book, opts ...WriteOption) error {
	cfg := newWriteConfig(opts)
	if b == nil {
		return fmt.Errorf("%w: book is nil", ErrValidation)
	}
	ct := b.ContentType
	if ct == 0 {
		ct = ContentText
	}
	switch ct {
	case ContentText, ContentCartoon:
	default:
		return fmt.Errorf("%w: %s (%d)", ErrUnsupportedVariant, ct, uint8(ct))
	}
	if err := validateBook(b); err != nil {
		return err
	}
	var images []Image
	if ct == ContentCartoon {
		var err error
		if images, err = cartoonImages(b, &cfg); err != nil {
			return err
		}
	}

	bw := bufio.NewWriter(w)
	e := &encoder{rw: &recordWriter{w: bw}, cfg: &cfg, book: b, ct: ct, images: images}
	if err := e.encode(); err != nil {
		return err
	}
	return bw.Flush()
}

type encoder struct {
	rw     *recordWriter
	cfg    *writeConfig
	book   *Book
	ct     ContentType
	images []Image // cartoon pages, empty when the book has none
}

func (e *encoder) encode() error {
	rnd := e.cfg.rand
	var magic [4]byte
	binary.LittleEndian.PutUint32(magic[:], Magic)
	if _, err := e.rw.Write(magic[:]); err != nil {
		return err
	}
	if err := writeHead(e.rw, e.ct, uint16(rnd.Uint32())); err != nil {
		return err
	}
	if err := writeAttributes(e.rw, e.book); err != nil {
		return err
	}

	contentID := e.book.ContentID
	if contentID == 0 {
		contentID = 0x10000000 + rnd.Uint32N(0x0FFFFFFF)
	}

	var checks []uint32
	var err error
	switch e.ct {
	case ContentText:
		if err := writeUint32Chunk(e.rw, cidContentID, chunkSingle, contentID); err != nil {
			return err
		}
		checks, err = e.textBody()
	case ContentCartoon:
		checks, err = e.cartoonBody(contentID)
	}
	if err != nil {
		return err
	}
	e.cfg.logger.Debug("umd: wrote content", "type", e.ct.String(), "chapters", len(e.book.Chapters), "additions", len(checks))

	if err := e.rw.writeAppended(cidContentEnd, nil, rnd.Uint32(), uint32List(checks)); err != nil {
		return err
	}
	if err := writeCover(e.rw, e.book.Cover, rnd); err != nil {
		return err
	}
	if err := e.pagePlaceholders(); err != nil {
		return err
	}
	if e.ct == ContentText {
		if err := writeBlob(e.rw, cidLicenseKey, e.book.LicenseKey); err != nil {
			return err
		}
	}
	return writeEnd(e.rw)
}

// writeEnd writes the end chunk, which records the final file length with
// the chunk itself included.
func writeEnd(rw *recordWriter) error {
	total := rw.n + chunkHeaderSize + 4
	if total > math.MaxUint32 {
		return fmt.Errorf("%w: file exceeds 4 GiB", ErrLimitExceeded)
	}
	return writeUint32Chunk(rw, cidUmdEnd, chunkSingle, uint32(total))
}

func (e *encoder) textBody() (checks []uint32, err error) {
	spool, err := newTextSpool(e.cfg.tempDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := spool.Close(); err == nil {
			err = cerr
		}
	}()
	for i, ch := range e.book.Chapters {
		var text string
		if ch.Content != nil {
			if text, err = ch.Content.Text(); err != nil {
				return nil, fmt.Errorf("umd: chapter %d text: %w", i, err)
			}
		}
		if err := spool.add(text); err != nil {
			return nil, err
		}
	}
	if err := writeUint32Chunk(e.rw, cidContentLength, chunkSingle, uint32(spool.size)); err != nil {
		return nil, err
	}
	if err := e.chapterTables(spool.offsets, e.book.Chapters); err != nil {
		return nil, err
	}
	return spool.writeBlocks(e.rw, e.cfg.level, e.cfg.rand)
}

func (e *encoder) cartoonBody(contentID uint32) ([]uint32, error) {
	var chapters []Chapter
	offsets := make([]uint32, len(e.images))
	for i := range offsets {
		offsets[i] = uint32(i)
	}
	if len(e.images) > 0 {
		chapters = e.book.Chapters
	}
	if err := e.chapterTables(offsets, chapters); err != nil {
		return nil, err
	}
	return writeCartoonImages(e.rw, e.book, e.images, contentID, e.cfg.rand)
}

// chapterTables writes the chapter offsets table followed by the titles table.
func (e *encoder) chapterTables(offsets []uint32, chapters []Chapter) error {
	rnd := e.cfg.rand
	if err := e.rw.writeAppended(cidChapterOffset, nil, rnd.Uint32(), uint32List(offsets)); err != nil {
		return err
	}
	var titles []byte
	for _, ch := range chapters {
		raw, err := encodeString(ch.Title)
		if err != nil {
			return err
		}
		titles = append(titles, byte(len(raw)))
		titles = append(titles, raw...)
	}
	return e.rw.writeAppended(cidChapterTitle, nil, rnd.Uint32(), titles)
}

// pagePlaceholders writes the two page-offset tables and the cds key chunk.
func (e *encoder) pagePlaceholders() error {
	for _, layout := range pageLayouts {
		if err := e.rw.writeAppended(cidPageOffset, layout[:], e.cfg.rand.Uint32(), uint32List([]uint32{0})); err != nil {
			return err
		}
	}
	return e.rw.writeChunk(cidCDSKey, chunkSingle, e.book.CDSKey)
}

func uint32List(vs []uint32) []byte {
	out := make([]byte, 0, 4*len(vs))
	for _, v := range vs {
		out = binary.LittleEndian.AppendUint32(out, v)
	}
	return out
}
