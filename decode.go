package umd

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// decoder is the state threaded through a single forward pass.
type decoder struct {
	cfg  readConfig
	log  *slog.Logger
	rr   *recordReader
	src  *source
	book *Book

	// pending is the id of the appended chunk whose addition comes next,
	// zero when the next addition is content.
	pending     uint16
	coverFormat ImageFormat

	contentLen    uint32
	hasContentLen bool
	offsets       []uint32
	titlesSeen    bool
	pages         []Image
	pageFormat    ImageFormat
}

// decode reads the whole record stream of r once. Text blocks are indexed,
// not inflated.
func decode(r io.ReaderAt, size int64, closer io.Closer, cfg readConfig) (*Book, error) {
	src := &source{r: r, closer: closer, lineEnding: cfg.lineEnding}
	rr := newRecordReader(io.NewSectionReader(r, 0, size), 0)

	var magic [4]byte
	if err := rr.readFull(magic[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: file is %d bytes", ErrBadMagic, size)
		}
		return nil, err
	}
	if m := binary.LittleEndian.Uint32(magic[:]); m != Magic {
		return nil, fmt.Errorf("%w: 0x%08x", ErrBadMagic, m)
	}

	d := &decoder{
		cfg:        cfg,
		log:        cfg.logger,
		rr:         rr,
		src:        src,
		book:       &Book{src: src},
		pageFormat: FormatJPG,
	}
	for {
		sep, err := rr.readSeparator()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if sep == chunkSeparator {
			err = d.chunk()
		} else {
			err = d.addition()
		}
		if err != nil {
			return nil, err
		}
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return d.book, nil
}

func (d *decoder) chunk() error {
	h, payload, err := d.rr.readChunk()
	if err != nil {
		return err
	}
	if d.pending != 0 {
		// An appended chunk is always followed by its addition.
		d.log.Warn("umd: appended chunk without addition", "id", d.pending, "next", h.ID)
		d.pending = 0
	}
	b := d.book
	if a, ok := lookupStringAttr(h.ID); ok {
		s, err := decodeString(payload)
		if err != nil {
			return err
		}
		if err := a.set(b, s); err != nil {
			d.log.Warn("umd: ignoring malformed attribute", "field", a.name, "value", s, "err", err)
		}
		return nil
	}
	switch h.ID {
	case cidHead:
		if len(payload) < 1 {
			return fmt.Errorf("%w: empty head chunk", ErrBadLength)
		}
		ct := ContentType(payload[0])
		switch ct {
		case ContentText, ContentCartoon, ContentComic:
		default:
			return fmt.Errorf("%w: %d", ErrUnsupportedContentType, payload[0])
		}
		b.ContentType = ct
	case cidContentID:
		v, err := readUint32(h.ID, payload)
		if err != nil {
			return err
		}
		b.ContentID = v
	case cidContentLength:
		v, err := readUint32(h.ID, payload)
		if err != nil {
			return err
		}
		if v > d.cfg.limits.MaxTextLen {
			return fmt.Errorf("%w: content length %d", ErrLimitExceeded, v)
		}
		d.contentLen, d.hasContentLen = v, true
	case cidImageFormat:
		if len(payload) < 1 {
			return fmt.Errorf("%w: empty image format chunk", ErrBadLength)
		}
		d.pageFormat = ImageFormat(payload[0])
	case cidLicenseKey:
		if len(payload) > 0 {
			b.LicenseKey = payload
		}
	case cidCDSKey:
		if len(payload) > 0 {
			b.CDSKey = payload
		}
	case cidCoverImage:
		if len(payload) < 1 {
			return fmt.Errorf("%w: empty cover chunk", ErrBadLength)
		}
		d.coverFormat = ImageFormat(payload[0])
		d.pending = h.ID
	case cidContentEnd, cidChapterOffset, cidChapterTitle, cidPageOffset:
		d.pending = h.ID
	case cidUmdEnd:
		return d.trailer(payload)
	default:
		if h.Type == chunkAppended {
			d.pending = h.ID
		}
		d.log.Debug("umd: skipping unknown chunk", "id", h.ID, "type", h.Type, "len", h.Length)
	}
	return nil
}

func (d *decoder) trailer(payload []byte) error {
	v, err := readUint32(cidUmdEnd, payload)
	if err != nil {
		return err
	}
	if int64(v) == d.rr.off {
		return nil
	}
	if d.cfg.strictTrailer {
		return fmt.Errorf("%w: declared %d, read %d", ErrBadTrailer, v, d.rr.off)
	}
	d.log.Warn("umd: trailer length mismatch", "declared", v, "read", d.rr.off)
	return nil
}

func (d *decoder) addition() error {
	h, err := d.rr.readAdditionHeader()
	if err != nil {
		return err
	}
	n, err := h.payloadLen()
	if err != nil {
		return err
	}
	if n > int64(d.cfg.limits.MaxAdditionLen) {
		return fmt.Errorf("%w: addition of %d bytes", ErrLimitExceeded, n)
	}
	pending := d.pending
	d.pending = 0
	switch pending {
	case cidChapterOffset:
		return d.chapterOffsets(n)
	case cidChapterTitle:
		return d.chapterTitles(n)
	case cidCoverImage:
		data, err := d.readImage(n)
		if err != nil {
			return err
		}
		d.book.Cover = &Image{Format: d.coverFormat, Data: data}
		return nil
	case 0:
		return d.content(n)
	default:
		return d.rr.discard(n)
	}
}

func (d *decoder) readPayload(n int64) ([]byte, error) {
	buf := make([]byte, n)
	if err := d.rr.readFull(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (d *decoder) readImage(n int64) ([]byte, error) {
	if n > int64(d.cfg.limits.MaxImageLen) {
		return nil, fmt.Errorf("%w: image of %d bytes", ErrLimitExceeded, n)
	}
	return d.readPayload(n)
}

// content handles an addition that belongs to the book body.
func (d *decoder) content(n int64) error {
	switch d.book.ContentType {
	case ContentText:
		d.src.blocks = append(d.src.blocks, textBlock{offset: d.rr.off, length: uint32(n)})
		return d.rr.discard(n)
	case ContentCartoon:
		data, err := d.readImage(n)
		if err != nil {
			return err
		}
		d.pages = append(d.pages, Image{Format: d.pageFormat, Data: data})
		return nil
	case ContentComic:
		return d.rr.discard(n)
	default:
		return fmt.Errorf("%w: content before head chunk", ErrUnsupportedContentType)
	}
}

func (d *decoder) chapterOffsets(n int64) error {
	if n%4 != 0 {
		return fmt.Errorf("%w: table of %d bytes", ErrInvalidOffsets, n)
	}
	if n/4 > int64(d.cfg.limits.MaxChapters) {
		return fmt.Errorf("%w: %d chapters", ErrLimitExceeded, n/4)
	}
	payload, err := d.readPayload(n)
	if err != nil {
		return err
	}
	for p := payload; len(p) >= 4; p = p[4:] {
		off := binary.LittleEndian.Uint32(p)
		d.offsets = append(d.offsets, off)
		d.book.Chapters = append(d.book.Chapters, Chapter{})
	}
	return nil
}

func (d *decoder) chapterTitles(n int64) error {
	payload, err := d.readPayload(n)
	if err != nil {
		return err
	}
	var titles []string
	for p := payload; len(p) > 0; {
		l := int(p[0])
		if 1+l > len(p) {
			return fmt.Errorf("%w: title %d overruns titles table", ErrBadLength, len(titles))
		}
		s, err := decodeString(p[1 : 1+l])
		if err != nil {
			return err
		}
		titles = append(titles, s)
		p = p[1+l:]
	}
	if len(titles) != len(d.book.Chapters) {
		return fmt.Errorf("%w: %d titles for %d chapters", ErrChapterCountMismatch, len(titles), len(d.book.Chapters))
	}
	for i, t := range titles {
		d.book.Chapters[i].Title = t
	}
	d.titlesSeen = true
	return nil
}

// finish binds chapter bodies once every record has been read.
func (d *decoder) finish() error {
	b := d.book
	if b.ContentType == 0 {
		return fmt.Errorf("%w: missing head chunk", ErrUnsupportedContentType)
	}
	if len(b.Chapters) > 0 && !d.titlesSeen {
		return fmt.Errorf("%w: no titles for %d chapters", ErrChapterCountMismatch, len(b.Chapters))
	}
	switch b.ContentType {
	case ContentText:
		if len(d.offsets) > 0 && !d.hasContentLen {
			return fmt.Errorf("%w: missing content length", ErrInvalidOffsets)
		}
		for i, start := range d.offsets {
			end := d.contentLen
			if i+1 < len(d.offsets) {
				end = d.offsets[i+1]
			}
			if start > end || end > d.contentLen {
				return fmt.Errorf("%w: chapter %d spans [%d, %d) of %d", ErrInvalidOffsets, i, start, end, d.contentLen)
			}
			b.Chapters[i].Content = &BlockText{src: d.src, start: start, length: end - start}
		}
	case ContentCartoon:
		for i, idx := range d.offsets {
			if int64(idx) >= int64(len(d.pages)) {
				d.log.Warn("umd: cartoon chapter without image", "chapter", i, "image", idx)
				continue
			}
			page := d.pages[idx]
			b.Chapters[i].Cover = &page
		}
	}
	d.log.Debug("umd: decoded", "type", b.ContentType.String(), "chapters", len(b.Chapters), "blocks", len(d.src.blocks))
	return nil
}
