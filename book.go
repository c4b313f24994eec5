package umd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
)

// source is the byte store a decoded Book reads its text blocks from.
// Chapters hold it by reference; only the Book closes it.
type source struct {
	r          io.ReaderAt
	closer     io.Closer // non-nil only when created via Open
	blocks     []textBlock
	lineEnding string

	once     sync.Once
	closed   atomic.Bool
	closeErr error
}

func (s *source) block(i int) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	blk := s.blocks[i]
	buf := make([]byte, blk.length)
	n, err := s.r.ReadAt(buf, blk.offset)
	if err != nil && !(errors.Is(err, io.EOF) && n == len(buf)) {
		return nil, err
	}
	return decompressBlock(buf)
}

func (s *source) close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		if s.closer != nil {
			s.closeErr = s.closer.Close()
		}
	})
	return s.closeErr
}

// Open decodes the UMD file at path.
// The file stays open for lazy chapter text; the caller must call Close
// when done with the book.
func Open(path string, opts ...ReadOption) (*Book, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	b, err := decode(f, fi.Size(), f, newReadConfig(opts))
	if err != nil {
		f.Close()
		return nil, err
	}
	return b, nil
}

// NewReader decodes a UMD book from r, which holds size bytes.
// The caller is responsible for the lifetime of r and must keep it readable
// while chapter text is in use; Close only invalidates the book.
func NewReader(r io.ReaderAt, size int64, opts ...ReadOption) (*Book, error) {
	return decode(r, size, nil, newReadConfig(opts))
}

// Close releases the file opened by Open. Chapter text of a closed book
// fails with ErrClosed. Close is safe to call more than once.
func (b *Book) Close() error {
	if b.src == nil {
		return nil
	}
	return b.src.close()
}

// Info is a flat summary of a book.
type Info struct {
	ContentType string `json:"content_type"`
	Title       string `json:"title,omitempty"`
	Author      string `json:"author,omitempty"`
	Date        string `json:"date,omitempty"`
	Genre       string `json:"genre,omitempty"`
	Publisher   string `json:"publisher,omitempty"`
	Vendor      string `json:"vendor,omitempty"`
	ContentID   uint32 `json:"content_id"`
	Chapters    int    `json:"chapters"`
	TextBytes   int64  `json:"text_bytes"`
	TextBlocks  int    `json:"text_blocks"`
	HasCover    bool   `json:"has_cover"`
}

// Info summarizes b without inflating any text.
func (b *Book) Info() Info {
	info := Info{
		ContentType: b.ContentType.String(),
		Title:       b.Title,
		Author:      b.Author,
		Genre:       b.Genre,
		Publisher:   b.Publisher,
		Vendor:      b.Vendor,
		ContentID:   b.ContentID,
		Chapters:    len(b.Chapters),
		HasCover:    b.Cover != nil,
	}
	if b.Year != 0 {
		info.Date = fmt.Sprintf("%04d-%02d-%02d", b.Year, b.Month, b.Day)
	}
	for _, ch := range b.Chapters {
		if bt, ok := ch.Content.(*BlockText); ok {
			info.TextBytes += int64(bt.Len())
		}
	}
	if b.src != nil {
		info.TextBlocks = len(b.src.blocks)
	}
	return info
}
