package umd

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"math"
	"math/rand/v2"
	"os"
	"strings"
)

// paragraphSeparator is the line break code point used inside UMD text.
const paragraphSeparator = "\u2029"

var lineNormalizer = strings.NewReplacer("\r\n", paragraphSeparator, "\r", paragraphSeparator, "\n", paragraphSeparator)

// textSpool collects the raw UTF-16LE text stream in a temporary file and
// records where each chapter starts.
type textSpool struct {
	f       *os.File
	offsets []uint32
	size    int64
}

func newTextSpool(dir string) (*textSpool, error) {
	f, err := os.CreateTemp(dir, "umd-text-*")
	if err != nil {
		return nil, err
	}
	return &textSpool{f: f}, nil
}

// Close closes and deletes the spool file.
func (s *textSpool) Close() error {
	err := s.f.Close()
	if rmErr := os.Remove(s.f.Name()); err == nil {
		err = rmErr
	}
	return err
}

func (s *textSpool) add(text string) error {
	if s.size > math.MaxUint32 {
		return fmt.Errorf("%w: text exceeds 4 GiB", ErrLimitExceeded)
	}
	s.offsets = append(s.offsets, uint32(s.size))
	raw, err := encodeString(lineNormalizer.Replace(text))
	if err != nil {
		return err
	}
	n, err := s.f.Write(raw)
	s.size += int64(n)
	if err != nil {
		return err
	}
	if s.size > math.MaxUint32 {
		return fmt.Errorf("%w: text exceeds 4 GiB", ErrLimitExceeded)
	}
	return nil
}

// writeBlocks cuts the spooled stream into BlockSize pieces and writes one
// compressed addition per piece. It returns the check value of every block.
func (s *textSpool) writeBlocks(rw *recordWriter, level int, rnd *rand.Rand) ([]uint32, error) {
	r := io.NewSectionReader(s.f, 0, s.size)
	buf := make([]byte, BlockSize)
	var checks []uint32
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			packed, cerr := compressBlock(buf[:n], level)
			if cerr != nil {
				return nil, cerr
			}
			check := rnd.Uint32()
			if werr := rw.writeAddition(check, packed); werr != nil {
				return nil, werr
			}
			checks = append(checks, check)
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return checks, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// textBlock locates one compressed block inside the source.
type textBlock struct {
	offset int64
	length uint32
}

// BlockText is the body of a decoded chapter. The text is inflated from the
// book's blocks on every call; it stays valid until the Book is closed.
type BlockText struct {
	src    *source
	start  uint32 // raw byte offset into the text stream
	length uint32 // raw byte length
}

// Len returns the size of the chapter in raw UTF-16LE bytes.
func (t *BlockText) Len() int { return int(t.length) }

// Raw returns the chapter's UTF-16LE bytes with UMD paragraph separators.
func (t *BlockText) Raw() ([]byte, error) {
	if t.length == 0 {
		return nil, nil
	}
	bi := int(t.start / BlockSize)
	within := int(t.start % BlockSize)
	need := within + int(t.length)
	out := make([]byte, 0, need)
	for len(out) < need {
		if bi >= len(t.src.blocks) {
			return nil, fmt.Errorf("%w: need block %d of %d", ErrTruncatedText, bi, len(t.src.blocks))
		}
		blk, err := t.src.block(bi)
		if err != nil {
			return nil, err
		}
		out = append(out, blk...)
		bi++
	}
	return out[within:need], nil
}

func (t *BlockText) decoded() (string, error) {
	raw, err := t.Raw()
	if err != nil {
		return "", err
	}
	return decodeString(raw)
}

// Text returns the chapter body with paragraph separators replaced by the
// configured line ending.
func (t *BlockText) Text() (string, error) {
	s, err := t.decoded()
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(s, paragraphSeparator, t.src.lineEnding), nil
}

// Lines yields the chapter's lines. Each iteration inflates the text afresh.
func (t *BlockText) Lines() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		s, err := t.decoded()
		if err != nil {
			yield("", err)
			return
		}
		if s == "" {
			return
		}
		for line := range strings.SplitSeq(s, paragraphSeparator) {
			if !yield(line, nil) {
				return
			}
		}
	}
}
