package umd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func sampleBook() *Book {
	return &Book{
		Title:      "Example",
		Author:     "An Author",
		Year:       2024,
		Month:      3,
		Day:        9,
		Genre:      "Novel",
		Publisher:  "Press",
		Vendor:     "Shop",
		ContentID:  0x12345678,
		LicenseKey: bytes.Repeat([]byte{0xAB}, 16),
		CDSKey:     []byte{1, 2, 3, 4},
		Cover:      &Image{Format: FormatGIF, Data: []byte("GIF89a-not-really")},
		Chapters: []Chapter{
			{Title: "One", Content: StringText("first line\nsecond line")},
			{Title: "Two", Content: StringText("windows\r\nline endings\rand old mac")},
			{Title: "Empty", Content: StringText("")},
			{Title: "三", Content: StringText("中文内容\n😀 outside the BMP")},
		},
	}
}

type failingWriter struct {
	n int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.n <= 0 {
		return 0, io.ErrClosedPipe
	}
	if len(p) > w.n {
		p = p[:w.n]
	}
	w.n -= len(p)
	return len(p), nil
}

func encodeBook(t *testing.T, b *Book, opts ...WriteOption) []byte {
	t.Helper()
	var buf bytes.Buffer
	opts = append([]WriteOption{WithSeed(1), WithTempDir(t.TempDir())}, opts...)
	if err := Encode(&buf, b, opts...); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return buf.Bytes()
}

func decodeBytes(t *testing.T, data []byte, opts ...ReadOption) *Book {
	t.Helper()
	b, err := NewReader(bytes.NewReader(data), int64(len(data)), opts...)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return b
}

func normalized(s string) string {
	return strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(s)
}

func chapterText(t *testing.T, ch Chapter) string {
	t.Helper()
	s, err := ch.Content.Text()
	if err != nil {
		t.Fatalf("chapter %q text: %v", ch.Title, err)
	}
	return s
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := sampleBook()
	got := decodeBytes(t, encodeBook(t, in))

	if got.ContentType != ContentText {
		t.Fatalf("content type = %v", got.ContentType)
	}
	type meta struct {
		Title, Author, Genre, Publisher, Vendor string
		Year, Month, Day                        int
		ContentID                               uint32
		LicenseKey, CDSKey                      []byte
	}
	want := meta{in.Title, in.Author, in.Genre, in.Publisher, in.Vendor, in.Year, in.Month, in.Day, in.ContentID, in.LicenseKey, in.CDSKey}
	have := meta{got.Title, got.Author, got.Genre, got.Publisher, got.Vendor, got.Year, got.Month, got.Day, got.ContentID, got.LicenseKey, got.CDSKey}
	if !reflect.DeepEqual(want, have) {
		t.Fatalf("metadata mismatch\nwant: %#v\ngot:  %#v", want, have)
	}
	if len(got.Chapters) != len(in.Chapters) {
		t.Fatalf("chapters = %d, want %d", len(got.Chapters), len(in.Chapters))
	}
	for i, ch := range in.Chapters {
		if got.Chapters[i].Title != ch.Title {
			t.Fatalf("chapter %d title = %q, want %q", i, got.Chapters[i].Title, ch.Title)
		}
		want, _ := ch.Content.Text()
		if s := chapterText(t, got.Chapters[i]); s != normalized(want) {
			t.Fatalf("chapter %d text = %q, want %q", i, s, normalized(want))
		}
	}
	if got.Cover == nil || got.Cover.Format != FormatGIF || !bytes.Equal(got.Cover.Data, in.Cover.Data) {
		t.Fatalf("cover mismatch: %#v", got.Cover)
	}
}

func TestRoundTrip_ChapterCounts(t *testing.T) {
	for _, n := range []int{0, 1, 1000} {
		t.Run(fmt.Sprintf("chapters=%d", n), func(t *testing.T) {
			in := &Book{Title: "Counts"}
			for i := range n {
				in.Chapters = append(in.Chapters, Chapter{
					Title:   fmt.Sprintf("Chapter %d", i),
					Content: StringText(fmt.Sprintf("chapter %d\nbody line\n", i)),
				})
			}
			got := decodeBytes(t, encodeBook(t, in))
			if len(got.Chapters) != n {
				t.Fatalf("chapters = %d, want %d", len(got.Chapters), n)
			}
			for i, ch := range got.Chapters {
				if ch.Title != fmt.Sprintf("Chapter %d", i) {
					t.Fatalf("title %d = %q", i, ch.Title)
				}
				if s := chapterText(t, ch); s != fmt.Sprintf("chapter %d\nbody line\n", i) {
					t.Fatalf("text %d = %q", i, s)
				}
			}
		})
	}
}

func TestRoundTrip_BlockBoundaries(t *testing.T) {
	// 16383 code units end two bytes short of the first block boundary, so
	// the surrogate pair opening the second chapter straddles it.
	first := strings.Repeat("a", BlockSize/2-1)
	second := "😀" + strings.Repeat("0123456789\n", 9000) + "end"
	third := "short"
	in := &Book{Chapters: []Chapter{
		{Title: "first", Content: StringText(first)},
		{Title: "second", Content: StringText(second)},
		{Title: "third", Content: StringText(third)},
	}}
	got := decodeBytes(t, encodeBook(t, in))
	if n := len(got.src.blocks); n < 3 {
		t.Fatalf("expected the text to span at least 3 blocks, got %d", n)
	}
	for i, want := range []string{first, second, third} {
		if s := chapterText(t, got.Chapters[i]); s != want {
			t.Fatalf("chapter %d: got %d bytes, want %d", i, len(s), len(want))
		}
	}
	bt := got.Chapters[1].Content.(*BlockText)
	if bt.start != BlockSize-2 || bt.Len() != 2*len(utf16Units(second)) {
		t.Fatalf("chapter 1 range = [%d, +%d)", bt.start, bt.Len())
	}
}

func utf16Units(s string) []rune {
	var out []rune
	for _, r := range s {
		out = append(out, r)
		if r >= 0x10000 {
			out = append(out, r)
		}
	}
	return out
}

func TestBlockText_LinesRestartable(t *testing.T) {
	in := &Book{Chapters: []Chapter{{Title: "c", Content: StringText("alpha\nbeta\r\ngamma")}}}
	got := decodeBytes(t, encodeBook(t, in))
	bt := got.Chapters[0].Content.(*BlockText)
	for range 2 {
		var lines []string
		for line, err := range bt.Lines() {
			if err != nil {
				t.Fatal(err)
			}
			lines = append(lines, line)
		}
		if !reflect.DeepEqual(lines, []string{"alpha", "beta", "gamma"}) {
			t.Fatalf("lines = %q", lines)
		}
	}
}

func TestBlockText_LinesStopEarly(t *testing.T) {
	in := &Book{Chapters: []Chapter{{Title: "c", Content: StringText("a\nb\nc")}}}
	got := decodeBytes(t, encodeBook(t, in))
	var first string
	for line := range got.Chapters[0].Content.(*BlockText).Lines() {
		first = line
		break
	}
	if first != "a" {
		t.Fatalf("first line = %q", first)
	}
}

func TestBlockText_EmptyChapterHasNoLines(t *testing.T) {
	in := &Book{Chapters: []Chapter{{Title: "c", Content: StringText("")}}}
	got := decodeBytes(t, encodeBook(t, in))
	for line := range got.Chapters[0].Content.(*BlockText).Lines() {
		t.Fatalf("unexpected line %q", line)
	}
}

func TestDecode_LineEnding(t *testing.T) {
	in := &Book{Chapters: []Chapter{{Title: "c", Content: StringText("x\ny")}}}
	got := decodeBytes(t, encodeBook(t, in), WithLineEnding("\r\n"))
	if s := chapterText(t, got.Chapters[0]); s != "x\r\ny" {
		t.Fatalf("text = %q", s)
	}
}

func TestCartoonRoundTrip(t *testing.T) {
	pages := []*Image{
		{Format: FormatBMP, Data: []byte("page-one")},
		{Format: FormatBMP, Data: bytes.Repeat([]byte{7}, 70000)},
		{Format: FormatBMP, Data: []byte("page-three")},
	}
	in := &Book{ContentType: ContentCartoon, Title: "Pictures", LicenseKey: []byte("key")}
	for i, p := range pages {
		in.Chapters = append(in.Chapters, Chapter{Title: fmt.Sprintf("p%d", i), Cover: p})
	}
	got := decodeBytes(t, encodeBook(t, in))
	if got.ContentType != ContentCartoon {
		t.Fatalf("content type = %v", got.ContentType)
	}
	if got.ContentID == 0 {
		t.Fatal("expected a generated content id")
	}
	if !bytes.Equal(got.LicenseKey, []byte("key")) {
		t.Fatalf("license key = %q", got.LicenseKey)
	}
	for i, ch := range got.Chapters {
		if ch.Title != fmt.Sprintf("p%d", i) {
			t.Fatalf("title %d = %q", i, ch.Title)
		}
		if ch.Cover == nil || ch.Cover.Format != FormatBMP || !bytes.Equal(ch.Cover.Data, pages[i].Data) {
			t.Fatalf("page %d mismatch", i)
		}
	}
}

func TestCartoon_ExplicitImages(t *testing.T) {
	in := &Book{ContentType: ContentCartoon, Chapters: []Chapter{{Title: "a"}, {Title: "b"}}}
	images := []Image{{Format: FormatGIF, Data: []byte("A")}, {Format: FormatGIF, Data: []byte("B")}}
	got := decodeBytes(t, encodeBook(t, in, WithCartoonImages(images)))
	if string(got.Chapters[0].Cover.Data) != "A" || string(got.Chapters[1].Cover.Data) != "B" {
		t.Fatal("explicit images not used")
	}
	if got.Chapters[1].Cover.Format != FormatGIF {
		t.Fatalf("format = %v", got.Chapters[1].Cover.Format)
	}
}

func TestCartoon_Empty(t *testing.T) {
	got := decodeBytes(t, encodeBook(t, &Book{ContentType: ContentCartoon, Title: "none"}))
	if len(got.Chapters) != 0 || got.Title != "none" {
		t.Fatalf("unexpected book %#v", got.Info())
	}
}

func TestCartoon_NoImages(t *testing.T) {
	in := &Book{
		ContentType: ContentCartoon,
		Title:       "pageless",
		ContentID:   0x2468ACE0,
		Chapters:    []Chapter{{Title: "a"}, {Title: "b"}},
	}
	for name, opts := range map[string][]WriteOption{
		"no covers":      nil,
		"explicit empty": {WithCartoonImages(nil)},
		"explicit zero":  {WithCartoonImages([]Image{})},
	} {
		got := decodeBytes(t, encodeBook(t, in, opts...), WithStrictTrailer(true))
		if got.ContentType != ContentCartoon || got.Title != "pageless" {
			t.Fatalf("%s: unexpected book %#v", name, got.Info())
		}
		if got.ContentID != in.ContentID {
			t.Fatalf("%s: content id = %#x", name, got.ContentID)
		}
		if len(got.Chapters) != 0 {
			t.Fatalf("%s: %d chapters, want empty tables", name, len(got.Chapters))
		}
	}
}

func TestCartoon_ImageCountMismatch(t *testing.T) {
	img := &Image{Format: FormatJPG, Data: []byte("x")}
	in := &Book{ContentType: ContentCartoon, Chapters: []Chapter{{Title: "a", Cover: img}, {Title: "b"}}}
	var buf bytes.Buffer
	if err := Encode(&buf, in); !errors.Is(err, ErrValidation) {
		t.Fatalf("partial covers: expected ErrValidation, got %v", err)
	}
	if err := Encode(&buf, in, WithCartoonImages([]Image{*img})); !errors.Is(err, ErrValidation) {
		t.Fatalf("short list: expected ErrValidation, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("wrote %d bytes", buf.Len())
	}
}

func TestCartoon_MixedFormatsRejected(t *testing.T) {
	in := &Book{ContentType: ContentCartoon, Chapters: []Chapter{
		{Title: "a", Cover: &Image{Format: FormatBMP, Data: []byte("B")}},
		{Title: "b", Cover: &Image{Format: FormatGIF, Data: []byte("G")}},
	}}
	var buf bytes.Buffer
	err := Encode(&buf, in)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if !strings.Contains(err.Error(), "page 1 is gif") {
		t.Fatalf("error does not name the page: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("wrote %d bytes", buf.Len())
	}
}

func TestEncode_ComicRejected(t *testing.T) {
	var buf bytes.Buffer
	err := Encode(&buf, &Book{ContentType: ContentComic})
	if !errors.Is(err, ErrUnsupportedVariant) {
		t.Fatalf("expected ErrUnsupportedVariant, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("wrote %d bytes", buf.Len())
	}
}

func TestEncode_Deterministic(t *testing.T) {
	a := encodeBook(t, sampleBook())
	b := encodeBook(t, sampleBook())
	if !bytes.Equal(a, b) {
		t.Fatal("same seed produced different output")
	}
}

func TestEncode_StartsWithMagicAndEndsWithLength(t *testing.T) {
	data := encodeBook(t, sampleBook())
	if !bytes.Equal(data[:4], []byte{0x89, 0x9B, 0x9A, 0xDE}) {
		t.Fatalf("magic = % x", data[:4])
	}
	tail := data[len(data)-9:]
	if !bytes.Equal(tail[:5], []byte{chunkSeparator, 0x0C, 0x00, 0x00, 0x09}) {
		t.Fatalf("end chunk header = % x", tail[:5])
	}
	if n := int(tail[5]) | int(tail[6])<<8 | int(tail[7])<<16 | int(tail[8])<<24; n != len(data) {
		t.Fatalf("end chunk = %d, file = %d", n, len(data))
	}
}

func TestEncode_NilBook(t *testing.T) {
	if err := Encode(io.Discard, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestEncode_WriterError(t *testing.T) {
	err := Encode(&failingWriter{n: 10}, sampleBook(), WithTempDir(t.TempDir()))
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestEncode_SpoolRemoved(t *testing.T) {
	dir := t.TempDir()
	if err := Encode(io.Discard, sampleBook(), WithTempDir(dir)); err != nil {
		t.Fatal(err)
	}
	big := sampleBook()
	big.Chapters[0].Content = StringText(strings.Repeat("x", 3*BlockSize))
	if err := Encode(&failingWriter{n: 400}, big, WithTempDir(dir)); err == nil {
		t.Fatal("expected error")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("spool files left behind: %v", entries)
	}
}

type errText struct{}

func (errText) Text() (string, error) { return "", io.ErrUnexpectedEOF }

func TestEncode_ChapterTextError(t *testing.T) {
	b := &Book{Chapters: []Chapter{{Title: "bad", Content: errText{}}}}
	err := Encode(io.Discard, b, WithTempDir(t.TempDir()))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected chapter error, got %v", err)
	}
}

func TestEncode_FieldTooLong(t *testing.T) {
	b := sampleBook()
	b.Title = strings.Repeat("t", 126)
	if err := Encode(io.Discard, b); !errors.Is(err, ErrFieldTooLong) {
		t.Fatalf("expected ErrFieldTooLong, got %v", err)
	}
	b = sampleBook()
	b.Chapters[0].Title = strings.Repeat("t", 128)
	if err := Encode(io.Discard, b); !errors.Is(err, ErrFieldTooLong) {
		t.Fatalf("expected ErrFieldTooLong, got %v", err)
	}
	b = sampleBook()
	b.LicenseKey = make([]byte, 251)
	if err := Encode(io.Discard, b); !errors.Is(err, ErrFieldTooLong) {
		t.Fatalf("expected ErrFieldTooLong, got %v", err)
	}
}

func TestEncode_LongestFieldsFit(t *testing.T) {
	b := &Book{Title: strings.Repeat("t", 125), Chapters: []Chapter{{Title: strings.Repeat("c", 127)}}}
	got := decodeBytes(t, encodeBook(t, b))
	if got.Title != b.Title || got.Chapters[0].Title != b.Chapters[0].Title {
		t.Fatal("long fields did not round-trip")
	}
}

func TestOpenAndClose(t *testing.T) {
	p := filepath.Join(t.TempDir(), "book.umd")
	if err := os.WriteFile(p, encodeBook(t, sampleBook()), 0o644); err != nil {
		t.Fatal(err)
	}
	b, err := Open(p)
	if err != nil {
		t.Fatal(err)
	}
	if s := chapterText(t, b.Chapters[0]); s != "first line\nsecond line" {
		t.Fatalf("text = %q", s)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := b.Chapters[0].Content.Text(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.umd"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}

func TestInfo(t *testing.T) {
	got := decodeBytes(t, encodeBook(t, sampleBook()))
	info := got.Info()
	if info.ContentType != "text" || info.Chapters != 4 || !info.HasCover || info.Date != "2024-03-09" {
		t.Fatalf("info = %#v", info)
	}
	if info.TextBlocks != 1 || info.TextBytes == 0 {
		t.Fatalf("info = %#v", info)
	}
}

func TestFormatFromName(t *testing.T) {
	cases := map[string]ImageFormat{
		"cover.bmp":  FormatBMP,
		"COVER.GIF":  FormatGIF,
		"a/b/c.jpg":  FormatJPG,
		"c.jpeg":     FormatJPG,
		"c.png":      FormatJPG,
		"no-ext":     FormatJPG,
		"archive.gz": FormatJPG,
	}
	for name, want := range cases {
		if got := FormatFromName(name); got != want {
			t.Fatalf("%s: got %v want %v", name, got, want)
		}
	}
	if NewImage("x.gif", nil).Ext() != ".gif" {
		t.Fatal("unexpected ext")
	}
}

func TestLoadImage(t *testing.T) {
	p := filepath.Join(t.TempDir(), "cover.bmp")
	if err := os.WriteFile(p, []byte("BM"), 0o644); err != nil {
		t.Fatal(err)
	}
	img, err := LoadImage(p)
	if err != nil {
		t.Fatal(err)
	}
	if img.Format != FormatBMP || string(img.Data) != "BM" {
		t.Fatalf("image = %#v", img)
	}
}

func TestContentTypeString(t *testing.T) {
	if ContentType(9).String() != "unknown" || ImageFormat(9).String() != "unknown" {
		t.Fatal("expected unknown")
	}
}
