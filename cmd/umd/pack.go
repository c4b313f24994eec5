package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zlib"

	"github.com/phylame/umd"
	"github.com/phylame/umd/internal/export"
)

// maxChapterBytes bounds a single decompressed chapter file.
const maxChapterBytes = 256 << 20

func runPack(args []string, stderr io.Writer, logger *slog.Logger) error {
	flags := flag.NewFlagSet("pack", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inDir := flags.String("in", "", "directory holding book.json and chapter files")
	outPath := flags.String("out", "book.umd", "output .umd file")
	seed := flags.Uint64("seed", 0, "seed for filler values (0 = random)")
	level := flags.Int("level", zlib.DefaultCompression, "zlib level for text blocks")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *inDir == "" {
		return errors.New("-in is required")
	}

	meta, err := loadBookFile(*inDir)
	if err != nil {
		return err
	}
	b, err := meta.book()
	if err != nil {
		return err
	}
	cartoon := b.ContentType == umd.ContentCartoon
	if len(meta.Chapters) == 0 {
		if meta.Chapters, err = discoverChapters(*inDir, cartoon); err != nil {
			return err
		}
	}
	for _, cf := range meta.Chapters {
		if cf.File == "" {
			return fmt.Errorf("%s: chapter %q has no file", bookFileName, cf.Title)
		}
		p := filepath.Join(*inDir, filepath.FromSlash(cf.File))
		if cartoon {
			img, err := umd.LoadImage(p)
			if err != nil {
				return err
			}
			b.Chapters = append(b.Chapters, umd.Chapter{Title: cf.Title, Cover: img})
			continue
		}
		text, err := readChapterText(p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		b.Chapters = append(b.Chapters, umd.Chapter{Title: cf.Title, Content: umd.StringText(text)})
	}
	if meta.Cover == "" {
		meta.Cover = discoverCover(*inDir)
	}
	if meta.Cover != "" {
		if b.Cover, err = umd.LoadImage(filepath.Join(*inDir, meta.Cover)); err != nil {
			return err
		}
	}

	opts := []umd.WriteOption{umd.WithWriteLogger(logger), umd.WithCompressionLevel(*level)}
	if *seed != 0 {
		opts = append(opts, umd.WithSeed(*seed))
	}
	if err := encodeFile(*outPath, b, opts); err != nil {
		return err
	}
	logger.Info("packed", "path", *outPath, "chapters", len(b.Chapters), "cover", b.Cover != nil)
	return nil
}

// encodeFile writes b to path, removing the partial file on failure.
func encodeFile(path string, b *umd.Book, opts []umd.WriteOption) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	err = umd.Encode(out, b, opts...)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}

func loadBookFile(dir string) (bookFile, error) {
	var meta bookFile
	data, err := os.ReadFile(filepath.Join(dir, bookFileName))
	if errors.Is(err, fs.ErrNotExist) {
		meta.Title = filepath.Base(filepath.Clean(dir))
		return meta, nil
	}
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("%s: %w", bookFileName, err)
	}
	return meta, nil
}

var (
	textExts  = map[string]bool{".txt": true, ".html": true, ".htm": true, ".xhtml": true}
	imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true}
)

// discoverChapters lists chapter files in name order. The title is the file
// name without extensions.
func discoverChapters(dir string, cartoon bool) ([]chapterFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []chapterFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		_, base := export.FromName(e.Name())
		ext := strings.ToLower(filepath.Ext(base))
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		if cartoon {
			if !imageExts[ext] || strings.EqualFold(stem, "cover") {
				continue
			}
		} else if !textExts[ext] {
			continue
		}
		out = append(out, chapterFile{Title: stem, File: e.Name()})
	}
	return out, nil
}

func discoverCover(dir string) string {
	for _, name := range []string{"cover.jpg", "cover.jpeg", "cover.gif", "cover.bmp"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return name
		}
	}
	return ""
}

// readChapterText loads a chapter file, undoing any export compression, and
// flattens HTML to plain text.
func readChapterText(path string) (string, error) {
	comp, base := export.FromName(filepath.Base(path))
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	data, err := export.Read(f, comp, maxChapterBytes)
	if err != nil {
		return "", err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	switch strings.ToLower(filepath.Ext(base)) {
	case ".html", ".htm", ".xhtml":
		return htmlText(data)
	default:
		return string(data), nil
	}
}
