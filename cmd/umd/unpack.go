package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/phylame/umd"
	"github.com/phylame/umd/internal/export"
)

func runUnpack(args []string, stderr io.Writer, logger *slog.Logger) error {
	fs := flag.NewFlagSet("unpack", flag.ContinueOnError)
	fs.SetOutput(stderr)
	inPath := fs.String("in", "", "input .umd file")
	outDir := fs.String("out", "out", "output directory")
	compName := fs.String("compress", "none", "chapter text compression: none, zip, zstd, lz4 or br")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" {
		return errors.New("-in is required")
	}
	comp, err := export.ParseCompression(*compName)
	if err != nil {
		return err
	}

	b, err := umd.Open(*inPath, umd.WithReadLogger(logger))
	if err != nil {
		return fmt.Errorf("open %s: %w", *inPath, err)
	}
	defer b.Close()

	return unpackBook(b, *outDir, comp, logger)
}

// unpackBook writes the cover, one file per chapter and book.json to dir.
// Chapters with neither text nor a page image are left out.
func unpackBook(b *umd.Book, dir string, comp export.Compression, logger *slog.Logger) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	meta := newBookFile(b)

	if b.Cover != nil {
		meta.Cover = "cover" + b.Cover.Ext()
		if err := writeFile(filepath.Join(dir, meta.Cover), b.Cover.Data, logger); err != nil {
			return err
		}
	}
	for i, ch := range b.Chapters {
		cf := chapterFile{Title: ch.Title}
		switch {
		case ch.Cover != nil:
			cf.File = fmt.Sprintf("%03d%s", i+1, ch.Cover.Ext())
			if err := writeFile(filepath.Join(dir, cf.File), ch.Cover.Data, logger); err != nil {
				return err
			}
		case ch.Content != nil:
			text, err := ch.Content.Text()
			if err != nil {
				return fmt.Errorf("chapter %d: %w", i+1, err)
			}
			name := fmt.Sprintf("%03d.txt", i+1)
			cf.File = name + comp.Ext()
			if err := writeExport(filepath.Join(dir, cf.File), name, comp, []byte(text), logger); err != nil {
				return err
			}
		default:
			logger.Warn("skipping empty chapter", "chapter", i+1, "title", ch.Title)
			continue
		}
		meta.Chapters = append(meta.Chapters, cf)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, bookFileName), data, logger)
}

func writeFile(path string, data []byte, logger *slog.Logger) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	logger.Info("wrote", "path", path, "bytes", len(data))
	return nil
}

func writeExport(path, name string, comp export.Compression, data []byte, logger *slog.Logger) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err := export.Write(f, name, comp, data); err != nil {
		return err
	}
	logger.Info("wrote", "path", path, "compression", comp.String())
	return nil
}
