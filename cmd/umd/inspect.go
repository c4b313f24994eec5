package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"runtime"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"

	"github.com/phylame/umd"
)

type chapterSummary struct {
	Title       string `json:"title"`
	TextBytes   int    `json:"text_bytes,omitempty"`
	ImageDigest string `json:"image_digest,omitempty"`
}

type inspectResult struct {
	Path string `json:"path"`
	umd.Info
	CoverDigest string           `json:"cover_digest,omitempty"`
	ChapterList []chapterSummary `json:"chapter_list,omitempty"`
}

func runInspect(ctx context.Context, args []string, stdout, stderr io.Writer, logger *slog.Logger) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	chapters := fs.Bool("chapters", false, "list chapters")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errUsage
	}

	paths := fs.Args()
	results := make([]inspectResult, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := inspectFile(p, *chapters, logger)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func inspectFile(path string, withChapters bool, logger *slog.Logger) (inspectResult, error) {
	b, err := umd.Open(path, umd.WithReadLogger(logger.With("file", path)))
	if err != nil {
		return inspectResult{}, err
	}
	defer b.Close()

	r := inspectResult{Path: path, Info: b.Info()}
	if b.Cover != nil {
		r.CoverDigest = digest.FromBytes(b.Cover.Data).String()
	}
	if withChapters {
		for _, ch := range b.Chapters {
			s := chapterSummary{Title: ch.Title}
			if bt, ok := ch.Content.(*umd.BlockText); ok {
				s.TextBytes = bt.Len()
			}
			if ch.Cover != nil {
				s.ImageDigest = digest.FromBytes(ch.Cover.Data).String()
			}
			r.ChapterList = append(r.ChapterList, s)
		}
	}
	logger.Debug("inspected", "file", path, "chapters", len(b.Chapters))
	return r, nil
}
