// Command umd inspects, unpacks and packs UMD e-books.
//
// Usage:
//
//	umd [-v] inspect [-chapters] book.umd...
//	umd [-v] unpack -in book.umd -out dir [-compress none|zip|zstd|lz4|br]
//	umd [-v] pack -in dir -out book.umd [-seed n]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
)

var errUsage = errors.New("usage: umd [-v] inspect|unpack|pack [flags]")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "umd:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("umd", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbose := fs.Bool("v", false, "log debug output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if fs.NArg() == 0 {
		return errUsage
	}
	sub, rest := fs.Arg(0), fs.Args()[1:]
	switch sub {
	case "inspect":
		return runInspect(ctx, rest, stdout, stderr, logger)
	case "unpack":
		return runUnpack(rest, stderr, logger)
	case "pack":
		return runPack(rest, stderr, logger)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, sub)
	}
}
