package umd

import (
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/klauspost/compress/zlib"
)

type readConfig struct {
	limits        Limits
	logger        *slog.Logger
	lineEnding    string
	strictTrailer bool
}

func newReadConfig(opts []ReadOption) readConfig {
	cfg := readConfig{limits: defaultLimits(), lineEnding: "\n"}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.limits = cfg.limits.withDefaults()
	if cfg.logger == nil {
		cfg.logger = discardLogger()
	}
	return cfg
}

type ReadOption func(*readConfig)

func WithReadLimits(l Limits) ReadOption {
	return func(c *readConfig) { c.limits = l }
}

// WithLineEnding sets the terminator that replaces the UMD paragraph
// separator in decoded text. The default is "\n".
func WithLineEnding(s string) ReadOption {
	return func(c *readConfig) { c.lineEnding = s }
}

// WithStrictTrailer makes a umd-end chunk that disagrees with the number of
// bytes read fail with ErrBadTrailer instead of being logged.
func WithStrictTrailer(v bool) ReadOption {
	return func(c *readConfig) { c.strictTrailer = v }
}

func WithReadLogger(l *slog.Logger) ReadOption {
	return func(c *readConfig) { c.logger = l }
}

type writeConfig struct {
	logger        *slog.Logger
	rand          *rand.Rand
	tempDir       string
	level         int
	cartoonImages []Image
	hasImages     bool
}

func newWriteConfig(opts []WriteOption) writeConfig {
	cfg := writeConfig{level: zlib.DefaultCompression}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = discardLogger()
	}
	if cfg.rand == nil {
		cfg.rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	return cfg
}

type WriteOption func(*writeConfig)

// WithSeed makes the filler values (check values, head seed, random content
// id, placement of the license chunk) deterministic.
func WithSeed(seed uint64) WriteOption {
	return func(c *writeConfig) { c.rand = rand.New(rand.NewPCG(seed, seed)) }
}

// WithTempDir sets the directory for the raw text spool file.
// The default is os.TempDir.
func WithTempDir(dir string) WriteOption {
	return func(c *writeConfig) { c.tempDir = dir }
}

// WithCompressionLevel sets the zlib level used for text blocks.
func WithCompressionLevel(level int) WriteOption {
	return func(c *writeConfig) { c.level = level }
}

// WithCartoonImages supplies the page images of a cartoon book, one per
// chapter, in chapter order. Without it each chapter's Cover is used.
func WithCartoonImages(images []Image) WriteOption {
	return func(c *writeConfig) {
		c.cartoonImages = images
		c.hasImages = true
	}
}

func WithWriteLogger(l *slog.Logger) WriteOption {
	return func(c *writeConfig) { c.logger = l }
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
