package umd

import "errors"

var (
	ErrBadMagic               = errors.New("umd: invalid magic")
	ErrBadSeparator           = errors.New("umd: invalid record separator")
	ErrBadLength              = errors.New("umd: invalid record length")
	ErrBadTrailer             = errors.New("umd: trailer length mismatch")
	ErrChapterCountMismatch   = errors.New("umd: chapter count mismatch")
	ErrUnsupportedVariant     = errors.New("umd: unsupported content variant")
	ErrUnsupportedContentType = errors.New("umd: unsupported content type")
	ErrInvalidOffsets         = errors.New("umd: invalid chapter offsets")
	ErrTruncatedText          = errors.New("umd: text blocks truncated")
	ErrFieldTooLong           = errors.New("umd: field too long")
	ErrLimitExceeded          = errors.New("umd: limit exceeded")
	ErrValidation             = errors.New("umd: validation failed")
	ErrClosed                 = errors.New("umd: book is closed")
)
