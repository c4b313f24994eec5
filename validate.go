package umd

import (
	"fmt"
	"unicode/utf8"
)

// validateBook checks everything that would otherwise fail half way through
// writing.
func validateBook(b *Book) error {
	if b == nil {
		return fmt.Errorf("%w: book is nil", ErrValidation)
	}
	for _, a := range stringAttrs {
		v := a.get(b)
		if err := validateField(a.name, v, maxChunkPayload); err != nil {
			return err
		}
	}
	if b.Month < 0 || b.Month > 12 {
		return fmt.Errorf("%w: month %d out of range", ErrValidation, b.Month)
	}
	if b.Day < 0 || b.Day > 31 {
		return fmt.Errorf("%w: day %d out of range", ErrValidation, b.Day)
	}
	if len(b.LicenseKey) > maxChunkPayload {
		return fmt.Errorf("%w: license key is %d bytes, max %d", ErrFieldTooLong, len(b.LicenseKey), maxChunkPayload)
	}
	if len(b.CDSKey) > maxChunkPayload {
		return fmt.Errorf("%w: cds key is %d bytes, max %d", ErrFieldTooLong, len(b.CDSKey), maxChunkPayload)
	}
	for i, ch := range b.Chapters {
		if err := validateField(fmt.Sprintf("chapter %d title", i), ch.Title, 0xFF); err != nil {
			return err
		}
	}
	return nil
}

// validateField checks the UTF-16LE size of s against max bytes.
func validateField(name, s string, max int) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: %s is not valid UTF-8", ErrValidation, name)
	}
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 4
		} else {
			n += 2
		}
	}
	if n > max {
		return fmt.Errorf("%w: %s is %d bytes in UTF-16LE, max %d", ErrFieldTooLong, name, n, max)
	}
	return nil
}

// validateImages rejects pages that a single image format chunk cannot
// describe.
func validateImages(images []Image) error {
	for i, img := range images {
		if img.Format != images[0].Format {
			return fmt.Errorf("%w: page %d is %s but page 0 is %s", ErrValidation, i, img.Format, images[0].Format)
		}
	}
	return nil
}
