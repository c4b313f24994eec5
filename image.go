package umd

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
)

// FormatFromName maps a file name's extension to an ImageFormat.
// Unknown extensions map to FormatJPG.
func FormatFromName(name string) ImageFormat {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "bmp":
		return FormatBMP
	case "gif":
		return FormatGIF
	default:
		return FormatJPG
	}
}

// NewImage wraps data with the format implied by name.
func NewImage(name string, data []byte) *Image {
	return &Image{Format: FormatFromName(name), Data: data}
}

// LoadImage reads an image file from disk.
func LoadImage(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewImage(path, data), nil
}

// Ext returns the conventional file extension for the image, dot included.
func (img Image) Ext() string {
	return "." + img.Format.String()
}

func writeCover(rw *recordWriter, img *Image, rnd *rand.Rand) error {
	if img == nil || len(img.Data) == 0 {
		return nil
	}
	return rw.writeAppended(cidCoverImage, []byte{byte(img.Format)}, rnd.Uint32(), img.Data)
}

// cartoonImages picks the page images for a cartoon book. A book with no
// images at all is written with empty chapter tables.
func cartoonImages(b *Book, cfg *writeConfig) ([]Image, error) {
	var images []Image
	if cfg.hasImages {
		images = cfg.cartoonImages
	} else {
		for _, ch := range b.Chapters {
			if ch.Cover != nil {
				images = append(images, *ch.Cover)
			}
		}
	}
	if len(images) == 0 {
		if len(b.Chapters) > 0 {
			cfg.logger.Warn("umd: cartoon book has no images, writing empty chapter tables", "chapters", len(b.Chapters))
		}
		return nil, nil
	}
	if len(images) != len(b.Chapters) {
		return nil, fmt.Errorf("%w: %d cartoon images for %d chapters", ErrValidation, len(images), len(b.Chapters))
	}
	if err := validateImages(images); err != nil {
		return nil, err
	}
	return images, nil
}

// writeCartoonImages writes the image format chunk and one addition per page.
// The content id and license key chunks are dropped in at random positions
// among the pages. It returns the check value of every page.
func writeCartoonImages(rw *recordWriter, b *Book, images []Image, contentID uint32, rnd *rand.Rand) ([]uint32, error) {
	format := FormatJPG
	if len(images) > 0 {
		format = images[0].Format
	}
	if err := rw.writeChunk(cidImageFormat, chunkSingle, []byte{byte(format)}); err != nil {
		return nil, err
	}
	idAt := rnd.IntN(len(images) + 1)
	keyAt := idAt
	if len(images) > 0 {
		keyAt = (idAt + 1 + rnd.IntN(len(images))) % (len(images) + 1)
	}
	checks := make([]uint32, 0, len(images))
	for i := 0; i <= len(images); i++ {
		if i == idAt {
			if err := writeUint32Chunk(rw, cidContentID, chunkSingle, contentID); err != nil {
				return nil, err
			}
		}
		if i == keyAt {
			if err := writeBlob(rw, cidLicenseKey, b.LicenseKey); err != nil {
				return nil, err
			}
		}
		if i == len(images) {
			break
		}
		check := rnd.Uint32()
		if err := rw.writeAddition(check, images[i].Data); err != nil {
			return nil, err
		}
		checks = append(checks, check)
	}
	return checks, nil
}
