package main

import (
	"fmt"

	"github.com/phylame/umd"
)

// bookFileName is the metadata file written by unpack and read by pack.
const bookFileName = "book.json"

type bookFile struct {
	ContentType string        `json:"content_type,omitempty"`
	Title       string        `json:"title,omitempty"`
	Author      string        `json:"author,omitempty"`
	Year        int           `json:"year,omitempty"`
	Month       int           `json:"month,omitempty"`
	Day         int           `json:"day,omitempty"`
	Genre       string        `json:"genre,omitempty"`
	Publisher   string        `json:"publisher,omitempty"`
	Vendor      string        `json:"vendor,omitempty"`
	ContentID   uint32        `json:"content_id,omitempty"`
	LicenseKey  []byte        `json:"license_key,omitempty"`
	CDSKey      []byte        `json:"cds_key,omitempty"`
	Cover       string        `json:"cover,omitempty"`
	Chapters    []chapterFile `json:"chapters,omitempty"`
}

type chapterFile struct {
	Title string `json:"title"`
	File  string `json:"file"`
}

func newBookFile(b *umd.Book) bookFile {
	return bookFile{
		ContentType: b.ContentType.String(),
		Title:       b.Title,
		Author:      b.Author,
		Year:        b.Year,
		Month:       b.Month,
		Day:         b.Day,
		Genre:       b.Genre,
		Publisher:   b.Publisher,
		Vendor:      b.Vendor,
		ContentID:   b.ContentID,
		LicenseKey:  b.LicenseKey,
		CDSKey:      b.CDSKey,
	}
}

// book builds the metadata part of a umd.Book; chapters and cover are
// loaded by the caller.
func (f bookFile) book() (*umd.Book, error) {
	b := &umd.Book{
		Title:      f.Title,
		Author:     f.Author,
		Year:       f.Year,
		Month:      f.Month,
		Day:        f.Day,
		Genre:      f.Genre,
		Publisher:  f.Publisher,
		Vendor:     f.Vendor,
		ContentID:  f.ContentID,
		LicenseKey: f.LicenseKey,
		CDSKey:     f.CDSKey,
	}
	switch f.ContentType {
	case "", "text":
		b.ContentType = umd.ContentText
	case "cartoon":
		b.ContentType = umd.ContentCartoon
	default:
		return nil, fmt.Errorf("%w: content type %q", umd.ErrUnsupportedVariant, f.ContentType)
	}
	return b, nil
}
