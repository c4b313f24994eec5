// Package umd implements the UMD e-book container format.
//
// A UMD file stores book metadata, chapter text and embedded images as a
// flat stream of framed records following a 4-byte magic number.
//
// # File Format Overview
//
// All integers are little-endian. After the magic 0xDE9A9B89 the file is a
// sequence of two record kinds:
//   - Chunks: '#' id:u16 type:u8 len:u8 payload, where len counts the whole
//     record and the payload is at most 250 bytes. Chunks carry small fields
//     such as the title, the author or the content length.
//   - Additions: '$' check:u32 len:u32 payload. An appended chunk (type 1)
//     is followed by one addition holding its bulk data: the chapter offsets
//     table, the titles table, the cover image. Additions with no announcing
//     chunk are content: zlib-compressed text blocks or cartoon pages.
//
// Strings are UTF-16LE without terminator. Chapter text is concatenated into
// one UTF-16LE stream in which U+2029 separates lines, cut into 32 KiB blocks,
// and each block is compressed on its own. Chapters are located by raw byte
// offsets into that stream, so a chapter may span several blocks.
//
// Check values in additions are filler and are neither produced from the data
// nor verified.
//
// # Basic Usage
//
// To write a book:
//
//	b := &umd.Book{
//		Title:  "My Book",
//		Author: "Someone",
//		Chapters: []umd.Chapter{
//			{Title: "One", Content: umd.StringText("first line\nsecond line")},
//		},
//	}
//	f, _ := os.Create("book.umd")
//	defer f.Close()
//	err := umd.Encode(f, b)
//
// To read one:
//
//	b, err := umd.Open("book.umd")
//	if err != nil {
//		return err
//	}
//	defer b.Close()
//	text, err := b.Chapters[0].Content.Text()
//
// Chapter text of a decoded book is inflated lazily, each time it is asked
// for, from the file the Book keeps open.
package umd
