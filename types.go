package umd

// Magic is the 4-byte UMD file signature, stored little-endian.
const Magic uint32 = 0xDE9A9B89

const (
	chunkSeparator    byte = 0x23 // '#'
	additionSeparator byte = 0x24 // '$'

	chunkHeaderSize    = 5
	additionHeaderSize = 9

	// maxChunkPayload is the largest payload whose total record length still
	// fits the one-byte length field.
	maxChunkPayload = 0xFF - chunkHeaderSize

	// BlockSize is the raw (uncompressed) size of one text block.
	BlockSize = 32768
)

// ContentType selects which bodies follow the head chunk.
type ContentType uint8

const (
	ContentText    ContentType = 1
	ContentCartoon ContentType = 2
	ContentComic   ContentType = 3
)

func (t ContentType) String() string {
	switch t {
	case ContentText:
		return "text"
	case ContentCartoon:
		return "cartoon"
	case ContentComic:
		return "comic"
	default:
		return "unknown"
	}
}

type chunkType uint8

const (
	chunkSingle   chunkType = 0
	chunkAppended chunkType = 1
)

// Chunk identifiers.
const (
	cidHead          uint16 = 0x01
	cidTitle         uint16 = 0x02
	cidAuthor        uint16 = 0x03
	cidYear          uint16 = 0x04
	cidMonth         uint16 = 0x05
	cidDay           uint16 = 0x06
	cidGenre         uint16 = 0x07
	cidPublisher     uint16 = 0x08
	cidVendor        uint16 = 0x09
	cidContentID     uint16 = 0x0A
	cidContentLength uint16 = 0x0B
	cidUmdEnd        uint16 = 0x0C
	cidImageFormat   uint16 = 0x0E
	cidContentEnd    uint16 = 0x81
	cidCoverImage    uint16 = 0x82
	cidChapterOffset uint16 = 0x83
	cidChapterTitle  uint16 = 0x84
	cidPageOffset    uint16 = 0x87
	cidCDSKey        uint16 = 0xF0
	cidLicenseKey    uint16 = 0xF1
)

// ImageFormat is the on-disk image type byte.
type ImageFormat uint8

const (
	FormatBMP ImageFormat = 0
	FormatJPG ImageFormat = 1
	FormatGIF ImageFormat = 2
)

func (f ImageFormat) String() string {
	switch f {
	case FormatBMP:
		return "bmp"
	case FormatJPG:
		return "jpg"
	case FormatGIF:
		return "gif"
	default:
		return "unknown"
	}
}

// Image is an embedded picture: the book cover or one cartoon page.
type Image struct {
	Format ImageFormat
	Data   []byte
}

// Text is the body of a chapter.
type Text interface {
	Text() (string, error)
}

// StringText is an in-memory chapter body.
type StringText string

// Text returns s unchanged.
func (s StringText) Text() (string, error) { return string(s), nil }

// Chapter is one entry of the flat chapter list.
//
// In a text book Content holds the chapter body. In a cartoon book Cover holds
// the chapter's page image and Content is nil.
type Chapter struct {
	Title   string
	Content Text
	Cover   *Image
}

// Book is the logical content of a UMD file.
//
// Year, Month and Day are zero when absent; Month is 1-based.
// ContentID zero means "absent" and a random identifier is written on encode.
// LicenseKey and CDSKey are opaque and never interpreted.
type Book struct {
	ContentType ContentType

	Title     string
	Author    string
	Year      int
	Month     int
	Day       int
	Genre     string
	Publisher string
	Vendor    string

	ContentID  uint32
	LicenseKey []byte
	CDSKey     []byte

	Cover    *Image
	Chapters []Chapter

	src *source
}
