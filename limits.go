package umd

type Limits struct {
	MaxAdditionLen uint32 // payload bytes of a single addition record
	MaxChapters    int
	MaxTextLen     uint32 // raw UTF-16LE bytes declared by the content-length chunk
	MaxImageLen    uint32
}

func defaultLimits() Limits {
	return Limits{
		MaxAdditionLen: 64 << 20, // 64 MiB
		MaxChapters:    100_000,
		MaxTextLen:     1 << 30, // 1 GiB
		MaxImageLen:    32 << 20,
	}
}

func (l Limits) withDefaults() Limits {
	d := defaultLimits()
	if l.MaxAdditionLen == 0 {
		l.MaxAdditionLen = d.MaxAdditionLen
	}
	if l.MaxChapters == 0 {
		l.MaxChapters = d.MaxChapters
	}
	if l.MaxTextLen == 0 {
		l.MaxTextLen = d.MaxTextLen
	}
	if l.MaxImageLen == 0 {
		l.MaxImageLen = d.MaxImageLen
	}
	return l
}
