package main

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var skipTags = map[atom.Atom]bool{
	atom.Head:   true,
	atom.Script: true,
	atom.Style:  true,
	atom.Title:  true,
}

var blockTags = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Blockquote: true, atom.Pre: true, atom.Tr: true, atom.Section: true, atom.Hr: true,
}

// htmlText flattens an HTML chapter to lines of text: block elements start a
// new line, script and style content is dropped.
func htmlText(data []byte) (string, error) {
	z := html.NewTokenizer(bytes.NewReader(data))
	var buf strings.Builder
	skipDepth := 0
	lastWasNewline := true
	newline := func() {
		if buf.Len() > 0 && !lastWasNewline {
			buf.WriteByte('\n')
			lastWasNewline = true
		}
	}
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return tidyLines(buf.String()), nil
			}
			return "", z.Err()
		case html.StartTagToken, html.SelfClosingTagToken:
			tn, _ := z.TagName()
			a := atom.Lookup(tn)
			if skipTags[a] {
				if tt == html.StartTagToken {
					skipDepth++
				}
				continue
			}
			if skipDepth == 0 && blockTags[a] {
				newline()
			}
		case html.EndTagToken:
			tn, _ := z.TagName()
			a := atom.Lookup(tn)
			if skipTags[a] && skipDepth > 0 {
				skipDepth--
				continue
			}
			if skipDepth == 0 && blockTags[a] {
				newline()
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			raw := string(z.Text())
			text := strings.Join(strings.Fields(raw), " ")
			if text == "" {
				if raw != "" && !lastWasNewline {
					buf.WriteByte(' ')
				}
				continue
			}
			if isSpace(raw[0]) && !lastWasNewline {
				buf.WriteByte(' ')
			}
			buf.WriteString(text)
			if isSpace(raw[len(raw)-1]) {
				buf.WriteByte(' ')
			}
			lastWasNewline = false
		}
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f'
}

// tidyLines trims every line and drops the blank ones.
func tidyLines(s string) string {
	var lines []string
	for line := range strings.SplitSeq(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
