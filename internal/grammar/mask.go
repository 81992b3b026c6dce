package grammar

import (
	"regexp"
	"strings"
)

const maskByte = 0

var urlPattern = regexp.MustCompile(`(?i)\b(?:https?|ftp|mailto):[^\s<>()\[\]]+`)

// maskCode blanks out fenced code blocks, inline code spans and URLs so rules
// only see prose. Every masked byte becomes NUL; newlines and byte offsets are
// preserved.
func maskCode(text string) string {
	out := []byte(text)

	var fence string
	start := 0
	for start <= len(text) {
		end := strings.IndexByte(text[start:], '\n')
		if end < 0 {
			end = len(text)
		} else {
			end += start
		}
		line := text[start:end]

		if fence != "" {
			blank(out, start, end)
			if closesFence(line, fence) {
				fence = ""
			}
		} else if marker := fenceMarker(line); marker != "" {
			fence = marker
			blank(out, start, end)
		} else {
			maskInlineCode(out, line, start)
		}
		start = end + 1
	}

	for _, loc := range urlPattern.FindAllIndex(out, -1) {
		blank(out, loc[0], loc[1])
	}
	return string(out)
}

// fenceMarker returns the run of backticks or tildes opening a fence, if any.
func fenceMarker(line string) string {
	trimmed := strings.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 || len(trimmed) < 3 {
		return ""
	}
	ch := trimmed[0]
	if ch != '`' && ch != '~' {
		return ""
	}
	n := 0
	for n < len(trimmed) && trimmed[n] == ch {
		n++
	}
	if n < 3 {
		return ""
	}
	return trimmed[:n]
}

// closesFence reports whether line ends a block opened with fence: the same
// character, at least as many of them, and nothing else on the line.
func closesFence(line, fence string) bool {
	marker := fenceMarker(line)
	if marker == "" || !strings.HasPrefix(marker, fence) {
		return false
	}
	rest := strings.TrimLeft(line, " ")[len(marker):]
	return strings.TrimSpace(rest) == ""
}

// maskInlineCode blanks backtick spans that open and close on the same line.
func maskInlineCode(out []byte, line string, base int) {
	i := 0
	for i < len(line) {
		if line[i] != '`' {
			i++
			continue
		}
		n := 0
		for i+n < len(line) && line[i+n] == '`' {
			n++
		}
		closing := strings.Index(line[i+n:], line[i:i+n])
		if closing < 0 {
			i += n
			continue
		}
		end := i + n + closing + n
		blank(out, base+i, base+end)
		i = end
	}
}

func blank(out []byte, from, to int) {
	for i := from; i < to && i < len(out); i++ {
		if out[i] != '\n' {
			out[i] = maskByte
		}
	}
}

// masked reports whether any byte in [from, to) was blanked.
func masked(original, maskedText string, from, to int) bool {
	for i := from; i < to && i < len(maskedText); i++ {
		if maskedText[i] == maskByte && original[i] != maskByte {
			return true
		}
	}
	return false
}
