// Package grammar finds grammar, spelling and style issues in Markdown text,
// either with local rule engines or by asking a remote text-generation model.
//
// All engines report positions the same way: Line and Column are zero-based,
// Offset is the zero-based character index of the start of the match from the
// beginning of the text, and Length counts characters. A character is a
// Unicode code point.
package grammar

import (
	"context"
	"sort"
	"unicode/utf8"
)

// Issue is one flagged span with a proposed correction.
type Issue struct {
	Line        int    `json:"line"`
	Column      int    `json:"column"`
	Offset      int    `json:"offset"`
	Length      int    `json:"length"`
	Original    string `json:"original"`
	Suggestion  string `json:"suggestion"`
	Explanation string `json:"explanation"`
}

// Correction is the full result of a remote correction request.
type Correction struct {
	CorrectedText string  `json:"correctedText"`
	Issues        []Issue `json:"issues"`
}

// Checker is implemented by every engine. An empty, non-nil slice means the
// text has no issues; a failed check always returns an error.
type Checker interface {
	Check(ctx context.Context, text string) ([]Issue, error)
}

// textIndex converts byte offsets into line/column/character positions.
type textIndex struct {
	text       string
	lineStarts []int // byte offset of each line
	lineRunes  []int // character offset of each line
}

func newTextIndex(text string) *textIndex {
	ix := &textIndex{text: text, lineStarts: []int{0}, lineRunes: []int{0}}
	runes := 0
	for i, r := range text {
		runes++
		if r == '\n' {
			ix.lineStarts = append(ix.lineStarts, i+1)
			ix.lineRunes = append(ix.lineRunes, runes)
		}
	}
	return ix
}

// position returns line, column and character offset for a byte offset.
// The line equals the number of newlines before the offset.
func (ix *textIndex) position(byteOff int) (line, column, offset int) {
	line = sort.Search(len(ix.lineStarts), func(i int) bool { return ix.lineStarts[i] > byteOff }) - 1
	column = utf8.RuneCountInString(ix.text[ix.lineStarts[line]:byteOff])
	return line, column, ix.lineRunes[line] + column
}

// issue builds an Issue for the byte range [start, end).
func (ix *textIndex) issue(start, end int, suggestion, explanation string) Issue {
	line, column, offset := ix.position(start)
	original := ix.text[start:end]
	return Issue{
		Line:        line,
		Column:      column,
		Offset:      offset,
		Length:      utf8.RuneCountInString(original),
		Original:    original,
		Suggestion:  suggestion,
		Explanation: explanation,
	}
}

// byteOffsetOfRune returns the byte offset of the n-th character, or false
// when n lies outside the text.
func (ix *textIndex) byteOffsetOfRune(n int) (int, bool) {
	if n < 0 {
		return 0, false
	}
	count := 0
	for i := range ix.text {
		if count == n {
			return i, true
		}
		count++
	}
	if count == n {
		return len(ix.text), true
	}
	return 0, false
}

// byteOffsetOfUTF16 maps a UTF-16 code unit offset to a byte offset.
func (ix *textIndex) byteOffsetOfUTF16(n int) (int, bool) {
	if n < 0 {
		return 0, false
	}
	units := 0
	for i, r := range ix.text {
		if units == n {
			return i, true
		}
		if units > n {
			return 0, false
		}
		if r >= 0x10000 {
			units += 2
		} else {
			units++
		}
	}
	if units == n {
		return len(ix.text), true
	}
	return 0, false
}
