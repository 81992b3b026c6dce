package markdown

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

var (
	codeLanguageClass = regexp.MustCompile(`^language-[\w+#.-]+$`)

	// script triggers that survive as plain text or attribute data
	scriptScheme = regexp.MustCompile(`(?i)(javascript):`)
	errorHandler = regexp.MustCompile(`(?i)(onerror)=`)
)

// Sanitizer applies a fixed allow-list: text formatting, block structure,
// tables and links with http, https or mailto targets. Anything else,
// including event handler attributes, is dropped. The policy is not
// configurable by callers.
type Sanitizer struct {
	policy *bluemonday.Policy
}

func NewSanitizer() *Sanitizer {
	return &Sanitizer{policy: newNotePolicy()}
}

// Sanitize never fails; malformed markup degrades by dropping. Script
// triggers left in text are entity-encoded, which renders identically.
func (s *Sanitizer) Sanitize(html string) string {
	out := s.policy.Sanitize(html)
	out = scriptScheme.ReplaceAllString(out, "${1}&#58;")
	return errorHandler.ReplaceAllString(out, "${1}&#61;")
}

func newNotePolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()

	// formatting
	p.AllowElements("b", "strong", "i", "em", "u", "s", "del", "strike", "sub", "sup",
		"small", "mark", "code", "kbd", "samp", "var", "br", "span")

	// blocks
	p.AllowElements("p", "div", "h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li", "blockquote", "pre", "hr", "dl", "dt", "dd")
	p.AllowAttrs("start").Matching(bluemonday.Integer).OnElements("ol")
	p.AllowAttrs("class").Matching(codeLanguageClass).OnElements("code")

	// tables
	p.AllowTables()
	p.AllowStyles("text-align").MatchingEnum("left", "center", "right").OnElements("th", "td")

	// links
	p.AllowStandardURLs()
	p.AllowAttrs("href", "title").OnElements("a")
	p.RequireNoFollowOnLinks(true)

	return p
}
