package markdown

import (
	"fmt"
	"html"
	"strings"

	"mdnotes/internal/common"
)

const (
	// Extension is the only accepted upload suffix. The match is case-sensitive.
	Extension = ".md"

	PlaceholderTitle = "Untitled Note"
)

// ExtractTitle derives a display title from an upload filename: the suffix is
// removed and the rest is HTML-escaped. An absent filename, or one that is only
// the suffix, yields PlaceholderTitle.
func ExtractTitle(filename string) (string, error) {
	if filename == "" {
		return PlaceholderTitle, nil
	}
	if !strings.HasSuffix(filename, Extension) {
		return "", fmt.Errorf("%w: %q", common.ErrInvalidFileType, filename)
	}

	base := strings.TrimSuffix(filename, Extension)
	if strings.TrimSpace(base) == "" {
		return PlaceholderTitle, nil
	}
	return html.EscapeString(base), nil
}
