// Package markdown turns uploaded Markdown files into note material: decoded
// text, a display title derived from the filename, and sanitized HTML.
//
// Every exported type is stateless after construction and safe for concurrent
// use by request handlers.
package markdown
