package markdown

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer converts Markdown into HTML with the GitHub-flavoured table,
// strikethrough and autolink extensions. Raw HTML embedded in the source is
// omitted by goldmark; whatever survives still goes through the Sanitizer.
type Renderer struct {
	extensions []goldmark.Extender
	hardWraps  bool
}

type RendererOption func(*Renderer)

// WithHardWraps renders soft line breaks as <br>.
func WithHardWraps() RendererOption {
	return func(r *Renderer) { r.hardWraps = true }
}

func NewRenderer(opts ...RendererOption) *Renderer {
	r := &Renderer{
		extensions: []goldmark.Extender{
			extension.Table,
			extension.Strikethrough,
			extension.Linkify,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render returns the HTML for source. The output depends only on the input.
func (r *Renderer) Render(source string) (string, error) {
	var buf bytes.Buffer
	if err := r.engine().Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("markdown render: %w", err)
	}
	return buf.String(), nil
}

func (r *Renderer) engine() goldmark.Markdown {
	var rendererOptions []goldmark.Option
	if r.hardWraps {
		rendererOptions = append(rendererOptions, goldmark.WithRendererOptions(html.WithHardWraps()))
	}
	return goldmark.New(append(rendererOptions, goldmark.WithExtensions(r.extensions...))...)
}
