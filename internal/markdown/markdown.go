// Package markdown turns assistant replies into sanitized HTML.
//
// Every path that produces HTML goes through the allow-list policy; callers
// never receive markup that did not pass the sanitizer.
package markdown

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// AllowedTags is the complete set of elements that survive sanitization.
var AllowedTags = []string{
	"p", "br",
	"strong", "b", "em", "i", "u", "del", "s",
	"h1", "h2", "h3", "h4", "h5", "h6",
	"ul", "ol", "li",
	"blockquote", "code", "pre",
}

// ConvertFunc renders markdown source into w.
type ConvertFunc func(source []byte, w io.Writer) error

type Renderer struct {
	convert ConvertFunc
	policy  *bluemonday.Policy
}

type Option func(*Renderer)

// WithConverter replaces the goldmark pipeline.
func WithConverter(fn ConvertFunc) Option {
	return func(r *Renderer) {
		if fn != nil {
			r.convert = fn
		}
	}
}

func NewRenderer(opts ...Option) *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithUnsafe(),
		),
	)
	r := &Renderer{
		convert: func(source []byte, w io.Writer) error { return md.Convert(source, w) },
		policy:  NewPolicy(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewPolicy builds the sanitizer: AllowedTags plus the class attribute.
// Anything else is stripped; script and style bodies are dropped entirely.
func NewPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(AllowedTags...)
	p.AllowAttrs("class").Globally()
	return p
}

// Render converts text to sanitized HTML. If conversion fails or panics the
// original text is returned unchanged.
func (r *Renderer) Render(text string) string {
	out, err := r.safeRender(text)
	if err != nil {
		return text
	}
	return out
}

func (r *Renderer) render(text string) (string, error) {
	var buf bytes.Buffer
	if err := r.convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return r.policy.Sanitize(buf.String()), nil
}

// Preview renders text and returns its plain-text content, whitespace
// collapsed and cut to maxRunes characters.
func (r *Renderer) Preview(text string, maxRunes int) string {
	plain := text
	if rendered, err := r.safeRender(text); err == nil {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(rendered)); err == nil {
			plain = doc.Text()
		}
	}
	plain = strings.Join(strings.Fields(plain), " ")
	if maxRunes > 0 {
		runes := []rune(plain)
		if len(runes) > maxRunes {
			plain = string(runes[:maxRunes]) + "..."
		}
	}
	return plain
}

func (r *Renderer) safeRender(text string) (out string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("render panic: %v", rec)
		}
	}()
	return r.render(text)
}

var std = NewRenderer()

// Render uses the package default renderer.
func Render(text string) string { return std.Render(text) }

// Preview uses the package default renderer.
func Preview(text string, maxRunes int) string { return std.Preview(text, maxRunes) }
