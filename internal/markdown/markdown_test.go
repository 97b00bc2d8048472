package markdown

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderKeepsEmphasisAndDropsScript(t *testing.T) {
	out := Render("**bold** <script>alert(1)</script>")
	assert.Contains(t, out, "<strong>bold</strong>")
	assert.NotContains(t, strings.ToLower(out), "<script")
	assert.NotContains(t, out, "alert(1)")
}

func TestRenderSoftBreaksBecomeLineBreaks(t *testing.T) {
	out := Render("first line\nsecond line")
	assert.Contains(t, out, "<br")
	assert.Equal(t, 1, strings.Count(out, "<p>"))
}

func TestRenderHeadingsHaveNoIDs(t *testing.T) {
	out := Render("## Risk Summary")
	assert.Contains(t, out, "<h2>Risk Summary</h2>")
	assert.NotContains(t, out, "id=")
}

func TestRenderFencedCodeKeepsClass(t *testing.T) {
	out := Render("```python\nprint('alpha')\n```")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(out))
	require.NoError(t, err)

	code := doc.Find("pre > code")
	require.Equal(t, 1, code.Length())
	class, ok := code.Attr("class")
	assert.True(t, ok)
	assert.Equal(t, "language-python", class)
}

func TestRenderStripsDisallowedTagsAndAttributes(t *testing.T) {
	out := Render(`[site](https://example.com) <img src=x onerror="alert(1)"> <p style="color:red" class="note">hi</p>

| a | b |
|---|---|
| 1 | 2 |`)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(out))
	require.NoError(t, err)
	assert.Zero(t, doc.Find("a, img, table, td, th").Length())
	assert.NotContains(t, out, "onerror")
	assert.NotContains(t, out, "style=")
	assert.Contains(t, out, `class="note"`)
	assert.Contains(t, doc.Text(), "site")
}

func TestRenderListsAndQuotes(t *testing.T) {
	out := Render("- one\n- two\n\n> caution")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Find("ul > li").Length())
	assert.Equal(t, 1, doc.Find("blockquote").Length())
}

func TestRenderFallsBackOnConverterError(t *testing.T) {
	r := NewRenderer(WithConverter(func([]byte, io.Writer) error {
		return errors.New("boom")
	}))
	assert.Equal(t, "**raw** input", r.Render("**raw** input"))
}

func TestRenderFallsBackOnConverterPanic(t *testing.T) {
	r := NewRenderer(WithConverter(func([]byte, io.Writer) error {
		panic("malformed")
	}))
	assert.NotPanics(t, func() {
		assert.Equal(t, "| broken", r.Render("| broken"))
	})
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "Buy the dip", Preview("**Buy** the\n\n*dip*", 0))
	assert.Equal(t, "Reduce...", Preview("# Reduce exposure now", 6))
	assert.Equal(t, "", Preview("<script>x()</script>", 10))
}
