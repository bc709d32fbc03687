package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderMarkdown(t *testing.T) {
	out := RenderMarkdown("**жирный** текст")
	assert.Contains(t, out, "<strong>жирный</strong>")
}

func TestRenderMarkdownStripsScripts(t *testing.T) {
	out := RenderMarkdown("hi <script>alert(1)</script>")
	assert.NotContains(t, out, "<script>")
}

func TestRenderMarkdownEnhancesImagesAndLinks(t *testing.T) {
	out := RenderMarkdown("![cat](https://example.com/cat.png) [site](https://example.com)")
	assert.Contains(t, out, `loading="lazy"`)
	assert.Contains(t, out, `referrerpolicy="no-referrer"`)
	assert.Contains(t, out, "nofollow")
}

func TestEnhanceHTMLLeavesLocalLinks(t *testing.T) {
	out := EnhanceHTML(`<a href="/posts/x">x</a>`)
	assert.NotContains(t, out, "nofollow")
	assert.Equal(t, "", EnhanceHTML(""))
}
