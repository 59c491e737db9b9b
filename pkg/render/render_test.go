package render

import (
	"strings"
	"testing"

	"github.com/charmbracelet/glamour/styles"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	require.Equal(t, "red text", Sanitize("\x1b[31mred\x1b[0m text"))
	require.Equal(t, "title", Sanitize("\x1b]0;pwned\x07title"))
	require.Equal(t, "a\nb\tc", Sanitize("a\r\nb\tc"))
	require.Equal(t, "bell", Sanitize("be\x07ll"))
	require.Equal(t, "日本語 ✓", Sanitize("日本語 ✓"))
}

func TestTerminal_RenderStripsEscapes(t *testing.T) {
	r, err := NewTerminal(60, WithStyle(styles.NoTTYStyle))
	require.NoError(t, err)
	require.Equal(t, 60, r.Width())

	out := r.Render("**Membership** costs \x1b[2J1.000.000 IDR")
	require.NotContains(t, out, "\x1b[2J")
	require.Contains(t, out, "Membership")
	require.Contains(t, out, "1.000.000 IDR")
}

func TestTerminal_RenderEmpty(t *testing.T) {
	r, err := NewTerminal(0, WithStyle(styles.NoTTYStyle))
	require.NoError(t, err)
	require.Equal(t, 80, r.Width())
	require.Equal(t, "", r.Render(""))

	var nilRenderer *Terminal
	require.Equal(t, "plain", nilRenderer.Render("plain"))
}

func TestHTML_Render(t *testing.T) {
	h := NewHTML()

	out, err := h.Render("**Benefits**\n\n- free infusions\n- priority booking")
	require.NoError(t, err)
	require.Contains(t, out, "<strong>Benefits</strong>")
	require.Contains(t, out, "<li>free infusions</li>")
}

func TestHTML_RenderDropsUnsafeMarkup(t *testing.T) {
	h := NewHTML()

	out, err := h.Render(`hi <script>alert(1)</script> <img src=x onerror=alert(1)> [x](javascript:alert(1)) [site](https://example.com)`)
	require.NoError(t, err)
	require.NotContains(t, out, "<script")
	require.NotContains(t, out, "onerror")
	require.NotContains(t, out, "javascript:")
	require.Contains(t, out, `href="https://example.com"`)
	require.True(t, strings.Contains(out, `rel="nofollow`))
}
