// Package render turns bot replies into something safe to display. Replies
// are untrusted: the terminal path strips control sequences before markdown
// styling and the HTML path runs through an element allowlist.
package render

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Terminal renders markdown replies for a terminal of a given width.
type Terminal struct {
	renderer *glamour.TermRenderer
	width    int
}

type TerminalOption func(*terminalConfig)

type terminalConfig struct {
	style string
}

// WithStyle forces a glamour style ("dark", "light", "notty", ...).
func WithStyle(style string) TerminalOption {
	return func(c *terminalConfig) { c.style = style }
}

func NewTerminal(width int, opts ...TerminalOption) (*Terminal, error) {
	cfg := terminalConfig{style: detectStyle()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(cfg.style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create markdown renderer")
	}
	return &Terminal{renderer: r, width: width}, nil
}

func (t *Terminal) Width() int { return t.width }

// Render sanitizes and styles one reply. A styling failure falls back to the
// sanitized plain text.
func (t *Terminal) Render(text string) string {
	clean := Sanitize(text)
	if t == nil || t.renderer == nil || strings.TrimSpace(clean) == "" {
		return clean
	}
	out, err := t.renderer.Render(clean)
	if err != nil {
		log.Debug().Err(err).Str("component", "render").Msg("markdown render failed, using plain text")
		return clean
	}
	return strings.Trim(out, "\n")
}

// Sanitize removes ANSI escape sequences and other control characters,
// keeping newlines and tabs.
func Sanitize(s string) string {
	s = ansi.Strip(s)
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r == '\r':
			return -1
		case r < 0x20 || r == 0x7f || (r >= 0x80 && r < 0xa0):
			return -1
		default:
			return r
		}
	}, s)
}

func detectStyle() string {
	if termenv.EnvNoColor() {
		return styles.NoTTYStyle
	}
	if termenv.HasDarkBackground() {
		return styles.DarkStyle
	}
	return styles.LightStyle
}
