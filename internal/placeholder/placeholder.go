// Package placeholder draws the neutral SVG images shown where a listing
// has no photo yet.
package placeholder

import (
	"encoding/base64"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/livetemplate/listingkit"
)

const (
	DefaultBackground = "#e5e7eb"
	DefaultForeground = "#6b7280"

	// MaxSize bounds either dimension.
	MaxSize = 4000
)

// SVG returns the markup for a width x height placeholder. Invalid colors
// fall back to the defaults and an empty label becomes "WxH".
func SVG(width, height int, label, bg, fg string) string {
	width = clamp(width)
	height = clamp(height)
	if !listingkit.IsValidColor(bg) {
		bg = DefaultBackground
	}
	if !listingkit.IsValidColor(fg) {
		fg = DefaultForeground
	}
	if strings.TrimSpace(label) == "" {
		label = fmt.Sprintf("%d×%d", width, height)
	}

	fontSize := width / 12
	if h := height / 6; h < fontSize {
		fontSize = h
	}
	if fontSize < 8 {
		fontSize = 8
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, width, height, width, height)
	fmt.Fprintf(&b, `<rect width="100%%" height="100%%" fill="%s"/>`, html.EscapeString(bg))
	fmt.Fprintf(&b, `<text x="50%%" y="50%%" fill="%s" font-family="sans-serif" font-size="%d" text-anchor="middle" dominant-baseline="middle">%s</text>`,
		html.EscapeString(fg), fontSize, html.EscapeString(label))
	b.WriteString(`</svg>`)
	return b.String()
}

// DataURL wraps SVG output for use in an img src.
func DataURL(width, height int, label, bg, fg string) string {
	svg := SVG(width, height, label, bg, fg)
	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg))
}

// ParseSize reads "640x480" or "640x480.svg".
func ParseSize(s string) (int, int, error) {
	s = strings.TrimSuffix(s, ".svg")
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("placeholder size %q: want WIDTHxHEIGHT", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("placeholder size %q: bad width", s)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("placeholder size %q: bad height", s)
	}
	return clamp(width), clamp(height), nil
}

func clamp(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxSize {
		return MaxSize
	}
	return n
}
