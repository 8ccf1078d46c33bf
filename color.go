package listingkit

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	hexColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
	rgbColorPattern = regexp.MustCompile(`^(rgba?)\(([^()]*)\)$`)
)

// namedColors is the fixed set of color keywords accepted in styleVariables.
var namedColors = map[string]bool{
	"black":        true,
	"white":        true,
	"red":          true,
	"green":        true,
	"blue":         true,
	"yellow":       true,
	"orange":       true,
	"purple":       true,
	"pink":         true,
	"gray":         true,
	"grey":         true,
	"brown":        true,
	"transparent":  true,
	"currentcolor": true,
	"inherit":      true,
}

// DefaultPalette is used when a document has no styleVariables.
var DefaultPalette = map[string]string{
	"--color-primary":    "#2563eb",
	"--color-secondary":  "#64748b",
	"--color-accent":     "#f59e0b",
	"--color-background": "#ffffff",
	"--color-surface":    "#f8fafc",
	"--color-text":       "#111827",
}

// IsValidColor reports whether s is #rgb, #rrggbb, rgb(), rgba() or one of
// the named colors.
func IsValidColor(s string) bool {
	s = strings.TrimSpace(s)
	if hexColorPattern.MatchString(s) {
		return true
	}
	if namedColors[strings.ToLower(s)] {
		return true
	}
	m := rgbColorPattern.FindStringSubmatch(strings.ToLower(s))
	if m == nil {
		return false
	}
	parts := strings.Split(m[2], ",")
	want := 3
	if m[1] == "rgba" {
		want = 4
	}
	if len(parts) != want {
		return false
	}
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if i == 3 {
			a, err := strconv.ParseFloat(p, 64)
			if err != nil || a < 0 || a > 1 {
				return false
			}
			continue
		}
		c, err := strconv.Atoi(p)
		if err != nil || c < 0 || c > 255 {
			return false
		}
	}
	return true
}
