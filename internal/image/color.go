package imagepkg

import (
	"image/color"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// ParseColor understands the CSS color forms a certificate form sends:
// #rgb, #rgba, #rrggbb, #rrggbbaa, rgb()/rgba(), named colors and
// "transparent".
func ParseColor(s string) (color.NRGBA, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "":
		return color.NRGBA{}, false
	case s == "transparent":
		return color.NRGBA{}, true
	case strings.HasPrefix(s, "#"):
		return parseHex(s[1:])
	case strings.HasPrefix(s, "rgb(") || strings.HasPrefix(s, "rgba("):
		return parseRGBFunc(s)
	}
	if c, ok := colornames.Map[s]; ok {
		return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}, true
	}
	return color.NRGBA{}, false
}

func parseHex(h string) (color.NRGBA, bool) {
	var expanded string
	switch len(h) {
	case 3, 4:
		var b strings.Builder
		for _, r := range h {
			b.WriteRune(r)
			b.WriteRune(r)
		}
		expanded = b.String()
	case 6, 8:
		expanded = h
	default:
		return color.NRGBA{}, false
	}
	if len(expanded) == 6 {
		expanded += "ff"
	}
	v, err := strconv.ParseUint(expanded, 16, 32)
	if err != nil {
		return color.NRGBA{}, false
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, true
}

func parseRGBFunc(s string) (color.NRGBA, bool) {
	open, end := strings.IndexByte(s, '('), strings.LastIndexByte(s, ')')
	if open < 0 || end < open {
		return color.NRGBA{}, false
	}
	parts := strings.FieldsFunc(s[open+1:end], func(r rune) bool {
		return r == ',' || r == ' ' || r == '/'
	})
	if len(parts) != 3 && len(parts) != 4 {
		return color.NRGBA{}, false
	}
	var ch [4]uint8
	ch[3] = 255
	for i, p := range parts {
		v, ok := parseChannel(p, i == 3)
		if !ok {
			return color.NRGBA{}, false
		}
		ch[i] = v
	}
	return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}, true
}

func parseChannel(p string, alpha bool) (uint8, bool) {
	pct := strings.HasSuffix(p, "%")
	f, err := strconv.ParseFloat(strings.TrimSuffix(p, "%"), 64)
	if err != nil {
		return 0, false
	}
	switch {
	case pct:
		f = f * 255 / 100
	case alpha:
		f *= 255
	}
	f = min(max(f, 0), 255)
	return uint8(math.Round(f)), true
}
