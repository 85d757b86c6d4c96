package imagepkg

import (
	"strconv"
	"strings"
)

type declaration struct {
	prop  string
	value string
}

type cssRule struct {
	selectors []string
	decls     []declaration
}

type fontFace struct {
	family string
	src    string // url() target
}

type stylesheet struct {
	rules []cssRule
	faces []fontFace
}

// parseCSS reads the small CSS dialect found in certificate documents:
// plain rules with class/type selectors and @font-face blocks. Other at-rules
// are skipped.
func parseCSS(src string) stylesheet {
	var sheet stylesheet
	src = stripComments(src)

	for len(src) > 0 {
		open := indexTopLevel(src, '{')
		if open < 0 {
			break
		}
		prelude := strings.TrimSpace(src[:open])
		end := matchingBrace(src, open)
		if end < 0 {
			end = len(src)
		}
		body := src[open+1 : end]
		if end < len(src) {
			src = src[end+1:]
		} else {
			src = ""
		}

		switch {
		case strings.EqualFold(prelude, "@font-face"):
			var ff fontFace
			for _, d := range parseDecls(body) {
				switch d.prop {
				case "font-family":
					ff.family = unquote(d.value)
				case "src":
					ff.src = cssURL(d.value)
				}
			}
			if ff.family != "" && ff.src != "" {
				sheet.faces = append(sheet.faces, ff)
			}
		case strings.HasPrefix(prelude, "@"):
		default:
			var sels []string
			for _, s := range splitTopLevel(prelude, ',') {
				if s = strings.TrimSpace(s); s != "" {
					sels = append(sels, s)
				}
			}
			sheet.rules = append(sheet.rules, cssRule{selectors: sels, decls: parseDecls(body)})
		}
	}
	return sheet
}

func parseDecls(body string) []declaration {
	var out []declaration
	for _, part := range splitTopLevel(body, ';') {
		colon := strings.IndexByte(part, ':')
		if colon < 0 {
			continue
		}
		prop := strings.ToLower(strings.TrimSpace(part[:colon]))
		val := strings.TrimSpace(part[colon+1:])
		val = strings.TrimSpace(strings.TrimSuffix(val, "!important"))
		if prop != "" && val != "" {
			out = append(out, declaration{prop: prop, value: val})
		}
	}
	return out
}

// splitTopLevel splits s on sep outside quotes and parentheses.
func splitTopLevel(s string, sep byte) []string {
	var out []string
	depth, start := 0, 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case c == sep && depth == 0:
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}

func indexTopLevel(s string, target byte) int {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == target:
			return i
		}
	}
	return -1
}

func matchingBrace(s string, open int) int {
	depth := 0
	var quote byte
	for i := open; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func stripComments(s string) string {
	for {
		start := strings.Index(s, "/*")
		if start < 0 {
			return s
		}
		end := strings.Index(s[start+2:], "*/")
		if end < 0 {
			return s[:start]
		}
		s = s[:start] + " " + s[start+2+end+2:]
	}
}

// unquote strips one level of CSS string quoting and backslash escapes.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 || (s[0] != '"' && s[0] != '\'') || s[len(s)-1] != s[0] {
		return s
	}
	inner := s[1 : len(s)-1]
	var b strings.Builder
	for i := 0; i < len(inner); i++ {
		if inner[i] == '\\' && i+1 < len(inner) {
			i++
		}
		b.WriteByte(inner[i])
	}
	return b.String()
}

// cssURL extracts the first url(...) target of a src value.
func cssURL(v string) string {
	i := strings.Index(strings.ToLower(v), "url(")
	if i < 0 {
		return ""
	}
	rest := v[i+4:]
	end := indexTopLevel(rest, ')')
	if end < 0 {
		return ""
	}
	return unquote(strings.TrimSpace(rest[:end]))
}

func parseFamilies(v string) []string {
	var out []string
	for _, f := range splitTopLevel(v, ',') {
		if f = unquote(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// parseLength accepts unitless, px and pt values and returns pixels.
func parseLength(v string) (float64, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	scale := 1.0
	switch {
	case strings.HasSuffix(v, "px"):
		v = strings.TrimSuffix(v, "px")
	case strings.HasSuffix(v, "pt"):
		v = strings.TrimSuffix(v, "pt")
		scale = 96.0 / 72
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return f * scale, true
}
