// Package fonts decides which font a batch renders with and turns it into
// something a self-contained SVG document can carry.
package fonts

import (
	"path"
	"path/filepath"
	"strings"
)

// CustomFamily is the family name given to an uploaded font.
const CustomFamily = "CustomFont"

// RemoteFamily names a fetched font when the request carries no family name.
const RemoteFamily = "RemoteFont"

const (
	MIMETrueType   = "font/ttf"
	MIMEOpenType   = "font/otf"
	FormatTrueType = "truetype"
	FormatOpenType = "opentype"
)

// Source is one of CustomFont, RemoteFont or SystemFont.
type Source interface {
	isSource()
}

// CustomFont is a font file uploaded with the request.
type CustomFont struct {
	Data     []byte
	Filename string
}

// RemoteFont is a font to fetch from URL, known to the page as Family.
type RemoteFont struct {
	URL    string
	Family string
}

// SystemFont relies on whatever the rendering environment offers for Family.
type SystemFont struct {
	Family string
}

func (CustomFont) isSource() {}
func (RemoteFont) isSource() {}
func (SystemFont) isSource() {}

// SelectSource applies the priority custom file > remote URL > family name.
func SelectSource(custom *CustomFont, fontURL, family string) Source {
	family = strings.TrimSpace(family)
	switch {
	case custom != nil:
		return *custom
	case strings.TrimSpace(fontURL) != "":
		return RemoteFont{URL: strings.TrimSpace(fontURL), Family: family}
	default:
		return SystemFont{Family: family}
	}
}

// Embedded is an @font-face payload.
type Embedded struct {
	Family string
	MIME   string
	Format string
	Data   []byte
}

// Resolved is computed once per request and shared by every certificate.
type Resolved struct {
	// Kind is "custom", "remote" or "system"; informational.
	Kind     string
	Embedded *Embedded
	// Stack is the CSS font-family value used for the name text.
	Stack string
}

// FormatFor infers MIME and CSS format tags from a file name or URL path.
func FormatFor(name string) (mime, format string) {
	if strings.EqualFold(filepath.Ext(name), ".otf") {
		return MIMEOpenType, FormatOpenType
	}
	return MIMETrueType, FormatTrueType
}

// QuoteFamily renders name as a CSS string. The result is safe inside a
// CDATA section: ">" never follows "]]".
func QuoteFamily(name string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", " ", "\r", " ")
	name = r.Replace(name)
	for strings.Contains(name, "]]>") {
		name = strings.ReplaceAll(name, "]]>", "]]")
	}
	return `"` + name + `"`
}

// FallbackStack is the family reference used when nothing is embedded.
func FallbackStack(family string) string {
	if family == "" {
		return "sans-serif"
	}
	return QuoteFamily(family) + ", sans-serif"
}

func urlPath(raw string) string {
	p := raw
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return path.Clean("/" + p)
}
