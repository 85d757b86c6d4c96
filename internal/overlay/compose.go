// Package overlay composes the per-recipient SVG document: the template as a
// full-canvas image layer, the resolved font as an @font-face rule and the
// recipient's name centred on the requested point.
package overlay

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"

	svg "github.com/ajstarks/svgo"

	"github.com/youruser/certbatch/internal/fonts"
	imagepkg "github.com/youruser/certbatch/internal/image"
)

const textClass = "t"

// Style places and paints the name. X and Y are in template pixels.
type Style struct {
	X, Y     float64
	FontSize float64
	Color    string
}

// Layer is an extra raster drawn above the template, e.g. a QR code.
type Layer struct {
	X, Y, Width, Height int
	MIME                string
	Data                []byte
}

// Composer holds everything that is identical across a batch, encoded once.
type Composer struct {
	width, height int
	templateURL   string
	css           string
	x, y          int
}

func NewComposer(tmpl imagepkg.Template, font fonts.Resolved, style Style) *Composer {
	return &Composer{
		width:       tmpl.Width,
		height:      tmpl.Height,
		templateURL: DataURL(tmpl.MIME, tmpl.Data),
		css:         stylesheet(font, style),
		x:           int(math.Round(style.X)),
		y:           int(math.Round(style.Y)),
	}
}

// Size is the canvas size, always the template's intrinsic size.
func (c *Composer) Size() (int, int) {
	return c.width, c.height
}

// Compose writes the document for one name. The name is XML-escaped.
func (c *Composer) Compose(name string, layers ...Layer) []byte {
	var buf bytes.Buffer
	canvas := svg.New(&buf)
	canvas.Start(c.width, c.height)
	canvas.Style("text/css", c.css)
	canvas.Image(0, 0, c.width, c.height, c.templateURL)
	for _, l := range layers {
		canvas.Image(l.X, l.Y, l.Width, l.Height, DataURL(l.MIME, l.Data))
	}
	canvas.Text(c.x, c.y, name, `class="`+textClass+`"`)
	canvas.End()
	return buf.Bytes()
}

// DataURL inlines data as a base64 data: URL.
func DataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func stylesheet(font fonts.Resolved, style Style) string {
	var b strings.Builder
	if e := font.Embedded; e != nil {
		fmt.Fprintf(&b, "@font-face { font-family: %s; src: url(%s) format(%q); }\n",
			fonts.QuoteFamily(e.Family), DataURL(e.MIME, e.Data), e.Format)
	}
	fmt.Fprintf(&b, ".%s { font-family: %s; font-size: %spx; fill: %s; text-anchor: middle; dominant-baseline: middle; }",
		textClass,
		font.Stack,
		strconv.FormatFloat(style.FontSize, 'f', -1, 64),
		strings.TrimSpace(style.Color),
	)
	return b.String()
}
