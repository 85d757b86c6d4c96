package imagepkg

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/youruser/certbatch/internal/apperr"
	"github.com/youruser/certbatch/internal/fonts"
)

func whitePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func dataURL(mime string, b []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(b)
}

func certDoc(t *testing.T, fontFace, rule, text string) []byte {
	t.Helper()
	return []byte(fmt.Sprintf(`<?xml version="1.0"?>
<svg width="200" height="100" xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink">
<style type="text/css"><![CDATA[
%s
%s
]]></style>
<image x="0" y="0" width="200" height="100" xlink:href="%s" />
<text x="100" y="50" class="t">%s</text>
</svg>`, fontFace, rule, dataURL("image/png", whitePNG(t, 200, 100)), text))
}

const redRule = `.t { font-family: "Nope", sans-serif; font-size: 40px; fill: #ff0000; text-anchor: middle; dominant-baseline: middle; }`

type redStats struct {
	count      int
	sumX, sumY int
	minY, maxY int
}

func scanRed(t *testing.T, pngBytes []byte) (image.Image, redStats) {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(pngBytes))
	require.NoError(t, err)
	st := redStats{minY: 1 << 30, maxY: -1}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if c.R > 200 && c.G < 100 && c.B < 100 {
				st.count++
				st.sumX += x
				st.sumY += y
				st.minY = min(st.minY, y)
				st.maxY = max(st.maxY, y)
			}
		}
	}
	return img, st
}

func TestRasterize_CentredText(t *testing.T) {
	r := NewRasterizer(fonts.NewRegistry())
	out, err := r.Rasterize(certDoc(t, "", redRule, "HIH"))
	require.NoError(t, err)

	img, st := scanRed(t, out)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 100, img.Bounds().Dy())
	require.Greater(t, st.count, 20)

	assert.InDelta(t, 100, float64(st.sumX)/float64(st.count), 8, "text is centred horizontally on x")
	assert.InDelta(t, 50, float64(st.sumY)/float64(st.count), 12, "text is centred vertically on y")
	assert.Greater(t, st.minY, 10)
	assert.Less(t, st.maxY, 90)

	corner := color.NRGBAModel.Convert(img.At(0, 0)).(color.NRGBA)
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, corner)
}

func TestRasterize_EmbeddedFont(t *testing.T) {
	face := fmt.Sprintf(`@font-face { font-family: "Nope"; src: url(%s) format("truetype"); }`,
		dataURL(fonts.MIMETrueType, goregular.TTF))
	out, err := NewRasterizer(nil).Rasterize(certDoc(t, face, redRule, "HI"))
	require.NoError(t, err)
	_, st := scanRed(t, out)
	assert.Greater(t, st.count, 20)
}

func TestRasterize_BrokenEmbeddedFontFallsBack(t *testing.T) {
	face := `@font-face { font-family: "Nope"; src: url(data:font/ttf;base64,AAAA) format("truetype"); }`
	out, err := NewRasterizer(nil).Rasterize(certDoc(t, face, redRule, "HI"))
	require.NoError(t, err)
	_, st := scanRed(t, out)
	assert.Greater(t, st.count, 20)
}

func TestRasterize_FillNone(t *testing.T) {
	rule := `.t { font-size: 40px; fill: none; }`
	out, err := NewRasterizer(nil).Rasterize(certDoc(t, "", rule, "HI"))
	require.NoError(t, err)
	_, st := scanRed(t, out)
	assert.Zero(t, st.count)
}

func TestRasterize_Errors(t *testing.T) {
	r := NewRasterizer(nil)
	docs := map[string]string{
		"unbalanced":    `<svg width="10" height="10"><text>a</svg>`,
		"no root":       `<g></g>`,
		"no size":       `<svg><text>a</text></svg>`,
		"external href": `<svg width="10" height="10" xmlns:xlink="http://www.w3.org/1999/xlink"><image width="10" height="10" xlink:href="http://example.com/a.png"/></svg>`,
		"bad image":     `<svg width="10" height="10"><image width="10" height="10" href="data:image/png;base64,AAAA"/></svg>`,
		"injected name": `<svg width="10" height="10"><text>Tom</text>& Jerry</text></svg>`,
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			_, err := r.Rasterize([]byte(doc))
			require.Error(t, err)
			assert.True(t, apperr.IsKind(err, apperr.KindRender))
		})
	}
}

func TestRasterize_FontLargerThanCanvas(t *testing.T) {
	rule := `.t { font-size: 12000px; fill: red; }`
	_, err := NewRasterizer(nil).Rasterize(certDoc(t, "", rule, "WM"))
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindRender))

	rule = `.t { font-size: 100px; fill: red; }`
	_, err = NewRasterizer(nil).Rasterize(certDoc(t, "", rule, "WM"))
	assert.NoError(t, err)
}

func TestRasterize_ScalesImageLayer(t *testing.T) {
	doc := fmt.Sprintf(`<svg width="40" height="20"><image x="0" y="0" width="40" height="20" href="%s"/></svg>`,
		dataURL("image/png", whitePNG(t, 10, 5)))
	out, err := NewRasterizer(nil).Rasterize([]byte(doc))
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 20), img.Bounds())
	c := color.NRGBAModel.Convert(img.At(39, 19)).(color.NRGBA)
	assert.Equal(t, uint8(255), c.A)
}

func TestLoadTemplate(t *testing.T) {
	data := whitePNG(t, 30, 20)

	tmpl, err := LoadTemplate(data, "image/png", 0)
	require.NoError(t, err)
	assert.Equal(t, 30, tmpl.Width)
	assert.Equal(t, 20, tmpl.Height)
	assert.Equal(t, "image/png", tmpl.MIME)

	tmpl, err = LoadTemplate(data, "application/octet-stream", 0)
	require.NoError(t, err)
	assert.Equal(t, "image/png", tmpl.MIME)

	_, err = LoadTemplate(data, "image/png", 100)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = LoadTemplate([]byte("not an image"), "image/png", 0)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = LoadTemplate(nil, "", 0)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
		ok   bool
	}{
		{"#f00", color.NRGBA{255, 0, 0, 255}, true},
		{"#FF000080", color.NRGBA{255, 0, 0, 128}, true},
		{"#0a0b0c", color.NRGBA{10, 11, 12, 255}, true},
		{"rgb(1, 2, 3)", color.NRGBA{1, 2, 3, 255}, true},
		{"rgba(255,0,0,0.5)", color.NRGBA{255, 0, 0, 128}, true},
		{"rgb(100% 0% 0% / 50%)", color.NRGBA{255, 0, 0, 128}, true},
		{"rgb(50%, 10%, 0%)", color.NRGBA{128, 26, 0, 255}, true},
		{"Navy", color.NRGBA{0, 0, 128, 255}, true},
		{"transparent", color.NRGBA{}, true},
		{"#12", color.NRGBA{}, false},
		{"notacolor", color.NRGBA{}, false},
	}
	for _, tc := range tests {
		got, ok := ParseColor(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		if tc.ok {
			assert.Equal(t, tc.want, got, tc.in)
		}
	}
}

func TestParseCSS(t *testing.T) {
	sheet := parseCSS(`
		/* generated */
		@font-face { font-family: 'My "Font"'; src: url("data:font/ttf;base64,AAE=") format("truetype"); }
		@media print { .t { fill: blue; } }
		text.t, .other { font-family: "My \"Font\"", serif; font-size: 12pt; fill: red !important; }
	`)
	require.Len(t, sheet.faces, 1)
	assert.Equal(t, `My "Font"`, sheet.faces[0].family)
	assert.Equal(t, "data:font/ttf;base64,AAE=", sheet.faces[0].src)

	require.Len(t, sheet.rules, 1)
	assert.Equal(t, []string{"text.t", ".other"}, sheet.rules[0].selectors)

	st := computeStyle(sheet, element{kind: elemText, classes: []string{"t"}})
	assert.Equal(t, []string{`My "Font"`, "serif"}, st.families)
	assert.InDelta(t, 16, st.size, 0.001)
	assert.Equal(t, color.NRGBA{255, 0, 0, 255}, st.fill)
}

func TestComputeStyle_Cascade(t *testing.T) {
	sheet := parseCSS(`.t { fill: blue; text-anchor: middle; }`)
	el := element{
		classes: []string{"t"},
		attrs:   []declaration{{prop: "fill", value: "green"}, {prop: "font-size", value: "30"}},
		inline:  parseDecls("fill: bogus"),
	}
	st := computeStyle(sheet, el)
	assert.Equal(t, "middle", st.anchor)
	assert.InDelta(t, 30, st.size, 0.001)
	assert.Equal(t, color.NRGBA{A: 255}, st.fill, "unknown colors paint black")
}

func TestDecodeDataURL(t *testing.T) {
	mime, data, err := decodeDataURL("data:text/plain,hello%20world")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", mime)
	assert.Equal(t, "hello world", string(data))

	_, _, err = decodeDataURL("https://example.com/a.png")
	assert.ErrorIs(t, err, errExternalRef)
}

func TestGenerateQRPNG(t *testing.T) {
	b, err := GenerateQRPNG(ExpandQRText("https://verify.example/{name}", "Alice"), 128)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())
	assert.Equal(t, "id=Bob", ExpandQRText("id={name}", "Bob"))
}
