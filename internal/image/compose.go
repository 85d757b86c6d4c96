package imagepkg

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"slices"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

type textStyle struct {
	families []string
	size     float64
	fill     color.NRGBA
	noFill   bool
	anchor   string
	baseline string
}

// paint draws the document's layers in order onto a transparent canvas.
func (r *Rasterizer) paint(d *svgDoc) (*image.NRGBA, error) {
	W := int(math.Round(d.width))
	H := int(math.Round(d.height))
	canvas := imaging.New(W, H, color.NRGBA{})

	for _, el := range d.elems {
		switch el.kind {
		case elemImage:
			img, err := r.decodeImage(el.href)
			if err != nil {
				return nil, err
			}
			w, h := int(math.Round(el.w)), int(math.Round(el.h))
			b := img.Bounds()
			if w <= 0 || h <= 0 {
				w, h = b.Dx(), b.Dy()
			}
			if b.Dx() != w || b.Dy() != h {
				img = imaging.Resize(img, w, h, imaging.Lanczos)
			}
			pos := image.Pt(int(math.Round(el.x)), int(math.Round(el.y)))
			canvas = imaging.Overlay(canvas, img, pos, 1.0)

		case elemText:
			if el.text == "" {
				continue
			}
			if err := r.drawText(canvas, d.sheet, el); err != nil {
				return nil, err
			}
		}
	}
	return canvas, nil
}

func (r *Rasterizer) drawText(dst *image.NRGBA, sheet stylesheet, el element) error {
	st := computeStyle(sheet, el)
	if st.noFill || st.size <= 0 {
		return nil
	}
	// Glyph masks are allocated at full size, unclipped.
	if h := dst.Bounds().Dy(); st.size > float64(h) {
		return fmt.Errorf("font size %.0fpx exceeds canvas height %dpx", st.size, h)
	}

	face, err := opentype.NewFace(r.pickFont(sheet, st.families), &opentype.FaceOptions{
		Size:    st.size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return fmt.Errorf("create font face at %.1fpx: %w", st.size, err)
	}
	defer face.Close()

	x := fixed.Int26_6(math.Round(el.x * 64))
	y := fixed.Int26_6(math.Round(el.y * 64))

	adv := font.MeasureString(face, el.text)
	switch st.anchor {
	case "middle":
		x -= adv / 2
	case "end":
		x -= adv
	}

	m := face.Metrics()
	switch st.baseline {
	case "middle", "central":
		y += (m.Ascent - m.Descent) / 2
	case "hanging", "text-before-edge", "text-top":
		y += m.Ascent
	case "text-after-edge", "text-bottom", "ideographic":
		y -= m.Descent
	}

	dr := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(st.fill),
		Face: face,
		Dot:  fixed.Point26_6{X: x, Y: y},
	}
	dr.DrawString(el.text)
	return nil
}

// computeStyle cascades defaults, presentation attributes, matching rules in
// document order, and finally the inline style.
func computeStyle(sheet stylesheet, el element) textStyle {
	st := textStyle{
		families: []string{"sans-serif"},
		size:     16,
		fill:     color.NRGBA{A: 255},
		anchor:   "start",
		baseline: "auto",
	}
	apply := func(decls []declaration) {
		for _, d := range decls {
			switch d.prop {
			case "font-family":
				if fams := parseFamilies(d.value); len(fams) > 0 {
					st.families = fams
				}
			case "font-size":
				if v, ok := parseLength(d.value); ok {
					st.size = v
				}
			case "fill":
				v := strings.TrimSpace(d.value)
				if strings.EqualFold(v, "none") {
					st.noFill = true
					continue
				}
				st.noFill = false
				c, ok := ParseColor(v)
				if !ok {
					c = color.NRGBA{A: 255}
				}
				st.fill = c
			case "text-anchor":
				st.anchor = strings.ToLower(d.value)
			case "dominant-baseline":
				st.baseline = strings.ToLower(d.value)
			}
		}
	}

	apply(el.attrs)
	for _, rule := range sheet.rules {
		if matches(rule.selectors, el) {
			apply(rule.decls)
		}
	}
	apply(el.inline)
	return st
}

func matches(selectors []string, el element) bool {
	for _, s := range selectors {
		switch {
		case s == "*" || s == "text":
			return true
		case strings.HasPrefix(s, "."):
			if slices.Contains(el.classes, s[1:]) {
				return true
			}
		case strings.HasPrefix(s, "text."):
			if slices.Contains(el.classes, s[len("text."):]) {
				return true
			}
		}
	}
	return false
}
