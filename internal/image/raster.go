package imagepkg

import (
	"bytes"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font/opentype"

	"github.com/youruser/certbatch/internal/apperr"
	"github.com/youruser/certbatch/internal/fonts"
)

// Rasterizer turns composed certificate documents into PNGs. Decoded images
// and fonts are cached by their data URL, so one Rasterizer per batch decodes
// the template and the embedded font once. Safe for concurrent use.
type Rasterizer struct {
	fonts *fonts.Registry

	mu     sync.Mutex
	images map[string]image.Image
	faces  map[string]*opentype.Font // nil marks a font that failed to parse
}

func NewRasterizer(reg *fonts.Registry) *Rasterizer {
	if reg == nil {
		reg = fonts.NewRegistry()
	}
	return &Rasterizer{
		fonts:  reg,
		images: make(map[string]image.Image),
		faces:  make(map[string]*opentype.Font),
	}
}

// Rasterize renders doc to PNG. Failures are render errors: they concern this
// document only.
func (r *Rasterizer) Rasterize(doc []byte) ([]byte, error) {
	const op = "imagepkg.Rasterize"

	d, err := parseSVG(doc)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindRender, op, "malformed certificate document", err)
	}
	img, err := r.paint(d)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindRender, op, "certificate could not be painted", err)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, apperr.Wrap(apperr.KindRender, op, "png encoding failed", err)
	}
	return buf.Bytes(), nil
}

func (r *Rasterizer) decodeImage(href string) (image.Image, error) {
	r.mu.Lock()
	img, ok := r.images[href]
	r.mu.Unlock()
	if ok {
		return img, nil
	}

	_, data, err := decodeDataURL(href)
	if err != nil {
		return nil, err
	}
	img, err = imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	r.mu.Lock()
	r.images[href] = img
	r.mu.Unlock()
	return img, nil
}

// embedded returns the parsed @font-face font, or nil when it cannot be used.
// A broken face is skipped the way a browser skips it.
func (r *Rasterizer) embedded(src string) *opentype.Font {
	r.mu.Lock()
	f, ok := r.faces[src]
	r.mu.Unlock()
	if ok {
		return f
	}

	if _, data, err := decodeDataURL(src); err == nil {
		f, _ = opentype.Parse(data)
	}

	r.mu.Lock()
	r.faces[src] = f
	r.mu.Unlock()
	return f
}

// pickFont walks a font-family stack: @font-face declarations first, then the
// fonts installed in the registry, then the registry default.
func (r *Rasterizer) pickFont(sheet stylesheet, families []string) *opentype.Font {
	for _, fam := range families {
		for _, ff := range sheet.faces {
			if !strings.EqualFold(ff.family, fam) {
				continue
			}
			if f := r.embedded(ff.src); f != nil {
				return f
			}
		}
		if f, ok := r.fonts.Lookup(fam); ok {
			return f
		}
	}
	return r.fonts.Default()
}
