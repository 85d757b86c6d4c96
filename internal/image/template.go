package imagepkg

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/youruser/certbatch/internal/apperr"
)

// Template is the certificate background, read once per request.
type Template struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// LoadTemplate reads the intrinsic pixel size from the image itself. The
// declared MIME type is kept when it names an image; otherwise the content is
// sniffed. maxPixels <= 0 disables the size guard.
func LoadTemplate(data []byte, declaredMIME string, maxPixels int) (Template, error) {
	const op = "imagepkg.LoadTemplate"
	if len(data) == 0 {
		return Template{}, apperr.Validation(op, "Missing template or CSV file")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Template{}, apperr.Wrap(apperr.KindValidation, op, "template is not a supported image", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Template{}, apperr.Validation(op, "template has no pixels")
	}
	if maxPixels > 0 && cfg.Width*cfg.Height > maxPixels {
		return Template{}, apperr.Validation(op,
			fmt.Sprintf("template is too large (%dx%d)", cfg.Width, cfg.Height))
	}

	mime := strings.TrimSpace(declaredMIME)
	if !strings.HasPrefix(mime, "image/") {
		mime = mimetype.Detect(data).String()
		if !strings.HasPrefix(mime, "image/") {
			mime = "image/" + format
		}
	}
	return Template{Data: data, MIME: mime, Width: cfg.Width, Height: cfg.Height}, nil
}
