package imagepkg

import (
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// GenerateQRPNG returns PNG bytes of a size×size QR code for text.
func GenerateQRPNG(text string, size int) ([]byte, error) {
	return qrcode.Encode(text, qrcode.Medium, size)
}

// ExpandQRText substitutes the recipient into a QR payload template.
func ExpandQRText(tmpl, name string) string {
	return strings.ReplaceAll(tmpl, "{name}", name)
}
