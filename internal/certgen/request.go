// Package certgen runs a certificate batch: it validates the request, resolves
// the font and template once, then renders every name in order into a zip
// stream.
package certgen

import "github.com/youruser/certbatch/internal/fonts"

const (
	DefaultFontSize  = 48
	DefaultFontColor = "#000000"
	DefaultQRSize    = 160

	// ArchiveName is the attachment filename of a batch.
	ArchiveName = "batch.zip"
	// ReportEntry is the optional manifest appended after the certificates.
	ReportEntry = "_report.json"
)

// Request is one generation request.
type Request struct {
	Template     []byte
	TemplateMIME string
	NameList     []byte
	SkipHeader   bool

	// X and Y are template pixels; nil means the template's centre.
	X, Y       *float64
	FontSize   float64
	FontColor  string
	FontFamily string

	CustomFont *fonts.CustomFont
	FontURL    string

	QR            *QROptions
	IncludeReport bool
}

// QROptions adds a QR code to every certificate. Text may contain {name}.
// X and Y are the QR code's top-left corner.
type QROptions struct {
	Text string
	X, Y int
	Size int
}
