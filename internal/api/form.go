package api

import (
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/youruser/certbatch/internal/apperr"
	"github.com/youruser/certbatch/internal/certgen"
	"github.com/youruser/certbatch/internal/fonts"
)

// generateForm is the multipart body shared by /generate and /preview.
type generateForm struct {
	Template   *multipart.FileHeader `form:"template"`
	CSV        *multipart.FileHeader `form:"csv"`
	CustomFont *multipart.FileHeader `form:"customFont"`

	X          string `form:"x"`
	Y          string `form:"y"`
	FontSize   string `form:"fontSize"`
	FontColor  string `form:"fontColor"`
	FontFamily string `form:"fontFamily"`
	FontURL    string `form:"fontUrl"`
	SkipHeader string `form:"skipHeader"`

	QRText string `form:"qrText"`
	QRX    string `form:"qrX"`
	QRY    string `form:"qrY"`
	QRSize string `form:"qrSize"`

	Report string `form:"report"`
	Name   string `form:"name"`
}

const errMissingFiles = "Missing template or CSV file"

// bindError maps a failed multipart parse to a client error.
func bindError(op string, err error) error {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return apperr.Wrap(apperr.KindValidation, op,
			fmt.Sprintf("Upload exceeds %d bytes", tooLarge.Limit), err)
	case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
		return apperr.Wrap(apperr.KindValidation, op, errMissingFiles, err)
	default:
		return apperr.Wrap(apperr.KindValidation, op, "Malformed form data", err)
	}
}

// request converts the form into a generation request, reading the uploads.
func (f *generateForm) request() (*certgen.Request, error) {
	const op = "api.request"

	if f.Template == nil || f.CSV == nil {
		return nil, apperr.Validation(op, errMissingFiles)
	}

	req := &certgen.Request{
		TemplateMIME: f.Template.Header.Get("Content-Type"),
		FontColor:    strings.TrimSpace(f.FontColor),
		FontFamily:   strings.TrimSpace(f.FontFamily),
		FontURL:      strings.TrimSpace(f.FontURL),
	}

	var err error
	if req.Template, err = readUpload(f.Template); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, "template upload could not be read", err)
	}
	if req.NameList, err = readUpload(f.CSV); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, "CSV upload could not be read", err)
	}
	if f.CustomFont != nil {
		data, err := readUpload(f.CustomFont)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindFontEmbed, op, "custom font could not be read", err)
		}
		req.CustomFont = &fonts.CustomFont{Data: data, Filename: f.CustomFont.Filename}
	}

	if req.X, err = optionalFloat("x", f.X); err != nil {
		return nil, err
	}
	if req.Y, err = optionalFloat("y", f.Y); err != nil {
		return nil, err
	}
	size, err := optionalFloat("fontSize", f.FontSize)
	if err != nil {
		return nil, err
	}
	if size != nil {
		if *size <= 0 {
			return nil, apperr.Validation(op, "fontSize must be positive")
		}
		req.FontSize = *size
	}

	if req.SkipHeader, err = optionalBool("skipHeader", f.SkipHeader); err != nil {
		return nil, err
	}
	if req.IncludeReport, err = optionalBool("report", f.Report); err != nil {
		return nil, err
	}

	if text := strings.TrimSpace(f.QRText); text != "" {
		qr := &certgen.QROptions{Text: text}
		if qr.X, err = optionalInt("qrX", f.QRX); err != nil {
			return nil, err
		}
		if qr.Y, err = optionalInt("qrY", f.QRY); err != nil {
			return nil, err
		}
		if qr.Size, err = optionalInt("qrSize", f.QRSize); err != nil {
			return nil, err
		}
		if qr.Size < 0 {
			return nil, apperr.Validation(op, "qrSize must not be negative")
		}
		req.QR = qr
	}
	return req, nil
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func optionalFloat(field, raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, apperr.Validation("api.request", fmt.Sprintf("%s must be a number", field))
	}
	return &v, nil
}

func optionalInt(field, raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("api.request", fmt.Sprintf("%s must be an integer", field))
	}
	return v, nil
}

func optionalBool(field, raw string) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperr.Validation("api.request", fmt.Sprintf("%s must be true or false", field))
	}
	return v, nil
}
