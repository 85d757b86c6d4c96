// Command certgen renders a certificate batch to a zip file without the HTTP
// server.
//
//	certgen -template cert.png -csv names.csv -out out/batch.zip -y 420 -font-size 64
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"

	"github.com/youruser/certbatch/internal/certgen"
	"github.com/youruser/certbatch/internal/config"
	"github.com/youruser/certbatch/internal/fonts"
	"github.com/youruser/certbatch/internal/logging"
)

type options struct {
	template, csv, out string
	x, y               *float64
	fontSize           float64
	color, family      string
	fontFile, fontURL  string
	fontDir            string
	skipHeader, report bool
	qrText             string
	qrX, qrY, qrSize   int
	zipLevel           int
	logLevel           string
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "certgen:", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintln(os.Stderr, "certgen:", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("certgen", flag.ContinueOnError)
	fs.StringVar(&o.template, "template", "", "template image (required)")
	fs.StringVar(&o.csv, "csv", "", "name list CSV (required)")
	fs.StringVar(&o.out, "out", certgen.ArchiveName, "output zip path")
	fs.Func("x", "text centre x in template pixels (default: centre)", floatPtr(&o.x))
	fs.Func("y", "text centre y in template pixels (default: centre)", floatPtr(&o.y))
	fs.Float64Var(&o.fontSize, "font-size", certgen.DefaultFontSize, "font size in pixels")
	fs.StringVar(&o.color, "color", certgen.DefaultFontColor, "CSS text color")
	fs.StringVar(&o.family, "family", "", "font family")
	fs.StringVar(&o.fontFile, "font-file", "", "TTF/OTF file to embed")
	fs.StringVar(&o.fontURL, "font-url", "", "URL of a font to fetch")
	fs.StringVar(&o.fontDir, "font-dir", os.Getenv("FONT_DIR"), "directory of extra system fonts")
	fs.BoolVar(&o.skipHeader, "skip-header", false, "ignore the first CSV record")
	fs.BoolVar(&o.report, "report", false, "add "+certgen.ReportEntry+" to the archive")
	fs.StringVar(&o.qrText, "qr-text", "", "QR code text; {name} is replaced per certificate")
	fs.IntVar(&o.qrX, "qr-x", 0, "QR code left edge")
	fs.IntVar(&o.qrY, "qr-y", 0, "QR code top edge")
	fs.IntVar(&o.qrSize, "qr-size", certgen.DefaultQRSize, "QR code size in pixels")
	fs.IntVar(&o.zipLevel, "zip-level", config.DefaultZipLevel, "deflate level (-1..9)")
	fs.StringVar(&o.logLevel, "log-level", "warn", "log level")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.template == "" || o.csv == "" {
		fs.Usage()
		return nil, errors.New("-template and -csv are required")
	}
	return o, nil
}

func floatPtr(dst **float64) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*dst = &v
		return nil
	}
}

func run(ctx context.Context, o *options) error {
	log := logging.New(os.Stderr, o.logLevel)

	req := &certgen.Request{
		X:             o.x,
		Y:             o.y,
		FontSize:      o.fontSize,
		FontColor:     o.color,
		FontFamily:    o.family,
		FontURL:       o.fontURL,
		SkipHeader:    o.skipHeader,
		IncludeReport: o.report,
	}
	var err error
	if req.Template, err = os.ReadFile(o.template); err != nil {
		return fmt.Errorf("read template: %w", err)
	}
	if req.NameList, err = os.ReadFile(o.csv); err != nil {
		return fmt.Errorf("read csv: %w", err)
	}
	if o.fontFile != "" {
		data, err := os.ReadFile(o.fontFile)
		if err != nil {
			return fmt.Errorf("read font: %w", err)
		}
		req.CustomFont = &fonts.CustomFont{Data: data, Filename: filepath.Base(o.fontFile)}
	}
	if o.qrText != "" {
		req.QR = &certgen.QROptions{Text: o.qrText, X: o.qrX, Y: o.qrY, Size: o.qrSize}
	}

	registry := fonts.NewRegistry()
	if o.fontDir != "" {
		if _, err := registry.LoadDir(o.fontDir); err != nil {
			log.Warn(ctx, "failed to load font dir", "dir", o.fontDir, "error", err)
		}
	}
	gen := certgen.New(
		fonts.NewResolver(fonts.NewHTTPFetcher(config.DefaultFontFetchTimeout), log),
		registry, log,
		certgen.WithZipLevel(o.zipLevel),
	)

	job, err := gen.Prepare(ctx, req)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(o.out), 0o755); err != nil {
		return err
	}
	f, err := os.Create(o.out)
	if err != nil {
		return err
	}
	rep, err := job.Write(ctx, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(o.out)
		return err
	}

	fmt.Printf("%s: %d of %d certificates\n", o.out, len(rep.Rendered), rep.Total)
	for _, s := range rep.Skipped {
		fmt.Printf("  skipped %q: %s\n", s.Name, s.Reason)
	}
	return nil
}
