package certgen

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/bytedance/sonic"
	"golang.org/x/sync/errgroup"

	"github.com/youruser/certbatch/internal/apperr"
	"github.com/youruser/certbatch/internal/archive"
	"github.com/youruser/certbatch/internal/fonts"
	imagepkg "github.com/youruser/certbatch/internal/image"
	"github.com/youruser/certbatch/internal/logging"
	"github.com/youruser/certbatch/internal/names"
	"github.com/youruser/certbatch/internal/overlay"
)

// Rasterizer renders one composed document to PNG.
type Rasterizer interface {
	Rasterize(doc []byte) ([]byte, error)
}

// FontResolver turns the request's font choice into an embeddable font.
type FontResolver interface {
	Resolve(ctx context.Context, src fonts.Source) (fonts.Resolved, error)
}

type Generator struct {
	resolver      FontResolver
	newRasterizer func() Rasterizer
	log           logging.Logger
	zipLevel      int
	maxPixels     int
}

type Option func(*Generator)

func WithZipLevel(level int) Option {
	return func(g *Generator) { g.zipLevel = level }
}

func WithMaxTemplatePixels(n int) Option {
	return func(g *Generator) { g.maxPixels = n }
}

// WithRasterizer replaces the per-batch rasterizer factory.
func WithRasterizer(newRasterizer func() Rasterizer) Option {
	return func(g *Generator) { g.newRasterizer = newRasterizer }
}

func New(resolver FontResolver, registry *fonts.Registry, log logging.Logger, opts ...Option) *Generator {
	g := &Generator{
		resolver: resolver,
		log:      log,
		zipLevel: 9,
		newRasterizer: func() Rasterizer {
			return imagepkg.NewRasterizer(registry)
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Prepare does all the per-request work that can fail the whole request:
// input validation, name extraction, template decoding and font resolution.
// Nothing has been streamed when it returns an error.
func (g *Generator) Prepare(ctx context.Context, req *Request) (*Job, error) {
	const op = "certgen.Prepare"

	if req == nil || len(req.Template) == 0 || req.NameList == nil {
		return nil, apperr.Validation(op, "Missing template or CSV file")
	}

	list, err := names.ExtractBytes(req.NameList, names.Options{SkipHeader: req.SkipHeader})
	if err != nil {
		return nil, err
	}

	tmpl, err := imagepkg.LoadTemplate(req.Template, req.TemplateMIME, g.maxPixels)
	if err != nil {
		return nil, err
	}

	style := overlay.Style{
		X:        float64(tmpl.Width) / 2,
		Y:        float64(tmpl.Height) / 2,
		FontSize: req.FontSize,
		Color:    req.FontColor,
	}
	if req.X != nil {
		style.X = *req.X
	}
	if req.Y != nil {
		style.Y = *req.Y
	}
	if style.FontSize <= 0 {
		style.FontSize = DefaultFontSize
	}
	if style.Color == "" {
		style.Color = DefaultFontColor
	}
	if style.FontSize > float64(tmpl.Height) {
		return nil, apperr.Validation(op,
			fmt.Sprintf("fontSize must not exceed the template height (%dpx)", tmpl.Height))
	}
	// The color is copied into the stylesheet verbatim.
	if strings.ContainsAny(style.Color, "<>;{}") {
		return nil, apperr.Validation(op, "fontColor is not a valid color")
	}

	var qr *QROptions
	if req.QR != nil && req.QR.Text != "" {
		q := *req.QR
		if q.Size <= 0 {
			q.Size = DefaultQRSize
		}
		qr = &q
	}

	font, err := g.resolver.Resolve(ctx, fonts.SelectSource(req.CustomFont, req.FontURL, req.FontFamily))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindFontEmbed, op, "font could not be prepared", err)
	}

	g.log.Info(ctx, "batch prepared",
		"names", len(list),
		"template", fmt.Sprintf("%dx%d", tmpl.Width, tmpl.Height),
		"font", font.Kind,
	)

	return &Job{
		names:         list,
		font:          font,
		composer:      overlay.NewComposer(tmpl, font, style),
		raster:        g.newRasterizer(),
		qr:            qr,
		zipLevel:      g.zipLevel,
		includeReport: req.IncludeReport,
		log:           g.log,
	}, nil
}

// Job is a prepared batch.
type Job struct {
	names         []string
	font          fonts.Resolved
	composer      *overlay.Composer
	raster        Rasterizer
	qr            *QROptions
	zipLevel      int
	includeReport bool
	log           logging.Logger
}

func (j *Job) Names() []string { return j.names }

func (j *Job) Font() fonts.Resolved { return j.font }

// Render composes and rasterizes the certificate for one name. Failures stay
// in the Result.
func (j *Job) Render(name string) Result {
	const op = "certgen.Render"
	res := Result{Name: name}

	var layers []overlay.Layer
	if j.qr != nil {
		code, err := imagepkg.GenerateQRPNG(imagepkg.ExpandQRText(j.qr.Text, name), j.qr.Size)
		if err != nil {
			res.Err = apperr.Wrap(apperr.KindRender, op, "qr code could not be generated", err)
			return res
		}
		layers = append(layers, overlay.Layer{
			X: j.qr.X, Y: j.qr.Y, Width: j.qr.Size, Height: j.qr.Size,
			MIME: "image/png", Data: code,
		})
	}

	png, err := j.raster.Rasterize(j.composer.Compose(name, layers...))
	if err != nil {
		res.Err = apperr.Wrap(apperr.KindRender, op, "certificate could not be rendered", err)
		return res
	}
	res.PNG = png
	return res
}

// Preview renders a single certificate; a blank name means the first one.
func (j *Job) Preview(name string) ([]byte, error) {
	if name == "" {
		name = j.names[0]
	}
	res := j.Render(name)
	return res.PNG, res.Err
}

// Write renders every name in order and writes the finished archive to w.
// Names that fail to render are skipped and reported; an error is returned
// only when the archive itself cannot be written or ctx is done.
func (j *Job) Write(ctx context.Context, w io.Writer) (*Report, error) {
	arc := archive.NewWriter(w, j.zipLevel)
	namer := archive.NewEntryNamer(".png")
	if j.includeReport {
		namer.Reserve(ReportEntry)
	}
	rep := &Report{
		Total:    len(j.names),
		Rendered: []RenderedEntry{},
		Skipped:  []SkippedName{},
	}

	for i, name := range j.names {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		res := j.Render(name)
		if res.Err != nil {
			j.log.Warn(ctx, "certificate skipped", "index", i, "name", name, "error", res.Err)
			rep.add(res)
			continue
		}
		res.Entry = namer.Next(name)
		if err := arc.Append(res.Entry, res.PNG); err != nil {
			return rep, err
		}
		rep.add(res)
	}

	if j.includeReport {
		data, err := sonic.Marshal(rep)
		if err != nil {
			return rep, fmt.Errorf("encode report: %w", err)
		}
		if err := arc.Append(ReportEntry, data); err != nil {
			return rep, err
		}
	}
	return rep, arc.Finalize()
}

// Stream runs Write and the transfer to dst as two tasks joined by a pipe, so
// the archive is sent while it is produced and a slow reader slows the
// renderer down. If dst fails, rendering stops at the next write.
func (j *Job) Stream(ctx context.Context, dst io.Writer) (*Report, error) {
	pr, pw := io.Pipe()
	g, gctx := errgroup.WithContext(ctx)

	var rep *Report
	g.Go(func() error {
		var err error
		rep, err = j.Write(gctx, pw)
		pw.CloseWithError(err)
		if err != nil {
			return fmt.Errorf("produce archive: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		_, err := io.Copy(dst, pr)
		pr.CloseWithError(err)
		if err != nil {
			return fmt.Errorf("transmit archive: %w", err)
		}
		return nil
	})

	err := g.Wait()
	return rep, err
}
