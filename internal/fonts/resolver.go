package fonts

import (
	"context"
	"fmt"

	"github.com/youruser/certbatch/internal/apperr"
	"github.com/youruser/certbatch/internal/logging"
)

type Resolver struct {
	fetcher Fetcher
	log     logging.Logger
}

func NewResolver(fetcher Fetcher, log logging.Logger) *Resolver {
	return &Resolver{fetcher: fetcher, log: log}
}

// Resolve turns src into the font every certificate of the batch uses.
// A failed remote fetch degrades to the system family; it is not an error.
func (r *Resolver) Resolve(ctx context.Context, src Source) (Resolved, error) {
	const op = "fonts.Resolve"

	switch s := src.(type) {
	case CustomFont:
		if len(s.Data) == 0 {
			return Resolved{}, apperr.Validation(op, "custom font file is empty")
		}
		mime, format := FormatFor(s.Filename)
		return Resolved{
			Kind:     "custom",
			Embedded: &Embedded{Family: CustomFamily, MIME: mime, Format: format, Data: s.Data},
			Stack:    QuoteFamily(CustomFamily),
		}, nil

	case RemoteFont:
		p, err := r.fetcher.Fetch(ctx, s.URL)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Resolved{}, apperr.Wrap(apperr.KindFontEmbed, op, "font resolution aborted", ctxErr)
			}
			r.log.Warn(ctx, "remote font unavailable, using fallback family",
				"url", s.URL, "family", s.Family, "error", err)
			return system(s.Family), nil
		}
		family := s.Family
		if family == "" {
			family = RemoteFamily
		}
		r.log.Debug(ctx, "remote font fetched", "url", p.URL, "bytes", len(p.Data), "mime", p.MIME)
		return Resolved{
			Kind:     "remote",
			Embedded: &Embedded{Family: family, MIME: p.MIME, Format: p.Format, Data: p.Data},
			Stack:    QuoteFamily(family),
		}, nil

	case SystemFont:
		return system(s.Family), nil

	default:
		return Resolved{}, apperr.New(apperr.KindFontEmbed, op, fmt.Sprintf("unknown font source %T", src))
	}
}

func system(family string) Resolved {
	return Resolved{Kind: "system", Stack: FallbackStack(family)}
}
