package fonts

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/image/font/sfnt"
)

// Payload is a downloaded font.
type Payload struct {
	URL    string
	Data   []byte
	MIME   string
	Format string
}

// Fetcher downloads a font binary. Callers treat any error as "no font".
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Payload, error)
}

// RewriteURL swaps every woff2 token for ttf, betting that the host serves a
// TrueType sibling next to the compressed file.
func RewriteURL(rawURL string) string {
	return strings.ReplaceAll(rawURL, "woff2", "ttf")
}

// HTTPFetcher fetches fonts with a single attempt and no retries.
type HTTPFetcher struct {
	client *resty.Client
}

// NewHTTPFetcher returns a fetcher; timeout 0 means no timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	c := resty.New().
		SetRetryCount(0).
		SetHeader("Accept", "font/ttf, font/otf, application/octet-stream;q=0.9, */*;q=0.1")
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return &HTTPFetcher{client: c}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Payload, error) {
	target := RewriteURL(strings.TrimSpace(rawURL))
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse font url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported font url scheme %q", u.Scheme)
	}

	resp, err := f.client.R().SetContext(ctx).Get(target)
	if err != nil {
		return nil, fmt.Errorf("fetch font %s: %w", target, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch font %s: status %d", target, resp.StatusCode())
	}
	data := resp.Body()
	if _, err := sfnt.Parse(data); err != nil {
		return nil, fmt.Errorf("fetch font %s: not a TrueType/OpenType font: %w", target, err)
	}

	mime, format := FormatFor(urlPath(target))
	return &Payload{URL: target, Data: data, MIME: mime, Format: format}, nil
}
