package fonts

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"

	"github.com/youruser/certbatch/internal/apperr"
)

// CatalogFont is one family of the remote font catalog. Files maps a variant
// ("regular", "700italic", ...) to its download URL.
type CatalogFont struct {
	Family   string            `json:"family"`
	Files    map[string]string `json:"files"`
	Category string            `json:"category"`
}

type catalogResponse struct {
	Items []CatalogFont `json:"items"`
}

// Catalog lists families from a Google Fonts compatible webfonts endpoint.
type Catalog struct {
	client *resty.Client
	url    string
	apiKey string
}

func NewCatalog(url, apiKey string, timeout time.Duration) *Catalog {
	c := resty.New().SetRetryCount(0).SetHeader("Accept", "application/json")
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return &Catalog{client: c, url: url, apiKey: apiKey}
}

// List returns the catalog in popularity order. Any failure is an upstream
// error.
func (c *Catalog) List(ctx context.Context) ([]CatalogFont, error) {
	const op = "fonts.Catalog.List"
	const msg = "Failed to fetch Google fonts"

	req := c.client.R().SetContext(ctx).SetQueryParam("sort", "popularity")
	if c.apiKey != "" {
		req.SetQueryParam("key", c.apiKey)
	}
	resp, err := req.Get(c.url)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, op, msg, err)
	}
	if resp.IsError() {
		return nil, apperr.New(apperr.KindUpstream, op, msg)
	}

	var body catalogResponse
	if err := sonic.Unmarshal(resp.Body(), &body); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, op, msg, err)
	}
	out := make([]CatalogFont, 0, len(body.Items))
	for _, it := range body.Items {
		out = append(out, CatalogFont{Family: it.Family, Files: it.Files, Category: it.Category})
	}
	return out, nil
}
