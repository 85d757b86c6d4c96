package fonts

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/youruser/certbatch/internal/apperr"
	"github.com/youruser/certbatch/internal/logging"
)

type fakeFetcher struct {
	urls    []string
	payload *Payload
	err     error
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (*Payload, error) {
	f.urls = append(f.urls, rawURL)
	return f.payload, f.err
}

func TestSelectSource_Priority(t *testing.T) {
	custom := &CustomFont{Data: []byte{1}, Filename: "a.ttf"}

	assert.Equal(t, *custom, SelectSource(custom, "https://fonts.example/x.ttf", "Roboto"))
	assert.Equal(t, RemoteFont{URL: "https://fonts.example/x.ttf", Family: "Roboto"},
		SelectSource(nil, " https://fonts.example/x.ttf ", " Roboto "))
	assert.Equal(t, SystemFont{Family: "Roboto"}, SelectSource(nil, "  ", "Roboto"))
}

func TestResolve_CustomIgnoresURL(t *testing.T) {
	ff := &fakeFetcher{err: errors.New("must not be called")}
	r := NewResolver(ff, logging.Nop())

	src := SelectSource(&CustomFont{Data: []byte("OTTO"), Filename: "Brand.OTF"}, "https://x/y.ttf", "Roboto")
	got, err := r.Resolve(context.Background(), src)
	require.NoError(t, err)

	assert.Empty(t, ff.urls)
	assert.Equal(t, "custom", got.Kind)
	require.NotNil(t, got.Embedded)
	assert.Equal(t, CustomFamily, got.Embedded.Family)
	assert.Equal(t, MIMEOpenType, got.Embedded.MIME)
	assert.Equal(t, FormatOpenType, got.Embedded.Format)
	assert.Equal(t, `"CustomFont"`, got.Stack)
}

func TestResolve_CustomEmptyIsValidation(t *testing.T) {
	r := NewResolver(&fakeFetcher{}, logging.Nop())
	_, err := r.Resolve(context.Background(), CustomFont{Filename: "a.ttf"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestResolve_RemoteSuccess(t *testing.T) {
	ff := &fakeFetcher{payload: &Payload{Data: goregular.TTF, MIME: MIMETrueType, Format: FormatTrueType}}
	r := NewResolver(ff, logging.Nop())

	got, err := r.Resolve(context.Background(), RemoteFont{URL: "https://x/y.woff2", Family: "Lobster"})
	require.NoError(t, err)

	assert.Equal(t, []string{"https://x/y.woff2"}, ff.urls)
	assert.Equal(t, "remote", got.Kind)
	require.NotNil(t, got.Embedded)
	assert.Equal(t, "Lobster", got.Embedded.Family)
	assert.Equal(t, `"Lobster"`, got.Stack)
}

func TestResolve_RemoteFailureFallsBack(t *testing.T) {
	r := NewResolver(&fakeFetcher{err: errors.New("connection refused")}, logging.Nop())

	got, err := r.Resolve(context.Background(), RemoteFont{URL: "https://x/y.ttf", Family: "Lobster"})
	require.NoError(t, err)
	assert.Nil(t, got.Embedded)
	assert.Equal(t, "system", got.Kind)
	assert.Equal(t, `"Lobster", sans-serif`, got.Stack)
}

func TestResolve_RemoteCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewResolver(&fakeFetcher{err: context.Canceled}, logging.Nop())

	_, err := r.Resolve(ctx, RemoteFont{URL: "https://x/y.ttf"})
	assert.True(t, apperr.IsKind(err, apperr.KindFontEmbed))
}

func TestResolve_System(t *testing.T) {
	r := NewResolver(&fakeFetcher{}, logging.Nop())

	got, err := r.Resolve(context.Background(), SystemFont{})
	require.NoError(t, err)
	assert.Equal(t, "sans-serif", got.Stack)

	got, err = r.Resolve(context.Background(), SystemFont{Family: `Bad"Name`})
	require.NoError(t, err)
	assert.Equal(t, `"Bad\"Name", sans-serif`, got.Stack)
}

func TestResolve_UnknownSource(t *testing.T) {
	r := NewResolver(&fakeFetcher{}, logging.Nop())
	_, err := r.Resolve(context.Background(), nil)
	assert.True(t, apperr.IsKind(err, apperr.KindFontEmbed))
}

func TestRewriteURL(t *testing.T) {
	assert.Equal(t, "https://fonts.example/s/roboto/v30/abc.ttf",
		RewriteURL("https://fonts.example/s/roboto/v30/abc.woff2"))
	assert.Equal(t, "https://fonts.example/a.ttf", RewriteURL("https://fonts.example/a.ttf"))
}

func TestQuoteFamily(t *testing.T) {
	assert.Equal(t, `"My \\ \"Font\""`, QuoteFamily(`My \ "Font"`))
	assert.Equal(t, `"Fancy]]Font"`, QuoteFamily("Fancy]]>Font"))
	assert.NotContains(t, QuoteFamily("a]]]>>>b"), "]]>")
	assert.Equal(t, `"Fancy]]Font", sans-serif`, FallbackStack("Fancy]]>Font"))
}

func TestFormatFor(t *testing.T) {
	mime, format := FormatFor("/fonts/a.otf")
	assert.Equal(t, MIMEOpenType, mime)
	assert.Equal(t, FormatOpenType, format)

	mime, format = FormatFor("whatever.woff")
	assert.Equal(t, MIMETrueType, mime)
	assert.Equal(t, FormatTrueType, format)
}

func TestHTTPFetcher(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/font.ttf", "/font.otf":
			_, _ = w.Write(goregular.TTF)
		case "/page.ttf":
			_, _ = w.Write([]byte("<html>not a font</html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(5 * time.Second)
	ctx := context.Background()

	p, err := f.Fetch(ctx, srv.URL+"/font.woff2")
	require.NoError(t, err)
	assert.Equal(t, "/font.ttf", paths[0], "compressed extension is rewritten before fetching")
	assert.Equal(t, MIMETrueType, p.MIME)
	assert.Equal(t, goregular.TTF, p.Data)

	p, err = f.Fetch(ctx, srv.URL+"/font.otf?v=2")
	require.NoError(t, err)
	assert.Equal(t, MIMEOpenType, p.MIME)

	_, err = f.Fetch(ctx, srv.URL+"/missing.ttf")
	assert.Error(t, err)

	_, err = f.Fetch(ctx, srv.URL+"/page.ttf")
	assert.Error(t, err)

	_, err = f.Fetch(ctx, "ftp://example.com/a.ttf")
	assert.Error(t, err)
}

func TestCatalog_List(t *testing.T) {
	var gotKey, gotSort string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		gotSort = r.URL.Query().Get("sort")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"kind":"webfonts#webfontList","items":[
			{"family":"Roboto","category":"sans-serif","files":{"regular":"https://f/roboto.ttf"},"version":"v30"},
			{"family":"Lobster","category":"display","files":{"regular":"https://f/lobster.ttf"}}
		]}`))
	}))
	defer srv.Close()

	fonts, err := NewCatalog(srv.URL, "k3y", time.Second).List(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "k3y", gotKey)
	assert.Equal(t, "popularity", gotSort)
	require.Len(t, fonts, 2)
	assert.Equal(t, "Roboto", fonts[0].Family)
	assert.Equal(t, "sans-serif", fonts[0].Category)
	assert.Equal(t, "https://f/roboto.ttf", fonts[0].Files["regular"])
	assert.Equal(t, "Lobster", fonts[1].Family)
}

func TestCatalog_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewCatalog(srv.URL, "", time.Second).List(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindUpstream))

	_, err = NewCatalog("http://127.0.0.1:1", "", time.Second).List(context.Background())
	assert.True(t, apperr.IsKind(err, apperr.KindUpstream))
}

func TestRegistry_Generics(t *testing.T) {
	r := NewRegistry()
	def := r.Default()
	require.NotNil(t, def)

	f, ok := r.Lookup("Sans-Serif")
	assert.True(t, ok)
	assert.Same(t, def, f)

	_, ok = r.Lookup("monospace")
	assert.True(t, ok)

	_, ok = r.Lookup("Comic Sans MS")
	assert.False(t, ok)
}

func TestRegistry_LoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a-bold.ttf"), gobold.TTF, 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "b-regular.ttf"), goregular.TTF, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.otf"), []byte("junk"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("hi"), 0o644))

	r := NewRegistry()
	n, err := r.LoadDir(dir)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)

	_, ok := r.Lookup("go")
	assert.True(t, ok)

	_, err = r.LoadDir(filepath.Join(dir, "does-not-exist"))
	assert.Error(t, err)
}
