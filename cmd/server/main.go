package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/youruser/certbatch/internal/api"
	"github.com/youruser/certbatch/internal/certgen"
	"github.com/youruser/certbatch/internal/config"
	"github.com/youruser/certbatch/internal/fonts"
	"github.com/youruser/certbatch/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "certbatch:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.New(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// System fonts: the bundled Go fonts plus whatever FONT_DIR holds (best-effort).
	registry := fonts.NewRegistry()
	if cfg.FontDir != "" {
		n, err := registry.LoadDir(cfg.FontDir)
		if err != nil {
			log.Warn(ctx, "failed to load font dir", "dir", cfg.FontDir, "error", err)
		} else {
			log.Info(ctx, "system fonts loaded", "dir", cfg.FontDir, "count", n)
		}
	}

	resolver := fonts.NewResolver(fonts.NewHTTPFetcher(cfg.FontFetchTimeout), log)
	gen := certgen.New(resolver, registry, log,
		certgen.WithZipLevel(cfg.ZipLevel),
		certgen.WithMaxTemplatePixels(cfg.MaxTemplatePixels),
	)
	catalog := fonts.NewCatalog(cfg.FontCatalogURL, cfg.FontsAPIKey, cfg.FontFetchTimeout)
	if cfg.FontsAPIKey == "" {
		log.Warn(ctx, "GOOGLE_FONTS_API_KEY is not set; /api/fonts will likely fail")
	}

	if logging.ParseLevel(cfg.LogLevel) == slog.LevelDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(cfg, api.NewHandler(gen, catalog, log), log)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting server on http://localhost"+cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
