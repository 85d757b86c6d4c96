// Package config builds the process-wide, read-only configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultPort              = "5001"
	DefaultFontCatalogURL    = "https://www.googleapis.com/webfonts/v1/webfonts"
	DefaultFontFetchTimeout  = 30 * time.Second
	DefaultZipLevel          = 9
	DefaultMaxUploadMB       = 50
	DefaultMaxTemplatePixels = 50_000_000
)

var DefaultAllowedOrigins = []string{
	"http://localhost:3000",
	"https://certfyme.netlify.app",
}

type Config struct {
	Port              string
	FontsAPIKey       string
	FontCatalogURL    string
	AllowedOrigins    []string
	FontDir           string
	FontFetchTimeout  time.Duration // 0 disables the timeout
	ZipLevel          int
	MaxUploadBytes    int64
	MaxTemplatePixels int
	LogLevel          string
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// .env is optional; the process environment wins either way.
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv. Unset keys take defaults.
func FromEnv(getenv func(string) string) (*Config, error) {
	c := &Config{
		Port:              DefaultPort,
		FontCatalogURL:    DefaultFontCatalogURL,
		AllowedOrigins:    append([]string(nil), DefaultAllowedOrigins...),
		FontFetchTimeout:  DefaultFontFetchTimeout,
		ZipLevel:          DefaultZipLevel,
		MaxUploadBytes:    DefaultMaxUploadMB << 20,
		MaxTemplatePixels: DefaultMaxTemplatePixels,
		LogLevel:          "info",
	}

	if v := strings.TrimSpace(getenv("PORT")); v != "" {
		c.Port = v
	}
	c.FontsAPIKey = strings.TrimSpace(getenv("GOOGLE_FONTS_API_KEY"))
	if v := strings.TrimSpace(getenv("FONT_CATALOG_URL")); v != "" {
		c.FontCatalogURL = v
	}
	if v := getenv("ALLOWED_ORIGINS"); strings.TrimSpace(v) != "" {
		c.AllowedOrigins = splitList(v)
		for _, o := range c.AllowedOrigins {
			if o != "*" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
				return nil, fmt.Errorf("ALLOWED_ORIGINS: origin %q must start with http:// or https://", o)
			}
		}
	}
	c.FontDir = strings.TrimSpace(getenv("FONT_DIR"))
	if v := strings.TrimSpace(getenv("LOG_LEVEL")); v != "" {
		c.LogLevel = v
	}

	if v := strings.TrimSpace(getenv("FONT_FETCH_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("FONT_FETCH_TIMEOUT: invalid duration %q", v)
		}
		c.FontFetchTimeout = d
	}
	if v := strings.TrimSpace(getenv("ZIP_LEVEL")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < -1 || n > 9 {
			return nil, fmt.Errorf("ZIP_LEVEL: must be an integer in [-1, 9], got %q", v)
		}
		c.ZipLevel = n
	}
	if v := strings.TrimSpace(getenv("MAX_UPLOAD_MB")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("MAX_UPLOAD_MB: must be a positive integer, got %q", v)
		}
		c.MaxUploadBytes = n << 20
	}
	if v := strings.TrimSpace(getenv("MAX_TEMPLATE_PIXELS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("MAX_TEMPLATE_PIXELS: must be a positive integer, got %q", v)
		}
		c.MaxTemplatePixels = n
	}
	return c, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// AllowsAnyOrigin reports whether "*" appears in the origin allow-list.
func (c *Config) AllowsAnyOrigin() bool {
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
