package fonts

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
)

// Registry holds the fonts installed in the rendering environment: the Go
// fonts compiled into the binary plus anything loaded from a font directory.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]*opentype.Font
	regular map[string]bool
	def     *opentype.Font
}

// NewRegistry returns a registry seeded with the Go font family and the CSS
// generic families mapped onto it.
func NewRegistry() *Registry {
	r := &Registry{
		byName:  make(map[string]*opentype.Font),
		regular: make(map[string]bool),
	}
	regular := mustParse(goregular.TTF)
	mono := mustParse(gomono.TTF)
	r.def = regular

	r.Register("Go", regular)
	r.Register("Go Regular", regular)
	r.Register("Go Bold", mustParse(gobold.TTF))
	r.Register("Go Mono", mono)
	for _, g := range []string{"sans-serif", "serif", "system-ui", "cursive", "fantasy"} {
		r.Register(g, regular)
	}
	r.Register("monospace", mono)
	return r
}

func mustParse(b []byte) *opentype.Font {
	f, err := opentype.Parse(b)
	if err != nil {
		panic(fmt.Sprintf("fonts: built-in font: %v", err))
	}
	return f
}

// Register maps family (case-insensitive) to f, replacing any earlier entry.
func (r *Registry) Register(family string, f *opentype.Font) {
	key := strings.ToLower(strings.TrimSpace(family))
	if key == "" || f == nil {
		return
	}
	r.mu.Lock()
	r.byName[key] = f
	r.mu.Unlock()
}

func (r *Registry) Lookup(family string) (*opentype.Font, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.byName[strings.ToLower(strings.TrimSpace(family))]
	return f, ok
}

// Default is used when no family in a stack resolves.
func (r *Registry) Default() *opentype.Font {
	return r.def
}

// LoadDir registers every .ttf/.otf file under dir by its family name,
// preferring the "Regular" style when a family has several files. Files that
// fail to parse are skipped.
func (r *Registry) LoadDir(dir string) (int, error) {
	loaded := 0
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(p)) {
		case ".ttf", ".otf":
		default:
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil
		}
		f, err := opentype.Parse(data)
		if err != nil {
			return nil
		}
		if r.add(f) {
			loaded++
		}
		return nil
	})
	if err != nil {
		return loaded, fmt.Errorf("load fonts from %s: %w", dir, err)
	}
	return loaded, nil
}

func (r *Registry) add(f *opentype.Font) bool {
	var buf sfnt.Buffer
	family, err := f.Name(&buf, sfnt.NameIDFamily)
	if err != nil || strings.TrimSpace(family) == "" {
		return false
	}
	style, _ := f.Name(&buf, sfnt.NameIDSubfamily)
	isRegular := strings.EqualFold(strings.TrimSpace(style), "regular")
	key := strings.ToLower(strings.TrimSpace(family))

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[key]; exists && (r.regular[key] || !isRegular) {
		return false
	}
	r.byName[key] = f
	r.regular[key] = isRegular
	return true
}
