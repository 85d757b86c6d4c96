// Package archive streams certificates into a zip container as they are
// rendered.
package archive

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

var (
	ErrFinalized      = errors.New("archive: already finalized")
	ErrDuplicateEntry = errors.New("archive: duplicate entry name")
)

// Writer appends entries to a zip stream. Entries are written through to the
// underlying io.Writer as they are appended; only the central directory is
// held back until Finalize. Not safe for concurrent use.
type Writer struct {
	zw    *zip.Writer
	names map[string]struct{}
	done  bool
	now   func() time.Time
}

// NewWriter deflates entries at level (-1 default, 0 store, 1..9).
func NewWriter(w io.Writer, level int) *Writer {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})
	return &Writer{
		zw:    zw,
		names: make(map[string]struct{}),
		now:   time.Now,
	}
}

func (w *Writer) Append(name string, data []byte) error {
	if w.done {
		return ErrFinalized
	}
	if _, dup := w.names[name]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateEntry, name)
	}

	f, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: w.now(),
	})
	if err != nil {
		return fmt.Errorf("archive: create %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("archive: write %s: %w", name, err)
	}
	w.names[name] = struct{}{}
	return nil
}

// Len is the number of entries appended so far.
func (w *Writer) Len() int {
	return len(w.names)
}

// Finalize writes the central directory. The Writer accepts nothing after it.
func (w *Writer) Finalize() error {
	if w.done {
		return ErrFinalized
	}
	w.done = true
	if err := w.zw.Close(); err != nil {
		return fmt.Errorf("archive: finalize: %w", err)
	}
	return nil
}
