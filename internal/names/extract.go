// Package names turns an uploaded CSV name list into recipient names.
package names

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/youruser/certbatch/internal/apperr"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type Options struct {
	// SkipHeader drops the first record. By default every record counts,
	// header or not.
	SkipHeader bool
}

// Extract returns the first column of every record, trimmed, in input order.
// Blank values are dropped; duplicates are kept.
func Extract(r io.Reader, opts Options) ([]string, error) {
	const op = "names.Extract"
	if r == nil {
		return nil, apperr.Validation(op, "Missing template or CSV file")
	}

	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	var out []string
	first := true
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, op, "CSV could not be parsed", err)
		}
		if first {
			first = false
			if opts.SkipHeader {
				continue
			}
		}
		if len(row) == 0 {
			continue
		}
		if name := strings.TrimSpace(row[0]); name != "" {
			out = append(out, name)
		}
	}

	if len(out) == 0 {
		return nil, apperr.Validation(op, "CSV is empty")
	}
	return out, nil
}

// ExtractBytes is Extract over an in-memory upload.
func ExtractBytes(b []byte, opts Options) ([]string, error) {
	if b == nil {
		return Extract(nil, opts)
	}
	return Extract(bytes.NewReader(b), opts)
}
