package main

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	o, err := parseFlags([]string{"-template", "t.png", "-csv", "n.csv", "-y", "12.5", "-skip-header"})
	require.NoError(t, err)
	assert.Nil(t, o.x)
	require.NotNil(t, o.y)
	assert.Equal(t, 12.5, *o.y)
	assert.True(t, o.skipHeader)
	assert.Equal(t, "batch.zip", o.out)

	_, err = parseFlags([]string{"-csv", "n.csv"})
	assert.Error(t, err)

	_, err = parseFlags([]string{"-template", "t.png", "-csv", "n.csv", "-x", "left"})
	assert.Error(t, err)
}

func TestRun_WritesZip(t *testing.T) {
	dir := t.TempDir()

	img := image.NewNRGBA(image.Rect(0, 0, 200, 80))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	tmpl := filepath.Join(dir, "cert.png")
	require.NoError(t, os.WriteFile(tmpl, buf.Bytes(), 0o644))
	csv := filepath.Join(dir, "names.csv")
	require.NoError(t, os.WriteFile(csv, []byte("Name\nAda Lovelace\nAlan Turing\n"), 0o644))

	out := filepath.Join(dir, "nested", "out.zip")
	o, err := parseFlags([]string{"-template", tmpl, "-csv", csv, "-out", out, "-skip-header", "-report"})
	require.NoError(t, err)
	require.NoError(t, run(context.Background(), o))

	zr, err := zip.OpenReader(out)
	require.NoError(t, err)
	defer zr.Close()
	var got []string
	for _, f := range zr.File {
		got = append(got, f.Name)
	}
	assert.Equal(t, []string{"Ada_Lovelace.png", "Alan_Turing.png", "_report.json"}, got)
}
