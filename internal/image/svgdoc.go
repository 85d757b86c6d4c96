package imagepkg

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

var errExternalRef = errors.New("only data: URLs can be referenced")

type elemKind int

const (
	elemImage elemKind = iota
	elemText
)

type element struct {
	kind       elemKind
	x, y, w, h float64
	href       string
	classes    []string
	attrs      []declaration // presentation attributes
	inline     []declaration // style="..."
	text       string
}

type svgDoc struct {
	width, height float64
	sheet         stylesheet
	elems         []element // paint order
}

var presentationAttrs = map[string]bool{
	"fill":              true,
	"font-family":       true,
	"font-size":         true,
	"text-anchor":       true,
	"dominant-baseline": true,
}

// parseSVG reads the subset of SVG a certificate document uses. Anything it
// does not understand is ignored, but the markup itself must be well formed.
func parseSVG(doc []byte) (*svgDoc, error) {
	d := &svgDoc{}
	dec := xml.NewDecoder(bytes.NewReader(doc))

	var (
		css      strings.Builder
		inStyle  bool
		rootSeen bool
		text     *element
		textBuf  strings.Builder
		nested   int
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse svg: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if text != nil {
				nested++
				continue
			}
			switch t.Name.Local {
			case "svg":
				if rootSeen {
					continue
				}
				rootSeen = true
				for _, a := range t.Attr {
					switch a.Name.Local {
					case "width":
						d.width, _ = parseLength(a.Value)
					case "height":
						d.height, _ = parseLength(a.Value)
					}
				}
			case "style":
				inStyle = true
			case "image":
				el := element{kind: elemImage}
				for _, a := range t.Attr {
					switch a.Name.Local {
					case "x":
						el.x, _ = parseLength(a.Value)
					case "y":
						el.y, _ = parseLength(a.Value)
					case "width":
						el.w, _ = parseLength(a.Value)
					case "height":
						el.h, _ = parseLength(a.Value)
					case "href":
						el.href = strings.TrimSpace(a.Value)
					}
				}
				d.elems = append(d.elems, el)
			case "text":
				text = &element{kind: elemText}
				textBuf.Reset()
				for _, a := range t.Attr {
					switch name := a.Name.Local; {
					case name == "x":
						text.x, _ = parseLength(a.Value)
					case name == "y":
						text.y, _ = parseLength(a.Value)
					case name == "class":
						text.classes = strings.Fields(a.Value)
					case name == "style":
						text.inline = parseDecls(a.Value)
					case presentationAttrs[name]:
						text.attrs = append(text.attrs, declaration{prop: name, value: a.Value})
					}
				}
			}

		case xml.EndElement:
			switch {
			case text != nil && nested > 0:
				nested--
			case text != nil && t.Name.Local == "text":
				text.text = strings.Join(strings.Fields(textBuf.String()), " ")
				d.elems = append(d.elems, *text)
				text = nil
			case t.Name.Local == "style":
				inStyle = false
			}

		case xml.CharData:
			switch {
			case text != nil:
				textBuf.Write(t)
			case inStyle:
				css.Write(t)
			}
		}
	}

	if !rootSeen {
		return nil, errors.New("parse svg: no <svg> root element")
	}
	if d.width <= 0 || d.height <= 0 {
		return nil, fmt.Errorf("parse svg: invalid canvas size %gx%g", d.width, d.height)
	}
	d.sheet = parseCSS(css.String())
	return d, nil
}

// decodeDataURL returns the media type and payload of a data: URL.
func decodeDataURL(u string) (string, []byte, error) {
	if !strings.HasPrefix(u, "data:") {
		return "", nil, errExternalRef
	}
	comma := strings.IndexByte(u, ',')
	if comma < 0 {
		return "", nil, errors.New("malformed data URL")
	}
	meta, payload := u[len("data:"):comma], u[comma+1:]

	if strings.HasSuffix(meta, ";base64") {
		payload = strings.Map(func(r rune) rune {
			if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
				return -1
			}
			return r
		}, payload)
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", nil, fmt.Errorf("decode data URL: %w", err)
		}
		return strings.TrimSuffix(meta, ";base64"), data, nil
	}
	data, err := url.PathUnescape(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data URL: %w", err)
	}
	return meta, []byte(data), nil
}
