// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fulltext

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"golang.org/x/net/html"

	"github.com/pdiddy/litpipe/internal/container"
)

// HTMLExtractor extracts the visible text of an HTML document, skipping
// script, style, and noscript subtrees.
type HTMLExtractor struct{}

func (HTMLExtractor) Extract(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening HTML %s: %w", path, err)
	}
	defer f.Close()

	doc, err := html.Parse(f)
	if err != nil {
		return "", fmt.Errorf("parsing HTML %s: %w", path, err)
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				b.WriteString(text)
				b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.Join(strings.Fields(b.String()), " "), nil
}

// PDFExtractor pipes a PDF through a pdftotext container image. The image
// is expected to read the PDF on stdin and write plain text to stdout.
type PDFExtractor struct {
	runtime container.Runtime
	image   string
}

// NewPDFExtractor detects a container runtime and verifies the image is
// present locally. Callers treat an error as "extraction unavailable" and
// proceed without PDF text.
func NewPDFExtractor(image string) (*PDFExtractor, error) {
	rt, err := container.DetectRuntime()
	if err != nil {
		return nil, err
	}
	if err := rt.ImageExists(image); err != nil {
		return nil, fmt.Errorf("pdftotext image not available in %s: %w", rt.Name(), err)
	}
	return &PDFExtractor{runtime: rt, image: image}, nil
}

func (e *PDFExtractor) Extract(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening PDF %s: %w", path, err)
	}
	defer f.Close()

	var out bytes.Buffer
	if err := e.runtime.Run(e.image, []string{"-", "-"}, f, &out); err != nil {
		return "", fmt.Errorf("extracting text from %s: %w", path, err)
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("pdftotext produced empty output for %s", path)
	}
	return out.String(), nil
}
