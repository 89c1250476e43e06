package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image/png"

	"github.com/gen2brain/go-fitz"
)

const defaultRenderDPI = 200

// Renderer rasterizes selected 1-based pages of a document into encoded
// images.
type Renderer interface {
	Render(ctx context.Context, content []byte, pages []int) (map[int][]byte, error)
}

// FitzRenderer renders pages with MuPDF.
type FitzRenderer struct {
	dpi float64
}

func NewFitzRenderer(dpi float64) *FitzRenderer {
	if dpi <= 0 {
		dpi = defaultRenderDPI
	}
	return &FitzRenderer{dpi: dpi}
}

func (r *FitzRenderer) Render(ctx context.Context, content []byte, pages []int) (map[int][]byte, error) {
	doc, err := fitz.NewFromMemory(content)
	if err != nil {
		return nil, fmt.Errorf("open document for rendering: %w", err)
	}
	defer doc.Close()

	out := make(map[int][]byte, len(pages))
	for _, n := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if n < 1 || n > doc.NumPage() {
			return nil, fmt.Errorf("render page %d: out of range", n)
		}
		img, err := doc.ImageDPI(n-1, r.dpi)
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", n, err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode page %d: %w", n, err)
		}
		out[n] = buf.Bytes()
	}
	return out, nil
}
