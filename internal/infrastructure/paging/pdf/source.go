// Package pdf splits paged documents into pages, reads their embedded text
// layer and rasterizes the pages that have none.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/medinsight/report-analyzer/internal/core/domain"
)

// Source implements the page source capability. Pages with a text layer skip
// rendering; the others carry a rendered Image for OCR. Without a renderer, or
// when rendering fails, such pages are returned with neither.
type Source struct {
	maxPages int
	renderer Renderer
}

func NewSource(maxPages int, renderer Renderer) *Source {
	return &Source{maxPages: maxPages, renderer: renderer}
}

func (s *Source) Pages(ctx context.Context, content []byte) (pages []domain.RawPage, err error) {
	if len(content) == 0 {
		return nil, errors.New("empty document")
	}
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("malformed document: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}

	total := reader.NumPage()
	if s.maxPages > 0 && total > s.maxPages {
		return nil, fmt.Errorf("document has %d pages, limit is %d", total, s.maxPages)
	}

	pages = make([]domain.RawPage, 0, total)
	for n := 1; n <= total; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(n)
		if page.V.IsNull() {
			continue
		}
		pages = append(pages, domain.RawPage{Number: n, TextLayer: pageText(page, n)})
	}
	s.renderScanned(ctx, content, pages)
	return pages, nil
}

func (s *Source) renderScanned(ctx context.Context, content []byte, pages []domain.RawPage) {
	if s.renderer == nil {
		return
	}
	var scanned []int
	for _, p := range pages {
		if p.TextLayer == "" {
			scanned = append(scanned, p.Number)
		}
	}
	if len(scanned) == 0 {
		return
	}
	images, err := s.renderer.Render(ctx, content, scanned)
	if err != nil {
		slog.Warn("pdf_render_failed", "pages", len(scanned), "error", err)
		return
	}
	for i := range pages {
		if img, ok := images[pages[i].Number]; ok {
			pages[i].Image = img
		}
	}
}

func pageText(page pdf.Page, n int) (text string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("pdf_text_layer_unreadable", "page", n, "panic", r)
			text = ""
		}
	}()
	text, err := page.GetPlainText(nil)
	if err != nil {
		slog.Warn("pdf_text_layer_unreadable", "page", n, "error", err)
		return ""
	}
	return strings.TrimSpace(text)
}
