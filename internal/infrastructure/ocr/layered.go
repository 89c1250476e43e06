// Package ocr composes page recognizers.
package ocr

import (
	"context"
	"errors"
	"strings"

	"github.com/medinsight/report-analyzer/internal/core/domain"
	"github.com/medinsight/report-analyzer/internal/core/ports"
)

// ErrNoRecognizableContent is returned for pages with neither a text layer
// nor an image.
var ErrNoRecognizableContent = errors.New("page has no text layer and no image")

type Options struct {
	// Preprocess cleans page images before they reach the image recognizer.
	Preprocess bool
}

// LayeredRecognizer prefers a page's embedded text layer and falls back to
// image recognition. Images are checked for suitability first.
type LayeredRecognizer struct {
	images ports.PageRecognizer
	opts   Options
}

func NewLayeredRecognizer(images ports.PageRecognizer, opts Options) *LayeredRecognizer {
	return &LayeredRecognizer{images: images, opts: opts}
}

func (r *LayeredRecognizer) Recognize(ctx context.Context, page domain.RawPage) (domain.Recognition, error) {
	if text := strings.TrimSpace(page.TextLayer); text != "" {
		return domain.Recognition{Text: text}, nil
	}
	if len(page.Image) == 0 || r.images == nil {
		return domain.Recognition{}, ErrNoRecognizableContent
	}
	if err := CheckImage(page.Image); err != nil {
		return domain.Recognition{}, err
	}
	if r.opts.Preprocess {
		cleaned, err := Preprocess(page.Image)
		if err != nil {
			return domain.Recognition{}, err
		}
		page.Image = cleaned
	}
	return r.images.Recognize(ctx, page)
}
