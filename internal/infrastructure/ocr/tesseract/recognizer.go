// Package tesseract recognizes page images with the Tesseract engine.
package tesseract

import (
	"context"
	"errors"
	"fmt"

	"github.com/otiai10/gosseract/v2"

	"github.com/medinsight/report-analyzer/internal/core/domain"
	"github.com/medinsight/report-analyzer/internal/infrastructure/ocr"
)

type Options struct {
	Languages []string
	// PageSegMode defaults to fully automatic segmentation.
	PageSegMode gosseract.PageSegMode
}

type Recognizer struct {
	opts Options
}

func NewRecognizer(opts Options) *Recognizer {
	if len(opts.Languages) == 0 {
		opts.Languages = []string{"eng"}
	}
	if opts.PageSegMode == 0 {
		opts.PageSegMode = gosseract.PSM_AUTO
	}
	return &Recognizer{opts: opts}
}

type ocrResult struct {
	rec domain.Recognition
	err error
}

// Recognize runs OCR on page.Image and reports the mean word confidence. A
// client is created per call because gosseract clients are not safe for
// concurrent use.
func (r *Recognizer) Recognize(ctx context.Context, page domain.RawPage) (domain.Recognition, error) {
	if len(page.Image) == 0 {
		return domain.Recognition{}, errors.New("tesseract: page has no image")
	}

	done := make(chan ocrResult, 1)
	go func() {
		rec, err := r.recognize(page.Image)
		done <- ocrResult{rec: rec, err: err}
	}()

	select {
	case <-ctx.Done():
		return domain.Recognition{}, ctx.Err()
	case res := <-done:
		return res.rec, res.err
	}
}

func (r *Recognizer) recognize(image []byte) (rec domain.Recognition, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("tesseract: %v", rec)
		}
	}()

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(r.opts.Languages...); err != nil {
		return domain.Recognition{}, fmt.Errorf("tesseract set language: %w", err)
	}
	if err := client.SetPageSegMode(r.opts.PageSegMode); err != nil {
		return domain.Recognition{}, fmt.Errorf("tesseract set page segmentation: %w", err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return domain.Recognition{}, fmt.Errorf("tesseract set image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return domain.Recognition{}, fmt.Errorf("tesseract recognize: %w", err)
	}
	words, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return domain.Recognition{}, fmt.Errorf("tesseract word boxes: %w", err)
	}
	confidences := make([]float64, 0, len(words))
	for _, w := range words {
		confidences = append(confidences, w.Confidence)
	}
	return domain.Recognition{Text: text, OCR: true, Confidence: ocr.MeanConfidence(confidences)}, nil
}
