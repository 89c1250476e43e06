package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/medinsight/report-analyzer/internal/core/domain"
	"github.com/medinsight/report-analyzer/internal/core/ports"
)

const (
	minValidTextLength      = 10
	maxCorruptionRatio      = 0.1
	defaultOCRConcurrency   = 4
	defaultMinOCRConfidence = 60
)

// corruptionMarkers are glyphs OCR and lossy decoders emit for unreadable input.
var corruptionMarkers = []rune{'�', '□', '■', '¤'}

type ExtractorOptions struct {
	OCRConcurrency int
	OCRTimeout     time.Duration
	// MinOCRConfidence is the mean word confidence (0-100) below which OCR
	// output is flagged as low confidence.
	MinOCRConfidence float64
}

type TextExtractor struct {
	pages      ports.PageSource
	recognizer ports.PageRecognizer
	opts       ExtractorOptions
}

func NewTextExtractor(pages ports.PageSource, recognizer ports.PageRecognizer, opts ExtractorOptions) *TextExtractor {
	if opts.OCRConcurrency <= 0 {
		opts.OCRConcurrency = defaultOCRConcurrency
	}
	if opts.MinOCRConfidence <= 0 || opts.MinOCRConfidence > 100 {
		opts.MinOCRConfidence = defaultMinOCRConfidence
	}
	return &TextExtractor{
		pages:      pages,
		recognizer: recognizer,
		opts:       opts,
	}
}

func (e *TextExtractor) Extract(ctx context.Context, doc domain.Document) (out domain.ExtractedText) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("text_extraction_panic", "format", doc.Format, "panic", r)
			out = domain.FailedExtraction(fmt.Sprintf("Document processing failed: %v", r))
		}
	}()

	switch doc.Format {
	case domain.FormatPagedDocument:
		return e.extractPaged(ctx, doc.Content)
	case domain.FormatImage:
		return e.extractImage(ctx, doc.Content)
	case domain.FormatPlainText:
		return extractPlainText(doc.Content)
	default:
		return domain.FailedExtraction(fmt.Sprintf("Unsupported document format: %q", doc.Format))
	}
}

func (e *TextExtractor) extractPaged(ctx context.Context, content []byte) domain.ExtractedText {
	if e.pages == nil || e.recognizer == nil {
		return domain.FailedExtraction("PDF processing failed: page recognition is not configured")
	}

	raw, err := e.pages.Pages(ctx, content)
	if err != nil {
		return domain.FailedExtraction(fmt.Sprintf("PDF processing failed: %v", err))
	}
	if len(raw) == 0 {
		return domain.FailedExtraction("PDF processing failed: document has no pages")
	}
	sort.SliceStable(raw, func(i, j int) bool { return raw[i].Number < raw[j].Number })

	// Page failures are isolated: the group is not bound to a shared context and
	// every task returns nil.
	recognized := make([]domain.Recognition, len(raw))
	failed := make([]bool, len(raw))
	var g errgroup.Group
	g.SetLimit(e.opts.OCRConcurrency)
	for i, page := range raw {
		g.Go(func() error {
			rec, err := e.recognizePage(ctx, page)
			if err != nil {
				slog.Warn("page_recognition_failed", "page", pageNumber(page, i), "error", err)
				failed[i] = true
				return nil
			}
			recognized[i] = rec
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return domain.FailedExtraction(fmt.Sprintf("PDF processing failed: %v", err))
	}
	if allTrue(failed) {
		return domain.FailedExtraction("PDF processing failed: no page could be recognized")
	}

	pages := make([]domain.Page, len(raw))
	var full strings.Builder
	for i, page := range raw {
		n := pageNumber(page, i)
		pages[i] = recognizedPage(n, recognized[i])
		fmt.Fprintf(&full, "\n=== Page %d ===\n%s", n, recognized[i].Text)
	}

	return domain.ExtractedText{
		Pages:         pages,
		FullText:      strings.TrimSpace(full.String()),
		PageCount:     len(pages),
		Success:       true,
		LowConfidence: e.lowConfidence(recognized),
	}
}

func (e *TextExtractor) extractImage(ctx context.Context, content []byte) domain.ExtractedText {
	if e.recognizer == nil {
		return domain.FailedExtraction("Image processing failed: page recognition is not configured")
	}
	if len(content) == 0 {
		return domain.FailedExtraction("Image processing failed: empty image")
	}

	rec, err := e.recognizePage(ctx, domain.RawPage{Number: 1, Image: content})
	if err != nil {
		return domain.FailedExtraction(fmt.Sprintf("Image processing failed: %v", err))
	}
	out := singlePage(rec.Text)
	out.Pages[0] = recognizedPage(1, rec)
	out.LowConfidence = e.lowConfidence([]domain.Recognition{rec})
	return out
}

func extractPlainText(content []byte) domain.ExtractedText {
	if !utf8.Valid(content) {
		return domain.FailedExtraction("Text processing failed: invalid UTF-8 byte sequence")
	}
	return singlePage(string(content))
}

func (e *TextExtractor) recognizePage(ctx context.Context, page domain.RawPage) (rec domain.Recognition, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec, err = domain.Recognition{}, fmt.Errorf("recognizer panic: %v", r)
		}
	}()

	callCtx, cancel := withOptionalTimeout(ctx, e.opts.OCRTimeout)
	defer cancel()
	rec, err = e.recognizer.Recognize(callCtx, page)
	if err != nil {
		return domain.Recognition{}, err
	}
	rec.Text = strings.TrimSpace(rec.Text)
	return rec, nil
}

// lowConfidence averages the confidence of OCR pages that produced words.
// Text-layer pages do not count.
func (e *TextExtractor) lowConfidence(recognized []domain.Recognition) bool {
	var sum float64
	n := 0
	for _, rec := range recognized {
		if rec.OCR && rec.Confidence > 0 {
			sum += rec.Confidence
			n++
		}
	}
	return n > 0 && sum/float64(n) < e.opts.MinOCRConfidence
}

func recognizedPage(number int, rec domain.Recognition) domain.Page {
	page := domain.Page{PageNumber: number, Content: rec.Text}
	if rec.OCR {
		page.OCRConfidence = rec.Confidence
	}
	return page
}

func singlePage(text string) domain.ExtractedText {
	return domain.ExtractedText{
		Pages:     []domain.Page{{PageNumber: 1, Content: text}},
		FullText:  strings.TrimSpace(text),
		PageCount: 1,
		Success:   true,
	}
}

func allTrue(values []bool) bool {
	for _, v := range values {
		if !v {
			return false
		}
	}
	return true
}

func pageNumber(page domain.RawPage, index int) int {
	if page.Number > 0 {
		return page.Number
	}
	return index + 1
}

// ValidateText is the quality gate applied to extracted text before inference.
// It rejects short text and text dominated by corruption glyphs.
func ValidateText(text string) bool {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < minValidTextLength {
		return false
	}

	total := 0
	corrupted := 0
	for _, r := range text {
		total++
		for _, marker := range corruptionMarkers {
			if r == marker {
				corrupted++
				break
			}
		}
	}
	return float64(corrupted)/float64(total) < maxCorruptionRatio
}

func withOptionalTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
