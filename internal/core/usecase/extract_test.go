package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/medinsight/report-analyzer/internal/core/domain"
)

type pageSourceFake struct {
	pages []domain.RawPage
	err   error
}

func (f *pageSourceFake) Pages(context.Context, []byte) ([]domain.RawPage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pages, nil
}

// recognizerFake answers from the page text layer; pages listed in failPages
// return an error. Image-only pages read as imageText with imageConfidence.
// It is read-only after construction.
type recognizerFake struct {
	failPages       map[int]bool
	imageText       string
	imageConfidence float64
	err             error
}

func (f *recognizerFake) Recognize(_ context.Context, page domain.RawPage) (domain.Recognition, error) {
	if f.err != nil {
		return domain.Recognition{}, f.err
	}
	if f.failPages[page.Number] {
		return domain.Recognition{}, errors.New("ocr failed")
	}
	if len(page.Image) > 0 && page.TextLayer == "" {
		return domain.Recognition{Text: f.imageText, OCR: true, Confidence: f.imageConfidence}, nil
	}
	return domain.Recognition{Text: page.TextLayer}, nil
}

func TestExtractPlainText(t *testing.T) {
	e := NewTextExtractor(nil, nil, ExtractorOptions{})
	out := e.Extract(context.Background(), domain.Document{
		Format:  domain.FormatPlainText,
		Content: []byte("  Patient presents with chest pain.\n"),
	})
	if !out.Success {
		t.Fatalf("expected success, got error %q", out.Error)
	}
	if out.FullText != "Patient presents with chest pain." {
		t.Fatalf("unexpected full text: %q", out.FullText)
	}
	if out.PageCount != 1 || len(out.Pages) != 1 {
		t.Fatalf("expected one page, got %d/%d", out.PageCount, len(out.Pages))
	}
}

func TestExtractPlainTextInvalidUTF8(t *testing.T) {
	e := NewTextExtractor(nil, nil, ExtractorOptions{})
	out := e.Extract(context.Background(), domain.Document{
		Format:  domain.FormatPlainText,
		Content: []byte{0xff, 0xfe, 0xfd},
	})
	if out.Success {
		t.Fatalf("expected failure")
	}
	if out.Error == "" {
		t.Fatalf("expected error message")
	}
	if len(out.Pages) != 0 || out.FullText != "" || out.PageCount != 0 {
		t.Fatalf("failed extraction must be empty, got %+v", out)
	}
}

func TestExtractPagedKeepsPageOrder(t *testing.T) {
	source := &pageSourceFake{pages: []domain.RawPage{
		{Number: 2, TextLayer: "second"},
		{Number: 1, TextLayer: "first"},
		{Number: 3, TextLayer: "third"},
	}}
	e := NewTextExtractor(source, &recognizerFake{}, ExtractorOptions{OCRConcurrency: 3})

	out := e.Extract(context.Background(), domain.Document{Format: domain.FormatPagedDocument, Content: []byte("%PDF")})
	if !out.Success {
		t.Fatalf("expected success, got %q", out.Error)
	}
	want := "=== Page 1 ===\nfirst\n=== Page 2 ===\nsecond\n=== Page 3 ===\nthird"
	if out.FullText != want {
		t.Fatalf("unexpected full text:\n%s", out.FullText)
	}
	for i, page := range out.Pages {
		if page.PageNumber != i+1 {
			t.Fatalf("page %d has number %d", i, page.PageNumber)
		}
	}
	if out.PageCount != len(out.Pages) {
		t.Fatalf("page count mismatch: %d vs %d", out.PageCount, len(out.Pages))
	}
}

func TestExtractPagedFailedPageIsEmpty(t *testing.T) {
	source := &pageSourceFake{pages: []domain.RawPage{
		{Number: 1, TextLayer: "first"},
		{Number: 2, TextLayer: "second"},
	}}
	e := NewTextExtractor(source, &recognizerFake{failPages: map[int]bool{2: true}}, ExtractorOptions{})

	out := e.Extract(context.Background(), domain.Document{Format: domain.FormatPagedDocument})
	if !out.Success {
		t.Fatalf("expected success, got %q", out.Error)
	}
	if out.Pages[1].Content != "" {
		t.Fatalf("expected empty content for failed page, got %q", out.Pages[1].Content)
	}
	if !strings.Contains(out.FullText, "=== Page 2 ===") {
		t.Fatalf("expected page 2 delimiter in %q", out.FullText)
	}
}

func TestExtractPagedAllPagesFail(t *testing.T) {
	source := &pageSourceFake{pages: []domain.RawPage{{Number: 1}, {Number: 2}}}
	e := NewTextExtractor(source, &recognizerFake{failPages: map[int]bool{1: true, 2: true}}, ExtractorOptions{})

	out := e.Extract(context.Background(), domain.Document{Format: domain.FormatPagedDocument})
	if out.Success {
		t.Fatalf("expected failure")
	}
	if !strings.HasPrefix(out.Error, "PDF processing failed") {
		t.Fatalf("unexpected error %q", out.Error)
	}
}

func TestExtractPagedSourceError(t *testing.T) {
	e := NewTextExtractor(&pageSourceFake{err: errors.New("malformed xref")}, &recognizerFake{}, ExtractorOptions{})

	out := e.Extract(context.Background(), domain.Document{Format: domain.FormatPagedDocument})
	if out.Success || !strings.Contains(out.Error, "malformed xref") {
		t.Fatalf("expected source error, got %+v", out)
	}
}

func TestExtractImage(t *testing.T) {
	e := NewTextExtractor(nil, &recognizerFake{imageText: " Hemoglobin 13.5 g/dL \n"}, ExtractorOptions{})

	out := e.Extract(context.Background(), domain.Document{Format: domain.FormatImage, Content: []byte{0x89, 'P', 'N', 'G'}})
	if !out.Success {
		t.Fatalf("expected success, got %q", out.Error)
	}
	if out.FullText != "Hemoglobin 13.5 g/dL" {
		t.Fatalf("unexpected text %q", out.FullText)
	}
}

func TestExtractImageRecognizerError(t *testing.T) {
	e := NewTextExtractor(nil, &recognizerFake{err: errors.New("tesseract missing")}, ExtractorOptions{})

	out := e.Extract(context.Background(), domain.Document{Format: domain.FormatImage, Content: []byte{1}})
	if out.Success {
		t.Fatalf("expected failure")
	}
	if !strings.HasPrefix(out.Error, "Image processing failed") {
		t.Fatalf("unexpected error %q", out.Error)
	}
}

func TestExtractImageLowConfidence(t *testing.T) {
	cases := map[string]struct {
		confidence float64
		want       bool
	}{
		"below floor":   {confidence: 41.5, want: true},
		"above floor":   {confidence: 88, want: false},
		"no word boxes": {confidence: 0, want: false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			e := NewTextExtractor(nil, &recognizerFake{imageText: "Hemoglobin 13.5 g/dL", imageConfidence: tc.confidence}, ExtractorOptions{})
			out := e.Extract(context.Background(), domain.Document{Format: domain.FormatImage, Content: []byte{1}})
			if !out.Success {
				t.Fatalf("expected success, got %q", out.Error)
			}
			if out.LowConfidence != tc.want {
				t.Fatalf("LowConfidence = %v, want %v", out.LowConfidence, tc.want)
			}
			if out.Pages[0].OCRConfidence != tc.confidence {
				t.Fatalf("page confidence = %v, want %v", out.Pages[0].OCRConfidence, tc.confidence)
			}
		})
	}
}

func TestExtractPagedConfidenceIgnoresTextLayerPages(t *testing.T) {
	source := &pageSourceFake{pages: []domain.RawPage{
		{Number: 1, TextLayer: "typed discharge summary"},
		{Number: 2, Image: []byte{1}},
	}}
	e := NewTextExtractor(source, &recognizerFake{imageText: "scanned lab sheet", imageConfidence: 70}, ExtractorOptions{MinOCRConfidence: 75})

	out := e.Extract(context.Background(), domain.Document{Format: domain.FormatPagedDocument})
	if !out.Success {
		t.Fatalf("expected success, got %q", out.Error)
	}
	if !out.LowConfidence {
		t.Fatalf("expected low confidence from the scanned page")
	}
	if out.Pages[0].OCRConfidence != 0 || out.Pages[1].OCRConfidence != 70 {
		t.Fatalf("unexpected page confidences %+v", out.Pages)
	}
}

func TestExtractUnsupportedFormat(t *testing.T) {
	e := NewTextExtractor(nil, nil, ExtractorOptions{})
	out := e.Extract(context.Background(), domain.Document{Format: "spreadsheet"})
	if out.Success || out.Error == "" {
		t.Fatalf("expected failure with message, got %+v", out)
	}
}

func TestValidateText(t *testing.T) {
	cases := []struct {
		name string
		text string
		want bool
	}{
		{name: "empty", text: "", want: false},
		{name: "short", text: "  abc  ", want: false},
		{name: "plain", text: strings.Repeat("A", 50), want: true},
		{name: "corrupted", text: strings.Repeat("�", 10) + strings.Repeat("a", 40), want: false},
		{name: "few markers", text: "�" + strings.Repeat("a", 40), want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidateText(tc.text); got != tc.want {
				t.Fatalf("ValidateText(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}
