package domain

import (
	"path/filepath"
	"strings"
)

type Format string

const (
	FormatImage         Format = "image"
	FormatPagedDocument Format = "paged-document"
	FormatPlainText     Format = "plain-text"
)

// FormatFromFilename maps a file extension to the declared document format.
func FormatFromFilename(filename string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FormatPagedDocument, true
	case ".png", ".jpg", ".jpeg", ".tif", ".tiff":
		return FormatImage, true
	case ".txt":
		return FormatPlainText, true
	default:
		return "", false
	}
}

// Document is the raw upload. It is not modified after ingestion.
type Document struct {
	Filename string
	Format   Format
	Content  []byte
}

// RawPage is one unit of a paged document before recognition. TextLayer holds
// embedded text when the source format carries one; Image holds encoded page
// pixels when available.
type RawPage struct {
	Number    int
	TextLayer string
	Image     []byte
}

// Recognition is the text read from one page. Confidence is the mean OCR word
// confidence on a 0-100 scale and stays zero for text-layer pages.
type Recognition struct {
	Text       string
	OCR        bool
	Confidence float64
}

type Page struct {
	PageNumber    int     `json:"page_number"`
	Content       string  `json:"content"`
	OCRConfidence float64 `json:"ocr_confidence,omitempty"`
}

// ExtractedText is the extraction stage output. LowConfidence is set when OCR
// read the pages with a mean word confidence below the configured floor.
type ExtractedText struct {
	Pages         []Page `json:"pages"`
	FullText      string `json:"full_text"`
	PageCount     int    `json:"page_count"`
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
	LowConfidence bool   `json:"low_confidence,omitempty"`
}

func FailedExtraction(message string) ExtractedText {
	return ExtractedText{
		Pages:   []Page{},
		Success: false,
		Error:   message,
	}
}
