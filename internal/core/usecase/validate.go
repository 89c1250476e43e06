package usecase

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/medinsight/report-analyzer/internal/core/domain"
)

// UploadPolicy rejects unsupported and oversized uploads before any stage runs.
type UploadPolicy struct {
	MaxFileSize      int64
	SupportedFormats []string
}

// Validate checks the extension against the supported list and the declared
// size against the limit. A negative size skips the size check.
func (p UploadPolicy) Validate(filename string, size int64) (domain.Format, error) {
	name := strings.TrimSpace(filename)
	if name == "" {
		return "", domain.NewUserError(domain.ErrInvalidInput, "No file provided")
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !p.supports(ext) {
		return "", domain.NewUserError(domain.ErrInvalidInput,
			fmt.Sprintf("Unsupported file format %q. Supported formats: %s", ext, strings.Join(p.SupportedFormats, ", ")))
	}
	format, ok := domain.FormatFromFilename(name)
	if !ok {
		return "", domain.NewUserError(domain.ErrInvalidInput, fmt.Sprintf("Unsupported file format %q", ext))
	}
	if size >= 0 && p.MaxFileSize > 0 && size > p.MaxFileSize {
		return "", p.TooLarge()
	}
	return format, nil
}

// ReadLimited reads the whole body, failing once it grows past MaxFileSize.
func (p UploadPolicy) ReadLimited(r io.Reader) ([]byte, error) {
	if p.MaxFileSize <= 0 {
		return io.ReadAll(r)
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, p.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if n > p.MaxFileSize {
		return nil, p.TooLarge()
	}
	return buf.Bytes(), nil
}

func (p UploadPolicy) supports(ext string) bool {
	if ext == "" {
		return false
	}
	for _, f := range p.SupportedFormats {
		if strings.EqualFold(f, ext) {
			return true
		}
	}
	return false
}

// TooLarge is the rejection returned for uploads over MaxFileSize.
func (p UploadPolicy) TooLarge() error {
	return domain.NewUserError(domain.ErrPayloadTooLarge,
		fmt.Sprintf("File too large. Maximum size: %d MB", p.MaxFileSize/(1024*1024)))
}
