package extract

import (
	"context"
	"time"
)

// Extraction methods.
const (
	MethodPDFText = "pdf-text"
	MethodPDFOCR  = "pdf-ocr"
	MethodNone    = "none"
)

// TextExtractor turns a PDF into text. Implementations must never fail the
// caller for per-document problems: unreadable content comes back as empty
// text, which callers treat as extraction failure.
type TextExtractor interface {
	// OCRNeeded pre-checks whether a document is likely image-only (or
	// invalid/encrypted) and will require the OCR fallback.
	OCRNeeded(ctx context.Context, path string) bool
	Extract(ctx context.Context, path string) (Result, error)
}

// Result is the outcome of content extraction for one file.
type Result struct {
	Text     string
	Pages    int
	Method   string // MethodPDFText | MethodPDFOCR | MethodNone
	OCRUsed  bool   // true only when the OCR fallback path actually ran
	Language string
	Duration time.Duration
	Warnings []string
}
