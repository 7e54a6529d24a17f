package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Config holds extraction tuning. Zero values fall back to defaults in
// NewExtractor.
type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	PSM           int    // 6 = uniform block of text
	OEM           int    // 3 = default engine mode

	OCRTriggerChars int // pre-check: below this total text length, OCR is flagged
	MinAcceptChars  int // native path: above this stripped length, accept without OCR
}

// Extractor implements TextExtractor on top of pdftotext, pdftoppm and
// tesseract, with a pdfcpu-based pre-check.
type Extractor struct {
	cfg          Config
	runner       Runner
	validate     func(path string) error
	logger       *slog.Logger
	ocrAvailable bool

	// Native text produced by the pre-check, consumed by the next Extract of
	// the same path so the document is not run through pdftotext twice.
	mu         sync.Mutex
	prechecked map[string]string
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.PSM <= 0 {
		cfg.PSM = 6
	}
	if cfg.OEM <= 0 {
		cfg.OEM = 3
	}
	if cfg.OCRTriggerChars <= 0 {
		cfg.OCRTriggerChars = 150
	}
	if cfg.MinAcceptChars <= 0 {
		cfg.MinAcceptChars = 50
	}
	e := &Extractor{
		cfg:        cfg,
		runner:     execRunner{logger: logger},
		validate:   func(path string) error { return api.ValidateFile(path, nil) },
		logger:     logger,
		prechecked: make(map[string]string),
	}
	e.ocrAvailable = e.probeOCR()
	return e
}

// probeOCR checks once at construction whether the OCR toolchain is present.
// A missing toolchain degrades the fallback path to empty output instead of
// failing runs.
func (e *Extractor) probeOCR() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, bin := range []string{e.cfg.Tesseract, e.cfg.Pdftoppm} {
		if _, _, err := e.runner.Run(ctx, bin, "--version"); err != nil {
			e.logger.Warn("extract.ocr.unavailable", "binary", bin, "error", err)
			return false
		}
	}
	return true
}

// OCRAvailable reports whether the OCR fallback can run.
func (e *Extractor) OCRAvailable() bool { return e.ocrAvailable }

// OCRNeeded pre-checks a PDF to see if it is image-based and likely requires
// OCR. Invalid and encrypted documents are flagged too: they often still
// render as images even when text extraction cannot open them.
func (e *Extractor) OCRNeeded(ctx context.Context, path string) bool {
	if err := e.validate(path); err != nil {
		e.logger.Warn("extract.precheck.invalid", "path", filepath.Base(path), "error", err)
		return true
	}
	out, _, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		e.logger.Warn("extract.precheck.failed", "path", filepath.Base(path), "error", err)
		return true
	}
	e.mu.Lock()
	e.prechecked[path] = string(out)
	e.mu.Unlock()
	return len(out) < e.cfg.OCRTriggerChars
}

// Extract returns the text of a PDF, falling back to OCR when the native
// extraction yields too little. Per-document failures are logged and come
// back as empty text, never as an error.
func (e *Extractor) Extract(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	name := filepath.Base(path)

	text, pages, warns, err := e.nativeText(ctx, path)
	if err == nil && len(strings.TrimSpace(text)) > e.cfg.MinAcceptChars {
		e.logger.Debug("extract.native.ok", "path", name, "chars", len(text), "pages", pages)
		return Result{
			Text:     text,
			Pages:    pages,
			Method:   MethodPDFText,
			Language: e.cfg.TesseractLang,
			Duration: time.Since(start),
			Warnings: warns,
		}, nil
	}

	if !e.ocrAvailable {
		e.logger.Warn("extract.no_text_no_ocr", "path", name)
		return Result{
			Method:   MethodNone,
			Duration: time.Since(start),
			Warnings: append(warns, "no extractable text and OCR is not available"),
		}, nil
	}

	e.logger.Info("extract.ocr.start", "path", name)
	ocrText, ocrPages, ocrWarns, err := e.pdfToOCR(ctx, path)
	if err != nil {
		e.logger.Error("extract.ocr.failed", "path", name, "error", err)
		return Result{
			Method:   MethodNone,
			Duration: time.Since(start),
			Warnings: append(warns, ocrWarns...),
		}, nil
	}
	return Result{
		Text:     ocrText,
		Pages:    ocrPages,
		Method:   MethodPDFOCR,
		OCRUsed:  true,
		Language: e.cfg.TesseractLang,
		Duration: time.Since(start),
		Warnings: append(warns, ocrWarns...),
	}, nil
}

// nativeText serves pdftotext output, reusing the pre-check's result when
// one is pending for the path. Entries are consumed on use so a later run of
// the same file sees fresh content.
func (e *Extractor) nativeText(ctx context.Context, path string) (text string, pages int, warnings []string, err error) {
	e.mu.Lock()
	text, ok := e.prechecked[path]
	if ok {
		delete(e.prechecked, path)
	}
	e.mu.Unlock()
	if ok {
		return text, 1 + strings.Count(text, "\f"), nil, nil
	}
	return e.pdfToText(ctx, path)
}

func (e *Extractor) pdfToText(ctx context.Context, path string) (text string, pages int, warnings []string, err error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, []string{string(errb)}, err
	}
	text = string(out)
	// A form-feed \f is used as page separator by default
	pages = 1 + strings.Count(text, "\f")
	return text, pages, nil, nil
}

func (e *Extractor) pdfToOCR(ctx context.Context, path string) (text string, pages int, warnings []string, err error) {
	tmpDir, err := os.MkdirTemp("", "qadoc-ocr-*")
	if err != nil {
		return "", 0, nil, err
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			e.logger.Warn("extract.ocr.tmp_cleanup_failed", "dir", tmpDir, "error", rmErr)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return "", 0, []string{string(errb)}, err
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return "", 0, []string{"pdftoppm produced no images"}, fmt.Errorf("no pages rendered")
	}

	var b strings.Builder
	var warns []string
	for _, img := range matches {
		processed, perr := e.preprocessPage(img)
		if perr != nil {
			warns = append(warns, perr.Error())
			processed = img
		}
		txt, w, terr := e.tesseractOCR(ctx, processed)
		if terr != nil {
			warns = append(warns, terr.Error())
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(txt)
		warns = append(warns, w...)
	}
	return b.String(), len(matches), warns, nil
}

// preprocessPage binarizes one rasterized page and writes the result next to
// the original. Returns the path tesseract should read.
func (e *Extractor) preprocessPage(imgPath string) (string, error) {
	raw, err := os.ReadFile(imgPath)
	if err != nil {
		return "", err
	}
	processed, err := preprocessForOCR(raw)
	if err != nil {
		return "", fmt.Errorf("preprocess %s: %w", filepath.Base(imgPath), err)
	}
	out := strings.TrimSuffix(imgPath, ".png") + "-bin.png"
	if err := os.WriteFile(out, processed, 0o644); err != nil {
		return "", err
	}
	return out, nil
}

func (e *Extractor) tesseractOCR(ctx context.Context, imgPath string) (string, []string, error) {
	args := []string{
		imgPath, "stdout",
		"-l", e.cfg.TesseractLang,
		"--psm", fmt.Sprintf("%d", e.cfg.PSM),
		"--oem", fmt.Sprintf("%d", e.cfg.OEM),
	}
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", []string{string(errb)}, fmt.Errorf("tesseract: %w", err)
	}
	return string(out), nil, nil
}
