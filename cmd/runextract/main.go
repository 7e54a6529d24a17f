package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/docpipe/qadoc/internal/common"
	"github.com/docpipe/qadoc/internal/extract"
	"github.com/docpipe/qadoc/internal/harvest"
)

// runextract extracts a single PDF to stdout with harvest diagnostics.
// Useful when tuning patterns against a stubborn document.
func main() {
	patterns := flag.String("patterns", "", "custom pattern YAML")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "runextract [-patterns file.yaml] <file.pdf>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg := common.LoadConfig()
	if *patterns != "" {
		cfg.Job.PatternConfigPath = *patterns
	}

	extractor := extract.NewExtractor(extract.Config{
		Pdftotext:       cfg.Extract.Pdftotext,
		Pdftoppm:        cfg.Extract.Pdftoppm,
		Tesseract:       cfg.Extract.Tesseract,
		TesseractLang:   cfg.Extract.TesseractLang,
		DPI:             cfg.Extract.DPI,
		PSM:             cfg.Extract.PSM,
		OEM:             cfg.Extract.OEM,
		OCRTriggerChars: cfg.Extract.OCRTriggerChars,
		MinAcceptChars:  cfg.Extract.MinAcceptChars,
	}, logger)

	provider := harvest.NewProvider(cfg.Job.PatternConfigPath, logger)
	harvester, err := harvest.New(provider.Current())
	if err != nil {
		logger.Error("pattern configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	start := time.Now()
	res, err := extractor.Extract(ctx, path)
	if err != nil {
		logger.Error("extraction failed", "path", path, "error", err)
		os.Exit(1)
	}

	hres := harvester.Harvest(res.Text, path)
	qa := harvester.HarvestQANumbers(res.Text)

	logger.Info("extraction OK",
		"method", res.Method,
		"pages", res.Pages,
		"bytes", len(res.Text),
		"ocr_used", res.OCRUsed,
		"models", hres.ModelsDisplay(),
		"qa_numbers", strings.Join(qa, ", "),
		"author", hres.Author,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	fmt.Print(res.Text)
}
