package common

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Dirs    DirConfig
	Extract ExtractConfig
	Report  ReportConfig
	Job     JobConfig
}

// DirConfig holds the on-disk working directories shared across runs.
type DirConfig struct {
	CacheDir  string // per-file JSON result records
	ReviewDir string // sidecar .txt artifacts for Needs Review files
	OutputDir string // cloned report spreadsheets
	HistoryDB string // SQLite run ledger
}

// ExtractConfig holds extraction and OCR tuning.
type ExtractConfig struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	PSM           int    // 6 = uniform block of text
	OEM           int    // 3 = default engine mode

	// OCRTriggerChars: total extractable chars below which the pre-check
	// flags a document as needing OCR.
	OCRTriggerChars int
	// MinAcceptChars: stripped native-extraction length above which the
	// result is accepted without invoking OCR.
	MinAcceptChars int
}

// ReportConfig names the template columns the merger touches.
type ReportConfig struct {
	DescriptionColumn string
	MetaColumn        string
	AuthorColumn      string
	StatusColumn      string
	MaxColumnWidth    float64
}

// JobConfig holds orchestration tuning.
type JobConfig struct {
	PausePollInterval time.Duration
	PatternConfigPath string // optional custom-pattern YAML
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Dirs: DirConfig{
			CacheDir:  getEnv("QADOC_CACHE_DIR", filepath.Join(".qadoc", "cache")),
			ReviewDir: getEnv("QADOC_REVIEW_DIR", filepath.Join(".qadoc", "review")),
			OutputDir: getEnv("QADOC_OUTPUT_DIR", filepath.Join(".qadoc", "output")),
			HistoryDB: getEnv("QADOC_HISTORY_DB", filepath.Join(".qadoc", "history.db")),
		},
		Extract: ExtractConfig{
			Pdftotext:       getEnv("QADOC_PDFTOTEXT", "pdftotext"),
			Pdftoppm:        getEnv("QADOC_PDFTOPPM", "pdftoppm"),
			Tesseract:       getEnv("QADOC_TESSERACT", "tesseract"),
			TesseractLang:   getEnv("QADOC_TESSERACT_LANG", "eng"),
			DPI:             getEnvAsInt("QADOC_OCR_DPI", 300),
			PSM:             getEnvAsInt("QADOC_OCR_PSM", 6),
			OEM:             getEnvAsInt("QADOC_OCR_OEM", 3),
			OCRTriggerChars: getEnvAsInt("QADOC_OCR_TRIGGER_CHARS", 150),
			MinAcceptChars:  getEnvAsInt("QADOC_MIN_ACCEPT_CHARS", 50),
		},
		Report: ReportConfig{
			DescriptionColumn: getEnv("QADOC_COL_DESCRIPTION", "Description"),
			MetaColumn:        getEnv("QADOC_COL_META", "Models"),
			AuthorColumn:      getEnv("QADOC_COL_AUTHOR", "Author"),
			StatusColumn:      getEnv("QADOC_COL_STATUS", "Processing Status"),
			MaxColumnWidth:    60,
		},
		Job: JobConfig{
			PausePollInterval: getEnvAsDuration("QADOC_PAUSE_POLL", 500*time.Millisecond),
			PatternConfigPath: getEnv("QADOC_PATTERN_CONFIG", ""),
		},
	}
}

// EnsureDirs creates the working directories if they do not exist.
func (c *Config) EnsureDirs() error {
	for _, d := range []string{c.Dirs.CacheDir, c.Dirs.ReviewDir, c.Dirs.OutputDir, filepath.Dir(c.Dirs.HistoryDB)} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return WrapError(err, "create working directory")
		}
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
