package harvest

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func writePatternFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write pattern file: %v", err)
	}
	return path
}

func TestProviderDefaultsWithoutFile(t *testing.T) {
	p := NewProvider("", slog.Default())
	cfg := p.Current()
	if len(cfg.ModelPatterns) == 0 || len(cfg.Exclusions) == 0 {
		t.Fatalf("Current() = %+v, want built-in rule sets", cfg)
	}
}

func TestProviderCustomPatternsTakePriority(t *testing.T) {
	path := writePatternFile(t, `
model_patterns:
  - '\bCUSTOM-\d{3}\b'
exclusions:
  - 'SKIP-'
`)
	p := NewProvider(path, slog.Default())
	cfg := p.Current()

	if cfg.ModelPatterns[0] != `\bCUSTOM-\d{3}\b` {
		t.Fatalf("ModelPatterns[0] = %q, want the custom pattern first", cfg.ModelPatterns[0])
	}
	if len(cfg.ModelPatterns) <= len(defaultModelPatterns) {
		t.Fatal("built-in patterns dropped when combining")
	}
	if cfg.Exclusions[0] != "SKIP-" {
		t.Fatalf("Exclusions[0] = %q", cfg.Exclusions[0])
	}
}

func TestProviderCombineDeduplicates(t *testing.T) {
	path := writePatternFile(t, "model_patterns:\n  - '"+defaultModelPatterns[0]+"'\n")
	p := NewProvider(path, slog.Default())
	cfg := p.Current()
	if len(cfg.ModelPatterns) != len(defaultModelPatterns) {
		t.Fatalf("ModelPatterns = %d entries, want %d (custom duplicate of a built-in)",
			len(cfg.ModelPatterns), len(defaultModelPatterns))
	}
}

func TestProviderBrokenFileKeepsDefaults(t *testing.T) {
	path := writePatternFile(t, "model_patterns: [unterminated")
	p := NewProvider(path, slog.Default())
	cfg := p.Current()
	if len(cfg.ModelPatterns) != len(defaultModelPatterns) {
		t.Fatalf("ModelPatterns = %d entries, want built-ins only", len(cfg.ModelPatterns))
	}
}

func TestProviderReloadPicksUpEdits(t *testing.T) {
	path := writePatternFile(t, "model_patterns:\n  - '\\bONE-\\d{3}\\b'\n")
	p := NewProvider(path, slog.Default())
	if got := p.Current().ModelPatterns[0]; got != `\bONE-\d{3}\b` {
		t.Fatalf("ModelPatterns[0] = %q", got)
	}

	if err := os.WriteFile(path, []byte("model_patterns:\n  - '\\bTWO-\\d{3}\\b'\n"), 0o644); err != nil {
		t.Fatalf("rewrite pattern file: %v", err)
	}
	if err := p.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if got := p.Current().ModelPatterns[0]; got != `\bTWO-\d{3}\b` {
		t.Fatalf("ModelPatterns[0] = %q after reload", got)
	}
}

func TestCurrentReturnsSnapshot(t *testing.T) {
	p := NewProvider("", slog.Default())
	a := p.Current()
	a.ModelPatterns[0] = "mutated"
	b := p.Current()
	if b.ModelPatterns[0] == "mutated" {
		t.Fatal("Current() leaked shared state")
	}
}
