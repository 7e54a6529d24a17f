package harvest

import (
	"reflect"
	"testing"
)

func testConfig() Config {
	return Config{
		ModelPatterns: []string{
			`\b[A-Z]{3}-\d{4}\b`,
			`\bTASKalfa\s?\d{4}\b`,
		},
		Exclusions:      []string{"ISO-"},
		UnwantedAuthors: []string{"Admin"},
		Standardization: []Rule{
			{Find: "–", Replace: "-"},
			{Find: " ", Replace: ""},
		},
	}
}

func mustHarvester(t *testing.T, cfg Config) *Harvester {
	t.Helper()
	h, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return h
}

func TestHarvestModelsSortedAndDeduped(t *testing.T) {
	h := mustHarvester(t, testConfig())
	text := "See ZZZ-9999 and ABC-1234. Also ABC-1234 again, plus TASKalfa 5052."
	got := h.HarvestModels(text, "doc.pdf")
	want := []string{"ABC-1234", "TASKalfa5052", "ZZZ-9999"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("HarvestModels() = %v, want %v", got, want)
	}
}

func TestHarvestModelsFromFilename(t *testing.T) {
	h := mustHarvester(t, testConfig())
	// Underscores in filenames replace the spaces models are written with.
	got := h.HarvestModels("no models in the body", "bulletin_TASKalfa_4054.pdf")
	want := []string{"TASKalfa4054"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("HarvestModels() = %v, want %v", got, want)
	}
}

func TestHarvestModelsCaseInsensitive(t *testing.T) {
	h := mustHarvester(t, testConfig())
	got := h.HarvestModels("taskalfa 5052 mentioned", "doc.pdf")
	if len(got) != 1 {
		t.Fatalf("HarvestModels() = %v, want one match", got)
	}
}

func TestHarvestModelsExclusion(t *testing.T) {
	h := mustHarvester(t, testConfig())
	for _, text := range []string{
		"certified to ISO-9001 standards",
		"certified to iso-9001 standards", // exclusion is case-insensitive
	} {
		got := h.HarvestModels(text, "doc.pdf")
		if len(got) != 0 {
			t.Fatalf("HarvestModels(%q) = %v, want no matches", text, got)
		}
	}
}

func TestHarvestModelsStandardizationOrder(t *testing.T) {
	cfg := testConfig()
	cfg.ModelPatterns = []string{`\bABC\s?–?\s?\d{4}\b`}
	h := mustHarvester(t, cfg)
	// The dash rule runs before the space rule; both variants canonicalize.
	got := h.HarvestModels("ABC – 1234 and ABC 1234", "doc.pdf")
	want := []string{"ABC-1234", "ABC1234"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("HarvestModels() = %v, want %v", got, want)
	}
}

func TestHarvestAuthor(t *testing.T) {
	h := mustHarvester(t, testConfig())
	tests := []struct {
		name string
		text string
		want string
	}{
		{"found", "Subject: recall\nAuthor: Jane Smith\nBody follows", "Jane Smith"},
		{"case insensitive label", "AUTHOR: Jane Smith", "Jane Smith"},
		{"unwanted suppressed", "Author: Admin", ""},
		{"missing", "no author line here", ""},
		{"mid line not matched", "the Author: Jane Smith note", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.HarvestAuthor(tt.text); got != tt.want {
				t.Fatalf("HarvestAuthor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHarvestQANumbers(t *testing.T) {
	cfg := testConfig()
	cfg.QANumberPatterns = []string{`\bQA[-\s]?\d{5,8}\b`}
	h := mustHarvester(t, cfg)
	got := h.HarvestQANumbers("tracked as QA-12345 and QA 67890, QA-12345 repeated")
	want := []string{"QA 67890", "QA-12345"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("HarvestQANumbers() = %v, want %v", got, want)
	}
}

func TestModelsDisplaySentinel(t *testing.T) {
	if got := (Result{}).ModelsDisplay(); got != "Not Found" {
		t.Fatalf("ModelsDisplay() = %q, want sentinel", got)
	}
	r := Result{Models: []string{"ABC-1234", "ZZZ-9999"}}
	if got := r.ModelsDisplay(); got != "ABC-1234, ZZZ-9999" {
		t.Fatalf("ModelsDisplay() = %q", got)
	}
}

func TestNewRejectsBadPattern(t *testing.T) {
	cfg := testConfig()
	cfg.ModelPatterns = append(cfg.ModelPatterns, `(unclosed`)
	if _, err := New(cfg); err == nil {
		t.Fatal("New() accepted an invalid pattern")
	}
}
