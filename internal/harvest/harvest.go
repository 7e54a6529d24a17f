package harvest

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Rule is a literal find/replace standardization step. Rules are applied in
// order, so later rules see the output of earlier ones.
type Rule struct {
	Find    string `yaml:"find"`
	Replace string `yaml:"replace"`
}

// Config is the full rule surface consumed by a Harvester. It is an explicit
// value passed in at construction time; callers snapshot it from a Provider
// at job start rather than reading shared mutable state mid-run.
type Config struct {
	ModelPatterns    []string `yaml:"model_patterns"`
	QANumberPatterns []string `yaml:"qa_number_patterns"`
	Exclusions       []string `yaml:"exclusions"`
	UnwantedAuthors  []string `yaml:"unwanted_authors"`
	Standardization  []Rule   `yaml:"standardization"`
}

// Result holds the structured fields harvested from one document.
type Result struct {
	Models []string // deduplicated, sorted
	Author string   // empty when not found or unwanted
}

// ModelsDisplay joins the model set for display, or returns the "Not Found"
// sentinel so downstream consumers can distinguish "no field present" from
// an empty container.
func (r Result) ModelsDisplay() string {
	if len(r.Models) == 0 {
		return "Not Found"
	}
	return strings.Join(r.Models, ", ")
}

var authorRe = regexp.MustCompile(`(?im)^author:\s*(.*)`)

// Harvester applies compiled pattern rule sets to extracted text.
type Harvester struct {
	cfg        Config
	modelRes   []*regexp.Regexp
	qaRes      []*regexp.Regexp
	exclusions []string // lowercased
}

// New compiles the configured patterns. All patterns match
// case-insensitively regardless of how they are written.
func New(cfg Config) (*Harvester, error) {
	modelRes, err := compileAll(cfg.ModelPatterns)
	if err != nil {
		return nil, fmt.Errorf("model patterns: %w", err)
	}
	qaRes, err := compileAll(cfg.QANumberPatterns)
	if err != nil {
		return nil, fmt.Errorf("qa number patterns: %w", err)
	}
	exclusions := make([]string, 0, len(cfg.Exclusions))
	for _, e := range cfg.Exclusions {
		exclusions = append(exclusions, strings.ToLower(e))
	}
	return &Harvester{cfg: cfg, modelRes: modelRes, qaRes: qaRes, exclusions: exclusions}, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if !strings.HasPrefix(p, "(?i") {
			p = "(?i)" + p
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", p, err)
		}
		res = append(res, re)
	}
	return res, nil
}

// Harvest aggregates all harvested fields for one document.
func (h *Harvester) Harvest(text, filename string) Result {
	return Result{
		Models: h.HarvestModels(text, filename),
		Author: h.HarvestAuthor(text),
	}
}

// HarvestModels finds all unique models from the text and the filename,
// respecting exclusions. Model numbers sometimes appear only in the
// filename, where separators tend to be underscores.
func (h *Harvester) HarvestModels(text, filename string) []string {
	models := make(map[string]struct{})
	sources := []string{text, strings.ReplaceAll(filename, "_", " ")}
	for _, content := range sources {
		for _, re := range h.modelRes {
			for _, match := range re.FindAllString(content, -1) {
				if h.isExcluded(match) {
					continue
				}
				models[h.cleanModelString(match)] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(models))
	for m := range models {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// HarvestQANumbers finds all unique QA/bulletin numbers in the text.
func (h *Harvester) HarvestQANumbers(text string) []string {
	nums := make(map[string]struct{})
	for _, re := range h.qaRes {
		for _, match := range re.FindAllString(text, -1) {
			if h.isExcluded(match) {
				continue
			}
			nums[strings.TrimSpace(match)] = struct{}{}
		}
	}
	out := make([]string, 0, len(nums))
	for n := range nums {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// HarvestAuthor finds the author line and returns an empty string if the
// captured name is a known placeholder.
func (h *Harvester) HarvestAuthor(text string) string {
	m := authorRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	author := strings.TrimSpace(m[1])
	for _, unwanted := range h.cfg.UnwantedAuthors {
		if author == unwanted {
			return ""
		}
	}
	return author
}

// isExcluded checks the raw match before standardization, so exclusion
// entries are written against what actually appears in documents.
func (h *Harvester) isExcluded(match string) bool {
	lower := strings.ToLower(match)
	for _, e := range h.exclusions {
		if strings.Contains(lower, e) {
			return true
		}
	}
	return false
}

func (h *Harvester) cleanModelString(model string) string {
	for _, rule := range h.cfg.Standardization {
		model = strings.ReplaceAll(model, rule.Find, rule.Replace)
	}
	return strings.TrimSpace(model)
}
