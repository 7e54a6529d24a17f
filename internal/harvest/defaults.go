package harvest

// Built-in rule sets. Operators extend these through the custom pattern file;
// custom entries take priority and are deduplicated against this set.

var defaultModelPatterns = []string{
	`\bTASKalfa\s?-?\d{3,4}[a-z]{0,3}\b`,
	`\bECOSYS\s?[A-Z]{1,2}\d{4}[a-z]{0,3}\b`,
	`\bFS-\d{3,4}[A-Z]{0,3}\b`,
	`\bKM-\d{4}\b`,
	`\b[A-Z]{2,3}-\d{3,4}[A-Z]{0,2}\b`,
}

var defaultQANumberPatterns = []string{
	`\bQA[-\s]?\d{5,8}\b`,
	`\bSB[-\s]?\d{4,8}\b`,
}

// Strings that make a model-shaped match boilerplate rather than a model.
var defaultExclusions = []string{
	"ISO-",
	"IEC-",
	"RFC-",
	"REV-",
}

// Placeholder names that must not propagate into the report.
var defaultUnwantedAuthors = []string{
	"Admin",
	"Administrator",
	"Service Account",
	"Unknown",
}

// Cosmetic canonicalization of separator variants.
var defaultStandardization = []Rule{
	{Find: "–", Replace: "-"},
	{Find: "—", Replace: "-"},
	{Find: " -", Replace: "-"},
	{Find: "- ", Replace: "-"},
}

// DefaultConfig returns a copy of the built-in rule sets.
func DefaultConfig() Config {
	return Config{
		ModelPatterns:    append([]string(nil), defaultModelPatterns...),
		QANumberPatterns: append([]string(nil), defaultQANumberPatterns...),
		Exclusions:       append([]string(nil), defaultExclusions...),
		UnwantedAuthors:  append([]string(nil), defaultUnwantedAuthors...),
		Standardization:  append([]Rule(nil), defaultStandardization...),
	}
}
