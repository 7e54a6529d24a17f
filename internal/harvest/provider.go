package harvest

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Provider combines the built-in rule sets with an optional user-editable
// YAML file. Custom patterns take priority over built-ins. Reloading is
// explicit: callers snapshot Current() once per job start, and long-lived
// consumers may run Watch to pick up edits between jobs.
type Provider struct {
	path   string // custom pattern file; empty means built-ins only
	logger *slog.Logger

	mu      sync.RWMutex
	current Config
}

func NewProvider(path string, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Provider{path: path, logger: logger, current: DefaultConfig()}
	if path != "" {
		if err := p.Reload(); err != nil {
			// A broken custom file must not take the tool down; the
			// built-in set still applies.
			logger.Warn("patterns.load.failed", "path", path, "error", err)
		}
	}
	return p
}

// Current returns a snapshot of the combined configuration.
func (p *Provider) Current() Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cfg := p.current
	cfg.ModelPatterns = append([]string(nil), cfg.ModelPatterns...)
	cfg.QANumberPatterns = append([]string(nil), cfg.QANumberPatterns...)
	cfg.Exclusions = append([]string(nil), cfg.Exclusions...)
	cfg.UnwantedAuthors = append([]string(nil), cfg.UnwantedAuthors...)
	cfg.Standardization = append([]Rule(nil), cfg.Standardization...)
	return cfg
}

// Reload re-reads the custom pattern file and recombines it with the
// built-in defaults.
func (p *Provider) Reload() error {
	if p.path == "" {
		return nil
	}
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return err
	}
	var custom Config
	if err := yaml.Unmarshal(raw, &custom); err != nil {
		return err
	}
	combined := Config{
		ModelPatterns:    combinePatterns(custom.ModelPatterns, defaultModelPatterns),
		QANumberPatterns: combinePatterns(custom.QANumberPatterns, defaultQANumberPatterns),
		Exclusions:       combinePatterns(custom.Exclusions, defaultExclusions),
		UnwantedAuthors:  combinePatterns(custom.UnwantedAuthors, defaultUnwantedAuthors),
		Standardization:  combineRules(custom.Standardization, defaultStandardization),
	}
	p.mu.Lock()
	p.current = combined
	p.mu.Unlock()
	p.logger.Info("patterns.reload.ok",
		"path", p.path,
		"model_patterns", len(combined.ModelPatterns),
		"qa_patterns", len(combined.QANumberPatterns),
	)
	return nil
}

// Watch reloads the custom pattern file whenever it changes on disk.
// Blocks until ctx is done.
func (p *Provider) Watch(ctx context.Context) error {
	if p.path == "" {
		<-ctx.Done()
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	if err := w.Add(p.path); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-w.Events:
			if !ok {
				return nil
			}
			if e.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				if err := p.Reload(); err != nil {
					p.logger.Warn("patterns.reload.failed", "path", p.path, "error", err)
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			p.logger.Error("patterns.watch.error", "error", err)
		}
	}
}

// combinePatterns puts custom entries first and drops built-ins they shadow.
func combinePatterns(custom, defaults []string) []string {
	out := append([]string(nil), custom...)
	seen := make(map[string]struct{}, len(custom))
	for _, c := range custom {
		seen[c] = struct{}{}
	}
	for _, d := range defaults {
		if _, ok := seen[d]; !ok {
			out = append(out, d)
		}
	}
	return out
}

func combineRules(custom, defaults []Rule) []Rule {
	out := append([]Rule(nil), custom...)
	seen := make(map[string]struct{}, len(custom))
	for _, c := range custom {
		seen[c.Find] = struct{}{}
	}
	for _, d := range defaults {
		if _, ok := seen[d.Find]; !ok {
			out = append(out, d)
		}
	}
	return out
}
