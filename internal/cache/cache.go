package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/docpipe/qadoc/internal/entity"
)

// recordSchema describes the persisted cache record. Structural corruption
// (parse failure, missing status, unknown status value) downgrades to a
// cache miss, never to a fatal error.
const recordSchema = `{
	"type": "object",
	"required": ["filename", "status"],
	"properties": {
		"filename": {"type": "string", "minLength": 1},
		"models":   {"type": "string"},
		"author":   {"type": "string"},
		"status":   {"type": "string", "enum": ["Pass", "Fail", "Needs Review"]},
		"ocr_used": {"type": "boolean"}
	}
}`

// Cache is a keyed persistent store of per-file processing results, one JSON
// record per file identity under Dir.
type Cache struct {
	dir    string
	schema *jsonschema.Schema
	logger *slog.Logger
}

func New(dir string, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	schema, err := jsonschema.CompileString("cache-record.json", recordSchema)
	if err != nil {
		return nil, fmt.Errorf("compile cache schema: %w", err)
	}
	return &Cache{dir: dir, schema: schema, logger: logger}, nil
}

// Key derives the cache identity for a file from its name stem and byte
// size. Two files with the same stem and size collide on purpose; this is
// not a content hash. When the size cannot be read the key degrades to a
// sentinel that is treated as a fresh computation.
func (c *Cache) Key(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	info, err := os.Stat(path)
	if err != nil {
		return stem + "_unknown"
	}
	return fmt.Sprintf("%s_%d", stem, info.Size())
}

func (c *Cache) recordPath(path string) string {
	return filepath.Join(c.dir, c.Key(path)+".json")
}

// Get returns the cached result for the file's identity, or a miss. Corrupt
// records are logged and reported as a miss so the pipeline recomputes.
func (c *Cache) Get(path string) (*entity.ProcessingResult, bool) {
	raw, err := os.ReadFile(c.recordPath(path))
	if err != nil {
		return nil, false
	}

	var probe any
	if err := json.Unmarshal(raw, &probe); err != nil {
		c.logger.Warn("cache.record.corrupt", "path", filepath.Base(path), "error", err)
		return nil, false
	}
	if err := c.schema.Validate(probe); err != nil {
		c.logger.Warn("cache.record.invalid", "path", filepath.Base(path), "error", err)
		return nil, false
	}

	var result entity.ProcessingResult
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&result); err != nil {
		c.logger.Warn("cache.record.corrupt", "path", filepath.Base(path), "error", err)
		return nil, false
	}
	return &result, true
}

// Put persists the result under the file's identity, overwriting any prior
// record. There is no eviction; staleness of a changed file with an
// identical name and size is the operator's responsibility.
func (c *Cache) Put(path string, result *entity.ProcessingResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode cache record: %w", err)
	}
	if err := os.WriteFile(c.recordPath(path), raw, 0o644); err != nil {
		return fmt.Errorf("write cache record: %w", err)
	}
	return nil
}
