package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/docpipe/qadoc/constants"
	"github.com/docpipe/qadoc/internal/entity"
)

func writePDF(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestKey(t *testing.T) {
	c := newTestCache(t)
	dir := t.TempDir()
	path := writePDF(t, dir, "bulletin_001.pdf", "12345")

	if got, want := c.Key(path), "bulletin_001_5"; got != want {
		t.Fatalf("Key() = %q, want %q", got, want)
	}
	if got, want := c.Key(filepath.Join(dir, "missing.pdf")), "missing_unknown"; got != want {
		t.Fatalf("Key() = %q, want %q", got, want)
	}
}

func TestPutGetRoundtrip(t *testing.T) {
	c := newTestCache(t)
	path := writePDF(t, t.TempDir(), "doc.pdf", "body")

	in := &entity.ProcessingResult{
		Filename: "doc.pdf",
		Models:   "ABC-1234",
		Author:   "Jane Smith",
		Status:   constants.StatusPass,
		OCRUsed:  true,
	}
	if err := c.Put(path, in); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, ok := c.Get(path)
	if !ok {
		t.Fatal("Get() reported a miss after Put()")
	}
	if got.Models != in.Models || got.Author != in.Author || got.Status != in.Status || !got.OCRUsed {
		t.Fatalf("Get() = %+v, want %+v", got, in)
	}
}

func TestGetMissWithoutRecord(t *testing.T) {
	c := newTestCache(t)
	path := writePDF(t, t.TempDir(), "doc.pdf", "body")
	if _, ok := c.Get(path); ok {
		t.Fatal("Get() reported a hit with no record on disk")
	}
}

func TestPutOverwrites(t *testing.T) {
	c := newTestCache(t)
	path := writePDF(t, t.TempDir(), "doc.pdf", "body")

	first := &entity.ProcessingResult{Filename: "doc.pdf", Status: constants.StatusFail}
	second := &entity.ProcessingResult{Filename: "doc.pdf", Models: "ABC-1234", Status: constants.StatusPass}
	if err := c.Put(path, first); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := c.Put(path, second); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, ok := c.Get(path)
	if !ok || got.Status != constants.StatusPass || got.Models != "ABC-1234" {
		t.Fatalf("Get() = %+v, want overwritten record", got)
	}
}

func corruptRecord(t *testing.T, c *Cache, path, raw string) {
	t.Helper()
	if err := os.WriteFile(c.recordPath(path), []byte(raw), 0o644); err != nil {
		t.Fatalf("write record: %v", err)
	}
}

func TestGetTreatsBadRecordsAsMiss(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"truncated json", `{"filename": "doc.pdf", "status": "Pa`},
		{"missing status", `{"filename": "doc.pdf", "models": "ABC-1234"}`},
		{"unknown status", `{"filename": "doc.pdf", "status": "Maybe"}`},
		{"wrong type", `{"filename": "doc.pdf", "status": "Pass", "ocr_used": "yes"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCache(t)
			path := writePDF(t, t.TempDir(), "doc.pdf", "body")
			corruptRecord(t, c, path, tt.raw)
			if _, ok := c.Get(path); ok {
				t.Fatalf("Get() accepted record %q", tt.raw)
			}
		})
	}
}

func TestKeyDistinguishesSizes(t *testing.T) {
	c := newTestCache(t)
	dirA, dirB := t.TempDir(), t.TempDir()
	pathA := writePDF(t, dirA, "doc.pdf", "short")
	pathB := writePDF(t, dirB, "doc.pdf", "rather longer body")

	if c.Key(pathA) == c.Key(pathB) {
		t.Fatal("same key for same stem with different sizes")
	}
	if !strings.HasPrefix(c.Key(pathA), "doc_") {
		t.Fatalf("Key() = %q, want stem prefix", c.Key(pathA))
	}
}
