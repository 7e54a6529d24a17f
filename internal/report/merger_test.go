package report

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/docpipe/qadoc/constants"
	"github.com/docpipe/qadoc/internal/entity"
)

func writeWorkbook(t *testing.T, headers []string, descriptions []string) string {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			t.Fatalf("set header: %v", err)
		}
	}
	for r, desc := range descriptions {
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetCellValue(sheet, cell, desc); err != nil {
			t.Fatalf("set description: %v", err)
		}
	}
	path := filepath.Join(t.TempDir(), "report.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	_ = f.Close()
	return path
}

func openSheet(t *testing.T, path string) (*excelize.File, string) {
	t.Helper()
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f, f.GetSheetName(0)
}

func cellValue(t *testing.T, f *excelize.File, sheet, cell string) string {
	t.Helper()
	v, err := f.GetCellValue(sheet, cell)
	if err != nil {
		t.Fatalf("read %s: %v", cell, err)
	}
	return v
}

func TestMergeAnnotatesMatchingRows(t *testing.T) {
	path := writeWorkbook(t,
		[]string{"Description", "Models", "Author"},
		[]string{"QA bulletin for printer_recall", "unrelated row", "notes on scanner_fix issue"},
	)
	m := NewMerger(HeaderConfig{}, nil)
	results := map[string]*entity.ProcessingResult{
		"printer_recall.pdf": {
			Filename: "printer_recall.pdf",
			Models:   "ABC-1234, XYZ-987",
			Author:   "Jane Smith",
			Status:   constants.StatusPass,
			OCRUsed:  true,
		},
		"scanner_fix.pdf": {
			Filename: "scanner_fix.pdf",
			Models:   "Not Found",
			Status:   constants.StatusNeedsReview,
		},
	}
	if err := m.Merge(path, results); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	f, sheet := openSheet(t, path)
	if got := cellValue(t, f, sheet, "D1"); got != "Processing Status" {
		t.Fatalf("D1 = %q, want provisioned status header", got)
	}
	if got := cellValue(t, f, sheet, "B2"); got != "ABC-1234, XYZ-987" {
		t.Fatalf("B2 = %q", got)
	}
	if got := cellValue(t, f, sheet, "C2"); got != "Jane Smith" {
		t.Fatalf("C2 = %q", got)
	}
	if got := cellValue(t, f, sheet, "D2"); got != "Pass (OCR)" {
		t.Fatalf("D2 = %q, want OCR suffix on the status", got)
	}
	if got := cellValue(t, f, sheet, "D3"); got != "" {
		t.Fatalf("D3 = %q, want untouched unmatched row", got)
	}
	if got := cellValue(t, f, sheet, "D4"); got != "Needs Review" {
		t.Fatalf("D4 = %q", got)
	}
}

func TestMergeKeepsExistingStatusColumn(t *testing.T) {
	path := writeWorkbook(t,
		[]string{"Description", "Processing Status", "Models", "Author"},
		[]string{"row for doc"},
	)
	m := NewMerger(HeaderConfig{}, nil)
	results := map[string]*entity.ProcessingResult{
		"doc.pdf": {Filename: "doc.pdf", Models: "ABC-1234", Status: constants.StatusPass},
	}
	if err := m.Merge(path, results); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	f, sheet := openSheet(t, path)
	if got := cellValue(t, f, sheet, "B2"); got != "Pass" {
		t.Fatalf("B2 = %q, want status in the existing column", got)
	}
	if got := cellValue(t, f, sheet, "E1"); got != "" {
		t.Fatalf("E1 = %q, want no duplicate status column", got)
	}
}

func TestMergeFirstMatchWinsOnOverlappingStems(t *testing.T) {
	// "doc" is a prefix of "doc_extended"; the row mentioning the longer stem
	// still matches the alphabetically first overlapping result.
	path := writeWorkbook(t,
		[]string{"Description", "Models", "Author"},
		[]string{"covers doc_extended revision"},
	)
	m := NewMerger(HeaderConfig{}, nil)
	results := map[string]*entity.ProcessingResult{
		"doc.pdf":          {Filename: "doc.pdf", Models: "SHORT-111", Status: constants.StatusPass},
		"doc_extended.pdf": {Filename: "doc_extended.pdf", Models: "LONG-222", Status: constants.StatusPass},
	}
	if err := m.Merge(path, results); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	f, sheet := openSheet(t, path)
	if got := cellValue(t, f, sheet, "B2"); got != "SHORT-111" {
		t.Fatalf("B2 = %q, want the first ordered match", got)
	}
}

func TestMergeRejectsMissingRequiredColumn(t *testing.T) {
	path := writeWorkbook(t, []string{"Description", "Author"}, []string{"row"})
	m := NewMerger(HeaderConfig{}, nil)
	err := m.Merge(path, map[string]*entity.ProcessingResult{
		"doc.pdf": {Filename: "doc.pdf", Status: constants.StatusPass},
	})
	if err == nil || !strings.Contains(err.Error(), "Models") {
		t.Fatalf("Merge() error = %v, want missing column complaint", err)
	}
}

func TestMergeCapsColumnWidth(t *testing.T) {
	long := strings.Repeat("very long description text ", 10)
	path := writeWorkbook(t, []string{"Description", "Models", "Author"}, []string{long})
	m := NewMerger(HeaderConfig{MaxWidth: 60}, nil)
	if err := m.Merge(path, map[string]*entity.ProcessingResult{}); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	f, sheet := openSheet(t, path)
	width, err := f.GetColWidth(sheet, "A")
	if err != nil {
		t.Fatalf("GetColWidth() error = %v", err)
	}
	if width != 60 {
		t.Fatalf("column A width = %v, want capped at 60", width)
	}
	width, err = f.GetColWidth(sheet, "C")
	if err != nil {
		t.Fatalf("GetColWidth() error = %v", err)
	}
	if width != float64(len("Author")+2) {
		t.Fatalf("column C width = %v, want header length plus padding", width)
	}
}
