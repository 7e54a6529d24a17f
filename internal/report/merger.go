package report

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/docpipe/qadoc/constants"
	"github.com/docpipe/qadoc/internal/entity"
)

// Row fill colors keyed by base status, plus the OCR overpaint applied to
// the status cell only.
var fillColors = map[string]string{
	string(constants.StatusPass):        "C6EFCE",
	string(constants.StatusFail):        "FFC7CE",
	string(constants.StatusNeedsReview): "FFEB9C",
}

const ocrFillColor = "0A9BCD"

// HeaderConfig names the template columns the merger touches.
type HeaderConfig struct {
	Description string
	Meta        string
	Author      string
	Status      string
	MaxWidth    float64
}

// Merger writes aggregated processing results into a cloned report
// spreadsheet. It edits the given workbook in place; callers are responsible
// for cloning the template first.
type Merger struct {
	headers HeaderConfig
	logger  *slog.Logger
}

func NewMerger(headers HeaderConfig, logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	if headers.Description == "" {
		headers.Description = "Description"
	}
	if headers.Meta == "" {
		headers.Meta = "Models"
	}
	if headers.Author == "" {
		headers.Author = "Author"
	}
	if headers.Status == "" {
		headers.Status = "Processing Status"
	}
	if headers.MaxWidth <= 0 {
		headers.MaxWidth = 60
	}
	return &Merger{headers: headers, logger: logger}
}

// Merge annotates each matching data row with the harvested fields and
// classification, applies the status color encoding, and auto-sizes columns.
func (m *Merger) Merge(path string, results map[string]*entity.ProcessingResult) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return fmt.Errorf("open report: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("read rows: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("report sheet %q has no header row", sheet)
	}

	headers := rows[0]
	statusCol := indexOf(headers, m.headers.Status)
	if statusCol < 0 {
		// Provision the status column as a new trailing column.
		statusCol = len(headers)
		cell, _ := excelize.CoordinatesToCellName(statusCol+1, 1)
		if err := f.SetCellValue(sheet, cell, m.headers.Status); err != nil {
			return fmt.Errorf("provision status column: %w", err)
		}
		headers = append(headers, m.headers.Status)
	}

	cols := map[string]int{}
	for _, h := range []string{m.headers.Description, m.headers.Meta, m.headers.Author} {
		idx := indexOf(headers, h)
		if idx < 0 {
			return fmt.Errorf("report is missing required column %q", h)
		}
		cols[h] = idx
	}
	cols[m.headers.Status] = statusCol

	matched := 0
	ordered := orderedResults(results)
	for r := 1; r < len(rows); r++ {
		desc := cellAt(rows[r], cols[m.headers.Description])
		// First match wins; overlapping stems are an accepted heuristic
		// limitation of the description-substring join.
		for _, data := range ordered {
			stem := strings.TrimSuffix(data.Filename, filepath.Ext(data.Filename))
			if !strings.Contains(desc, stem) {
				continue
			}
			if err := m.writeRow(f, sheet, r+1, cols, data); err != nil {
				return err
			}
			matched++
			break
		}
	}

	if err := m.applyFills(f, sheet, len(rows), len(headers), cols[m.headers.Status]); err != nil {
		return err
	}
	if err := m.autoSizeColumns(f, sheet, len(headers)); err != nil {
		return err
	}

	if err := f.Save(); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	m.logger.Info("report.merge.ok", "path", filepath.Base(path), "results", len(results), "matched_rows", matched)
	return nil
}

func (m *Merger) writeRow(f *excelize.File, sheet string, row int, cols map[string]int, data *entity.ProcessingResult) error {
	write := func(col int, v string) error {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		return f.SetCellValue(sheet, cell, v)
	}
	if err := write(cols[m.headers.Meta], data.Models); err != nil {
		return fmt.Errorf("write models: %w", err)
	}
	if err := write(cols[m.headers.Author], data.Author); err != nil {
		return fmt.Errorf("write author: %w", err)
	}
	if err := write(cols[m.headers.Status], data.StatusDisplay()); err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	return nil
}

// applyFills colors each annotated row by its base status and overpaints the
// status cell with the OCR color when the fallback ran. The OCR marker is a
// suffix on the status value, so comparisons strip it first.
func (m *Merger) applyFills(f *excelize.File, sheet string, rowCount, colCount, statusCol int) error {
	styleIDs := map[string]int{}
	for status, color := range fillColors {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
		})
		if err != nil {
			return fmt.Errorf("fill style: %w", err)
		}
		styleIDs[status] = id
	}
	ocrStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{ocrFillColor}},
	})
	if err != nil {
		return fmt.Errorf("ocr fill style: %w", err)
	}

	for r := 2; r <= rowCount; r++ {
		statusCell, _ := excelize.CoordinatesToCellName(statusCol+1, r)
		statusVal, err := f.GetCellValue(sheet, statusCell)
		if err != nil {
			return fmt.Errorf("read status cell: %w", err)
		}
		base := strings.TrimSpace(strings.ReplaceAll(statusVal, " (OCR)", ""))
		styleID, ok := styleIDs[base]
		if !ok {
			continue
		}
		first, _ := excelize.CoordinatesToCellName(1, r)
		last, _ := excelize.CoordinatesToCellName(colCount, r)
		if err := f.SetCellStyle(sheet, first, last, styleID); err != nil {
			return fmt.Errorf("row fill: %w", err)
		}
		if strings.Contains(statusVal, "(OCR)") {
			if err := f.SetCellStyle(sheet, statusCell, statusCell, ocrStyle); err != nil {
				return fmt.Errorf("ocr fill: %w", err)
			}
		}
	}
	return nil
}

// autoSizeColumns widens each column to its longest rendered value plus
// padding, capped to keep long text fields from producing degenerate widths.
func (m *Merger) autoSizeColumns(f *excelize.File, sheet string, colCount int) error {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("re-read rows: %w", err)
	}
	for c := 0; c < colCount; c++ {
		maxLen := 0
		for _, row := range rows {
			if l := len(cellAt(row, c)); l > maxLen {
				maxLen = l
			}
		}
		width := float64(maxLen + 2)
		if width > m.headers.MaxWidth {
			width = m.headers.MaxWidth
		}
		name, _ := excelize.ColumnNumberToName(c + 1)
		if err := f.SetColWidth(sheet, name, name, width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}
	return nil
}

func indexOf(headers []string, name string) int {
	for i, h := range headers {
		if strings.TrimSpace(h) == name {
			return i
		}
	}
	return -1
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// orderedResults returns results sorted by filename so row matching is
// deterministic when stems overlap.
func orderedResults(results map[string]*entity.ProcessingResult) []*entity.ProcessingResult {
	keys := make([]string, 0, len(results))
	for k := range results {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*entity.ProcessingResult, 0, len(keys))
	for _, k := range keys {
		out = append(out, results[k])
	}
	return out
}
