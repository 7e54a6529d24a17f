package entity

import (
	"github.com/docpipe/qadoc/constants"
)

// ProcessingResult is the per-file outcome persisted to cache and merged into
// the report. Field names match the on-disk cache record.
type ProcessingResult struct {
	Filename   string               `json:"filename"`
	Models     string               `json:"models"` // joined display string, or "Not Found"
	Author     string               `json:"author"`
	Status     constants.FileStatus `json:"status"`
	OCRUsed    bool                 `json:"ocr_used"`
	ReviewInfo *ReviewItem          `json:"review_info"`
}

// ReviewItem points a reviewer at a file that produced no model matches.
// TxtPath is the sidecar artifact holding the full extracted text; PDFPath is
// the original document so the item can be resubmitted.
type ReviewItem struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
	TxtPath  string `json:"txt_path"`
	PDFPath  string `json:"pdf_path"`
}

// StatusDisplay renders the status cell value, with the OCR marker appended
// as a suffix when the fallback path ran.
func (r *ProcessingResult) StatusDisplay() string {
	if r.OCRUsed {
		return string(r.Status) + " (OCR)"
	}
	return string(r.Status)
}
