package constants

// FileStatus is the per-file classification recorded in the cache and the report.
type FileStatus string

// Stable values (persisted in cache records and written into the report).
const (
	StatusPass        FileStatus = "Pass"         // models harvested
	StatusFail        FileStatus = "Fail"         // no usable text extracted
	StatusNeedsReview FileStatus = "Needs Review" // text extracted, no models found
)

// Valid reports whether s is one of the three classification values.
func (s FileStatus) Valid() bool {
	switch s {
	case StatusPass, StatusFail, StatusNeedsReview:
		return true
	}
	return false
}

// JobState is the lifecycle of one batch job.
type JobState string

const (
	JobStateIdle      JobState = "IDLE"
	JobStateRunning   JobState = "RUNNING"
	JobStatePaused    JobState = "PAUSED"
	JobStateCompleted JobState = "COMPLETED"
	JobStateCancelled JobState = "CANCELLED"
	JobStateFailed    JobState = "FAILED"
)

// Counter names carried by increment_counter events.
const (
	CounterPass   = "pass"
	CounterFail   = "fail"
	CounterReview = "review"
	CounterOCR    = "ocr"
)

// Stage labels carried by status events; consumers map these to indicators.
const (
	StageQueued  = "Queued"
	StageOCR     = "OCR"
	StageHarvest = "Harvest"
	StageSaving  = "Saving"
	StagePaused  = "Paused"
)
