package job

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/docpipe/qadoc/constants"
	"github.com/docpipe/qadoc/internal/cache"
	"github.com/docpipe/qadoc/internal/common"
	"github.com/docpipe/qadoc/internal/entity"
	"github.com/docpipe/qadoc/internal/extract"
	"github.com/docpipe/qadoc/internal/harvest"
	"github.com/docpipe/qadoc/internal/history"
	"github.com/docpipe/qadoc/internal/report"
)

// Options wires an Orchestrator.
type Options struct {
	Extractor extract.TextExtractor
	Patterns  *harvest.Provider
	Cache     *cache.Cache
	Merger    *report.Merger
	History   *history.Store // optional; nil disables the run ledger
	Sink      Sink
	Logger    *slog.Logger

	ReviewDir         string
	OutputDir         string
	PausePollInterval time.Duration
}

// Orchestrator drives the per-file pipeline over an ordered file list on a
// single worker goroutine, reporting to the consumer only through the Sink.
type Orchestrator struct {
	opts Options

	mu      sync.Mutex
	state   constants.JobState
	done    chan struct{}
	cancel  atomic.Bool
	paused  atomic.Bool
	started time.Time
}

// Request describes one batch run. Either InputDir or Files must be set;
// Files takes priority when both are present.
type Request struct {
	TemplatePath string
	InputDir     string
	Files        []string
	NoCache      bool // true reprocessing: skip lookups, always overwrite
}

// RerunRequest reprocesses previously flagged files against an existing
// report, bypassing the cache.
type RerunRequest struct {
	ReportPath string
	Files      []string
}

func New(opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Sink == nil {
		opts.Sink = SinkFunc(func(Event) {})
	}
	if opts.PausePollInterval <= 0 {
		opts.PausePollInterval = 500 * time.Millisecond
	}
	return &Orchestrator{opts: opts, state: constants.JobStateIdle}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() constants.JobState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s constants.JobState) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Start launches a batch run on a background worker. A second start while a
// job is running is rejected.
func (o *Orchestrator) Start(ctx context.Context, req Request) error {
	files, err := enumerateFiles(req.InputDir, req.Files)
	if err != nil {
		return err
	}
	return o.launch(ctx, req.TemplatePath, files, false, req.NoCache)
}

// Rerun reprocesses exactly the given flagged files into an existing report.
// The review staging area is cleared first so stale sidecars from the prior
// run are not visible for files no longer in scope.
func (o *Orchestrator) Rerun(ctx context.Context, req RerunRequest) error {
	if req.ReportPath == "" {
		return common.NewAppError("RERUN", "report path is required", common.ErrInvalidInput)
	}
	if len(req.Files) == 0 {
		return common.ErrNoInput
	}
	return o.launch(ctx, req.ReportPath, req.Files, true, true)
}

func (o *Orchestrator) launch(ctx context.Context, templatePath string, files []string, rerun, noCache bool) error {
	o.mu.Lock()
	if o.state == constants.JobStateRunning || o.state == constants.JobStatePaused {
		o.mu.Unlock()
		return common.ErrJobRunning
	}
	o.state = constants.JobStateRunning
	o.done = make(chan struct{})
	o.started = time.Now()
	o.mu.Unlock()

	o.cancel.Store(false)
	o.paused.Store(false)

	go o.run(ctx, templatePath, files, rerun, noCache)
	return nil
}

// Pause suspends processing at the next file boundary.
func (o *Orchestrator) Pause() { o.paused.Store(true) }

// Resume clears a pause.
func (o *Orchestrator) Resume() { o.paused.Store(false) }

// Cancel requests cooperative cancellation; it takes effect before the next
// file starts. An in-flight extraction is never interrupted.
func (o *Orchestrator) Cancel() { o.cancel.Store(true) }

// Wait blocks until the current run finishes. Returns immediately when no
// run was started.
func (o *Orchestrator) Wait() {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (o *Orchestrator) emit(ev Event) { o.opts.Sink.Emit(ev) }

func (o *Orchestrator) logEvent(tag, msg string) {
	o.emit(Event{Kind: KindLog, Tag: tag, Message: msg})
}

// run is the worker body. Every outcome ends in exactly one terminal finish
// event; nothing here may crash the consumer-visible session.
func (o *Orchestrator) run(ctx context.Context, templatePath string, files []string, rerun, noCache bool) {
	runID := uuid.New()
	counts := map[string]int{}

	defer func() {
		if r := recover(); r != nil {
			o.opts.Logger.Error("job.run.panic", "run_id", runID, "panic", r)
			o.logEvent("error", fmt.Sprintf("Critical error: %v", r))
			o.emit(Event{Kind: KindFinish, Status: fmt.Sprintf("Error: %v", r)})
			o.setState(constants.JobStateFailed)
		}
		o.mu.Lock()
		close(o.done)
		o.mu.Unlock()
	}()

	o.logEvent("info", "Processing job started.")
	o.opts.Logger.Info("job.run.start", "run_id", runID, "files", len(files), "rerun", rerun)

	var clonedPath string
	if rerun {
		o.clearReviewDir()
		clonedPath = templatePath
	} else {
		var err error
		clonedPath, err = o.cloneTemplate(templatePath)
		if err != nil {
			o.fail(runID, counts, rerun, "", err)
			return
		}
	}

	harvester, err := harvest.New(o.opts.Patterns.Current())
	if err != nil {
		o.fail(runID, counts, rerun, clonedPath, common.WrapError(err, "pattern configuration"))
		return
	}

	results := make(map[string]*entity.ProcessingResult, len(files))
	for i, path := range files {
		if o.cancel.Load() {
			break
		}
		o.waitWhilePaused()
		if o.cancel.Load() {
			break
		}
		o.emit(Event{Kind: KindProgress, Current: i + 1, Total: len(files)})

		res := o.processFile(ctx, path, harvester, noCache, counts)
		if res == nil {
			// Defensive: a vanished result smells like transient cache
			// corruption. Retry once with the cache forcibly bypassed.
			res = o.processFile(ctx, path, harvester, true, counts)
		}
		if res != nil {
			results[res.Filename] = res
		}
	}

	if o.cancel.Load() {
		o.opts.Logger.Info("job.run.cancelled", "run_id", runID, "processed", len(results))
		// The ledger row must be committed before the terminal event;
		// consumers are allowed to exit the moment they see finish.
		o.recordRun(runID, constants.JobStateCancelled, counts, rerun, "")
		o.emit(Event{Kind: KindFinish, Status: "Cancelled"})
		o.setState(constants.JobStateCancelled)
		return
	}

	o.emit(Event{Kind: KindStatus, Message: "Updating report...", Stage: constants.StageSaving})
	if err := o.opts.Merger.Merge(clonedPath, results); err != nil {
		o.fail(runID, counts, rerun, clonedPath, common.WrapError(err, "merge report"))
		return
	}

	o.emit(Event{Kind: KindResultPath, Path: clonedPath})
	elapsed := time.Since(o.started)
	o.opts.Logger.Info("job.run.ok",
		"run_id", runID,
		"files", len(files),
		"pass", counts[constants.CounterPass],
		"fail", counts[constants.CounterFail],
		"review", counts[constants.CounterReview],
		"ocr", counts[constants.CounterOCR],
		"elapsed_ms", elapsed.Milliseconds(),
	)
	o.recordRun(runID, constants.JobStateCompleted, counts, rerun, clonedPath)
	o.emit(Event{Kind: KindFinish, Status: "Complete"})
	o.setState(constants.JobStateCompleted)
}

func (o *Orchestrator) fail(runID uuid.UUID, counts map[string]int, rerun bool, reportPath string, err error) {
	o.opts.Logger.Error("job.run.failed", "run_id", runID, "error", err)
	o.logEvent("error", fmt.Sprintf("Critical error: %v", err))
	o.recordRun(runID, constants.JobStateFailed, counts, rerun, reportPath)
	o.emit(Event{Kind: KindFinish, Status: fmt.Sprintf("Error: %v", err)})
	o.setState(constants.JobStateFailed)
}

// waitWhilePaused blocks between files while a pause is in effect, polling
// at a bounded interval. Cancellation breaks the wait.
func (o *Orchestrator) waitWhilePaused() {
	if !o.paused.Load() {
		return
	}
	o.emit(Event{Kind: KindStatus, Message: "Paused", Stage: constants.StagePaused})
	o.setState(constants.JobStatePaused)
	for o.paused.Load() && !o.cancel.Load() {
		time.Sleep(o.opts.PausePollInterval)
	}
	o.setState(constants.JobStateRunning)
}

// processFile runs the per-file pipeline: cache lookup, extraction, harvest,
// classification, sidecar, cache write, events. Per-file problems never
// abort the batch.
func (o *Orchestrator) processFile(ctx context.Context, path string, harvester *harvest.Harvester, ignoreCache bool, counts map[string]int) *entity.ProcessingResult {
	filename := filepath.Base(path)
	o.logEvent("info", "Processing: "+filename)

	if !ignoreCache {
		if cached, ok := o.opts.Cache.Get(path); ok {
			o.logEvent("info", "Loaded from cache: "+filename)
			if cached.Status == constants.StatusNeedsReview && cached.ReviewInfo != nil {
				cp := *cached.ReviewInfo
				o.emit(Event{Kind: KindReviewItem, Review: &cp})
			}
			o.completeFile(cached, counts)
			return cached
		}
	}

	o.emit(Event{Kind: KindStatus, Message: filename, Stage: constants.StageQueued})

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if o.opts.Extractor.OCRNeeded(ctx, abs) {
		o.emit(Event{Kind: KindStatus, Message: filename, Stage: constants.StageOCR})
	}

	extRes, err := o.opts.Extractor.Extract(ctx, abs)
	if err != nil {
		// The extractor contract is empty-text-on-failure; treat a stray
		// error the same way.
		o.opts.Logger.Error("job.extract.failed", "path", filename, "error", err)
		extRes = extract.Result{}
	}

	var result *entity.ProcessingResult
	if strings.TrimSpace(extRes.Text) == "" {
		result = &entity.ProcessingResult{
			Filename: filename,
			Models:   "Error: Text Extraction Failed",
			Status:   constants.StatusFail,
			OCRUsed:  extRes.OCRUsed,
		}
	} else {
		o.emit(Event{Kind: KindStatus, Message: filename, Stage: constants.StageHarvest})
		hres := harvester.Harvest(extRes.Text, filename)
		result = &entity.ProcessingResult{
			Filename: filename,
			Models:   hres.ModelsDisplay(),
			Author:   hres.Author,
			OCRUsed:  extRes.OCRUsed,
		}
		if len(hres.Models) == 0 {
			result.Status = constants.StatusNeedsReview
			result.ReviewInfo = o.writeSidecar(path, filename, extRes.Text)
			cp := *result.ReviewInfo
			o.emit(Event{Kind: KindReviewItem, Review: &cp})
		} else {
			result.Status = constants.StatusPass
		}
	}

	if extRes.OCRUsed {
		o.emit(Event{Kind: KindIncrementCounter, Counter: constants.CounterOCR})
		counts[constants.CounterOCR]++
	}
	if err := o.opts.Cache.Put(path, result); err != nil {
		o.opts.Logger.Warn("job.cache.put_failed", "path", filename, "error", err)
	}
	o.completeFileEvents(result, counts)
	return result
}

// completeFile emits the events for a cache hit, including the OCR counter
// carried by the cached record.
func (o *Orchestrator) completeFile(cached *entity.ProcessingResult, counts map[string]int) {
	o.completeFileEvents(cached, counts)
	if cached.OCRUsed {
		o.emit(Event{Kind: KindIncrementCounter, Counter: constants.CounterOCR})
		counts[constants.CounterOCR]++
	}
}

func (o *Orchestrator) completeFileEvents(result *entity.ProcessingResult, counts map[string]int) {
	o.emit(Event{Kind: KindFileComplete, Status: string(result.Status)})
	switch result.Status {
	case constants.StatusPass:
		counts[constants.CounterPass]++
	case constants.StatusFail:
		counts[constants.CounterFail]++
	case constants.StatusNeedsReview:
		counts[constants.CounterReview]++
	}
}

// writeSidecar persists the full extracted text for asynchronous human
// review and returns the pointer record for it.
func (o *Orchestrator) writeSidecar(path, filename, text string) *entity.ReviewItem {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	txtPath := filepath.Join(o.opts.ReviewDir, stem+".txt")
	content := fmt.Sprintf("--- Filename: %s ---\n\n%s", filename, text)
	if err := os.WriteFile(txtPath, []byte(content), 0o644); err != nil {
		o.opts.Logger.Warn("job.review.sidecar_failed", "path", txtPath, "error", err)
	}
	return &entity.ReviewItem{
		Filename: filename,
		Reason:   "No models",
		TxtPath:  txtPath,
		PDFPath:  path,
	}
}

// clearReviewDir removes stale sidecar artifacts before a rerun.
func (o *Orchestrator) clearReviewDir() {
	stale, _ := filepath.Glob(filepath.Join(o.opts.ReviewDir, "*.txt"))
	for _, f := range stale {
		if err := os.Remove(f); err != nil {
			o.opts.Logger.Warn("job.review.clear_failed", "path", f, "error", err)
		}
	}
}

// cloneTemplate copies the template to a timestamped output path, failing
// fast when the template is missing or locked by another process.
func (o *Orchestrator) cloneTemplate(templatePath string) (string, error) {
	if _, err := os.Stat(templatePath); err != nil {
		return "", common.NewAppError("TEMPLATE", "template spreadsheet not readable", err)
	}
	if isFileLocked(templatePath) {
		return "", common.ErrTemplateLocked
	}

	stem := strings.TrimSuffix(filepath.Base(templatePath), filepath.Ext(templatePath))
	ts := time.Now().Format("2006-01-02_150405")
	clonedPath := filepath.Join(o.opts.OutputDir, fmt.Sprintf("cloned_%s_%s%s", stem, ts, filepath.Ext(templatePath)))

	src, err := os.Open(templatePath)
	if err != nil {
		return "", common.WrapError(err, "open template")
	}
	defer func() { _ = src.Close() }()

	dst, err := os.Create(clonedPath)
	if err != nil {
		return "", common.WrapError(err, "create report clone")
	}
	defer func() { _ = dst.Close() }()

	if _, err := io.Copy(dst, src); err != nil {
		return "", common.WrapError(err, "clone template")
	}
	return clonedPath, nil
}

// isFileLocked probes whether another process holds the file open for
// exclusive access. Best effort: a writable open that fails with a
// permission-style error is treated as locked.
func isFileLocked(path string) bool {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return true
	}
	_ = f.Close()
	return false
}

func (o *Orchestrator) recordRun(runID uuid.UUID, state constants.JobState, counts map[string]int, rerun bool, reportPath string) {
	if o.opts.History == nil {
		return
	}
	run := history.Run{
		ID:         runID,
		Mode:       "run",
		State:      state,
		Pass:       counts[constants.CounterPass],
		Fail:       counts[constants.CounterFail],
		Review:     counts[constants.CounterReview],
		OCR:        counts[constants.CounterOCR],
		ReportPath: reportPath,
		StartedAt:  o.started,
		FinishedAt: time.Now(),
	}
	if rerun {
		run.Mode = "rerun"
	}
	if err := o.opts.History.RecordRun(context.Background(), run); err != nil {
		o.opts.Logger.Warn("job.history.record_failed", "run_id", runID, "error", err)
	}
}

// enumerateFiles resolves the input set: an explicit list wins, otherwise
// the PDFs in the input directory in sorted order.
func enumerateFiles(dir string, files []string) ([]string, error) {
	if len(files) > 0 {
		for _, f := range files {
			if !constants.AllowedExt(filepath.Ext(f)) {
				return nil, common.NewAppError("INPUT", fmt.Sprintf("unsupported file type: %s", filepath.Base(f)), common.ErrInvalidInput)
			}
		}
		return files, nil
	}
	if dir == "" {
		return nil, common.ErrNoInput
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, common.NewAppError("INPUT", "input directory not readable", err)
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.pdf"))
	if err != nil {
		return nil, common.WrapError(err, "scan input directory")
	}
	return matches, nil
}
