package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/docpipe/qadoc/internal/cache"
	"github.com/docpipe/qadoc/internal/common"
	"github.com/docpipe/qadoc/internal/extract"
	"github.com/docpipe/qadoc/internal/harvest"
	"github.com/docpipe/qadoc/internal/history"
	"github.com/docpipe/qadoc/internal/job"
	"github.com/docpipe/qadoc/internal/report"
)

func main() {
	var (
		dir        = flag.String("dir", "", "directory of PDFs to process")
		filesArg   = flag.String("files", "", "comma-separated list of PDF paths (overrides -dir)")
		template   = flag.String("template", "", "template spreadsheet path (required for a fresh run)")
		rerun      = flag.Bool("rerun", false, "reprocess flagged files into the last produced report")
		reportPath = flag.String("report", "", "report path for -rerun (defaults to the last completed run)")
		noCache    = flag.Bool("no-cache", false, "ignore cached per-file results")
		patterns   = flag.String("patterns", "", "custom pattern YAML (overrides QADOC_PATTERN_CONFIG)")
		logLevel   = flag.String("log-level", "info", "log level: debug|info|warn|error")
	)
	flag.Parse()

	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(*logLevel),
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if *patterns != "" {
		cfg.Job.PatternConfigPath = *patterns
	}
	if err := cfg.EnsureDirs(); err != nil {
		logger.Error("working directories", "error", err)
		os.Exit(1)
	}

	resultCache, err := cache.New(cfg.Dirs.CacheDir, logger)
	if err != nil {
		logger.Error("open cache", "error", err)
		os.Exit(1)
	}
	hist, err := history.Open(cfg.Dirs.HistoryDB, logger)
	if err != nil {
		logger.Error("open history", "error", err)
		os.Exit(1)
	}
	defer func() { _ = hist.Close() }()

	extractor := extract.NewExtractor(extract.Config{
		Pdftotext:       cfg.Extract.Pdftotext,
		Pdftoppm:        cfg.Extract.Pdftoppm,
		Tesseract:       cfg.Extract.Tesseract,
		TesseractLang:   cfg.Extract.TesseractLang,
		DPI:             cfg.Extract.DPI,
		PSM:             cfg.Extract.PSM,
		OEM:             cfg.Extract.OEM,
		OCRTriggerChars: cfg.Extract.OCRTriggerChars,
		MinAcceptChars:  cfg.Extract.MinAcceptChars,
	}, logger)

	provider := harvest.NewProvider(cfg.Job.PatternConfigPath, logger)
	merger := report.NewMerger(report.HeaderConfig{
		Description: cfg.Report.DescriptionColumn,
		Meta:        cfg.Report.MetaColumn,
		Author:      cfg.Report.AuthorColumn,
		Status:      cfg.Report.StatusColumn,
		MaxWidth:    cfg.Report.MaxColumnWidth,
	}, logger)

	sink := job.NewChannelSink(256)
	orch := job.New(job.Options{
		Extractor:         extractor,
		Patterns:          provider,
		Cache:             resultCache,
		Merger:            merger,
		History:           hist,
		Sink:              sink,
		Logger:            logger,
		ReviewDir:         cfg.Dirs.ReviewDir,
		OutputDir:         cfg.Dirs.OutputDir,
		PausePollInterval: cfg.Job.PausePollInterval,
	})

	ctx := context.Background()
	if *rerun {
		err = startRerun(ctx, orch, hist, *reportPath, splitFiles(*filesArg))
	} else {
		if *template == "" {
			fmt.Fprintln(os.Stderr, "-template is required for a fresh run")
			os.Exit(2)
		}
		err = orch.Start(ctx, job.Request{
			TemplatePath: *template,
			InputDir:     *dir,
			Files:        splitFiles(*filesArg),
			NoCache:      *noCache,
		})
	}
	if err != nil {
		logger.Error("start job", "error", err)
		os.Exit(1)
	}

	// SIGINT requests cooperative cancellation; the in-flight file finishes
	// before the job aborts.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		logger.Warn("cancel requested, finishing current file")
		orch.Cancel()
	}()

	os.Exit(consumeEvents(sink))
}

// startRerun resolves the report path from the run ledger when not given.
func startRerun(ctx context.Context, orch *job.Orchestrator, hist *history.Store, reportPath string, files []string) error {
	if reportPath == "" {
		last, err := hist.LastCompleted(ctx)
		if err != nil {
			return common.WrapError(err, "resolve last report")
		}
		reportPath = last.ReportPath
	}
	return orch.Rerun(ctx, job.RerunRequest{ReportPath: reportPath, Files: files})
}

// consumeEvents drains the event stream until the terminal finish event and
// returns the process exit code.
func consumeEvents(sink *job.ChannelSink) int {
	for ev := range sink.C {
		switch ev.Kind {
		case job.KindLog:
			fmt.Printf("[%s] %s\n", ev.Tag, ev.Message)
		case job.KindStatus:
			fmt.Printf("-- %s (%s)\n", ev.Message, ev.Stage)
		case job.KindProgress:
			fmt.Printf("progress %d/%d\n", ev.Current, ev.Total)
		case job.KindFileComplete:
			fmt.Printf("done: %s\n", ev.Status)
		case job.KindReviewItem:
			if ev.Review != nil {
				fmt.Printf("needs review: %s (%s)\n", ev.Review.Filename, ev.Review.TxtPath)
			}
		case job.KindResultPath:
			fmt.Printf("report: %s\n", ev.Path)
		case job.KindFinish:
			fmt.Printf("finished: %s\n", ev.Status)
			if ev.Status == "Complete" || ev.Status == "Cancelled" {
				return 0
			}
			return 1
		}
	}
	return 1
}

func splitFiles(arg string) []string {
	if strings.TrimSpace(arg) == "" {
		return nil
	}
	parts := strings.Split(arg, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
