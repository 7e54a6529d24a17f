package extract

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"time"
)

// Runner abstracts the external toolchain so tests can script it.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// execRunner shells out through os/exec. Stderr is captured and returned to
// the caller; failures are logged here with a bounded stderr excerpt so
// per-page OCR noise cannot flood the log.
type execRunner struct {
	logger *slog.Logger
}

const stderrLogCap = 8 << 10

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var out, errb bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &errb

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		r.logger.Error("extract.exec.failed",
			"bin", name,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
			"stderr", clip(errb.String(), stderrLogCap),
		)
		return out.Bytes(), errb.Bytes(), err
	}
	r.logger.Debug("extract.exec.ok",
		"bin", name,
		"duration_ms", time.Since(start).Milliseconds(),
		"stdout_bytes", out.Len(),
	)
	return out.Bytes(), errb.Bytes(), nil
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
