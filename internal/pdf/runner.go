package pdf

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Runner runs an external rasterizer. Tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct {
	logger *slog.Logger
}

// NewExecRunner runs commands through os/exec.
func NewExecRunner(logger *slog.Logger) Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return execRunner{logger: logger}
}

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	attrs := []any{
		"tool", filepath.Base(name),
		"source", sourceArg(args),
		"elapsed_ms", time.Since(start).Milliseconds(),
	}
	switch {
	case ctx.Err() != nil:
		r.logger.Info("render.exec.cancelled", attrs...)
	case err != nil:
		r.logger.Error("render.exec.failed", append(attrs, "error", err, "stderr", stderrSummary(errb.Bytes(), 2<<10))...)
	default:
		r.logger.Debug("render.exec.ok", append(attrs, "png_bytes", out.Len())...)
	}
	return out.Bytes(), errb.Bytes(), err
}

// sourceArg picks the first .pdf argument, which is the document being rendered.
func sourceArg(args []string) string {
	for _, a := range args {
		if strings.EqualFold(filepath.Ext(a), ".pdf") {
			return a
		}
	}
	return ""
}

// stderrSummary joins the non-blank stderr lines and keeps the last max bytes,
// where poppler prints the error that ended the run.
func stderrSummary(b []byte, max int) string {
	var lines []string
	for _, line := range strings.Split(string(b), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	s := strings.Join(lines, "; ")
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max:]
}
