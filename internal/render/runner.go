package render

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"time"
)

const (
	maxLogBytes = 8 * 1024 // tail of renderer output kept for diagnostics
	waitDelay   = 5 * time.Second
)

// execResult is the raw outcome of one renderer process.
type execResult struct {
	ExitCode int
	Output   string // combined stdout/stderr tail
	Duration time.Duration
	TimedOut bool
	Err      error // start failure or cancellation, nil on a clean exit
}

// execRenderer runs bin with args until it exits or ctx is done. The child is
// always waited for, and on every path its process group is killed once it has
// exited, so helpers it spawned neither linger nor hold the output pipe open.
func execRenderer(ctx context.Context, dir, bin string, args ...string) execResult {
	start := time.Now()

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	configureProcess(cmd)
	cmd.WaitDelay = waitDelay

	// manim reports progress on stdout and tracebacks on stderr; keep both.
	// An *os.File pipe makes Wait return when the renderer exits instead of
	// when the last holder of the pipe does.
	pr, pw, err := os.Pipe()
	if err != nil {
		return execResult{ExitCode: -1, Err: err, Duration: time.Since(start)}
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	var out bytes.Buffer
	tail := &limitedWriter{w: &out, limit: maxLogBytes}
	copied := make(chan struct{})
	go func() {
		io.Copy(tail, pr)
		close(copied)
	}()

	err = cmd.Start()
	pw.Close()
	if err == nil {
		err = cmd.Wait()
		killGroup(cmd)
	}

	select {
	case <-copied:
	case <-time.After(waitDelay):
		// A helper outside the group still holds the pipe.
	}
	pr.Close()
	<-copied

	res := execResult{
		Output:   out.String(),
		Duration: time.Since(start),
	}

	switch {
	case err == nil:
		return res
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.ExitCode = -1
		res.TimedOut = true
		res.Err = ctx.Err()
	case ctx.Err() != nil:
		res.ExitCode = -1
		res.Err = ctx.Err()
	case errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil && cmd.ProcessState.ExitCode() == 0:
		return res
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
			res.Err = err
		}
	}
	return res
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		// Keep only the tail
		b := lw.w.Bytes()
		tail := append([]byte(nil), b[len(b)-lw.limit:]...)
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}
