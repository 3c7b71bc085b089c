// internal/console/console.go
// Package console prints the colored startup progress lines shown while sage
// loads the model and builds the knowledge store.
package console

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/mwiater/sage/internal/logging"
)

// Reporter writes progress lines to a terminal and mirrors them to the log file.
type Reporter struct {
	out   io.Writer
	now   func() time.Time
	start time.Time

	step *color.Color
	ok   *color.Color
	warn *color.Color
	fail *color.Color
}

// New returns a Reporter writing to out, or to stdout when out is nil.
func New(out io.Writer) *Reporter {
	if out == nil {
		out = os.Stdout
	}
	return &Reporter{
		out:  out,
		now:  time.Now,
		step: color.New(color.FgCyan, color.Bold),
		ok:   color.New(color.FgGreen),
		warn: color.New(color.FgYellow),
		fail: color.New(color.FgRed, color.Bold),
	}
}

// Step announces a startup phase and starts its timer.
func (r *Reporter) Step(format string, args ...any) {
	r.start = r.now()
	r.print(r.step, "==> ", format, args...)
}

// Done reports the end of the current phase and returns how long it took.
func (r *Reporter) Done(format string, args ...any) time.Duration {
	elapsed := r.now().Sub(r.start)
	msg := fmt.Sprintf(format, args...)
	r.print(r.ok, "  ✓ ", "%s (%.2fs)", msg, elapsed.Seconds())
	return elapsed
}

// Info prints an untimed line.
func (r *Reporter) Info(format string, args ...any) {
	r.print(r.ok, "  ", format, args...)
}

// Warn prints a non-fatal problem.
func (r *Reporter) Warn(format string, args ...any) {
	r.print(r.warn, "  ! ", format, args...)
}

// Fatal prints an error that is about to stop the process. Exiting is left to the caller.
func (r *Reporter) Fatal(format string, args ...any) {
	r.print(r.fail, "!! ", format, args...)
}

func (r *Reporter) print(c *color.Color, prefix, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	_, _ = c.Fprintln(r.out, prefix+msg)
	logging.LogFileOnly("[STARTUP] %s", msg)
}
