package console

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
)

func TestReporterStepAndDone(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	r := New(&buf)

	ticks := []time.Time{
		time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 11, 3, 10, 0, 2, 500_000_000, time.UTC),
	}
	r.now = func() time.Time {
		next := ticks[0]
		ticks = ticks[1:]
		return next
	}

	r.Step("Loading model %s", "swallow.gguf")
	elapsed := r.Done("model loaded")

	if elapsed != 2500*time.Millisecond {
		t.Fatalf("expected 2.5s, got %v", elapsed)
	}
	out := buf.String()
	if !strings.Contains(out, "==> Loading model swallow.gguf") {
		t.Fatalf("missing step line: %q", out)
	}
	if !strings.Contains(out, "✓ model loaded (2.50s)") {
		t.Fatalf("missing done line: %q", out)
	}
}

func TestReporterWarnAndFatal(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	r := New(&buf)

	r.Warn("embedding host slow")
	r.Fatal("corpus file not found: %s", "rag.txt")

	out := buf.String()
	if !strings.Contains(out, "! embedding host slow") {
		t.Fatalf("missing warn line: %q", out)
	}
	if !strings.Contains(out, "!! corpus file not found: rag.txt") {
		t.Fatalf("missing fatal line: %q", out)
	}
}
