package logx

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestWriterOutputsFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").With(String("component", "gateway"))

	log.Info("updates dropped", Uint64("count", 7), Int64("chat", -12), Bool("retry", false))

	out := buf.String()
	for _, want := range []string{
		`"component":"gateway"`,
		`"count":7`,
		`"chat":-12`,
		`"retry":false`,
		`"message":"updates dropped"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %s: %s", want, out)
		}
	}
}

func TestErrFieldSkipsNil(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "info")

	log.Error("boom", Err(errors.New("db locked")))
	log.Info("fine", Err(nil))

	out := buf.String()
	if !strings.Contains(out, `"err":"db locked"`) {
		t.Fatalf("error field not written: %s", out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("want 2 lines, got %d", len(lines))
	}
	if strings.Contains(lines[1], `"err"`) {
		t.Fatalf("nil error produced a field: %s", lines[1])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "warn")

	log.Debug("hidden")
	log.Info("hidden too")
	log.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("low-level entries leaked: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn entry missing: %s", out)
	}
}

func TestZeroValueIsSilent(t *testing.T) {
	var log Logger
	if !log.IsZero() {
		t.Fatal("zero value should report IsZero")
	}
	// Must not panic.
	log.Info("nothing", String("k", "v"))
	log.With(Int("n", 1)).Error("still nothing")
}
