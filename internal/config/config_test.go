package config

import (
	"bytes"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"lockcycled/internal/core"
)

// clearCyclingEnv unsets every cycling variable so host leakage cannot skew
// the defaults. t.Setenv registers the restore, os.Unsetenv does the clearing
// (an empty value would still count as set for LookupEnv).
func clearCyclingEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LOCKCYCLE_DRY_RUN",
		"LOCKCYCLE_CYCLE_MODE",
		"LOCKCYCLE_DURATION",
		"LOCKCYCLE_LOCK_INTERVAL_MIN",
		"LOCKCYCLE_LOCK_INTERVAL_MAX",
		"LOCKCYCLE_NAP_TIME_S",
		"LOCKCYCLE_WEAK_TIME_S",
		"LOCKCYCLE_STOP_AFTER_CYCLES",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestCyclingDefaults(t *testing.T) {
	clearCyclingEnv(t)
	cfg := &Config{}
	cfg.AttachLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	got := cfg.Cycling()
	want := core.CyclingConfig{
		DryRun:          false,
		Mode:            core.ModeDuration,
		Duration:        time.Hour,
		LockIntervalMin: 10 * time.Minute,
		LockIntervalMax: 20 * time.Minute,
		NapTime:         1800 * time.Second,
		WeakTime:        500 * time.Millisecond,
		StopAfterCycles: 0,
	}
	if got != want {
		t.Errorf("Cycling() defaults = %+v, want %+v", got, want)
	}
}

func TestCyclingEnvOverrides(t *testing.T) {
	clearCyclingEnv(t)
	t.Setenv("LOCKCYCLE_DRY_RUN", "true")
	t.Setenv("LOCKCYCLE_CYCLE_MODE", "count")
	t.Setenv("LOCKCYCLE_NAP_TIME_S", "2.5")
	t.Setenv("LOCKCYCLE_WEAK_TIME_S", "1")
	t.Setenv("LOCKCYCLE_STOP_AFTER_CYCLES", "7")

	cfg := &Config{}
	cfg.AttachLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	got := cfg.Cycling()

	if !got.DryRun {
		t.Error("DryRun not picked up from environment")
	}
	if got.Mode != core.ModeCount {
		t.Errorf("Mode = %s, want count", got.Mode)
	}
	if got.NapTime != 2500*time.Millisecond {
		t.Errorf("NapTime = %v, want 2.5s", got.NapTime)
	}
	if got.WeakTime != time.Second {
		t.Errorf("WeakTime = %v, want 1s", got.WeakTime)
	}
	if got.StopAfterCycles != 7 {
		t.Errorf("StopAfterCycles = %d, want 7", got.StopAfterCycles)
	}
}

func TestCyclingSpanOverrides(t *testing.T) {
	clearCyclingEnv(t)
	t.Setenv("LOCKCYCLE_DURATION", "2h")
	t.Setenv("LOCKCYCLE_LOCK_INTERVAL_MIN", "30s")
	t.Setenv("LOCKCYCLE_LOCK_INTERVAL_MAX", "0.5m")

	cfg := &Config{}
	cfg.AttachLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	got := cfg.Cycling()

	if got.Duration != 2*time.Hour {
		t.Errorf("Duration = %v, want 2h", got.Duration)
	}
	if got.LockIntervalMin != 30*time.Second {
		t.Errorf("LockIntervalMin = %v, want 30s", got.LockIntervalMin)
	}
	if got.LockIntervalMax != 30*time.Second {
		t.Errorf("LockIntervalMax = %v, want 30s", got.LockIntervalMax)
	}
}

func TestCyclingMalformedSpanFallsBack(t *testing.T) {
	clearCyclingEnv(t)
	t.Setenv("LOCKCYCLE_DURATION", "soon")

	var buf bytes.Buffer
	cfg := &Config{}
	cfg.AttachLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	got := cfg.Cycling()

	if got.Duration != core.FallbackSpan {
		t.Errorf("Duration = %v, want fallback %v", got.Duration, core.FallbackSpan)
	}
	if !strings.Contains(buf.String(), "fallback") {
		t.Errorf("malformed span should be logged, got %q", buf.String())
	}
}

func TestCyclingUnknownModeFallsBackToDuration(t *testing.T) {
	clearCyclingEnv(t)
	t.Setenv("LOCKCYCLE_CYCLE_MODE", "forever")

	var buf bytes.Buffer
	cfg := &Config{}
	cfg.AttachLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	got := cfg.Cycling()

	if got.Mode != core.ModeDuration {
		t.Errorf("Mode = %s, want duration fallback", got.Mode)
	}
	if !strings.Contains(buf.String(), "unknown cycle mode") {
		t.Errorf("unknown mode should be logged, got %q", buf.String())
	}
}

func TestCyclingReadsFreshValuesEachCall(t *testing.T) {
	clearCyclingEnv(t)
	cfg := &Config{}
	cfg.AttachLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	t.Setenv("LOCKCYCLE_STOP_AFTER_CYCLES", "3")
	if got := cfg.Cycling().StopAfterCycles; got != 3 {
		t.Fatalf("StopAfterCycles = %d, want 3", got)
	}

	t.Setenv("LOCKCYCLE_STOP_AFTER_CYCLES", "9")
	if got := cfg.Cycling().StopAfterCycles; got != 9 {
		t.Errorf("StopAfterCycles after env change = %d, want 9 (snapshot must be fresh)", got)
	}
}
