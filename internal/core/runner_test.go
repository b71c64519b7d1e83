package core

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestDryRunnerAnnouncesInsteadOfExecuting(t *testing.T) {
	var buf bytes.Buffer
	runner := NewDryRunner(slog.New(slog.NewTextHandler(&buf, nil)))

	if err := runner.Run(context.Background(), "dm-tool", "lock"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	runner.Detach("xset", "dpms", "force", "off")

	log := buf.String()
	if !strings.Contains(log, "Would execute: dm-tool lock") {
		t.Errorf("missing dry-run line for lock, got %q", log)
	}
	if !strings.Contains(log, "Would execute: xset dpms force off") {
		t.Errorf("missing dry-run line for detached display-off, got %q", log)
	}
}

func TestDryRunnerNoTrailingSpaceWithoutArgs(t *testing.T) {
	var buf bytes.Buffer
	runner := NewDryRunner(slog.New(slog.NewTextHandler(&buf, nil)))

	if err := runner.Run(context.Background(), "dm-tool"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.Contains(buf.String(), "Would execute: dm-tool ") {
		t.Errorf("announcement has trailing space, got %q", buf.String())
	}
}

func TestDryRunnerServesMockOutputs(t *testing.T) {
	runner := NewDryRunner(testLogger())

	out, err := runner.Output(context.Background(), "xinput", "list")
	if err != nil {
		t.Fatalf("Output(xinput list): %v", err)
	}
	if out != MockDeviceListing {
		t.Errorf("xinput list output = %q, want the mock device listing", out)
	}

	out, err = runner.Output(context.Background(), "loginctl", "list-sessions", "--no-legend")
	if err != nil {
		t.Fatalf("Output(loginctl list-sessions): %v", err)
	}
	if out != MockSessionListing {
		t.Errorf("loginctl output = %q, want the mock session listing", out)
	}

	out, err = runner.Output(context.Background(), "xset", "q")
	if err != nil {
		t.Fatalf("Output(xset q): %v", err)
	}
	if out != "" {
		t.Errorf("unmocked query returned %q, want empty", out)
	}
}
