package core

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// External programs driven by the cycler. All of them are invoked with
// argument vectors, never through a shell.
const (
	binLock     = "dm-tool"
	binDisplay  = "xset"
	binInject   = "xdotool"
	binDevices  = "xinput"
	binSessions = "loginctl"
)

// Runner executes external programs. Run waits for exit status, Output waits
// and captures standard output, Detach starts the program and never waits.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
	Output(ctx context.Context, name string, args ...string) (string, error)
	Detach(name string, args ...string)
}

// ExecRunner invokes real processes.
type ExecRunner struct {
	logger *slog.Logger
}

func NewExecRunner(logger *slog.Logger) *ExecRunner {
	return &ExecRunner{logger: logger}
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) // #nosec G204
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (r *ExecRunner) Output(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output() // #nosec G204
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return string(out), nil
}

// Detach starts the program without waiting for it. Failures are captured
// into the debug log; they must never gate or fail the calling sequence.
func (r *ExecRunner) Detach(name string, args ...string) {
	cmd := exec.Command(name, args...) // #nosec G204
	if err := cmd.Start(); err != nil {
		r.logger.Debug("detached command failed to start", "cmd", name, "err", err)
		return
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			r.logger.Debug("detached command exited with error", "cmd", name, "err", err)
		}
	}()
}

// Deterministic outputs returned by the dry runner for queries whose real
// counterpart has observable output.
const (
	// MockDeviceListing contains exactly one mock mouse (id 9) and one mock
	// wired keyboard (id 10).
	MockDeviceListing = "⎡ Virtual core pointer                          id=2    [master pointer  (3)]\n" +
		"⎜   ↳ Virtual core XTEST pointer                id=4    [slave  pointer  (2)]\n" +
		"⎜   ↳ USB Optical Mouse                         id=9    [slave  pointer  (2)]\n" +
		"⎣ Virtual core keyboard                         id=3    [master keyboard (2)]\n" +
		"    ↳ Virtual core XTEST keyboard               id=5    [slave  keyboard (3)]\n" +
		"    ↳ Wired Keyboard                            id=10   [slave  keyboard (3)]\n"

	// MockSessionListing is a fixed one-line session record.
	MockSessionListing = "c2 1000 operator seat0 tty2\n"
)

// DryRunner replaces every invocation with a single structured log line and,
// where the real program has observable output, a deterministic mock. It
// never alters control flow: every call succeeds.
type DryRunner struct {
	logger *slog.Logger
}

func NewDryRunner(logger *slog.Logger) *DryRunner {
	return &DryRunner{logger: logger}
}

func (r *DryRunner) Run(ctx context.Context, name string, args ...string) error {
	r.announce(name, args)
	return nil
}

func (r *DryRunner) Output(ctx context.Context, name string, args ...string) (string, error) {
	r.announce(name, args)
	switch {
	case name == binDevices && len(args) > 0 && args[0] == "list":
		return MockDeviceListing, nil
	case name == binSessions && len(args) > 0 && args[0] == "list-sessions":
		return MockSessionListing, nil
	}
	return "", nil
}

func (r *DryRunner) Detach(name string, args ...string) {
	r.announce(name, args)
}

func (r *DryRunner) announce(name string, args []string) {
	line := "Would execute: " + name
	if len(args) > 0 {
		line += " " + strings.Join(args, " ")
	}
	r.logger.Info(line)
}
