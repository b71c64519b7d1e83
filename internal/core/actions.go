package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Sequencer performs the ordered external-effect sequence for each half of a
// cycle. The display power-off calls are detached on purpose: they are
// cosmetic, must not gate the timing of the rest of the sequence, and their
// failure never fails the cycle.
type Sequencer struct {
	runner Runner
	logger *slog.Logger
}

func NewSequencer(runner Runner, logger *slog.Logger) *Sequencer {
	return &Sequencer{runner: runner, logger: logger}
}

// Lock triggers the session lock and forces the display off.
func (s *Sequencer) Lock(ctx context.Context) error {
	if err := s.runner.Run(ctx, binLock, "lock"); err != nil {
		return fmt.Errorf("lock session: %w", err)
	}
	s.displayOff()
	return nil
}

// Unlock replays the credential against the lock screen. The lock command is
// re-triggered first so the input target is deterministic.
func (s *Sequencer) Unlock(ctx context.Context, secret string) error {
	if err := s.runner.Run(ctx, binLock, "lock"); err != nil {
		return fmt.Errorf("re-trigger lock: %w", err)
	}
	if err := s.runner.Run(ctx, binInject, "type", "--clearmodifiers", secret); err != nil {
		return fmt.Errorf("type credential: %w", err)
	}
	s.displayOff()
	if err := s.runner.Run(ctx, binInject, "key", "Return"); err != nil {
		return fmt.Errorf("confirm credential: %w", err)
	}
	s.displayOff()
	return nil
}

// TerminateSession looks up the active session list and terminates the first
// session named there. Used as the terminal action in duration mode.
func (s *Sequencer) TerminateSession(ctx context.Context) error {
	out, err := s.runner.Output(ctx, binSessions, "list-sessions", "--no-legend")
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	id := firstSessionID(out)
	if id == "" {
		return errors.New("no active session found")
	}
	if err := s.runner.Run(ctx, binSessions, "terminate-session", id); err != nil {
		return fmt.Errorf("terminate session %s: %w", id, err)
	}
	return nil
}

func (s *Sequencer) displayOff() {
	s.runner.Detach(binDisplay, "dpms", "force", "off")
}

// firstSessionID extracts the leading field of the first non-empty listing
// line.
func firstSessionID(listing string) string {
	for _, line := range strings.Split(listing, "\n") {
		fields := strings.Fields(line)
		if len(fields) > 0 {
			return fields[0]
		}
	}
	return ""
}
