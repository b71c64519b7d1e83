package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// SecretName is the single stored credential the cycler replays.
const SecretName = "unlock"

// defaultUnlockedHold is the fixed input-enabled hold between unlock and the
// next cycle in duration mode. Count mode uses the configured weak time.
const defaultUnlockedHold = 500 * time.Millisecond

var (
	ErrMissingBinaries = errors.New("required programs are missing")
	ErrNoSecret        = errors.New("no unlock secret stored")
)

// EngineStatus is a point-in-time snapshot of the engine for the control
// surfaces.
type EngineStatus struct {
	Active    bool      `json:"active"`
	SessionID string    `json:"session_id,omitempty"`
	Mode      Mode      `json:"mode,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	Cycles    int       `json:"cycles"`
}

// Engine owns the cycling run: it validates preconditions, drives the
// lock/unlock loop and exposes the lifecycle operations. At most one run is
// active at a time; the loop is a single goroutine and cancellation is a
// context canceled by Stop, observed at cycle entry and at the two timed
// waits. An in-flight action sequence always completes once started.
type Engine struct {
	secrets  SecretStore
	recorder Recorder
	notifier Notifier
	cfg      ConfigSource
	logger   *slog.Logger
	gate     *Gate

	// newRunner builds the per-cycle runner; dry-run swaps in the logging
	// runner without altering any control-flow decision.
	newRunner func(dryRun bool) Runner

	mu      sync.Mutex
	session *Session
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewEngine(secrets SecretStore, recorder Recorder, notifier Notifier, cfg ConfigSource, logger *slog.Logger) *Engine {
	e := &Engine{
		secrets:  secrets,
		recorder: recorder,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		gate:     NewGate(),
	}
	e.newRunner = func(dryRun bool) Runner {
		if dryRun {
			return NewDryRunner(logger)
		}
		return NewExecRunner(logger)
	}
	return e
}

// Start validates preconditions, records the session, performs one initial
// lock and launches the cycle loop. Calling Start while a run is active is a
// no-op. On any precondition failure no session is created.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		return nil
	}

	cfg := e.cfg.Cycling()
	if missing := e.gate.Missing(cfg.Mode, cfg.DryRun); len(missing) > 0 {
		e.notify(ctx, "Cannot start cycling", "missing required programs: "+strings.Join(missing, ", "))
		return fmt.Errorf("%w: %s", ErrMissingBinaries, strings.Join(missing, ", "))
	}
	secret := e.resolveSecret(ctx)
	if secret == "" {
		e.notify(ctx, "Cannot start cycling", "no unlock secret stored; set one and start again")
		return ErrNoSecret
	}
	if cfg.Mode == ModeDuration {
		if err := ValidateInterval(cfg.LockIntervalMin, cfg.LockIntervalMax); err != nil {
			e.notify(ctx, "Cannot start cycling", err.Error())
			return err
		}
	}

	sess := &Session{
		ID:        NewID(),
		Mode:      cfg.Mode,
		StartedAt: time.Now().UTC(),
		Status:    SessionStatusActive,
	}
	if err := e.recorder.InsertSession(ctx, sess); err != nil {
		return fmt.Errorf("record session: %w", err)
	}

	runner := e.newRunner(cfg.DryRun)
	if err := NewSequencer(runner, e.logger).Lock(ctx); err != nil {
		e.recordSessionEnd(sess, SessionStatusFailed)
		return fmt.Errorf("initial lock: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.session = sess
	e.cancel = cancel
	e.done = done
	e.logger.Info("cycling started", "session_id", sess.ID, "mode", cfg.Mode, "dry_run", cfg.DryRun)
	e.notify(ctx, "Cycling started", fmt.Sprintf("session %s, mode %s", sess.ID, cfg.Mode))
	go e.run(runCtx, sess, done)
	return nil
}

// Stop cancels the active run. It takes effect at the loop's next checkpoint
// and does not block waiting for an in-flight action sequence to finish.
// Idempotent and safe to call concurrently.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	e.logger.Info("cycling stop requested")
	e.notify(context.Background(), "Cycling stopped", "stop requested; run ends at the next checkpoint")
}

// Dispose stops any active run; used for process-wide teardown.
func (e *Engine) Dispose() {
	e.Stop()
}

// SetSecret stores the unlock credential. Independent of run state.
func (e *Engine) SetSecret(ctx context.Context, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return errors.New("secret must not be empty")
	}
	return e.secrets.SetSecret(ctx, SecretName, value)
}

// ClearSecret removes the unlock credential. Independent of run state.
func (e *Engine) ClearSecret(ctx context.Context) error {
	return e.secrets.DeleteSecret(ctx, SecretName)
}

// Status reports whether a run is active and how far it has progressed.
func (e *Engine) Status() EngineStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return EngineStatus{}
	}
	return EngineStatus{
		Active:    true,
		SessionID: e.session.ID,
		Mode:      e.session.Mode,
		StartedAt: e.session.StartedAt,
		Cycles:    e.session.Cycles,
	}
}

// run is the cycle loop. Exactly one run goroutine exists per session; each
// iteration re-reads configuration and the secret, performs the lock/unlock
// sequence and yields only at the two timed waits.
func (e *Engine) run(ctx context.Context, sess *Session, done chan struct{}) {
	defer close(done)

	// Remaining cycles in count mode; negative means unbounded.
	remaining := -1

	for seqNo := 1; ; seqNo++ {
		if ctx.Err() != nil {
			e.finish(sess, SessionStatusStopped)
			return
		}

		// A missing secret ends the run without side effects. This is the
		// abort path, not an error.
		secret := e.resolveSecret(ctx)
		if secret == "" {
			e.logger.Info("unlock secret no longer available, ending run", "session_id", sess.ID)
			e.finish(sess, SessionStatusStopped)
			return
		}

		cfg := e.cfg.Cycling()
		if cfg.Mode == ModeDuration {
			if err := ValidateInterval(cfg.LockIntervalMin, cfg.LockIntervalMax); err != nil {
				e.notify(ctx, "Cycling aborted", err.Error())
				e.finish(sess, SessionStatusFailed)
				return
			}
		}

		runner := e.newRunner(cfg.DryRun)
		seq := NewSequencer(runner, e.logger)
		enum := NewEnumerator(runner, e.logger)

		// Cancellation is observed at cycle entry and at the timed waits
		// only; an action sequence always completes once started.
		effCtx := context.WithoutCancel(ctx)

		switch cfg.Mode {
		case ModeDuration:
			if time.Since(sess.StartedAt) >= cfg.Duration {
				if err := seq.TerminateSession(effCtx); err != nil {
					e.logger.Error("session termination failed", "session_id", sess.ID, "err", err)
					e.notify(ctx, "Cycling failed", "duration elapsed but session termination failed: "+err.Error())
					e.finish(sess, SessionStatusFailed)
					return
				}
				e.notify(ctx, "Cycling completed", fmt.Sprintf("duration %s elapsed, session terminated", cfg.Duration))
				e.finish(sess, SessionStatusCompleted)
				return
			}
		case ModeCount:
			if remaining < 0 && cfg.StopAfterCycles > 0 {
				remaining = cfg.StopAfterCycles
			}
			if remaining == 0 {
				if err := seq.Lock(effCtx); err != nil {
					e.notify(ctx, "Cycling failed", "final lock failed: "+err.Error())
					e.finish(sess, SessionStatusFailed)
					return
				}
				e.notify(ctx, "Cycling completed", fmt.Sprintf("%d cycles finished, session left locked", cfg.StopAfterCycles))
				e.finish(sess, SessionStatusCompleted)
				return
			}
		}

		hold := cfg.NapTime
		unlockedHold := cfg.WeakTime
		if cfg.Mode == ModeDuration {
			hold = DrawInterval(cfg.LockIntervalMin, cfg.LockIntervalMax)
			unlockedHold = defaultUnlockedHold
		}

		cyc := &Cycle{
			ID:        NewID(),
			SessionID: sess.ID,
			Seq:       seqNo,
			LockHold:  hold,
			StartedAt: time.Now().UTC(),
			Status:    CycleStatusRunning,
		}
		if err := e.recorder.InsertCycle(effCtx, cyc); err != nil {
			e.logger.Warn("record cycle", "session_id", sess.ID, "err", err)
		}

		devices := enum.List(effCtx)

		if err := seq.Lock(effCtx); err != nil {
			e.failRun(effCtx, sess, cyc, "lock sequence failed", err)
			return
		}
		if !sleep(ctx, hold) {
			e.endCycle(cyc, CycleStatusCanceled, nil)
			e.finish(sess, SessionStatusStopped)
			return
		}
		enum.Disable(effCtx, devices)
		if err := seq.Unlock(effCtx, secret); err != nil {
			e.failRun(effCtx, sess, cyc, "unlock sequence failed", err)
			return
		}
		if !sleep(ctx, unlockedHold) {
			e.endCycle(cyc, CycleStatusCanceled, nil)
			e.finish(sess, SessionStatusStopped)
			return
		}
		enum.Enable(effCtx, devices)

		e.endCycle(cyc, CycleStatusCompleted, nil)
		e.mu.Lock()
		sess.Cycles++
		e.mu.Unlock()
		if remaining > 0 {
			remaining--
		}
	}
}

// failRun records a failed lock/unlock sequence, surfaces it and ends the
// run with the active state reset.
func (e *Engine) failRun(ctx context.Context, sess *Session, cyc *Cycle, reason string, err error) {
	e.logger.Error(reason, "session_id", sess.ID, "cycle", cyc.Seq, "err", err)
	e.endCycle(cyc, CycleStatusFailed, err)
	e.notify(ctx, "Cycling failed", reason+": "+err.Error())
	e.finish(sess, SessionStatusFailed)
}

func (e *Engine) endCycle(cyc *Cycle, status CycleStatus, cause error) {
	var errMsg *string
	if cause != nil {
		msg := cause.Error()
		errMsg = &msg
	}
	if err := e.recorder.MarkCycleEnded(context.Background(), cyc.ID, status, time.Now().UTC(), errMsg); err != nil {
		e.logger.Warn("record cycle end", "cycle_id", cyc.ID, "err", err)
	}
}

func (e *Engine) finish(sess *Session, status SessionStatus) {
	e.recordSessionEnd(sess, status)
	e.mu.Lock()
	if e.session == sess {
		e.session = nil
		e.cancel = nil
		e.done = nil
	}
	e.mu.Unlock()
	e.logger.Info("cycling run ended", "session_id", sess.ID, "status", status, "cycles", sess.Cycles)
}

func (e *Engine) recordSessionEnd(sess *Session, status SessionStatus) {
	if err := e.recorder.MarkSessionEnded(context.Background(), sess.ID, status, time.Now().UTC(), sess.Cycles); err != nil {
		e.logger.Warn("record session end", "session_id", sess.ID, "err", err)
	}
}

func (e *Engine) resolveSecret(ctx context.Context) string {
	value, err := e.secrets.GetSecret(ctx, SecretName)
	if err != nil {
		e.logger.Debug("secret lookup failed", "err", err)
		return ""
	}
	return strings.TrimSpace(value)
}

func (e *Engine) notify(ctx context.Context, title, body string) {
	if err := e.notifier.Send(ctx, title, body); err != nil {
		e.logger.Warn("notification failed", "title", title, "err", err)
	}
}

// sleep waits for d unless ctx is canceled first. The timer is stopped before
// return, so no pending timer ever outlives the wait.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
