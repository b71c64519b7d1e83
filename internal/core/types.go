package core

import (
	"context"
	"time"
)

// Mode selects how a cycling run is bounded.
type Mode string

const (
	// ModeDuration bounds the run by elapsed wall-clock time with randomized
	// lock-hold intervals and terminates the desktop session on expiry.
	ModeDuration Mode = "duration"
	// ModeCount bounds the run by a fixed number of cycles and finishes with
	// a final lock that is never unlocked.
	ModeCount Mode = "count"
)

// CyclingConfig is one iteration's view of the cycling settings. The engine
// requests a fresh snapshot from its ConfigSource at the top of every cycle;
// it is never cached across iterations.
type CyclingConfig struct {
	DryRun bool
	Mode   Mode

	// Duration mode.
	Duration        time.Duration
	LockIntervalMin time.Duration
	LockIntervalMax time.Duration

	// Count mode.
	NapTime         time.Duration
	WeakTime        time.Duration
	StopAfterCycles int
}

// SessionStatus describes how a cycling run ended (or that it has not).
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusStopped   SessionStatus = "stopped"
	SessionStatusFailed    SessionStatus = "failed"
)

// Session is the run-scope record created by a successful Start.
type Session struct {
	ID        string
	Mode      Mode
	StartedAt time.Time
	EndedAt   *time.Time
	Status    SessionStatus
	Cycles    int
}

// CycleStatus describes the terminal state of a single cycle.
type CycleStatus string

const (
	CycleStatusRunning   CycleStatus = "running"
	CycleStatusCompleted CycleStatus = "completed"
	CycleStatusCanceled  CycleStatus = "canceled"
	CycleStatusFailed    CycleStatus = "failed"
)

// Cycle captures one full lock/unlock pass of a run.
type Cycle struct {
	ID        string
	SessionID string
	Seq       int
	LockHold  time.Duration
	StartedAt time.Time
	EndedAt   *time.Time
	Status    CycleStatus
	Error     *string
}

// DeviceClass distinguishes the two input device kinds the cycler toggles.
type DeviceClass string

const (
	DeviceKeyboard DeviceClass = "keyboard"
	DevicePointer  DeviceClass = "pointer"
)

// Device is a transient enumeration result; the list is re-queried every
// cycle so hot-plug changes are honored.
type Device struct {
	ID    int
	Class DeviceClass
}

// SecretStore holds the single named unlock credential as an opaque string.
type SecretStore interface {
	GetSecret(ctx context.Context, name string) (string, error)
	SetSecret(ctx context.Context, name, value string) error
	DeleteSecret(ctx context.Context, name string) error
}

// Recorder persists sessions and cycles as they progress.
type Recorder interface {
	InsertSession(ctx context.Context, session *Session) error
	MarkSessionEnded(ctx context.Context, id string, status SessionStatus, endedAt time.Time, cycles int) error
	InsertCycle(ctx context.Context, cycle *Cycle) error
	MarkCycleEnded(ctx context.Context, id string, status CycleStatus, endedAt time.Time, errMsg *string) error
}

// Notifier surfaces user-visible messages for start/stop/completion and
// precondition or runtime-validation failures.
type Notifier interface {
	Send(ctx context.Context, title, body string) error
}

// ConfigSource exposes the cycling settings. Implementations must return a
// fresh snapshot on every call.
type ConfigSource interface {
	Cycling() CyclingConfig
}
