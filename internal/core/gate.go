package core

import (
	"os/exec"
	"sync"
)

// RequiredBinaries lists the external programs a run in the given mode
// depends on. The session-manager program is only needed when a duration-mode
// run has to terminate the session.
func RequiredBinaries(mode Mode) []string {
	names := []string{binLock, binDisplay, binInject, binDevices}
	if mode == ModeDuration {
		names = append(names, binSessions)
	}
	return names
}

// Gate probes for required external programs. A fully successful probe is
// cached per mode, since the two modes require different binary sets. Dry-run
// assumes presence unconditionally so the pipeline can be exercised on any
// host.
type Gate struct {
	lookPath func(string) (string, error)

	mu        sync.Mutex
	satisfied map[Mode]bool
}

func NewGate() *Gate {
	return &Gate{
		lookPath:  exec.LookPath,
		satisfied: map[Mode]bool{},
	}
}

// Missing returns the names of required programs that cannot be resolved on
// the host, or nil when all are present.
func (g *Gate) Missing(mode Mode, dryRun bool) []string {
	if dryRun {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.satisfied[mode] {
		return nil
	}
	var missing []string
	for _, name := range RequiredBinaries(mode) {
		if _, err := g.lookPath(name); err != nil {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		g.satisfied[mode] = true
	}
	return missing
}
