package core

import (
	"errors"
	"reflect"
	"testing"
)

func TestRequiredBinariesPerMode(t *testing.T) {
	count := RequiredBinaries(ModeCount)
	want := []string{"dm-tool", "xset", "xdotool", "xinput"}
	if !reflect.DeepEqual(count, want) {
		t.Errorf("RequiredBinaries(count) = %v, want %v", count, want)
	}

	duration := RequiredBinaries(ModeDuration)
	if duration[len(duration)-1] != "loginctl" {
		t.Errorf("RequiredBinaries(duration) = %v, want loginctl appended", duration)
	}
}

func TestGateReportsMissing(t *testing.T) {
	gate := NewGate()
	gate.lookPath = func(name string) (string, error) {
		if name == "xdotool" || name == "loginctl" {
			return "", errors.New("not found")
		}
		return "/usr/bin/" + name, nil
	}

	missing := gate.Missing(ModeDuration, false)
	if !reflect.DeepEqual(missing, []string{"xdotool", "loginctl"}) {
		t.Errorf("Missing = %v, want [xdotool loginctl]", missing)
	}
}

func TestGateDryRunBypassesProbe(t *testing.T) {
	gate := NewGate()
	gate.lookPath = func(string) (string, error) {
		t.Fatal("lookPath probed in dry-run")
		return "", nil
	}
	if missing := gate.Missing(ModeDuration, true); missing != nil {
		t.Errorf("Missing in dry-run = %v, want nil", missing)
	}
}

func TestGateCachesFullSuccess(t *testing.T) {
	probes := 0
	gate := NewGate()
	gate.lookPath = func(name string) (string, error) {
		probes++
		return "/usr/bin/" + name, nil
	}

	if missing := gate.Missing(ModeCount, false); missing != nil {
		t.Fatalf("first probe missing = %v, want nil", missing)
	}
	first := probes
	if missing := gate.Missing(ModeCount, false); missing != nil {
		t.Fatalf("cached probe missing = %v, want nil", missing)
	}
	if probes != first {
		t.Errorf("lookPath ran again after a fully successful probe (%d -> %d)", first, probes)
	}
}

func TestGateCachesPerMode(t *testing.T) {
	gate := NewGate()
	gate.lookPath = func(name string) (string, error) {
		if name == "loginctl" {
			return "", errors.New("not found")
		}
		return "/usr/bin/" + name, nil
	}

	// Count mode never needs the session manager, so its probe succeeds.
	if missing := gate.Missing(ModeCount, false); missing != nil {
		t.Fatalf("count-mode missing = %v, want nil", missing)
	}
	// That success must not stand in for duration mode, which does.
	missing := gate.Missing(ModeDuration, false)
	if !reflect.DeepEqual(missing, []string{"loginctl"}) {
		t.Errorf("duration-mode missing = %v, want [loginctl]", missing)
	}
}

func TestGateDoesNotCachePartialFailure(t *testing.T) {
	available := false
	gate := NewGate()
	gate.lookPath = func(name string) (string, error) {
		if available {
			return "/usr/bin/" + name, nil
		}
		return "", errors.New("not found")
	}

	if missing := gate.Missing(ModeCount, false); len(missing) == 0 {
		t.Fatal("expected missing binaries on first probe")
	}
	available = true
	if missing := gate.Missing(ModeCount, false); missing != nil {
		t.Errorf("Missing after install = %v, want nil", missing)
	}
}
