package core

import (
	"context"
	"errors"
	"testing"
)

func TestParseDeviceListingMockFixture(t *testing.T) {
	devices := ParseDeviceListing(MockDeviceListing)
	if len(devices) != 2 {
		t.Fatalf("parsed %d devices, want 2: %+v", len(devices), devices)
	}

	var keyboards, pointers []int
	for _, d := range devices {
		switch d.Class {
		case DeviceKeyboard:
			keyboards = append(keyboards, d.ID)
		case DevicePointer:
			pointers = append(pointers, d.ID)
		}
	}
	if len(pointers) != 1 || pointers[0] != 9 {
		t.Errorf("pointer ids = %v, want [9]", pointers)
	}
	if len(keyboards) != 1 || keyboards[0] != 10 {
		t.Errorf("keyboard ids = %v, want [10]", keyboards)
	}
}

func TestParseDeviceListingIgnoresVirtualAndMasters(t *testing.T) {
	// Master rows and XTEST slaves carry neither the wired-keyboard nor the
	// mouse marker and must not be classified.
	raw := "⎡ Virtual core pointer          id=2 [master pointer  (3)]\n" +
		"⎜   ↳ Virtual core XTEST pointer id=4 [slave  pointer  (2)]\n" +
		"    ↳ Virtual core XTEST keyboard id=5 [slave  keyboard (3)]\n"
	if devices := ParseDeviceListing(raw); len(devices) != 0 {
		t.Errorf("classified %d devices from virtual rows, want 0: %+v", len(devices), devices)
	}
}

func TestParseDeviceListingCaseInsensitive(t *testing.T) {
	raw := "↳ USB OPTICAL MOUSE id=12 [SLAVE  POINTER (2)]\n"
	devices := ParseDeviceListing(raw)
	if len(devices) != 1 || devices[0].Class != DevicePointer || devices[0].ID != 12 {
		t.Errorf("devices = %+v, want one pointer with id 12", devices)
	}
}

func TestParseDeviceListingSkipsLinesWithoutID(t *testing.T) {
	raw := "↳ Wired Keyboard [slave  keyboard (3)]\n"
	if devices := ParseDeviceListing(raw); len(devices) != 0 {
		t.Errorf("devices = %+v, want none for a line without an id", devices)
	}
}

func TestEnumeratorListFailureDegradesToEmpty(t *testing.T) {
	runner := newFakeRunner()
	runner.failOn["xinput list"] = errors.New("no display")
	enum := NewEnumerator(runner, testLogger())

	if devices := enum.List(context.Background()); devices != nil {
		t.Errorf("List after query failure = %+v, want nil", devices)
	}
}

func TestEnumeratorToggleContinuesPastFailure(t *testing.T) {
	runner := newFakeRunner()
	runner.failOn["xinput disable 9"] = errors.New("device busy")
	enum := NewEnumerator(runner, testLogger())

	devices := []Device{
		{ID: 9, Class: DevicePointer},
		{ID: 10, Class: DeviceKeyboard},
	}
	enum.Disable(context.Background(), devices)

	if got := runner.count("xinput disable"); got != 2 {
		t.Errorf("disable attempted %d times, want 2 (continue past failure)", got)
	}

	enum.Enable(context.Background(), devices)
	if got := runner.count("xinput enable"); got != 2 {
		t.Errorf("enable attempted %d times, want 2", got)
	}
}
