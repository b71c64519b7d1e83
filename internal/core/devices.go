package core

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

const (
	markerSlaveKeyboard = "slave  keyboard"
	markerWiredKeyboard = "wired keyboard"
	markerSlavePointer  = "slave  pointer"
	markerMouse         = "mouse"
)

var deviceIDPattern = regexp.MustCompile(`id=(\d+)`)

// Enumerator lists and toggles input devices through the device-listing
// program.
type Enumerator struct {
	runner Runner
	logger *slog.Logger
}

func NewEnumerator(runner Runner, logger *slog.Logger) *Enumerator {
	return &Enumerator{runner: runner, logger: logger}
}

// List queries the current device listing and classifies it. A query failure
// degrades to empty lists: the cycle proceeds and simply toggles nothing.
func (e *Enumerator) List(ctx context.Context) []Device {
	out, err := e.runner.Output(ctx, binDevices, "list")
	if err != nil {
		e.logger.Error("device enumeration failed", "err", err)
		return nil
	}
	return ParseDeviceListing(out)
}

// ParseDeviceListing classifies each line of a raw device listing. A line is
// a keyboard when it carries both the slave-keyboard and wired-keyboard
// markers, and a pointer when it carries the slave-pointer marker and a
// case-insensitive mouse marker. Ids keep their order of appearance.
func ParseDeviceListing(raw string) []Device {
	var devices []Device
	for _, line := range strings.Split(raw, "\n") {
		lower := strings.ToLower(line)
		var class DeviceClass
		switch {
		case strings.Contains(lower, markerSlaveKeyboard) && strings.Contains(lower, markerWiredKeyboard):
			class = DeviceKeyboard
		case strings.Contains(lower, markerSlavePointer) && strings.Contains(lower, markerMouse):
			class = DevicePointer
		default:
			continue
		}
		match := deviceIDPattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		id, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		devices = append(devices, Device{ID: id, Class: class})
	}
	return devices
}

// Disable turns off input for every device, best-effort: one unresponsive
// device must not block the others or abort the cycle.
func (e *Enumerator) Disable(ctx context.Context, devices []Device) {
	e.toggle(ctx, devices, "disable")
}

// Enable restores input for every device, best-effort.
func (e *Enumerator) Enable(ctx context.Context, devices []Device) {
	e.toggle(ctx, devices, "enable")
}

func (e *Enumerator) toggle(ctx context.Context, devices []Device, action string) {
	for _, d := range devices {
		if err := e.runner.Run(ctx, binDevices, action, strconv.Itoa(d.ID)); err != nil {
			e.logger.Warn("device toggle failed", "action", action, "device", d.ID, "err", err)
		}
	}
}
