package notify

import (
	"context"

	"lockcycled/internal/core"
)

// DesktopNotifier shows notifications on the user's desktop via notify-send.
// The runner is resolved on every Send, mirroring how the engine re-reads the
// cycling settings each cycle: toggling dry-run at runtime switches the
// notifier with it, and dry-run renders a "Would execute" line instead of
// spawning a process.
type DesktopNotifier struct {
	newRunner func() core.Runner
}

func NewDesktopNotifier(newRunner func() core.Runner) *DesktopNotifier {
	return &DesktopNotifier{newRunner: newRunner}
}

func (d *DesktopNotifier) Send(ctx context.Context, title, body string) error {
	return d.newRunner().Run(ctx, "notify-send", "--app-name=lockcycled", title, body)
}
