package sampler

import (
	"context"
	"errors"
	"fmt"

	"cdr.dev/slog/v3"
	"github.com/godbus/dbus/v5"
)

type screenSaver struct {
	iface string
	path  dbus.ObjectPath
}

var screenSavers = []screenSaver{
	{iface: "org.gnome.ScreenSaver", path: "/org/gnome/ScreenSaver"},
	{iface: "org.freedesktop.ScreenSaver", path: "/org/freedesktop/ScreenSaver"},
}

// DBusLockWatcher follows the session bus screensaver ActiveChanged
// signals.
type DBusLockWatcher struct {
	Logger slog.Logger
}

// Watch connects to the session bus and feeds lock transitions into signal
// until ctx is done.
func (w DBusLockWatcher) Watch(ctx context.Context, signal *LockSignal) error {
	conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("connect session bus: %w", err)
	}
	defer conn.Close()

	for _, ss := range screenSavers {
		if err := conn.AddMatchSignal(
			dbus.WithMatchInterface(ss.iface),
			dbus.WithMatchMember("ActiveChanged"),
		); err != nil {
			return fmt.Errorf("subscribe %s: %w", ss.iface, err)
		}
	}

	ch := make(chan *dbus.Signal, 16)
	conn.Signal(ch)
	defer conn.RemoveSignal(ch)

	// Seed the current state from whichever screensaver answers.
	for _, ss := range screenSavers {
		var active bool
		call := conn.Object(ss.iface, ss.path).CallWithContext(ctx, ss.iface+".GetActive", 0)
		if call.Err == nil && call.Store(&active) == nil {
			signal.Set(active)
			break
		}
	}

	w.Logger.Info(ctx, "watching screen lock on session bus")
	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-ch:
			if !ok {
				return errors.New("session bus closed")
			}
			if active, ok := activeChanged(sig); ok {
				w.Logger.Debug(ctx, "screen lock changed", slog.F("locked", active), slog.F("signal", sig.Name))
				signal.Set(active)
			}
		}
	}
}

// activeChanged extracts the state from an ActiveChanged signal.
func activeChanged(sig *dbus.Signal) (bool, bool) {
	if sig == nil || len(sig.Body) == 0 {
		return false, false
	}
	for _, ss := range screenSavers {
		if sig.Name != ss.iface+".ActiveChanged" {
			continue
		}
		active, ok := sig.Body[0].(bool)
		return active, ok
	}
	return false, false
}
