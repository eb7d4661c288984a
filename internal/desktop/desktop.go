// Package desktop talks to freedesktop session services over D-Bus: idle
// time for the idle watcher and notifications for upload progress.
package desktop

import (
	"context"

	"github.com/godbus/dbus/v5"
)

// caller is the part of dbus.BusObject used here.
type caller interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}
