package desktop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	mutterIdleDest   = "org.gnome.Mutter.IdleMonitor"
	mutterIdlePath   = "/org/gnome/Mutter/IdleMonitor/Core"
	mutterIdleMethod = "org.gnome.Mutter.IdleMonitor.GetIdletime"

	screenSaverDest   = "org.freedesktop.ScreenSaver"
	screenSaverPath   = "/org/freedesktop/ScreenSaver"
	screenSaverMethod = "org.freedesktop.ScreenSaver.GetSessionIdleTime"
)

// ScreenSaverIdle reports user idle time from the desktop session. It asks
// the GNOME idle monitor first (milliseconds) and falls back to the
// freedesktop ScreenSaver interface (seconds).
type ScreenSaverIdle struct {
	conn        *dbus.Conn
	mutter      caller
	screenSaver caller
}

// NewScreenSaverIdle connects to the session bus.
func NewScreenSaverIdle() (*ScreenSaverIdle, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connecting to session bus: %w", err)
	}
	return &ScreenSaverIdle{
		conn:        conn,
		mutter:      conn.Object(mutterIdleDest, mutterIdlePath),
		screenSaver: conn.Object(screenSaverDest, screenSaverPath),
	}, nil
}

// IdleTime returns how long the session has had no input.
func (s *ScreenSaverIdle) IdleTime(ctx context.Context) (time.Duration, error) {
	var errs []error

	if s.mutter != nil {
		var ms uint64
		err := s.mutter.CallWithContext(ctx, mutterIdleMethod, 0).Store(&ms)
		if err == nil {
			return time.Duration(ms) * time.Millisecond, nil
		}
		errs = append(errs, fmt.Errorf("mutter idle monitor: %w", err))
	}

	if s.screenSaver != nil {
		var sec uint32
		err := s.screenSaver.CallWithContext(ctx, screenSaverMethod, 0).Store(&sec)
		if err == nil {
			return time.Duration(sec) * time.Second, nil
		}
		errs = append(errs, fmt.Errorf("screensaver: %w", err))
	}

	if len(errs) == 0 {
		return 0, errors.New("no idle source available")
	}
	return 0, errors.Join(errs...)
}

// Close closes the bus connection.
func (s *ScreenSaverIdle) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
