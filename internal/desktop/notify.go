package desktop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"gss-go/internal/config"
	"gss-go/internal/gss"
)

const (
	notifyDest   = "org.freedesktop.Notifications"
	notifyPath   = "/org/freedesktop/Notifications"
	notifyMethod = "org.freedesktop.Notifications.Notify"

	notifyTimeout = 5 * time.Second
	expireMs      = int32(5000)
)

// DBusNotifier shows desktop notifications. Consecutive notifications
// replace each other so progress updates do not pile up.
type DBusNotifier struct {
	conn   *dbus.Conn
	obj    caller
	logger gss.Logger

	mu     sync.Mutex
	lastID uint32
}

var _ gss.Notifier = (*DBusNotifier)(nil)

// NewDBusNotifier connects to the session bus.
func NewDBusNotifier(logger gss.Logger) (*DBusNotifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connecting to session bus: %w", err)
	}
	return &DBusNotifier{
		conn:   conn,
		obj:    conn.Object(notifyDest, notifyPath),
		logger: gss.WithComponent(logger, "notifier"),
	}, nil
}

// Notify sends a notification. Failures are logged and otherwise ignored.
func (n *DBusNotifier) Notify(title, body string) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	n.mu.Lock()
	defer n.mu.Unlock()

	var id uint32
	err := n.obj.CallWithContext(ctx, notifyMethod, 0,
		"gss", n.lastID, "", title, body, []string{}, map[string]dbus.Variant{}, expireMs,
	).Store(&id)
	if err != nil {
		n.logger.Warn("notification failed", "title", title, "error", err)
		return
	}
	n.lastID = id
}

// Close closes the bus connection.
func (n *DBusNotifier) Close() error {
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}

// LogNotifier writes notifications to the log.
type LogNotifier struct {
	logger gss.Logger
}

var _ gss.Notifier = (*LogNotifier)(nil)

func NewLogNotifier(logger gss.Logger) *LogNotifier {
	return &LogNotifier{logger: gss.WithComponent(logger, "notifier")}
}

func (n *LogNotifier) Notify(title, body string) {
	n.logger.Info(title, "body", body)
}

// NewNotifierFromConfig creates a Notifier based on the notifications config type.
func NewNotifierFromConfig(cfg config.NotificationsConfig, logger gss.Logger) (gss.Notifier, error) {
	switch cfg.Type {
	case "log", "":
		return NewLogNotifier(logger), nil
	case "dbus":
		n, err := NewDBusNotifier(logger)
		if err != nil {
			return nil, err
		}
		return n, nil
	default:
		return nil, fmt.Errorf("unknown notifications type: %s", cfg.Type)
	}
}
