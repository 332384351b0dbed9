// Package notify sends desktop notifications over D-Bus using the
// org.freedesktop.Notifications interface. When the session bus is not
// reachable (headless systems, missing daemon) construction degrades to a
// no-op notifier so callers never need to branch.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"
)

// Urgency is the freedesktop notification urgency hint.
type Urgency byte

const (
	UrgencyLow      Urgency = 0
	UrgencyNormal   Urgency = 1
	UrgencyCritical Urgency = 2
)

// Notifier delivers desktop notifications.
type Notifier interface {
	// Notify shows a notification. Implementations must be safe for
	// concurrent use and must not block on user interaction.
	Notify(ctx context.Context, summary, body string, urgency Urgency) error

	// Close releases the bus connection.
	Close() error
}

const (
	busName    = "org.freedesktop.Notifications"
	objectPath = "/org/freedesktop/Notifications"
	method     = "org.freedesktop.Notifications.Notify"
	appName    = "voxscribe"
	appIcon    = "audio-input-microphone"
	timeoutMs  = 4000
)

// DBus is a Notifier over the session bus.
type DBus struct {
	conn *dbus.Conn
}

// New connects to the session bus. On failure it logs once and returns a
// [Nop] notifier instead of an error.
func New() Notifier {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		slog.Warn("session bus unavailable, desktop notifications disabled", "err", err)
		return Nop{}
	}
	return &DBus{conn: conn}
}

// Notify calls org.freedesktop.Notifications.Notify.
func (n *DBus) Notify(ctx context.Context, summary, body string, urgency Urgency) error {
	obj := n.conn.Object(busName, objectPath)
	call := obj.CallWithContext(ctx, method, 0,
		appName,            // app_name
		uint32(0),          // replaces_id
		appIcon,            // app_icon
		summary,            // summary
		body,               // body
		[]string{},         // actions
		map[string]dbus.Variant{"urgency": dbus.MakeVariant(byte(urgency))},
		int32(timeoutMs), // expire_timeout
	)
	if call.Err != nil {
		return fmt.Errorf("notify: %w", call.Err)
	}
	return nil
}

// Close closes the bus connection.
func (n *DBus) Close() error {
	return n.conn.Close()
}

var _ Notifier = (*DBus)(nil)

// Nop is a Notifier that discards everything. Used when notifications are
// disabled or the session bus is unreachable.
type Nop struct{}

// Notify does nothing.
func (Nop) Notify(context.Context, string, string, Urgency) error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }

var _ Notifier = Nop{}
