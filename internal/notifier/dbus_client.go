package notifier

import (
	"context"

	"github.com/godbus/dbus/v5"
)

const (
	notificationsName   = "org.freedesktop.Notifications"
	notificationsPath   = "/org/freedesktop/Notifications"
	notificationsNotify = "org.freedesktop.Notifications.Notify"
)

// DBusClient defines the interface for D-Bus operations.
// This abstraction allows us to mock D-Bus interactions in tests.
//
//go:generate mockgen -destination=mocks/dbus_client_mock.go -package=mocks github.com/genricoloni/onair/internal/notifier DBusClient
type DBusClient interface {
	// Close closes the D-Bus connection
	Close() error

	// Notify calls org.freedesktop.Notifications.Notify and returns the
	// notification id. A non-zero replacesID updates that notification.
	Notify(ctx context.Context, appName string, replacesID uint32, icon, summary, body string, timeout int32) (uint32, error)
}

// StdDBusClient is the real implementation using godbus
type StdDBusClient struct {
	conn *dbus.Conn
}

// NewStdDBusClient creates a real D-Bus client connected to the session bus
func NewStdDBusClient() (*StdDBusClient, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, err
	}
	return &StdDBusClient{conn: conn}, nil
}

// Close closes the D-Bus connection
func (c *StdDBusClient) Close() error {
	return c.conn.Close()
}

// Notify sends a notification without actions or hints
func (c *StdDBusClient) Notify(ctx context.Context, appName string, replacesID uint32, icon, summary, body string, timeout int32) (uint32, error) {
	obj := c.conn.Object(notificationsName, dbus.ObjectPath(notificationsPath))
	var id uint32
	err := obj.CallWithContext(ctx, notificationsNotify, 0,
		appName, replacesID, icon, summary, body,
		[]string{}, map[string]dbus.Variant{}, timeout,
	).Store(&id)
	return id, err
}
