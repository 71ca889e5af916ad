// Package notifier shows song changes as desktop notifications.
package notifier

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

const (
	appName       = "onair"
	expireTimeout = int32(8000) // ms
)

// DBusNotifier sends notifications over the session bus. Each station
// keeps a single notification that is replaced on every song change.
type DBusNotifier struct {
	logger *zap.Logger
	conn   DBusClient

	mu  sync.Mutex
	ids map[string]uint32
}

// NewDBusNotifier creates a notifier over an existing client
func NewDBusNotifier(logger *zap.Logger, conn DBusClient) *DBusNotifier {
	return &DBusNotifier{
		logger: logger,
		conn:   conn,
		ids:    make(map[string]uint32),
	}
}

// Notify shows or replaces the notification of a station
func (n *DBusNotifier) Notify(ctx context.Context, key, summary, body, icon string) error {
	n.mu.Lock()
	replaces := n.ids[key]
	n.mu.Unlock()

	id, err := n.conn.Notify(ctx, appName, replaces, icon, summary, body, expireTimeout)
	if err != nil {
		return fmt.Errorf("notification failed: %w", err)
	}

	n.mu.Lock()
	n.ids[key] = id
	n.mu.Unlock()

	n.logger.Debug("Notification sent", zap.String("station", key), zap.Uint32("id", id))
	return nil
}

// Close releases the bus connection
func (n *DBusNotifier) Close() error {
	return n.conn.Close()
}

// NopNotifier is used when notifications are disabled or no bus is available
type NopNotifier struct{}

// Notify does nothing
func (NopNotifier) Notify(context.Context, string, string, string, string) error {
	return nil
}
