package domain

import (
	"context"
	"time"
)

// Monitor defines the interface for the now-playing event stream
// Implementations own the transport connection
type Monitor interface {
	// Start connects and keeps the stream alive
	// It should block until context is cancelled or Stop is called
	Start(ctx context.Context) error

	// Stop gracefully stops the monitor
	Stop(ctx context.Context) error

	// Events returns a read-only channel that emits decoded rows in delivery order
	Events() <-chan Update

	// Failures returns a read-only channel that emits transport failures
	Failures() <-chan error
}

// Processor defines the interface for album art processing
type Processor interface {
	// Generate writes a thumbnail for the given station class
	// Returns the file path of the generated image or an error
	Generate(imgData []byte, name string) (string, error)
}

// Fetcher defines the interface for retrieving album artwork
type Fetcher interface {
	// Fetch downloads image data from a URL
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Notifier shows a song change to the user
type Notifier interface {
	Notify(ctx context.Context, key, summary, body, icon string) error
}

// SnapshotStore persists the last snapshot per station and the play history
type SnapshotStore interface {
	SaveSnapshot(key string, np NowPlaying) error
	LoadSnapshots() (map[string]NowPlaying, error)
	AppendHistory(entry HistoryEntry) error
	History(key string, limit int) ([]HistoryEntry, error)
	Close() error
}

// Announcer receives song changes for side effects outside the page
type Announcer interface {
	// Announce must not block the caller
	Announce(a Announcement)
}

// Clock defines an interface for getting the current time.
// This allows us to inject a fake time during unit tests.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the system time
type RealClock struct{}

// Now returns the current time
func (RealClock) Now() time.Time {
	return time.Now()
}

// Config defines the interface for application configuration
type Config interface {
	GetBaseURI() string
	GetSubscriptions() []Subscription
	GetAutoplay() bool
	GetVideoPlayerURL() string
	GetOutputDir() string
	GetTickInterval() time.Duration
	GetReconnectDelay() time.Duration
	GetLocalLocation() *time.Location
}
