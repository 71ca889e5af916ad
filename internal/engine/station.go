package engine

import (
	"github.com/genricoloni/onair/internal/domain"
	"github.com/genricoloni/onair/internal/format"
	"github.com/genricoloni/onair/internal/progress"
)

// station is the mutable state of one subscribed station. It is only
// touched by the engine goroutine.
type station struct {
	key   string
	class string
	sub   domain.Subscription

	np       *domain.NowPlaying
	lastShID int64
	hasShID  bool

	// announcedShID is the last song handed to the announcer. It survives
	// the identity resets of forced offline and restore.
	announcedShID int64
	hasAnnounced  bool

	cursor progress.Cursor
	// gen identifies the current ticker; ticks from older ones are dropped
	gen  uint64
	stop chan struct{}
}

func newStation(sub domain.Subscription) *station {
	return &station{
		key:   sub.Key,
		class: format.KebabCase(sub.Shortcode()),
		sub:   sub,
	}
}

// field returns the page target of one of the station's fields
func (s *station) field(name string) string {
	return "np-" + s.class + "-" + name
}

// announce records shID and reports whether it differs from the last
// announced song
func (s *station) announce(shID int64) bool {
	if s.hasAnnounced && s.announcedShID == shID {
		return false
	}
	s.announcedShID = shID
	s.hasAnnounced = true
	return true
}

func (s *station) ticking() bool {
	return s.stop != nil
}

// status copies the station for publication
func (s *station) status() domain.StationStatus {
	st := domain.StationStatus{
		Key:            s.key,
		Class:          s.class,
		Elapsed:        s.cursor.Elapsed,
		Duration:       s.cursor.Duration,
		ProgressActive: s.ticking(),
	}
	if s.np != nil {
		np := *s.np
		st.NowPlaying = &np
	}
	return st
}
