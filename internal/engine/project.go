package engine

import (
	"strconv"

	"github.com/genricoloni/onair/internal/domain"
	"github.com/genricoloni/onair/internal/format"
	"github.com/genricoloni/onair/internal/i18n"
	"github.com/genricoloni/onair/internal/page"
	"go.uber.org/zap"
)

const (
	playerWindow  = "playerWindow"
	labelClass    = "label"
	labelError    = "label-error"
	labelSuccess  = "label-success"
	displayInline = "display: inline;"
	displayNone   = "display: none;"
)

func styleAttr(v string) map[string]string {
	return map[string]string{"style": v}
}

// updatePage refreshes the always-current fields of a station and, when the
// song identity changed, everything else. fresh marks server data, as
// opposed to a forced offline or a restored cache.
func (e *Engine) updatePage(st *station, fresh bool) {
	np := st.np
	if np == nil {
		return
	}
	now := e.clock.Now()
	local := e.cfg.GetLocalLocation()
	set := e.projector.Set

	clock := format.StationTime(now, np.Station.Timezone, st.sub.Timezone, local)
	set(st.field("station-time"), page.Text(clock.Time))
	set(st.field("station-timezone"), page.Text(clock.Timezone))
	set(st.field("station-timediff-hhmm"), page.Text(clock.OffsetHHMM))
	set(st.field("station-timediff-minutes"), page.Text(strconv.Itoa(clock.OffsetMinutes)))

	localNow := now.In(local)
	set("np-local-time", page.Text(format.ClockTime(now.Unix(), local)))
	set("np-local-timezone-short", page.Text(format.TimezoneName(localNow, format.Short)))
	set("np-local-timezone-long", page.Text(format.TimezoneName(localNow, format.Long)))

	duration := "/ " + format.MinSec(np.NowPlaying.Duration)
	set(st.field("song-duration"), page.Text(duration))

	e.startProgress(st, np.NowPlaying.Elapsed, np.NowPlaying.Duration)
	if !np.IsOnline {
		e.stopProgress(st)
	}

	set(st.field("station-listeners-total"), page.Text(strconv.Itoa(np.Listeners.Total)))
	set(st.field("station-listeners-unique"), page.Text(strconv.Itoa(np.Listeners.Unique)))
	set(st.field("station-listeners-current"), page.Text(strconv.Itoa(np.Listeners.Current)))

	e.metrics.Listeners.WithLabelValues(st.key, "total").Set(float64(np.Listeners.Total))
	e.metrics.Listeners.WithLabelValues(st.key, "unique").Set(float64(np.Listeners.Unique))
	e.metrics.Listeners.WithLabelValues(st.key, "current").Set(float64(np.Listeners.Current))
	if np.IsOnline {
		e.metrics.StationOnline.WithLabelValues(st.key).Set(1)
	} else {
		e.metrics.StationOnline.WithLabelValues(st.key).Set(0)
	}

	if st.hasShID && np.NowPlaying.ShID == st.lastShID {
		return
	}

	state := "offline"
	if np.IsOnline {
		state = "online"
	}
	e.logger.Info("Now Playing on "+st.class+" ("+state+"): "+np.NowPlaying.Song.Text,
		zap.String("station", st.key),
		zap.Int64("shID", np.NowPlaying.ShID))

	st.lastShID = np.NowPlaying.ShID
	st.hasShID = true
	e.projectSong(st, np, duration)

	if fresh && st.announce(np.NowPlaying.ShID) {
		e.metrics.SongChanges.WithLabelValues(st.key).Inc()
		if e.announcer != nil {
			e.announcer.Announce(domain.Announcement{
				Key:        st.key,
				Class:      st.class,
				NowPlaying: *np,
				At:         now,
			})
		}
	}
}

// projectSong sets the song, station, player, online, live and request fields
func (e *Engine) projectSong(st *station, np *domain.NowPlaying, duration string) {
	t := e.translator.T
	set := e.projector.Set
	song := np.NowPlaying.Song

	set(st.field("song-artist"), page.Text(song.Artist))
	set(st.field("song-title"), page.Text(song.Title))
	set(st.field("song-text"), page.Text(song.Text))
	set(st.field("song-album"), page.Text(song.Album))
	set(st.field("song-albumart"), page.Update{
		Attrs: map[string]string{"alt": t(i18n.AlbumArtAlt), "src": song.Art},
	}.WithText(""))

	set(st.field("station-name"), page.Update{
		Attrs: map[string]string{"title": np.Station.Description},
	}.WithText(np.Station.Name))
	set(st.field("station-description"), page.Text(np.Station.Description))
	set(st.field("station-url"), page.Text(np.Station.URL))
	set(st.field("station-player-url"), page.Text(np.Station.PublicPlayerURL))

	playerHref := np.Station.PublicPlayerURL
	if e.cfg.GetAutoplay() {
		playerHref += "?autoplay=true"
	}
	set(st.field("station-player"), page.Update{
		Attrs: map[string]string{"href": playerHref, "target": playerWindow, "title": t(i18n.ClickToListen)},
	})

	if video := e.cfg.GetVideoPlayerURL(); video != "" {
		set(st.field("video-player-url"), page.Text(video))
		set(st.field("video-player"), page.Update{
			Attrs: map[string]string{"href": video, "target": playerWindow, "title": t(i18n.ClickToView)},
		})
	} else {
		set(st.field("video-player-url"), page.Text(""))
		set(st.field("video-player"), page.Text(""))
	}

	if np.IsOnline {
		set(st.field("station-isonline"), page.Update{
			Attrs:         styleAttr(displayInline),
			AddClasses:    []string{labelSuccess},
			RemoveClasses: []string{labelError},
		}.WithText(t(i18n.Online)))
	} else {
		set(st.field("station-isonline"), page.Update{
			Attrs:         styleAttr(displayInline),
			AddClasses:    []string{labelError},
			RemoveClasses: []string{labelSuccess},
		}.WithText(t(i18n.Offline)))
		e.stopProgress(st)
	}

	switch {
	case np.Live.IsLive:
		set(st.field("song-duration"), page.Update{Attrs: styleAttr(displayNone)}.WithText(duration))
		set(st.field("show-islive"), page.Update{
			Attrs:      styleAttr(displayInline),
			AddClasses: []string{labelClass, labelError},
		}.WithText(t(i18n.Live)))
		set(st.field("show-name"), page.Update{
			RemoveClasses: []string{labelClass, labelError},
		}.WithText(t(i18n.LivePrefix)+np.Live.StreamerName))

	case np.IsOnline:
		set(st.field("show-islive"), page.Update{Attrs: styleAttr(displayNone)}.WithText(t(i18n.Live)))
		set(st.field("show-name"), page.Update{
			RemoveClasses: []string{labelClass, labelError},
		}.WithText(np.NowPlaying.Playlist))
		set(st.field("song-duration"), page.Update{Attrs: styleAttr(displayInline)}.WithText(duration))

	default:
		set(st.field("show-islive"), page.Update{Attrs: styleAttr(displayNone)}.WithText(t(i18n.Live)))
		set(st.field("show-name"), page.Update{
			AddClasses: []string{labelClass, labelError},
		}.WithText(t(i18n.Offline)))
		e.stopProgress(st)
	}

	requestStyle := displayNone
	if np.NowPlaying.IsRequest {
		requestStyle = displayInline
	}
	set(st.field("song-isrequest"), page.Update{Attrs: styleAttr(requestStyle)}.WithText(t(i18n.SongRequest)))
}

// updateProgress advances the cursor and projects it
func (e *Engine) updateProgress(st *station) {
	if st.cursor.Advance(e.clock.Now()) {
		e.stopProgress(st)
	}

	elapsed := format.MinSec(st.cursor.Elapsed)
	e.projector.Set(st.field("song-progress"), page.Update{
		Attrs: map[string]string{
			"value": format.Float(st.cursor.Elapsed),
			"max":   format.Float(st.cursor.Duration),
			"title": elapsed,
		},
	})
	e.projector.Set(st.field("song-progressbar"), page.Update{
		Style: map[string]string{"width": format.Float(st.cursor.Percent()) + "%"},
	})
	e.projector.Set(st.field("song-elapsed"), page.Text(elapsed))
}
