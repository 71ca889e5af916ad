package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/genricoloni/onair/internal/domain"
	"github.com/genricoloni/onair/internal/i18n"
	"github.com/genricoloni/onair/internal/metrics"
	"github.com/genricoloni/onair/internal/page"
	"github.com/genricoloni/onair/internal/page/pagetest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

const testKey = "station:azuratest_radio"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type stubConfig struct {
	autoplay bool
	video    string
	tick     time.Duration
}

func (c stubConfig) GetBaseURI() string { return "https://demo.azuracast.com" }
func (c stubConfig) GetSubscriptions() []domain.Subscription {
	return []domain.Subscription{
		{Key: testKey},
		{Key: "station:nite.radio", Timezone: "Europe/Berlin"},
		{Key: domain.ClockChannel},
	}
}
func (c stubConfig) GetAutoplay() bool { return c.autoplay }
func (c stubConfig) GetVideoPlayerURL() string { return c.video }
func (c stubConfig) GetOutputDir() string { return "" }
func (c stubConfig) GetReconnectDelay() time.Duration { return time.Second }
func (c stubConfig) GetLocalLocation() *time.Location { return time.UTC }
func (c stubConfig) GetTickInterval() time.Duration {
	if c.tick == 0 {
		return time.Second
	}
	return c.tick
}

type recordingAnnouncer struct {
	mu   sync.Mutex
	seen []domain.Announcement
}

func (a *recordingAnnouncer) Announce(an domain.Announcement) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seen = append(a.seen, an)
}

func (a *recordingAnnouncer) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.seen)
}

type fakeStore struct {
	snapshots map[string]domain.NowPlaying
	err       error
}

func (s *fakeStore) SaveSnapshot(string, domain.NowPlaying) error { return nil }
func (s *fakeStore) LoadSnapshots() (map[string]domain.NowPlaying, error) {
	return s.snapshots, s.err
}
func (s *fakeStore) AppendHistory(domain.HistoryEntry) error { return nil }
func (s *fakeStore) History(string, int) ([]domain.HistoryEntry, error) { return nil, nil }
func (s *fakeStore) Close() error { return nil }

type fakeMonitor struct {
	events   chan domain.Update
	failures chan error
}

func newFakeMonitor() *fakeMonitor {
	return &fakeMonitor{events: make(chan domain.Update), failures: make(chan error)}
}

func (m *fakeMonitor) Start(context.Context) error { return nil }
func (m *fakeMonitor) Stop(context.Context) error { return nil }
func (m *fakeMonitor) Events() <-chan domain.Update { return m.events }
func (m *fakeMonitor) Failures() <-chan error { return m.failures }

// fields registers one element per station field on the page
var fields = []string{
	"station-time", "station-timezone", "station-timediff-hhmm", "station-timediff-minutes",
	"song-duration", "song-elapsed", "song-progress", "song-progressbar",
	"station-listeners-total", "station-listeners-unique", "station-listeners-current",
	"song-artist", "song-title", "song-text", "song-album", "song-albumart",
	"station-name", "station-description", "station-url", "station-player-url", "station-player",
	"video-player-url", "video-player", "station-isonline", "show-islive", "show-name", "song-isrequest",
}

type harness struct {
	engine    *Engine
	page      *pagetest.Page
	clock     *fakeClock
	announcer *recordingAnnouncer
	spawned   int
}

func newHarness(t *testing.T, cfg stubConfig, store domain.SnapshotStore) *harness {
	t.Helper()
	pg := pagetest.New("np-local-time", "np-local-timezone-short", "np-local-timezone-long")
	for _, f := range fields {
		pg.Add("np-azuratest-radio-" + f)
	}

	h := &harness{
		page:      pg,
		clock:     &fakeClock{now: time.Date(2024, 1, 29, 12, 0, 0, 0, time.UTC)},
		announcer: &recordingAnnouncer{},
	}
	h.engine = NewEngine(
		zap.NewNop(),
		cfg,
		newFakeMonitor(),
		page.NewProjector(zap.NewNop(), pg),
		i18n.Default(),
		h.clock,
		metrics.New(prometheus.NewRegistry()),
		store,
		h.announcer,
	)
	h.engine.spawnTicker = func(string, uint64, <-chan struct{}) { h.spawned++ }
	return h
}

func (h *harness) text(field string) string {
	return h.page.Get("np-azuratest-radio-" + field).Text
}

func (h *harness) el(field string) *pagetest.Element {
	return h.page.Get("np-azuratest-radio-" + field)
}

func (h *harness) station() *station {
	return h.engine.stations[testKey]
}

func snapshot(shID int64, online bool) domain.NowPlaying {
	return domain.NowPlaying{
		Station: domain.StationInfo{
			Name:            "AzuraTest Radio",
			Shortcode:       "azuratest_radio",
			Description:     "A test station",
			URL:             "https://example.com",
			PublicPlayerURL: "https://demo.azuracast.com/public/azuratest_radio",
			Timezone:        "America/Chicago",
		},
		Listeners: domain.Listeners{Total: 12, Unique: 9, Current: 12},
		NowPlaying: domain.CurrentSong{
			ShID:     shID,
			Duration: 215,
			Elapsed:  30,
			Playlist: "default",
			Song: domain.Song{
				Text:   "Artist - Title",
				Artist: "Artist",
				Title:  "Title",
				Album:  "Album",
				Art:    "https://example.com/art.jpg",
			},
		},
		IsOnline: online,
	}
}

func update(np domain.NowPlaying) domain.StationUpdate {
	return domain.StationUpdate{Key: domain.StationKey(np.Station.Shortcode), NowPlaying: np}
}

func TestHandleUpdate_FullProjectionOncePerSong(t *testing.T) {
	h := newHarness(t, stubConfig{}, nil)

	first := snapshot(4211, true)
	second := snapshot(4211, true)
	second.Listeners.Current = 20

	h.engine.handleUpdate(update(first))
	h.engine.handleUpdate(update(second))

	if got := h.page.Calls("np-azuratest-radio-song-artist"); got != 1 {
		t.Errorf("expected 1 full projection, got %d", got)
	}
	if got := h.page.Calls("np-azuratest-radio-station-time"); got != 2 {
		t.Errorf("expected station time refreshed on both frames, got %d", got)
	}
	if got := h.page.Calls("np-azuratest-radio-song-duration"); got != 3 {
		// twice always, once more by the full projection
		t.Errorf("expected 3 duration projections, got %d", got)
	}
	if got := h.text("station-listeners-current"); got != "20" {
		t.Errorf("expected listeners from the latest frame, got %s", got)
	}
	if h.announcer.count() != 1 {
		t.Errorf("expected 1 announcement, got %d", h.announcer.count())
	}
}

func TestHandleUpdate_NewSongProjectsAgain(t *testing.T) {
	h := newHarness(t, stubConfig{}, nil)

	h.engine.handleUpdate(update(snapshot(1, true)))
	next := snapshot(2, true)
	next.NowPlaying.Song.Artist = "Other"
	h.engine.handleUpdate(update(next))

	if got := h.page.Calls("np-azuratest-radio-song-artist"); got != 2 {
		t.Errorf("expected 2 full projections, got %d", got)
	}
	if got := h.text("song-artist"); got != "Other" {
		t.Errorf("expected artist 'Other', got %s", got)
	}
	if h.announcer.count() != 2 {
		t.Errorf("expected 2 announcements, got %d", h.announcer.count())
	}
}

func TestHandleUpdate_UnsubscribedStationIgnored(t *testing.T) {
	h := newHarness(t, stubConfig{}, nil)

	np := snapshot(1, true)
	np.Station.Shortcode = "someone_else"
	h.engine.handleUpdate(update(np))
	h.engine.handleUpdate(domain.Unrecognized{Channel: "station:broken"})

	if got := h.page.Mutations(); got != 0 {
		t.Errorf("expected no mutations, got %d", got)
	}
	if h.station().np != nil {
		t.Error("subscribed station must be untouched")
	}
}

func TestHandleUpdate_Clock(t *testing.T) {
	h := newHarness(t, stubConfig{}, nil)

	h.engine.handleUpdate(domain.ClockUpdate{Time: 1706529600})
	h.engine.publish()

	if got := h.engine.Status().ServerTime; got != 1706529600 {
		t.Errorf("expected server time 1706529600, got %d", got)
	}
	if got := h.page.Mutations(); got != 0 {
		t.Errorf("clock updates must not touch the page, got %d mutations", got)
	}
}

func TestHandleUpdate_Projection(t *testing.T) {
	tests := []struct {
		name     string
		cfg      stubConfig
		mutate   func(np *domain.NowPlaying)
		validate func(t *testing.T, h *harness)
	}{
		{
			name: "Online Playlist",
			validate: func(t *testing.T, h *harness) {
				expectText(t, h, "song-text", "Artist - Title")
				expectText(t, h, "song-album", "Album")
				expectText(t, h, "station-name", "AzuraTest Radio")
				expectText(t, h, "station-time", "06:00")
				expectText(t, h, "station-timezone", "America/Chicago")
				expectText(t, h, "station-timediff-hhmm", "-6:00")
				expectText(t, h, "station-timediff-minutes", "-360")
				expectText(t, h, "song-duration", "/ 3:35")
				expectText(t, h, "song-elapsed", "0:30")
				expectText(t, h, "station-isonline", "Online")
				expectText(t, h, "show-name", "default")
				expectText(t, h, "station-listeners-unique", "9")

				if got := h.el("station-name").Attrs["title"]; got != "A test station" {
					t.Errorf("station name title: got %s", got)
				}
				art := h.el("song-albumart")
				if art.Attrs["src"] != "https://example.com/art.jpg" || art.Attrs["alt"] != "Album art. Click to listen." {
					t.Errorf("unexpected album art attrs %v", art.Attrs)
				}
				player := h.el("station-player")
				if player.TextSet {
					t.Error("player link content must be left alone")
				}
				if player.Attrs["href"] != "https://demo.azuracast.com/public/azuratest_radio" || player.Attrs["target"] != "playerWindow" {
					t.Errorf("unexpected player attrs %v", player.Attrs)
				}
				online := h.el("station-isonline")
				if !online.HasClass("label-success") || online.HasClass("label-error") {
					t.Errorf("unexpected online classes %v", online.Classes())
				}
				if got := h.el("song-duration").Attrs["style"]; got != "display: inline;" {
					t.Errorf("duration should be visible, got %q", got)
				}
				if got := h.el("show-islive").Attrs["style"]; got != "display: none;" {
					t.Errorf("live indicator should be hidden, got %q", got)
				}
				if got := h.el("song-isrequest").Attrs["style"]; got != "display: none;" {
					t.Errorf("request indicator should be hidden, got %q", got)
				}
				expectText(t, h, "video-player-url", "")
				if !h.station().ticking() {
					t.Error("progress should be running")
				}
				if got := h.page.Get("np-local-time").Text; got != "12:00" {
					t.Errorf("local time: got %s", got)
				}
				if got := h.page.Get("np-local-timezone-short").Text; got != "UTC" {
					t.Errorf("local zone: got %s", got)
				}
			},
		},
		{
			name: "Live Show",
			mutate: func(np *domain.NowPlaying) {
				np.Live = domain.Live{IsLive: true, StreamerName: "DJ Test"}
				np.NowPlaying.Duration = 0
				np.NowPlaying.Elapsed = 120
			},
			validate: func(t *testing.T, h *harness) {
				expectText(t, h, "show-islive", "Live")
				expectText(t, h, "show-name", "DJ Test")
				live := h.el("show-islive")
				if !live.HasClass("label") || !live.HasClass("label-error") || live.Attrs["style"] != "display: inline;" {
					t.Errorf("live indicator not shown: %v %v", live.Classes(), live.Attrs)
				}
				if got := h.el("song-duration").Attrs["style"]; got != "display: none;" {
					t.Errorf("duration should be hidden, got %q", got)
				}
				if got := h.el("song-progressbar").Style["width"]; got != "100%" {
					t.Errorf("live width should clamp to 100%%, got %s", got)
				}
			},
		},
		{
			name:   "Offline",
			mutate: func(np *domain.NowPlaying) { np.IsOnline = false },
			validate: func(t *testing.T, h *harness) {
				expectText(t, h, "station-isonline", "Offline")
				expectText(t, h, "show-name", "Offline")
				if !h.el("show-name").HasClass("label-error") {
					t.Error("offline show name should be labelled")
				}
				if h.station().ticking() {
					t.Error("progress must be stopped for an offline station")
				}
			},
		},
		{
			name:   "Song Request",
			mutate: func(np *domain.NowPlaying) { np.NowPlaying.IsRequest = true },
			validate: func(t *testing.T, h *harness) {
				expectText(t, h, "song-isrequest", "Song request")
				if got := h.el("song-isrequest").Attrs["style"]; got != "display: inline;" {
					t.Errorf("request indicator should be shown, got %q", got)
				}
			},
		},
		{
			name: "Autoplay And Video",
			cfg:  stubConfig{autoplay: true, video: "https://video.example.com/live"},
			validate: func(t *testing.T, h *harness) {
				if got := h.el("station-player").Attrs["href"]; got != "https://demo.azuracast.com/public/azuratest_radio?autoplay=true" {
					t.Errorf("unexpected player href %s", got)
				}
				expectText(t, h, "video-player-url", "https://video.example.com/live")
				video := h.el("video-player")
				if video.Attrs["href"] != "https://video.example.com/live" || video.Attrs["title"] != "Click to view" {
					t.Errorf("unexpected video attrs %v", video.Attrs)
				}
			},
		},
		{
			name:   "Fallback Timezone",
			mutate: func(np *domain.NowPlaying) { np.Station.Timezone = "" },
			validate: func(t *testing.T, h *harness) {
				expectText(t, h, "station-timezone", "Etc/UTC")
				expectText(t, h, "station-timediff-hhmm", "0:00")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.cfg, nil)
			np := snapshot(4211, true)
			if tt.mutate != nil {
				tt.mutate(&np)
			}
			h.engine.handleUpdate(update(np))
			tt.validate(t, h)
		})
	}
}

func expectText(t *testing.T, h *harness, field, want string) {
	t.Helper()
	if got := h.text(field); got != want {
		t.Errorf("%s: expected %q, got %q", field, want, got)
	}
}

func TestProgress_StopsAtDuration(t *testing.T) {
	h := newHarness(t, stubConfig{}, nil)
	np := snapshot(1, true)
	np.NowPlaying.Elapsed = 10
	np.NowPlaying.Duration = 12
	h.engine.handleUpdate(update(np))

	st := h.station()
	gen := st.gen

	h.clock.Advance(time.Second)
	h.engine.handleTick(tick{key: testKey, gen: gen})
	if st.cursor.Elapsed != 11 || !st.ticking() {
		t.Fatalf("expected 11s and running, got %v running=%v", st.cursor.Elapsed, st.ticking())
	}

	h.clock.Advance(5 * time.Second)
	h.engine.handleTick(tick{key: testKey, gen: gen})
	if st.cursor.Elapsed != 12 {
		t.Errorf("elapsed must clamp to duration, got %v", st.cursor.Elapsed)
	}
	if st.ticking() {
		t.Error("progress must stop when the song ends")
	}
	expectText(t, h, "song-elapsed", "0:12")
	if got := h.el("song-progressbar").Style["width"]; got != "100%" {
		t.Errorf("expected full width, got %s", got)
	}
	if got := h.el("song-progress").Attrs["max"]; got != "12" {
		t.Errorf("expected max 12, got %s", got)
	}

	// a tick already queued by the stopped ticker is dropped
	calls := h.page.Calls("np-azuratest-radio-song-elapsed")
	h.clock.Advance(time.Second)
	h.engine.handleTick(tick{key: testKey, gen: gen})
	if h.page.Calls("np-azuratest-radio-song-elapsed") != calls {
		t.Error("stale tick must not project")
	}
}

func TestProgress_LiveIsNeverClamped(t *testing.T) {
	h := newHarness(t, stubConfig{}, nil)
	np := snapshot(1, true)
	np.NowPlaying.Elapsed = 50
	np.NowPlaying.Duration = 0
	h.engine.handleUpdate(update(np))

	st := h.station()
	for i := 0; i < 3; i++ {
		h.clock.Advance(100 * time.Second)
		h.engine.handleTick(tick{key: testKey, gen: st.gen})
	}

	if st.cursor.Elapsed != 350 {
		t.Errorf("expected 350s, got %v", st.cursor.Elapsed)
	}
	if !st.ticking() {
		t.Error("live progress keeps running")
	}
	if got := h.el("song-progressbar").Style["width"]; got != "100%" {
		t.Errorf("expected 100%%, got %s", got)
	}
}

func TestProgress_RestartOnlyFromSnapshot(t *testing.T) {
	h := newHarness(t, stubConfig{}, nil)
	np := snapshot(1, true)
	np.NowPlaying.Elapsed = 12
	np.NowPlaying.Duration = 12
	h.engine.handleUpdate(update(np))

	if h.station().ticking() {
		t.Fatal("a finished song must not keep ticking")
	}

	np.NowPlaying.Elapsed = 0
	np.NowPlaying.ShID = 2
	h.engine.handleUpdate(update(np))
	if !h.station().ticking() {
		t.Error("a fresh snapshot restarts progress")
	}
	if h.spawned != 2 {
		t.Errorf("expected 2 tickers spawned, got %d", h.spawned)
	}
}

func TestHandleFailure_ForcesOfflineOnce(t *testing.T) {
	h := newHarness(t, stubConfig{}, nil)
	h.engine.handleUpdate(update(snapshot(4211, true)))

	h.engine.handleFailure(errors.New("connection reset"))

	expectText(t, h, "station-isonline", "Offline")
	if !h.el("station-isonline").HasClass("label-error") {
		t.Error("offline indicator should carry label-error")
	}
	if h.station().ticking() {
		t.Error("progress must stop on failure")
	}
	if h.announcer.count() != 1 {
		t.Errorf("forced offline must not announce, got %d", h.announcer.count())
	}

	mutations := h.page.Mutations()
	h.engine.handleFailure(errors.New("connection reset"))
	if got := h.page.Mutations(); got != mutations {
		t.Errorf("repeated failure must be a no-op, mutations %d -> %d", mutations, got)
	}

	// data after reconnect projects in full again, even with the same song
	h.engine.handleUpdate(update(snapshot(4211, true)))
	if got := h.page.Calls("np-azuratest-radio-song-artist"); got != 3 {
		t.Errorf("expected 3 full projections, got %d", got)
	}
	expectText(t, h, "station-isonline", "Online")
}

func TestHandleFailure_ReconnectDoesNotReannounce(t *testing.T) {
	tests := []struct {
		name          string
		afterFailure  int64
		announcements int
	}{
		{name: "Same Song", afterFailure: 4211, announcements: 1},
		{name: "New Song", afterFailure: 4212, announcements: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, stubConfig{}, nil)
			h.engine.handleUpdate(update(snapshot(4211, true)))
			h.engine.handleFailure(errors.New("connection reset"))
			h.engine.handleUpdate(update(snapshot(tt.afterFailure, true)))

			if got := h.announcer.count(); got != tt.announcements {
				t.Errorf("expected %d announcements, got %d", tt.announcements, got)
			}
			songChanges := testutil.ToFloat64(h.engine.metrics.SongChanges.WithLabelValues(testKey))
			if int(songChanges) != tt.announcements {
				t.Errorf("expected %d song changes counted, got %v", tt.announcements, songChanges)
			}
			// the page still re-projects in full
			if got := h.page.Calls("np-azuratest-radio-song-artist"); got != 3 {
				t.Errorf("expected 3 full projections, got %d", got)
			}
		})
	}
}

func TestHandleFailure_WithoutData(t *testing.T) {
	h := newHarness(t, stubConfig{}, nil)
	h.engine.handleFailure(errors.New("refused"))
	if got := h.page.Mutations(); got != 0 {
		t.Errorf("expected no mutations, got %d", got)
	}
}

func TestRestoreSnapshots(t *testing.T) {
	cached := snapshot(99, true)
	store := &fakeStore{snapshots: map[string]domain.NowPlaying{
		testKey:        cached,
		"station:gone":  snapshot(1, true),
	}}
	h := newHarness(t, stubConfig{}, store)

	h.engine.restoreSnapshots()

	expectText(t, h, "song-title", "Title")
	expectText(t, h, "station-isonline", "Offline")
	st := h.station()
	if st.ticking() {
		t.Error("restored station must not tick")
	}
	if st.hasShID {
		t.Error("restored station must project in full on the first server frame")
	}
	if h.announcer.count() != 0 {
		t.Errorf("restore must not announce, got %d", h.announcer.count())
	}
	if status := h.engine.Status(); status.Stations[0].NowPlaying == nil || status.Stations[0].NowPlaying.IsOnline {
		t.Errorf("expected the restored snapshot published as offline, got %+v", status.Stations[0])
	}
}

func TestRestoreSnapshots_ServerConfirmsWithoutAnnouncing(t *testing.T) {
	store := &fakeStore{snapshots: map[string]domain.NowPlaying{testKey: snapshot(99, true)}}
	h := newHarness(t, stubConfig{}, store)
	h.engine.restoreSnapshots()

	h.engine.handleUpdate(update(snapshot(99, true)))
	expectText(t, h, "station-isonline", "Online")
	if got := h.announcer.count(); got != 0 {
		t.Errorf("cached song must not be announced again, got %d", got)
	}

	h.engine.handleUpdate(update(snapshot(100, true)))
	if got := h.announcer.count(); got != 1 {
		t.Errorf("expected the next song announced, got %d", got)
	}
}

func TestRestoreSnapshots_StoreError(t *testing.T) {
	h := newHarness(t, stubConfig{}, &fakeStore{err: errors.New("corrupt")})
	h.engine.restoreSnapshots()
	if got := h.page.Mutations(); got != 0 {
		t.Errorf("expected no mutations, got %d", got)
	}
}

func TestEngine_RunLoop(t *testing.T) {
	pg := pagetest.New("np-azuratest-radio-song-elapsed", "np-azuratest-radio-song-artist")
	mon := newFakeMonitor()
	e := NewEngine(
		zap.NewNop(),
		stubConfig{tick: 10 * time.Millisecond},
		mon,
		page.NewProjector(zap.NewNop(), pg),
		i18n.Default(),
		domain.RealClock{},
		metrics.New(prometheus.NewRegistry()),
		nil,
		nil,
	)

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	mon.events <- update(snapshot(4211, true))
	mon.events <- domain.ClockUpdate{Time: 42}
	mon.failures <- errors.New("stream closed")

	deadline := time.Now().Add(2 * time.Second)
	for {
		status := e.Status()
		if status.ServerTime == 42 && status.Stations[0].NowPlaying != nil && !status.Stations[0].NowPlaying.IsOnline {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("status never reflected the events: %+v", status)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got := pg.Get("np-azuratest-radio-song-artist").Text; got != "Artist" {
		t.Errorf("expected artist projected, got %q", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := e.Stop(ctx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}
