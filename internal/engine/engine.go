package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/genricoloni/onair/internal/domain"
	"github.com/genricoloni/onair/internal/i18n"
	"github.com/genricoloni/onair/internal/metrics"
	"github.com/genricoloni/onair/internal/page"
	"go.uber.org/zap"
)

// tick is emitted by a station's ticker goroutine
type tick struct {
	key string
	gen uint64
}

// Engine consumes the event stream and keeps the page in sync with it.
// Decoded rows, transport failures and progress ticks are all handled on a
// single goroutine, in arrival order.
type Engine struct {
	logger     *zap.Logger
	cfg        domain.Config
	monitor    domain.Monitor
	projector  *page.Projector
	translator *i18n.Translator
	clock      domain.Clock
	metrics    *metrics.Metrics
	store      domain.SnapshotStore
	announcer  domain.Announcer

	stations map[string]*station
	order    []string // subscription order
	ticks    chan tick

	serverTime int64

	// spawnTicker starts the ticker goroutine of a station
	spawnTicker func(key string, gen uint64, stop <-chan struct{})

	statusMu sync.RWMutex
	status   domain.Status

	loopCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewEngine creates a new engine with one station per configured subscription
func NewEngine(
	logger *zap.Logger,
	cfg domain.Config,
	mon domain.Monitor,
	projector *page.Projector,
	translator *i18n.Translator,
	clock domain.Clock,
	m *metrics.Metrics,
	store domain.SnapshotStore,
	announcer domain.Announcer,
) *Engine {
	e := &Engine{
		logger:     logger,
		cfg:        cfg,
		monitor:    mon,
		projector:  projector,
		translator: translator,
		clock:      clock,
		metrics:    m,
		store:      store,
		announcer:  announcer,
		stations:   make(map[string]*station),
		ticks:      make(chan tick, 16),
		loopCtx:    context.Background(),
	}
	e.spawnTicker = e.runTicker

	for _, sub := range cfg.GetSubscriptions() {
		if sub.Shortcode() == "" {
			continue
		}
		if _, dup := e.stations[sub.Key]; dup {
			continue
		}
		e.stations[sub.Key] = newStation(sub)
		e.order = append(e.order, sub.Key)
	}
	e.publish()
	return e
}

// Start restores cached snapshots and launches the event loop.
// It returns immediately (non-blocking).
func (e *Engine) Start(ctx context.Context) error {
	e.logger.Info("Engine starting...", zap.Int("stations", len(e.order)))

	// The start context only bounds startup; the loop lives until Stop
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.loopCtx = loopCtx
	e.cancel = cancel

	e.restoreSnapshots()

	e.wg.Add(1)
	go e.runLoop(loopCtx)
	return nil
}

// Stop cancels the loop and every ticker and waits for them to exit
func (e *Engine) Stop(ctx context.Context) error {
	e.logger.Info("Engine stopping...")
	if e.cancel != nil {
		e.cancel()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("Engine stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("engine did not stop: %w", ctx.Err())
	}
}

// Status returns the last published state
func (e *Engine) Status() domain.Status {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	out := e.status
	out.Stations = append([]domain.StationStatus(nil), e.status.Stations...)
	return out
}

// runLoop is the single consumer of frames, failures and ticks
func (e *Engine) runLoop(ctx context.Context) {
	defer e.wg.Done()
	defer e.stopAll()

	events := e.monitor.Events()
	failures := e.monitor.Failures()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Engine loop stopped")
			return

		case u, ok := <-events:
			if !ok {
				e.logger.Info("Monitor events channel closed")
				return
			}
			e.handleUpdate(u)

		case err, ok := <-failures:
			if !ok {
				failures = nil
				continue
			}
			e.handleFailure(err)

		case t := <-e.ticks:
			e.handleTick(t)
		}

		e.publish()
	}
}

// handleUpdate routes one decoded row
func (e *Engine) handleUpdate(u domain.Update) {
	switch u := u.(type) {
	case domain.StationUpdate:
		e.metrics.Frames.WithLabelValues("station").Inc()
		st, ok := e.stations[u.Key]
		if !ok {
			e.logger.Debug("Ignoring unsubscribed station", zap.String("key", u.Key))
			return
		}
		np := u.NowPlaying
		st.np = &np
		e.updatePage(st, true)

	case domain.ClockUpdate:
		e.metrics.Frames.WithLabelValues("clock").Inc()
		e.metrics.ServerTime.Set(float64(u.Time))
		e.serverTime = u.Time

	case domain.Unrecognized:
		e.metrics.Frames.WithLabelValues("unrecognized").Inc()
		e.logger.Debug("Ignoring unrecognized row", zap.String("channel", u.Channel))
	}
}

// handleFailure forces every station with known data offline. Stations
// already forced are skipped until fresh data arrives.
func (e *Engine) handleFailure(err error) {
	for _, key := range e.order {
		st := e.stations[key]
		if st.np == nil || !st.hasShID {
			continue
		}
		e.logger.Warn("Now Playing: setting station offline", zap.String("station", key), zap.Error(err))
		st.np.IsOnline = false
		st.hasShID = false
		e.updatePage(st, false)
		// a later reconnect must project in full again
		st.hasShID = false
	}
}

func (e *Engine) handleTick(t tick) {
	st, ok := e.stations[t.key]
	if !ok || !st.ticking() || t.gen != st.gen {
		return
	}
	e.updateProgress(st)
}

// restoreSnapshots projects cached snapshots as offline until the server
// confirms them
func (e *Engine) restoreSnapshots() {
	if e.store == nil {
		return
	}
	cached, err := e.store.LoadSnapshots()
	if err != nil {
		e.logger.Warn("Failed to load cached snapshots", zap.Error(err))
		return
	}

	for _, key := range e.order {
		np, ok := cached[key]
		if !ok {
			continue
		}
		st := e.stations[key]
		np.IsOnline = false
		st.np = &np
		e.updatePage(st, false)
		st.hasShID = false
		// cached snapshots were announced by the previous run
		st.announce(np.NowPlaying.ShID)
		e.logger.Info("Restored cached snapshot", zap.String("station", key))
	}
	e.publish()
}

func (e *Engine) startProgress(st *station, elapsed, duration float64) {
	st.cursor.Reset(elapsed, duration, e.clock.Now())
	if !st.ticking() {
		st.gen++
		st.stop = make(chan struct{})
		e.spawnTicker(st.key, st.gen, st.stop)
	}
	// project now rather than on the first tick
	e.updateProgress(st)
}

// stopProgress is idempotent
func (e *Engine) stopProgress(st *station) {
	if st.stop != nil {
		close(st.stop)
		st.stop = nil
	}
}

func (e *Engine) stopAll() {
	for _, st := range e.stations {
		e.stopProgress(st)
	}
}

func (e *Engine) runTicker(key string, gen uint64, stop <-chan struct{}) {
	ctx := e.loopCtx
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		t := time.NewTicker(e.cfg.GetTickInterval())
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-t.C:
				select {
				case e.ticks <- tick{key: key, gen: gen}:
				case <-stop:
					return
				case <-ctx.Done():
					return
				}
			}
		}
	}()
}

// publish copies the state for readers outside the loop
func (e *Engine) publish() {
	stations := make([]domain.StationStatus, 0, len(e.order))
	for _, key := range e.order {
		stations = append(stations, e.stations[key].status())
	}

	e.statusMu.Lock()
	e.status = domain.Status{ServerTime: e.serverTime, Stations: stations}
	e.statusMu.Unlock()
}
