// Package announce runs the side effects of a song change away from the
// engine loop: persistence, artwork thumbnails and desktop notifications.
package announce

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/genricoloni/onair/internal/domain"
	"go.uber.org/zap"
)

const (
	queueSize       = 32
	jobTimeout      = 15 * time.Second
	warningInterval = 5 * time.Second
)

// Worker implements domain.Announcer with a single background goroutine
// fed by a bounded queue
type Worker struct {
	logger    *zap.Logger
	store     domain.SnapshotStore
	fetcher   domain.Fetcher
	processor domain.Processor
	notifier  domain.Notifier

	jobs            chan domain.Announcement
	mu              sync.Mutex
	lastDropWarning time.Time // Rate limiting for "queue full" warnings
	cancel          context.CancelFunc
	wg              sync.WaitGroup
}

// NewWorker creates a worker; store may be nil
func NewWorker(
	logger *zap.Logger,
	store domain.SnapshotStore,
	fetch domain.Fetcher,
	proc domain.Processor,
	notif domain.Notifier,
) *Worker {
	return &Worker{
		logger:    logger,
		store:     store,
		fetcher:   fetch,
		processor: proc,
		notifier:  notif,
		jobs:      make(chan domain.Announcement, queueSize),
	}
}

// Announce queues a song change. It never blocks: when the queue is full
// the announcement is dropped.
func (w *Worker) Announce(a domain.Announcement) {
	select {
	case w.jobs <- a:
	default:
		w.warnDrop(a.Key)
	}
}

func (w *Worker) warnDrop(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	if now.Sub(w.lastDropWarning) >= warningInterval {
		w.logger.Warn("Announcement queue full, dropping song change", zap.String("station", key))
		w.lastDropWarning = now
	}
}

// Start launches the worker goroutine. It returns immediately.
func (w *Worker) Start(ctx context.Context) error {
	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-workerCtx.Done():
				return
			case a := <-w.jobs:
				w.handle(workerCtx, a)
			}
		}
	}()
	return nil
}

// Stop cancels the worker; queued announcements are discarded
func (w *Worker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("announcer did not stop: %w", ctx.Err())
	}
}

// handle runs every side effect; a failing step is logged and the rest continue
func (w *Worker) handle(ctx context.Context, a domain.Announcement) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	np := a.NowPlaying
	song := np.NowPlaying.Song

	if w.store != nil {
		if err := w.store.SaveSnapshot(a.Key, np); err != nil {
			w.logger.Warn("Failed to cache snapshot", zap.String("station", a.Key), zap.Error(err))
		}
		entry := domain.HistoryEntry{
			Key:      a.Key,
			ShID:     np.NowPlaying.ShID,
			Text:     song.Text,
			Artist:   song.Artist,
			Title:    song.Title,
			Album:    song.Album,
			Playlist: np.NowPlaying.Playlist,
			IsLive:   np.Live.IsLive,
			PlayedAt: a.At,
		}
		if err := w.store.AppendHistory(entry); err != nil {
			w.logger.Warn("Failed to append history", zap.String("station", a.Key), zap.Error(err))
		}
	}

	icon := w.thumbnail(ctx, a.Class, song.Art)

	if err := w.notifier.Notify(ctx, a.Key, np.Station.Name, song.Text, icon); err != nil {
		w.logger.Warn("Failed to notify", zap.String("station", a.Key), zap.Error(err))
	}
}

// thumbnail returns the path of the station's artwork, or "" without one
func (w *Worker) thumbnail(ctx context.Context, class, artURL string) string {
	if artURL == "" {
		w.logger.Debug("No artwork URL", zap.String("class", class))
		return ""
	}

	data, err := w.fetcher.Fetch(ctx, artURL)
	if err != nil {
		w.logger.Warn("Failed to fetch artwork", zap.String("url", artURL), zap.Error(err))
		return ""
	}

	path, err := w.processor.Generate(data, class)
	if err != nil {
		w.logger.Warn("Failed to generate thumbnail", zap.String("class", class), zap.Error(err))
		return ""
	}
	return path
}
