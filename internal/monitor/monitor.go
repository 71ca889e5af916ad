package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/genricoloni/onair/internal/domain"
	"github.com/genricoloni/onair/internal/metrics"
	"github.com/r3labs/sse/v2"
	"go.uber.org/zap"
	backoff "gopkg.in/cenkalti/backoff.v1"
)

var errStreamClosed = errors.New("event stream closed by server")

// SSEMonitor follows the now-playing event stream of an AzuraCast server
type SSEMonitor struct {
	logger     *zap.Logger
	metrics    *metrics.Metrics
	url        string
	retryDelay time.Duration
	httpClient *http.Client
	events     chan domain.Update
	failures   chan error
	mu         sync.Mutex
	running    bool
	closed     bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup // Tracks the subscription loop
}

// NewSSEMonitor creates a monitor subscribed to every configured channel
func NewSSEMonitor(logger *zap.Logger, cfg domain.Config, m *metrics.Metrics) (*SSEMonitor, error) {
	streamURL, err := StreamURL(cfg.GetBaseURI(), cfg.GetSubscriptions())
	if err != nil {
		return nil, err
	}

	return &SSEMonitor{
		logger:     logger,
		metrics:    m,
		url:        streamURL,
		retryDelay: cfg.GetReconnectDelay(),
		// No timeout: the response body stays open for the life of the stream
		httpClient: &http.Client{},
		events:     make(chan domain.Update, 64),
		failures:   make(chan error, 1),
	}, nil
}

// URL returns the stream endpoint including the subscriptions
func (m *SSEMonitor) URL() string {
	return m.url
}

// Start connects and keeps reconnecting at a constant delay until the
// context is cancelled or Stop is called. There is no attempt cap.
func (m *SSEMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running || m.closed {
		m.mu.Unlock()
		return nil
	}
	m.running = true
	monitorCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.wg.Add(1)
	m.mu.Unlock()
	defer m.wg.Done()

	client := sse.NewClient(m.url, func(c *sse.Client) {
		c.Connection = m.httpClient
	})
	if client.Headers == nil {
		client.Headers = make(map[string]string)
	}
	client.Headers["User-Agent"] = "onairDaemon/1.0"
	client.ReconnectStrategy = &constantUntilDone{ctx: monitorCtx, delay: m.retryDelay}
	client.ReconnectNotify = func(err error, next time.Duration) {
		m.reportFailure(err)
		m.logger.Debug("Retrying event stream", zap.Duration("in", next))
	}
	client.OnConnect(func(*sse.Client) {
		m.logger.Info("Now Playing: server connected")
	})
	client.OnDisconnect(func(*sse.Client) {
		m.reportFailure(errors.New("event stream disconnected"))
	})

	m.logger.Info("Event stream monitor started", zap.String("url", m.url))

	for {
		err := client.SubscribeRawWithContext(monitorCtx, func(msg *sse.Event) {
			m.handleMessage(monitorCtx, msg.Data)
		})
		if monitorCtx.Err() != nil {
			m.logger.Info("Event stream monitor stopped")
			return monitorCtx.Err()
		}

		// A clean end of stream is returned as success by the client
		if err == nil {
			err = errStreamClosed
		}
		m.reportFailure(err)

		select {
		case <-monitorCtx.Done():
			m.logger.Info("Event stream monitor stopped")
			return monitorCtx.Err()
		case <-time.After(m.retryDelay):
		}
	}
}

// Stop gracefully stops the monitor
func (m *SSEMonitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.running = false
	m.mu.Unlock()

	// Wait for the subscription loop before closing the channels it sends on
	m.logger.Debug("Waiting for event stream loop to finish")
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("event stream monitor did not stop: %w", ctx.Err())
	}

	m.mu.Lock()
	m.closed = true
	close(m.events)
	close(m.failures)
	m.mu.Unlock()

	m.logger.Info("Event stream monitor shutdown complete")
	return nil
}

// Events returns the decoded rows in delivery order
func (m *SSEMonitor) Events() <-chan domain.Update {
	return m.events
}

// Failures returns transport failures. Failures are coalesced: the consumer
// treats every failure the same way.
func (m *SSEMonitor) Failures() <-chan error {
	return m.failures
}

// handleMessage decodes one SSE data payload and forwards its rows
func (m *SSEMonitor) handleMessage(ctx context.Context, data []byte) {
	if len(data) == 0 {
		return
	}

	updates, err := DecodeFrame(data)
	if err != nil {
		m.metrics.MalformedFrames.Inc()
		m.logger.Warn("Skipping malformed frame", zap.Error(err), zap.Int("bytes", len(data)))
		return
	}

	for _, u := range updates {
		select {
		case m.events <- u:
		case <-ctx.Done():
			return
		}
	}
}

// reportFailure can be called from the client's reader goroutine after Stop
func (m *SSEMonitor) reportFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	m.metrics.TransportFailures.Inc()
	m.logger.Error("Now Playing: event stream failed", zap.Error(err))

	select {
	case m.failures <- err:
	default:
	}
}

// constantUntilDone retries at a fixed delay for as long as ctx is alive
type constantUntilDone struct {
	ctx   context.Context
	delay time.Duration
}

func (b *constantUntilDone) NextBackOff() time.Duration {
	if b.ctx.Err() != nil {
		return backoff.Stop
	}
	return b.delay
}

func (b *constantUntilDone) Reset() {}
