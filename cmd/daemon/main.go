package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/genricoloni/onair/internal/announce"
	"github.com/genricoloni/onair/internal/config"
	"github.com/genricoloni/onair/internal/domain"
	"github.com/genricoloni/onair/internal/engine"
	"github.com/genricoloni/onair/internal/fetcher"
	"github.com/genricoloni/onair/internal/format"
	"github.com/genricoloni/onair/internal/httpapi"
	"github.com/genricoloni/onair/internal/i18n"
	"github.com/genricoloni/onair/internal/metrics"
	"github.com/genricoloni/onair/internal/monitor"
	"github.com/genricoloni/onair/internal/notifier"
	"github.com/genricoloni/onair/internal/page"
	"github.com/genricoloni/onair/internal/page/htmldoc"
	"github.com/genricoloni/onair/internal/processor"
	"github.com/genricoloni/onair/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// AppOptions is the complete dependency graph of the daemon
var AppOptions = fx.Options(
	// Logger configuration
	fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: log}
	}),

	// Provide dependencies
	fx.Provide(
		newLogger,
		config.NewAppConfig,
		func(c *config.AppConfig) domain.Config { return c },
		func() domain.Clock { return domain.RealClock{} },
		metrics.NewRegistry,
		func(reg *prometheus.Registry) *metrics.Metrics { return metrics.New(reg) },
		newTranslator,
		newDocument,
		func(logger *zap.Logger, doc *htmldoc.Document) *page.Projector {
			return page.NewProjector(logger, doc)
		},
		fx.Annotate(monitor.NewSSEMonitor, fx.As(new(domain.Monitor))),
		newStore,
		func(s *store.BoltStore) domain.SnapshotStore { return s },
		fx.Annotate(fetcher.NewHTTPFetcher, fx.As(new(domain.Fetcher))),
		func(logger *zap.Logger, cfg *config.AppConfig) domain.Processor {
			return processor.NewThumbnailProcessor(logger, cfg)
		},
		newNotifier,
		announce.NewWorker,
		func(w *announce.Worker) domain.Announcer { return w },
		engine.NewEngine,
		newHTTPServer,
	),

	// Lifecycle hooks
	fx.Invoke(registerHooks),
)

func main() {
	app := fx.New(AppOptions)

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		panic(err)
	}

	<-ctx.Done()

	if err := app.Stop(context.Background()); err != nil {
		panic(err)
	}
}

// newLogger creates the production logger, or the development one when
// ONAIR_LOG_LEVEL is debug
func newLogger() (*zap.Logger, error) {
	if strings.EqualFold(os.Getenv("ONAIR_LOG_LEVEL"), "debug") {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newTranslator(cfg *config.AppConfig) (*i18n.Translator, error) {
	if path := cfg.GetTranslationsFile(); path != "" {
		return i18n.Load(path)
	}
	return i18n.Default(), nil
}

func newDocument(logger *zap.Logger, cfg *config.AppConfig) (*htmldoc.Document, error) {
	stations := cfg.GetStations()
	views := make([]htmldoc.StationView, 0, len(stations))
	for _, st := range stations {
		views = append(views, htmldoc.StationView{
			Class:     format.KebabCase(st.Shortcode),
			Shortcode: st.Shortcode,
		})
	}
	return htmldoc.Load(logger, cfg.GetTemplateFile(), views)
}

func newStore(logger *zap.Logger, cfg *config.AppConfig) (*store.BoltStore, error) {
	return store.NewBoltStore(logger, cfg.GetCachePath())
}

// newNotifier falls back to a no-op notifier when disabled or when no
// session bus is reachable
func newNotifier(lc fx.Lifecycle, logger *zap.Logger, cfg *config.AppConfig) domain.Notifier {
	if !cfg.GetNotify() {
		return notifier.NopNotifier{}
	}

	client, err := notifier.NewStdDBusClient()
	if err != nil {
		logger.Warn("Session bus unavailable, notifications disabled", zap.Error(err))
		return notifier.NopNotifier{}
	}

	n := notifier.NewDBusNotifier(logger, client)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return n.Close()
		},
	})
	return n
}

func newHTTPServer(
	logger *zap.Logger,
	cfg *config.AppConfig,
	eng *engine.Engine,
	doc *htmldoc.Document,
	st *store.BoltStore,
	reg *prometheus.Registry,
) *httpapi.Server {
	return httpapi.New(logger, httpapi.Options{
		Addr:     cfg.GetListenAddr(),
		ArtDir:   cfg.GetOutputDir(),
		Status:   eng,
		Page:     doc,
		History:  st,
		Gatherer: reg,
	})
}

// registerHooks sets up application lifecycle hooks. Components start
// consumer first and stop producer first.
func registerHooks(
	lc fx.Lifecycle,
	logger *zap.Logger,
	mon domain.Monitor,
	eng *engine.Engine,
	worker *announce.Worker,
	srv *httpapi.Server,
	st *store.BoltStore,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := worker.Start(ctx); err != nil {
				return err
			}
			if err := eng.Start(ctx); err != nil {
				return err
			}
			go func() {
				if err := mon.Start(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("Monitor exited", zap.Error(err))
				}
			}()
			if err := srv.Start(ctx); err != nil {
				return err
			}
			logger.Info("onair daemon started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down")
			var err error
			err = multierr.Append(err, srv.Shutdown(ctx))
			err = multierr.Append(err, mon.Stop(ctx))
			err = multierr.Append(err, eng.Stop(ctx))
			err = multierr.Append(err, worker.Stop(ctx))
			err = multierr.Append(err, st.Close())
			return err
		},
	})
}
