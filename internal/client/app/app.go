// Package app wires the sync engine together from configuration and runs it
// in one of three modes: run (background scheduler until signalled), once
// (a single sync pass) or status (print the local sync state).
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/assets"
	"github.com/dmitrijs2005/fieldsync/internal/client/client"
	"github.com/dmitrijs2005/fieldsync/internal/client/config"
	"github.com/dmitrijs2005/fieldsync/internal/client/connectivity"
	"github.com/dmitrijs2005/fieldsync/internal/client/pending"
	"github.com/dmitrijs2005/fieldsync/internal/client/store"
	"github.com/dmitrijs2005/fieldsync/internal/client/syncer"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

type App struct {
	config *config.Config
	logger logging.Logger
	out    io.Writer

	store     *store.Store
	observer  *connectivity.Observer
	session   *client.Session
	manager   *syncer.Manager
	scheduler *syncer.Scheduler
	pending   *pending.Accessor
	registry  *prometheus.Registry

	closers []io.Closer
}

type Option func(*App)

// WithOutput redirects the human-readable report of the once and status
// modes. It defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(a *App) { a.out = w }
}

// WithLogger replaces the logger built from configuration.
func WithLogger(l logging.Logger) Option {
	return func(a *App) { a.logger = l }
}

func NewApp(ctx context.Context, c *config.Config, opts ...Option) (*App, error) {
	app := &App{config: c, out: os.Stdout}
	for _, o := range opts {
		o(app)
	}

	if app.logger == nil {
		logger, closer, err := logging.New(logging.Options{
			Backend:    c.LogBackend,
			Level:      c.LogLevel,
			File:       c.LogFile,
			MaxSizeMB:  10,
			MaxBackups: 3,
		})
		if err != nil {
			return nil, err
		}
		app.logger = logger
		app.closers = append(app.closers, closer)
	}

	if err := app.init(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (app *App) init(ctx context.Context) error {
	c := app.config

	app.store = store.New(c.DatabasePath, store.WithLogger(app.logger))
	if err := app.store.Initialize(ctx); err != nil {
		return fmt.Errorf("store init error: %w", err)
	}
	app.closers = append(app.closers, app.store)

	probe, err := app.newProbe()
	if err != nil {
		return fmt.Errorf("health probe init error: %w", err)
	}
	app.observer = connectivity.NewObserver(probe,
		connectivity.WithInterval(c.OnlineCheckInterval),
		connectivity.WithThreshold(c.OnlineThreshold),
		connectivity.WithLogger(app.logger),
	)

	app.session = client.NewSession(c.SessionToken)
	remote := client.NewHTTPClient(c.APIBaseURL, app.session,
		client.WithTimeout(c.RequestTimeout),
		client.WithLogger(app.logger),
	)

	uploader, err := app.newUploader(ctx)
	if err != nil {
		return fmt.Errorf("upload backend init error: %w", err)
	}
	pipeline := assets.NewPipeline(uploader, app.observer,
		assets.WithConcurrency(c.UploadConcurrency),
		assets.WithLogger(app.logger),
	)

	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(collectors.NewGoCollector())

	app.manager = syncer.NewManager(app.store, remote, pipeline, app.observer,
		syncer.WithBackoff(syncer.NewBackoff(c.BackoffBase, c.BackoffCap)),
		syncer.WithMetrics(syncer.NewMetrics(app.registry)),
		syncer.WithLogger(app.logger),
	)
	app.scheduler = syncer.NewScheduler(app.manager, app.observer,
		syncer.WithInterval(c.SyncInterval),
		syncer.WithMinGap(c.MinSyncGap),
		syncer.WithResultHandler(app.onResult),
		syncer.WithSchedulerLogger(app.logger),
	)
	app.pending = pending.NewAccessor(app.store, pending.WithLogger(app.logger))
	return nil
}

func (app *App) newProbe() (connectivity.Probe, error) {
	c := app.config
	if c.HealthProbe == "grpc" {
		p, err := connectivity.NewGRPCHealthProbe(c.GRPCHealthAddr)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, p)
		return p, nil
	}
	p := connectivity.NewHTTPProbe(c.APIBaseURL, nil)
	p.Timeout = c.RequestTimeout
	return p, nil
}

func (app *App) newUploader(ctx context.Context) (assets.Uploader, error) {
	c := app.config
	if c.UploadBackend == "s3" {
		return assets.NewS3Uploader(ctx, assets.S3Options{
			Bucket:    c.S3.Bucket,
			Region:    c.S3.Region,
			Endpoint:  c.S3.Endpoint,
			AccessKey: c.S3.AccessKey,
			SecretKey: c.S3.SecretKey,
		})
	}
	return assets.NewHTTPUploader(c.APIBaseURL, &http.Client{Timeout: c.RequestTimeout}, app.session.Authorize), nil
}

func (app *App) onResult(res syncer.Result, err error) {
	if err != nil {
		app.logger.Error(context.Background(), "sync failed", "err", err)
		return
	}
	if res.Conflicted > 0 {
		app.logger.Warn(context.Background(), "records need a conflict decision", "count", res.Conflicted)
	}
}

// Close releases everything NewApp opened, in reverse order.
func (app *App) Close() error {
	if app.pending != nil {
		app.pending.Close()
	}
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		errs = append(errs, app.closers[i].Close())
	}
	app.closers = nil
	return errors.Join(errs...)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run executes the configured mode.
func (app *App) Run(ctx context.Context) error {
	defer app.Close()

	switch app.config.Mode {
	case "once":
		return app.runOnce(ctx)
	case "status":
		return app.printStatus(ctx)
	default:
		ctx, cancelFunc := context.WithCancel(ctx)
		defer cancelFunc()
		app.initSignalHandler(cancelFunc)
		return app.runDaemon(ctx)
	}
}

func (app *App) runDaemon(ctx context.Context) error {
	app.logger.Info(ctx, "Starting sync engine...", "db", app.config.DatabasePath, "api", app.config.APIBaseURL)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		app.observer.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return app.scheduler.Run(ctx)
	})
	g.Go(func() error {
		app.pending.Watch(ctx, app.config.OwnerID, app.config.SyncInterval, func(s pending.Summary) {
			app.logger.Debug(ctx, "sync state", "label", s.Label, "pending", s.Pending, "conflicts", s.Conflicts)
		})
		return nil
	})
	if app.config.MetricsAddr != "" {
		g.Go(func() error {
			return app.serveMetrics(ctx)
		})
	}

	err := g.Wait()
	app.logger.Info(context.Background(), "sync engine stopped")
	return err
}

func (app *App) serveMetrics(ctx context.Context) error {
	srv := &http.Server{
		Addr:              app.config.MetricsAddr,
		Handler:           promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(ctx, "serving metrics", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

func (app *App) runOnce(ctx context.Context) error {
	app.observer.Check(ctx)

	res, err := app.manager.StartSync(ctx)
	if err != nil {
		return err
	}
	switch {
	case res.Offline:
		fmt.Fprintln(app.out, "offline: nothing was synced")
	default:
		fmt.Fprintf(app.out, "pushed %d, failed %d, conflicts %d, uploaded %d, pulled %d\n",
			res.Succeeded, res.Failed, res.Conflicted, res.Uploaded, res.Pulled)
		if res.PullError != nil {
			fmt.Fprintf(app.out, "pull failed: %v\n", res.PullError)
		}
	}
	return app.printStatus(ctx)
}

func (app *App) printStatus(ctx context.Context) error {
	s, err := app.pending.Summary(ctx, app.config.OwnerID)
	if err != nil {
		return err
	}
	fmt.Fprintf(app.out, "status: %s (pending %d, conflicts %d)\n", s.Label, s.Pending, s.Conflicts)

	last, ok, err := app.store.LastPullAt(ctx)
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintf(app.out, "last pull: %s\n", last.Format(time.RFC3339))
	} else {
		fmt.Fprintln(app.out, "last pull: never")
	}

	inspections, err := app.store.GetAllInspections(ctx, app.config.OwnerID)
	if err != nil {
		return err
	}
	for _, in := range inspections {
		badge, err := app.pending.Badge(ctx, in.Id)
		if err != nil {
			return err
		}
		fmt.Fprintf(app.out, "  %s\t%s\t%s\n", in.Id, in.Type, badge)
	}
	return nil
}
