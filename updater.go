package yttitle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"yttitle/config"
	"yttitle/internal/desktop"
	"yttitle/internal/logger"
	"yttitle/metrics"
	"yttitle/reconcile"
	"yttitle/rotation"
	"yttitle/status"
	"yttitle/storage"
	"yttitle/titlegen"
	"yttitle/youtube"
)

// Status messages set by the facade itself.
const (
	MsgTitlesLoaded     = "Titles loaded successfully"
	MsgLoadFailed       = "Error loading titles: "
	MsgTitleAdded       = "Title added: "
	MsgAddFailed        = "Error adding title: "
	MsgOpenedConfigDir  = "Opened configuration directory"
	MsgOpenConfigFailed = "Error opening config directory: "
	MsgOpenedTitles     = "Opened titles file"
	MsgOpenTitlesFailed = "Error opening titles file: "
)

// Opener hands a path to the host OS. *desktop.Opener satisfies it.
type Opener interface {
	Open(ctx context.Context, path string) error
}

type options struct {
	log     *slog.Logger
	metrics *metrics.Metrics
	opener  Opener
	now     func() time.Time
}

// Option configures an Updater.
type Option func(*options)

// WithLogger sets the logger shared by every component.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithMetrics records cycle metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithOpener replaces the host OS opener.
func WithOpener(op Opener) Option {
	return func(o *options) { o.opener = op }
}

// WithClock overrides the wall clock used for fallback titles and archive
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Updater wires the title store, rotation engine, reconciler and status
// reporter for one config directory.
type Updater struct {
	cfg        *config.Config
	store      *storage.TitleStore
	gen        *titlegen.Generator
	engine     *rotation.Engine
	reporter   *status.Reporter
	reconciler *reconcile.Reconciler
	metrics    *metrics.Metrics
	opener     Opener
	log        *slog.Logger
}

// New prepares the config directory and loads the queue. A titles file that
// cannot be read does not fail construction; the queue starts empty and the
// status says so.
func New(ctx context.Context, cfg *config.Config, host reconcile.VideoHost, opts ...Option) (*Updater, error) {
	if cfg == nil {
		return nil, errors.New("yttitle: config required")
	}
	if host == nil {
		return nil, errors.New("yttitle: video host required")
	}

	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Discard()
	}
	if o.opener == nil {
		o.opener = desktop.New()
	}

	gen, err := titlegen.New(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewTitleStore(cfg.ConfigDir, storage.WithLocation(gen.Location()))
	if err != nil {
		return nil, err
	}
	seed := cfg.SeedTitle
	if seed == "" {
		seed = gen.Generate(o.now())
	}
	if err := store.EnsureFiles(seed); err != nil {
		return nil, fmt.Errorf("prepare config directory: %w", err)
	}

	engine := rotation.NewEngine(ctx, store, gen,
		rotation.WithClock(o.now),
		rotation.WithLogger(o.log),
	)
	reporter := status.NewReporter()
	if err := engine.LoadErr(); err != nil {
		reporter.Errorf("%s%v", MsgLoadFailed, err)
	} else {
		reporter.Successf("%s", MsgTitlesLoaded)
	}

	recOpts := []reconcile.Option{
		reconcile.WithLogger(o.log),
		reconcile.WithHistory(store),
		reconcile.WithClock(o.now),
	}
	if o.metrics != nil {
		recOpts = append(recOpts, reconcile.WithRecorder(o.metrics))
		o.metrics.SetQueueLength(engine.Len())
	}

	return &Updater{
		cfg:        cfg,
		store:      store,
		gen:        gen,
		engine:     engine,
		reporter:   reporter,
		reconciler: reconcile.New(host, engine, reporter, recOpts...),
		metrics:    o.metrics,
		opener:     o.opener,
		log:        o.log,
	}, nil
}

// Config returns the configuration the updater was built with.
func (u *Updater) Config() *config.Config { return u.cfg }

// Store returns the title store.
func (u *Updater) Store() *storage.TitleStore { return u.store }

// Reporter returns the status reporter.
func (u *Updater) Reporter() *status.Reporter { return u.reporter }

// Metrics returns the metrics the updater records to, or nil.
func (u *Updater) Metrics() *metrics.Metrics { return u.metrics }

// Status returns the latest status message and severity.
func (u *Updater) Status() status.Status { return u.reporter.Get() }

// CurrentTitle returns the live broadcast title from the last check, or
// "Not Live".
func (u *Updater) CurrentTitle() string { return u.reconciler.CurrentTitle() }

// Broadcast returns the broadcast state seen by the last check.
func (u *Updater) Broadcast() youtube.Broadcast { return u.reconciler.Snapshot() }

// NextTitle returns the title the next update would push.
func (u *Updater) NextTitle() string { return u.engine.NextTitle() }

// NextSource tells whether NextTitle came from the queue or was generated.
func (u *Updater) NextSource() rotation.Source { return u.engine.NextSource() }

// Titles returns the pending queue.
func (u *Updater) Titles() []string { return u.engine.Titles() }

// Reload re-reads the titles file.
func (u *Updater) Reload(ctx context.Context) error {
	if err := u.engine.Reload(ctx); err != nil {
		return err
	}
	u.setQueueLength()
	return nil
}

// TriggerCheck refreshes the live status without changing any title.
func (u *Updater) TriggerCheck(ctx context.Context) (youtube.Broadcast, error) {
	return u.reconciler.Check(ctx)
}

// TriggerUpdate runs one full reconciliation cycle.
func (u *Updater) TriggerUpdate(ctx context.Context) (reconcile.Result, error) {
	return u.reconciler.RunCycle(ctx)
}

// AddTitle appends a title to the queue.
func (u *Updater) AddTitle(ctx context.Context, title string) error {
	if err := u.engine.AddTitle(ctx, title); err != nil {
		u.reporter.Errorf("%s%v", MsgAddFailed, err)
		return err
	}
	u.reporter.Successf("%s%s", MsgTitleAdded, strings.TrimSpace(title))
	u.setQueueLength()
	return nil
}

// AppliedTitles returns the archive of pushed titles, oldest first.
func (u *Updater) AppliedTitles(ctx context.Context) ([]storage.AppliedTitleRecord, error) {
	return u.store.AppliedTitles(ctx)
}

// History returns the history log, oldest first.
func (u *Updater) History(ctx context.Context) ([]storage.HistoryEntry, error) {
	return u.store.History(ctx)
}

// Watch runs reconciliation cycles every check interval until ctx is done
// or an invariant violation halts rotation.
func (u *Updater) Watch(ctx context.Context) error {
	return reconcile.NewWatcher(u.reconciler, u.cfg.CheckInterval, u.log).Run(ctx)
}

// OpenConfigLocation opens the config directory in the OS file manager.
func (u *Updater) OpenConfigLocation(ctx context.Context) error {
	if err := u.opener.Open(ctx, u.store.Dir()); err != nil {
		u.reporter.Errorf("%s%v", MsgOpenConfigFailed, err)
		return err
	}
	u.reporter.Successf("%s", MsgOpenedConfigDir)
	return nil
}

// OpenTitlesFile opens the titles file with the OS default application.
func (u *Updater) OpenTitlesFile(ctx context.Context) error {
	if err := u.opener.Open(ctx, u.store.TitlesPath()); err != nil {
		u.reporter.Errorf("%s%v", MsgOpenTitlesFailed, err)
		return err
	}
	u.reporter.Successf("%s", MsgOpenedTitles)
	return nil
}

func (u *Updater) setQueueLength() {
	if u.metrics != nil {
		u.metrics.SetQueueLength(u.engine.Len())
	}
}
