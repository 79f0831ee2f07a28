// Package reconcile compares the live broadcast's title with the rotation
// engine's next title and pushes updates, one cycle at a time.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"yttitle/rotation"
	"yttitle/status"
	"yttitle/youtube"
)

// NotLiveTitle is reported as the current title while the channel is offline.
const NotLiveTitle = "Not Live"

// Status messages written to the reporter.
const (
	MsgNotLive       = "Channel is not live"
	MsgLive          = "Channel is live"
	MsgUpToDate      = "Title is already up to date"
	MsgUpdatedPrefix = "Title updated to: "
	MsgCheckFailed   = "Error checking live status: "
	MsgUpdateFailed  = "Error updating title: "
	MsgSaveFailed    = "Title updated but saving rotation state failed: "
	MsgHalted        = "Rotation halted: "
)

// VideoHost is the remote side of reconciliation. *youtube.Client satisfies it.
type VideoHost interface {
	LiveStreamInfo(ctx context.Context) (youtube.Broadcast, error)
	UpdateVideoTitle(ctx context.Context, videoID, title string) error
}

// HistoryLogger records errors in the history log. *storage.TitleStore satisfies it.
type HistoryLogger interface {
	LogError(ctx context.Context, detail string, at time.Time) error
}

// Recorder receives cycle metrics. *metrics.Metrics satisfies it.
type Recorder interface {
	ObserveCycle(outcome string, failed bool)
	SetQueueLength(n int)
}

// Outcome is how a cycle ended.
type Outcome string

const (
	OutcomeNotLive  Outcome = "not_live"
	OutcomeUpToDate Outcome = "up_to_date"
	OutcomeUpdated  Outcome = "updated"
	OutcomeFailed   Outcome = "failed"
)

// Result describes one finished cycle.
type Result struct {
	CycleID   string
	Outcome   Outcome
	Broadcast youtube.Broadcast
	// Title is the title that was pushed (updated) or already present (up_to_date).
	Title string
}

// Reconciler runs reconciliation cycles against one engine.
type Reconciler struct {
	host     VideoHost
	engine   *rotation.Engine
	reporter *status.Reporter
	history  HistoryLogger
	recorder Recorder
	log      *slog.Logger
	now      func() time.Time

	cycleMu sync.Mutex

	mu       sync.Mutex
	snapshot youtube.Broadcast
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the reconciler logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Reconciler) {
		if log != nil {
			r.log = log
		}
	}
}

// WithHistory sets where invariant violations are recorded.
func WithHistory(h HistoryLogger) Option {
	return func(r *Reconciler) { r.history = h }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(rec Recorder) Option {
	return func(r *Reconciler) { r.recorder = rec }
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// New returns a Reconciler.
func New(host VideoHost, engine *rotation.Engine, reporter *status.Reporter, opts ...Option) *Reconciler {
	r := &Reconciler{
		host:     host,
		engine:   engine,
		reporter: reporter,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunCycle performs one full reconciliation. Remote failures end the cycle
// without touching the queue; they are reported through the status reporter
// and returned. An error matching rotation.ErrInvariantViolation means
// automated cycling should stop.
func (r *Reconciler) RunCycle(ctx context.Context) (Result, error) {
	r.cycleMu.Lock()
	defer r.cycleMu.Unlock()

	res := Result{CycleID: uuid.NewString()}
	log := r.log.With("cycle_id", res.CycleID)
	log.Debug("reconcile: cycle started")

	if err := r.engine.Reload(ctx); err != nil {
		log.Warn("reconcile: reload titles failed, using in-memory queue", "error", err)
	}

	b, err := r.check(ctx, log)
	res.Broadcast = b
	if err != nil {
		return r.finish(log, res, OutcomeFailed, err)
	}
	if !b.IsLive {
		return r.finish(log, res, OutcomeNotLive, nil)
	}

	next := r.engine.NextTitle()
	res.Title = next
	if b.Title == next {
		r.report(MsgUpToDate, status.Info)
		return r.finish(log, res, OutcomeUpToDate, nil)
	}

	if err := r.host.UpdateVideoTitle(ctx, b.VideoID, next); err != nil {
		log.Error("reconcile: update title failed", "video_id", b.VideoID, "title", next, "error", err)
		r.report(MsgUpdateFailed+err.Error(), status.Error)
		return r.finish(log, res, OutcomeFailed, err)
	}

	r.mu.Lock()
	r.snapshot.Title = next
	r.mu.Unlock()

	if err := r.engine.ConsumeAndRotate(ctx, next); err != nil {
		if errors.Is(err, rotation.ErrInvariantViolation) {
			r.report(MsgHalted+err.Error(), status.Error)
			if r.history != nil {
				if herr := r.history.LogError(ctx, err.Error(), r.now()); herr != nil {
					log.Error("reconcile: record invariant violation failed", "error", herr)
				}
			}
			return r.finish(log, res, OutcomeFailed, err)
		}
		// The remote title changed, so the cycle still counts as an update.
		r.report(MsgSaveFailed+err.Error(), status.Error)
		return r.finish(log, res, OutcomeUpdated, err)
	}

	r.report(MsgUpdatedPrefix+next, status.Success)
	return r.finish(log, res, OutcomeUpdated, nil)
}

// Check refreshes the live snapshot and status without updating anything.
func (r *Reconciler) Check(ctx context.Context) (youtube.Broadcast, error) {
	r.cycleMu.Lock()
	defer r.cycleMu.Unlock()

	b, err := r.check(ctx, r.log)
	if err == nil && b.IsLive {
		r.report(MsgLive, status.Success)
	}
	return b, err
}

// CurrentTitle returns the live broadcast's title from the last check, or
// NotLiveTitle.
func (r *Reconciler) CurrentTitle() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.snapshot.IsLive {
		return NotLiveTitle
	}
	return r.snapshot.Title
}

// Snapshot returns the last observed broadcast state.
func (r *Reconciler) Snapshot() youtube.Broadcast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot
}

// check runs steps 1 and 2: query the host and record the snapshot.
func (r *Reconciler) check(ctx context.Context, log *slog.Logger) (youtube.Broadcast, error) {
	b, err := r.host.LiveStreamInfo(ctx)
	if err != nil {
		log.Error("reconcile: live status check failed", "error", err)
		r.report(MsgCheckFailed+err.Error(), status.Error)
		return youtube.Broadcast{}, err
	}

	r.mu.Lock()
	r.snapshot = b
	r.mu.Unlock()

	if !b.IsLive {
		r.report(MsgNotLive, status.Info)
	}
	return b, nil
}

func (r *Reconciler) finish(log *slog.Logger, res Result, outcome Outcome, err error) (Result, error) {
	res.Outcome = outcome
	if r.recorder != nil {
		r.recorder.ObserveCycle(string(outcome), err != nil)
		r.recorder.SetQueueLength(r.engine.Len())
	}
	if err != nil {
		log.Warn("reconcile: cycle finished with error", "outcome", string(outcome), "error", err)
		return res, fmt.Errorf("cycle %s: %w", res.CycleID, err)
	}
	log.Info("reconcile: cycle finished", "outcome", string(outcome), "title", res.Title, "video_id", res.Broadcast.VideoID)
	return res, nil
}

func (r *Reconciler) report(msg string, sev status.Severity) {
	if err := r.reporter.Set(msg, sev); err != nil {
		r.log.Error("reconcile: set status failed", "error", err)
	}
}
