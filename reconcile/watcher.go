package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"yttitle/rotation"
)

// Cycler runs one reconciliation cycle. *Reconciler satisfies it.
type Cycler interface {
	RunCycle(ctx context.Context) (Result, error)
}

// Watcher runs cycles on a fixed interval until its context ends.
type Watcher struct {
	cycler   Cycler
	interval time.Duration
	log      *slog.Logger
}

// NewWatcher returns a Watcher. A nil logger discards output.
func NewWatcher(cycler Cycler, interval time.Duration, log *slog.Logger) *Watcher {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Watcher{cycler: cycler, interval: interval, log: log}
}

// Run executes a cycle immediately and then once per interval. Remote and
// storage failures are logged and the loop continues; an invariant
// violation stops it and is returned. Cancellation returns nil.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.cycler.RunCycle(ctx); err != nil {
			if errors.Is(err, rotation.ErrInvariantViolation) {
				w.log.Error("watch: stopping after invariant violation", "error", err)
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
			w.log.Warn("watch: cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
