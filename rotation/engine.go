// Package rotation owns the pending title queue and decides which title is
// applied next.
package rotation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Sentinel errors for rotation operations.
var (
	// ErrInvariantViolation signals that the engine was asked to consume a
	// title that is not the queue head. Automated cycling should stop.
	ErrInvariantViolation = errors.New("rotation: invariant violation")
	// ErrInvalidTitle is returned by AddTitle for empty or multi-line titles.
	ErrInvalidTitle = errors.New("rotation: invalid title")
)

// InvariantError describes a consume request that did not match the queue head.
type InvariantError struct {
	// Head is the queue head at the time of the request ("" when empty).
	Head string
	// Applied is the title the caller asked to consume.
	Applied string
}

func (e *InvariantError) Error() string {
	if e.Head == "" {
		return fmt.Sprintf("rotation: invariant violation: consumed %q from an empty queue", e.Applied)
	}
	return fmt.Sprintf("rotation: invariant violation: consumed %q but queue head is %q", e.Applied, e.Head)
}

// Is makes errors.Is(err, ErrInvariantViolation) report true.
func (e *InvariantError) Is(target error) bool { return target == ErrInvariantViolation }

// Store is the persistence the engine needs. *storage.TitleStore satisfies it.
type Store interface {
	Load(ctx context.Context) ([]string, error)
	Save(ctx context.Context, titles []string) error
	Archive(ctx context.Context, title string, at time.Time) error
}

// Generator produces the fallback title for an empty queue.
type Generator interface {
	Generate(now time.Time) string
}

// Source tells where the resolved next title came from.
type Source int

const (
	// SourceNone means nothing has been resolved yet.
	SourceNone Source = iota
	// SourceQueue means the next title is the queue head.
	SourceQueue
	// SourceFallback means the queue was empty and the title was generated.
	SourceFallback
)

func (s Source) String() string {
	switch s {
	case SourceQueue:
		return "queue"
	case SourceFallback:
		return "fallback"
	default:
		return "none"
	}
}

// Engine holds the in-memory rotation state. Every queue mutation is written
// through to the Store before the call returns.
type Engine struct {
	store Store
	gen   Generator
	now   func() time.Time
	log   *slog.Logger

	mu      sync.Mutex
	queue   []string
	next    string
	source  Source
	current string
	loadErr error
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the wall clock used for fallback titles and archive timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// NewEngine loads the queue from store. A load failure does not prevent
// construction: the engine starts with an empty queue and the failure is
// available from LoadErr.
func NewEngine(ctx context.Context, store Store, gen Generator, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		gen:   gen,
		now:   time.Now,
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}

	queue, err := store.Load(ctx)
	if err != nil {
		e.log.Warn("rotation: load titles failed, starting with empty queue", "error", err)
		e.loadErr = err
		queue = nil
	}
	e.queue = append([]string(nil), queue...)
	e.resolveHeadLocked()
	return e
}

// LoadErr returns the error from the initial load, if any.
func (e *Engine) LoadErr() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadErr
}

// NextTitle resolves the title for the current cycle: the queue head when the
// queue is non-empty, otherwise a freshly generated fallback that is never
// added to the queue.
func (e *Engine) NextTitle() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resolveLocked()
	return e.next
}

// NextSource returns where the last resolved next title came from.
func (e *Engine) NextSource() Source {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.source
}

// ConsumeAndRotate records that applied was pushed to the broadcast. A title
// that came from the queue must equal the head and is removed and persisted;
// a fallback title leaves the queue alone. Either way the title is archived.
//
// A head mismatch returns an *InvariantError and changes nothing. Save and
// archive failures are returned joined, but the in-memory queue stays
// shortened: the removal is not rolled back.
func (e *Engine) ConsumeAndRotate(ctx context.Context, applied string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	source := e.source
	if source == SourceNone {
		source = SourceFallback
		if len(e.queue) > 0 {
			source = SourceQueue
		}
	}

	var saveErr error
	if source == SourceQueue {
		if len(e.queue) == 0 || e.queue[0] != applied {
			head := ""
			if len(e.queue) > 0 {
				head = e.queue[0]
			}
			return &InvariantError{Head: head, Applied: applied}
		}
		e.queue = append([]string(nil), e.queue[1:]...)
		if err := e.store.Save(ctx, e.queue); err != nil {
			e.log.Error("rotation: persist queue failed", "title", applied, "error", err)
			saveErr = fmt.Errorf("persist queue: %w", err)
		}
	}

	var archiveErr error
	if err := e.store.Archive(ctx, applied, e.now()); err != nil {
		e.log.Error("rotation: archive failed", "title", applied, "error", err)
		archiveErr = fmt.Errorf("archive title: %w", err)
	}

	e.current = applied
	e.log.Debug("rotation: title consumed", "title", applied, "source", source.String(), "remaining", len(e.queue))

	e.resolveHeadLocked()

	return errors.Join(saveErr, archiveErr)
}

// AddTitle appends title to the queue and persists it. Duplicates are
// allowed. If persisting fails the title is not kept.
func (e *Engine) AddTitle(ctx context.Context, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: empty title", ErrInvalidTitle)
	}
	if strings.ContainsAny(title, "\r\n") {
		return fmt.Errorf("%w: title contains a line break", ErrInvalidTitle)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	queue := append(append([]string(nil), e.queue...), title)
	if err := e.store.Save(ctx, queue); err != nil {
		return fmt.Errorf("persist queue: %w", err)
	}
	e.queue = queue
	if e.source == SourceNone {
		e.resolveHeadLocked()
	}
	return nil
}

// Reload re-reads the queue from the store, picking up external edits to the
// titles file. On failure the in-memory queue is kept.
func (e *Engine) Reload(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	queue, err := e.store.Load(ctx)
	if err != nil {
		return err
	}
	e.queue = append([]string(nil), queue...)
	e.next, e.source = "", SourceNone
	e.resolveHeadLocked()
	return nil
}

// Titles returns a copy of the pending queue.
func (e *Engine) Titles() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.queue...)
}

// Len returns the queue length.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// CurrentTitle returns the title most recently consumed by this engine.
func (e *Engine) CurrentTitle() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

func (e *Engine) resolveLocked() {
	if len(e.queue) > 0 {
		e.next, e.source = e.queue[0], SourceQueue
		return
	}
	e.next, e.source = e.gen.Generate(e.now()), SourceFallback
}

// resolveHeadLocked resolves only the queue state; an empty queue stays
// unresolved until NextTitle generates a fallback.
func (e *Engine) resolveHeadLocked() {
	if len(e.queue) > 0 {
		e.next, e.source = e.queue[0], SourceQueue
		return
	}
	e.next, e.source = "", SourceNone
}
