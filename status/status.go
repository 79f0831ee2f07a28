// Package status holds the most recent human-readable outcome of an
// operation together with its severity.
package status

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrInvalidSeverity is returned when a severity outside the fixed set is used.
var ErrInvalidSeverity = errors.New("status: invalid severity")

// Severity classifies a status message.
type Severity string

const (
	Info    Severity = "info"
	Success Severity = "success"
	Error   Severity = "error"
	Warning Severity = "warning"
)

// Severities lists every valid severity.
var Severities = []Severity{Info, Success, Error, Warning}

// Valid reports whether s is one of the fixed severities.
func (s Severity) Valid() bool {
	switch s {
	case Info, Success, Error, Warning:
		return true
	}
	return false
}

// ParseSeverity converts a string into a Severity.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(s)
	if !sev.Valid() {
		return "", fmt.Errorf("%w: %q (must be one of %v)", ErrInvalidSeverity, s, Severities)
	}
	return sev, nil
}

// Status is a snapshot of the reporter.
type Status struct {
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Reporter stores the latest status. Readers poll Get; Subscribe is available
// for front ends that prefer callbacks.
type Reporter struct {
	mu       sync.RWMutex
	current  Status
	nextID   int
	watchers map[int]func(Status)
	now      func() time.Time
}

// NewReporter returns a reporter initialised to ("Initializing", info).
func NewReporter() *Reporter {
	r := &Reporter{watchers: make(map[int]func(Status)), now: time.Now}
	r.current = Status{Message: "Initializing", Severity: Info, UpdatedAt: r.now()}
	return r
}

// Set replaces the current status. Unknown severities are rejected and leave
// the status unchanged.
func (r *Reporter) Set(message string, severity Severity) error {
	if !severity.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSeverity, severity)
	}

	r.mu.Lock()
	r.current = Status{Message: message, Severity: severity, UpdatedAt: r.now()}
	st := r.current
	watchers := make([]func(Status), 0, len(r.watchers))
	for _, fn := range r.watchers {
		watchers = append(watchers, fn)
	}
	r.mu.Unlock()

	for _, fn := range watchers {
		fn(st)
	}
	return nil
}

// Infof, Successf, Errorf and Warnf set a formatted message at a fixed severity.
func (r *Reporter) Infof(format string, args ...any) { r.Set(fmt.Sprintf(format, args...), Info) }

func (r *Reporter) Successf(format string, args ...any) { r.Set(fmt.Sprintf(format, args...), Success) }

func (r *Reporter) Errorf(format string, args ...any) { r.Set(fmt.Sprintf(format, args...), Error) }

func (r *Reporter) Warnf(format string, args ...any) { r.Set(fmt.Sprintf(format, args...), Warning) }

// Get returns the current status.
func (r *Reporter) Get() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Subscribe registers fn to be called after every Set. The returned function
// removes the subscription.
func (r *Reporter) Subscribe(fn func(Status)) (cancel func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.watchers[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.watchers, id)
		r.mu.Unlock()
	}
}
