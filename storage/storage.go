// Package storage provides the file-backed persistence for the title queue,
// the applied-title archive and the history log.
package storage

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common storage conditions.
var (
	// ErrNotFound indicates the requested file was not found.
	ErrNotFound = errors.New("storage: not found")
	// ErrInvalidInput indicates invalid or malformed input was provided.
	ErrInvalidInput = errors.New("storage: invalid input")
	// ErrPartialArchive indicates an archive event reached only one of its two files.
	ErrPartialArchive = errors.New("storage: archive partially written")
	// ErrLockTimeout indicates a timeout acquiring a file lock.
	ErrLockTimeout = errors.New("storage: lock acquisition timeout")
)

// StorageError wraps storage errors with operation and file context.
// Use errors.As() to extract this error type and get operation details:
//
//	var storErr *storage.StorageError
//	if errors.As(err, &storErr) {
//		fmt.Printf("Failed to %s %s %s: %v\n", storErr.Op, storErr.Entity, storErr.ID, storErr.Err)
//	}
type StorageError struct {
	// Op is the operation that failed ("read", "write", "append", "lock").
	Op string
	// Entity is the logical file ("titles", "applied-titles", "history", "token").
	Entity string
	// ID is the file path if applicable.
	ID string
	// Err is the underlying error that occurred.
	Err error
}

// Error returns a string representation of the storage error.
func (e *StorageError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("storage: %s %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
	}
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Entity, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is() and errors.As().
func (e *StorageError) Unwrap() error { return e.Err }

// ArchiveError reports an archive event that did not reach both files.
// When Written is empty neither file was touched.
type ArchiveError struct {
	// Title is the title being archived.
	Title string
	// Written lists the files that received their line.
	Written []string
	// Failed lists the files that did not.
	Failed []string
	// Err is the first underlying failure.
	Err error
}

func (e *ArchiveError) Error() string {
	if len(e.Written) == 0 {
		return fmt.Sprintf("storage: archive %q failed for %s: %v", e.Title, strings.Join(e.Failed, ", "), e.Err)
	}
	return fmt.Sprintf("storage: archive %q partially written (wrote %s, failed %s): %v",
		e.Title, strings.Join(e.Written, ", "), strings.Join(e.Failed, ", "), e.Err)
}

// Unwrap exposes both the partial-write marker and the underlying cause.
func (e *ArchiveError) Unwrap() []error {
	if len(e.Written) > 0 {
		return []error{ErrPartialArchive, e.Err}
	}
	return []error{e.Err}
}

// Partial reports whether exactly one of the two files was written.
func (e *ArchiveError) Partial() bool {
	return len(e.Written) > 0 && len(e.Failed) > 0
}
