package yttitle

import (
	"yttitle/auth"
	"yttitle/rotation"
	"yttitle/status"
	"yttitle/storage"
	"yttitle/youtube"
)

// Sentinel errors re-exported from the sub-packages.
var (
	// ErrAuthentication matches every credential failure.
	ErrAuthentication = auth.ErrAuthentication
	// ErrConsentRequired means no usable token exists and consent was not allowed.
	ErrConsentRequired = auth.ErrConsentRequired
	// ErrRemoteAPI matches every YouTube API failure.
	ErrRemoteAPI = youtube.ErrRemoteAPI
	// ErrNoData means the API answered without the requested video.
	ErrNoData = youtube.ErrNoData
	// ErrNotFound means a persisted file does not exist.
	ErrNotFound = storage.ErrNotFound
	// ErrPartialArchive means an archive event reached only one of its two files.
	ErrPartialArchive = storage.ErrPartialArchive
	// ErrInvariantViolation means a consumed title did not match the queue head.
	ErrInvariantViolation = rotation.ErrInvariantViolation
	// ErrInvalidTitle rejects empty or multi-line titles.
	ErrInvalidTitle = rotation.ErrInvalidTitle
	// ErrInvalidSeverity rejects severities outside the fixed set.
	ErrInvalidSeverity = status.ErrInvalidSeverity
)

// Typed errors re-exported for errors.As.
type (
	AuthError      = auth.AuthError
	APIError       = youtube.APIError
	StorageError   = storage.StorageError
	ArchiveError   = storage.ArchiveError
	InvariantError = rotation.InvariantError
)
