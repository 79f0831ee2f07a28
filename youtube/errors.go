package youtube

import (
	"errors"
	"fmt"
)

// Sentinel errors for YouTube API operations.
var (
	// ErrRemoteAPI matches every failure returned by the API client.
	ErrRemoteAPI = errors.New("youtube: remote api error")
	// ErrNoData is returned when the API answers but the requested video is missing.
	ErrNoData = errors.New("youtube: no data")
)

// APIError wraps a failed API call.
type APIError struct {
	// Op is the API operation, e.g. "liveBroadcasts.list".
	Op  string
	Err error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("youtube: %s: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// Is makes every APIError match ErrRemoteAPI.
func (e *APIError) Is(target error) bool { return target == ErrRemoteAPI }
