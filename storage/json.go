package storage

import (
	"encoding/json"
	"errors"
	"os"
)

// SaveJSON atomically writes v as indented JSON with owner-only permissions.
// It backs small private state such as the cached OAuth token.
func SaveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &StorageError{Op: "write", Entity: "json", ID: path, Err: err}
	}
	if err := writeFileAtomic(path, append(data, '\n'), 0o600); err != nil {
		return &StorageError{Op: "write", Entity: "json", ID: path, Err: err}
	}
	return nil
}

// LoadJSON reads path into v. A missing file yields ErrNotFound.
func LoadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &StorageError{Op: "read", Entity: "json", ID: path, Err: ErrNotFound}
		}
		return &StorageError{Op: "read", Entity: "json", ID: path, Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &StorageError{Op: "read", Entity: "json", ID: path, Err: err}
	}
	return nil
}
