package storage

import (
	"strings"
	"time"
)

// TimestampLayout is the layout of the timestamp prefix on archive and history lines.
const TimestampLayout = "2006-01-02 15:04:05"

const (
	separator     = " - "
	updatedPrefix = "Title updated: "
	errorPrefix   = "Error: "
)

// AppliedTitleRecord is one line of the applied-titles file.
type AppliedTitleRecord struct {
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryKind distinguishes successful updates from errors in the history log.
type HistoryKind string

const (
	HistoryUpdate HistoryKind = "update"
	HistoryError  HistoryKind = "error"
	HistoryOther  HistoryKind = "other"
)

// HistoryEntry is one line of the history log.
type HistoryEntry struct {
	Timestamp time.Time   `json:"timestamp"`
	Message   string      `json:"message"`
	Kind      HistoryKind `json:"kind"`
	// Detail is the title for updates and the error text for errors.
	Detail string `json:"detail"`
}

func formatLine(at time.Time, loc *time.Location, msg string) string {
	return at.In(loc).Format(TimestampLayout) + separator + msg + "\n"
}

// splitLine parses "<timestamp> - <rest>". ok is false for malformed lines.
func splitLine(line string, loc *time.Location) (time.Time, string, bool) {
	if len(line) < len(TimestampLayout)+len(separator) {
		return time.Time{}, "", false
	}
	ts, err := time.ParseInLocation(TimestampLayout, line[:len(TimestampLayout)], loc)
	if err != nil {
		return time.Time{}, "", false
	}
	rest := line[len(TimestampLayout):]
	if !strings.HasPrefix(rest, separator) {
		return time.Time{}, "", false
	}
	return ts, rest[len(separator):], true
}

func parseApplied(line string, loc *time.Location) (AppliedTitleRecord, bool) {
	ts, title, ok := splitLine(line, loc)
	if !ok {
		return AppliedTitleRecord{}, false
	}
	return AppliedTitleRecord{Title: title, Timestamp: ts}, true
}

func parseHistory(line string, loc *time.Location) (HistoryEntry, bool) {
	ts, msg, ok := splitLine(line, loc)
	if !ok {
		return HistoryEntry{}, false
	}
	entry := HistoryEntry{Timestamp: ts, Message: msg, Kind: HistoryOther}
	switch {
	case strings.HasPrefix(msg, updatedPrefix):
		entry.Kind = HistoryUpdate
		entry.Detail = strings.TrimPrefix(msg, updatedPrefix)
	case strings.HasPrefix(msg, errorPrefix):
		entry.Kind = HistoryError
		entry.Detail = strings.TrimPrefix(msg, errorPrefix)
	}
	return entry, true
}
