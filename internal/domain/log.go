package domain

import (
	"fmt"
	"time"
)

// LogStatus is the persisted classification of a terminal outcome.
type LogStatus string

const (
	LogStatusSuccess LogStatus = "success"
	LogStatusError   LogStatus = "error"
	LogStatusInvalid LogStatus = "invalid"
	LogStatusLocked  LogStatus = "locked"
)

// ParseLogStatus validates a stored status string.
func ParseLogStatus(s string) (LogStatus, error) {
	switch st := LogStatus(s); st {
	case LogStatusSuccess, LogStatusError, LogStatusInvalid, LogStatusLocked:
		return st, nil
	}
	return "", fmt.Errorf("unknown log status: %q", s)
}

// LogEntry is the latest known outcome for one NIK.
type LogEntry struct {
	ID         string            `json:"id"`
	Status     LogStatus         `json:"status"`
	Reason     string            `json:"reason,omitempty"`
	Message    string            `json:"message,omitempty"`
	Registered bool              `json:"registered"`
	Timestamp  time.Time         `json:"timestamp"`
	Attempt    int               `json:"attempt,omitempty"`
	Payload    *NormalizedEntity `json:"payload,omitempty"`
}

// IsSuccess reports whether the entry records a completed submission.
func (e *LogEntry) IsSuccess() bool {
	return e != nil && e.Status == LogStatusSuccess
}
