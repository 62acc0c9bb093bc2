package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures run-history storage.
//
// Driver values:
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", history is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// RunRecord captures the outcome of one job firing.
// Keep it compact and schema-stable.
type RunRecord struct {
	ScheduleID string
	Name       string
	Crew       string
	FiredAt    time.Time
	Took       time.Duration
	OK         bool
	Error      string
	LogPath    string
}
