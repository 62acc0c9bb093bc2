package schedule

import "time"

// TriggerKind is the closed set of trigger types an Entry can carry.
type TriggerKind string

const (
	TriggerDate     TriggerKind = "date"
	TriggerInterval TriggerKind = "interval"
	TriggerCron     TriggerKind = "cron"
)

// Entry is one persisted schedule record: when and how to run one crew job.
//
// Exactly one trigger payload (RunAt / IntervalSeconds / Cron) should be
// populated, matching Trigger; the store does not enforce this, the trigger
// builder rejects mismatches when the entry is scheduled.
type Entry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// Crew names the job definition to execute; empty means the runner's
	// default crew.
	Crew    string      `json:"crew,omitempty"`
	Trigger TriggerKind `json:"trigger"`

	// RunAt is an absolute timestamp (RFC 3339, or a local wall-clock
	// "2006-01-02T15:04:05") for the one-shot date trigger.
	RunAt string `json:"run_at,omitempty"`
	// IntervalSeconds is the repeat period for the interval trigger.
	IntervalSeconds int `json:"interval_seconds,omitempty"`
	// Cron maps field name -> expression, e.g. {"minute": "0", "hour": "*"}.
	Cron map[string]string `json:"cron,omitempty"`

	// Timezone is an IANA zone name; empty means the service's location.
	Timezone string `json:"timezone,omitempty"`
	Enabled  bool   `json:"enabled"`
	// Inputs is passed verbatim to the job runner on every firing.
	Inputs map[string]any `json:"inputs,omitempty"`

	CreatedAt string `json:"created_at"`
	// UpdatedAt is bumped on every successful mutation and is the sole
	// version signal the scheduler uses for change detection.
	UpdatedAt string `json:"updated_at"`
}

// timestampLayout is the wire format for CreatedAt/UpdatedAt.
const timestampLayout = time.RFC3339Nano
