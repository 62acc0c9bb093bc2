package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Trigger is the concrete "when to fire" rule derived from an Entry.
// Date triggers carry an absolute RunAt; interval and cron triggers carry a
// spec string consumable by the cron engine.
type Trigger struct {
	Kind  TriggerKind
	RunAt time.Time
	Spec  string
}

// cronFieldOrder lists the accepted cron map keys in engine order.
// These mirror the standard 5-field layout: minute hour day month day_of_week.
var cronFieldOrder = []string{"minute", "hour", "day", "month", "day_of_week"}

// specParser validates rendered specs exactly the way the engine parses them.
var specParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// dateLayouts are the accepted run_at formats. The second form has no zone
// and is interpreted in the entry's (or service's) location.
var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"}

// BuildTrigger translates the entry's trigger fields into a Trigger, or
// rejects the entry with an error naming its id. It is pure and performs no
// I/O; the scheduler calls it fresh on every reconciliation pass so edits
// take effect without a restart.
//
// loc is the service location used when the entry has no timezone of its
// own; nil means time.Local.
func BuildTrigger(e Entry, loc *time.Location) (Trigger, error) {
	if loc == nil {
		loc = time.Local
	}
	if tz := strings.TrimSpace(e.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return Trigger{}, fmt.Errorf("schedule %s: invalid timezone %q: %w", e.ID, tz, err)
		}
		loc = l
	}

	switch e.Trigger {
	case TriggerDate:
		if strings.TrimSpace(e.RunAt) == "" {
			return Trigger{}, fmt.Errorf("schedule %s: date trigger requires run_at", e.ID)
		}
		at, err := parseRunAt(e.RunAt, loc)
		if err != nil {
			return Trigger{}, fmt.Errorf("schedule %s: invalid run_at %q: %w", e.ID, e.RunAt, err)
		}
		return Trigger{Kind: TriggerDate, RunAt: at}, nil

	case TriggerInterval:
		if e.IntervalSeconds <= 0 {
			return Trigger{}, fmt.Errorf("schedule %s: interval trigger requires positive interval_seconds", e.ID)
		}
		return Trigger{Kind: TriggerInterval, Spec: fmt.Sprintf("@every %ds", e.IntervalSeconds)}, nil

	case TriggerCron:
		if len(e.Cron) == 0 {
			return Trigger{}, fmt.Errorf("schedule %s: cron trigger requires a field mapping", e.ID)
		}
		spec, err := renderCronSpec(e.Cron)
		if err != nil {
			return Trigger{}, fmt.Errorf("schedule %s: %w", e.ID, err)
		}
		if tz := strings.TrimSpace(e.Timezone); tz != "" {
			spec = "CRON_TZ=" + tz + " " + spec
		}
		if _, err := specParser.Parse(spec); err != nil {
			return Trigger{}, fmt.Errorf("schedule %s: invalid cron expression: %w", e.ID, err)
		}
		return Trigger{Kind: TriggerCron, Spec: spec}, nil

	default:
		return Trigger{}, fmt.Errorf("schedule %s: unsupported trigger %q", e.ID, e.Trigger)
	}
}

func parseRunAt(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, raw, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// renderCronSpec lowers the field map into a standard 5-field expression,
// defaulting unset fields to "*". Unknown field names are rejected rather
// than silently ignored.
func renderCronSpec(fields map[string]string) (string, error) {
	for name := range fields {
		known := false
		for _, f := range cronFieldOrder {
			if name == f {
				known = true
				break
			}
		}
		if !known {
			return "", fmt.Errorf("unknown cron field %q", name)
		}
	}
	parts := make([]string, 0, len(cronFieldOrder))
	for _, f := range cronFieldOrder {
		v := strings.TrimSpace(fields[f])
		if v == "" {
			v = "*"
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, " "), nil
}
