package schedule

import (
	"strings"
	"testing"
	"time"
)

func TestBuildTriggerVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		entry   Entry
		kind    TriggerKind
		spec    string
		wantErr string
	}{
		{
			name:  "date rfc3339",
			entry: Entry{ID: "d1", Trigger: TriggerDate, RunAt: "2025-01-01T00:00:00Z"},
			kind:  TriggerDate,
		},
		{
			name:  "date local wall clock",
			entry: Entry{ID: "d2", Trigger: TriggerDate, RunAt: "2025-01-01T06:30:00"},
			kind:  TriggerDate,
		},
		{
			name:    "date missing run_at",
			entry:   Entry{ID: "d3", Trigger: TriggerDate},
			wantErr: "requires run_at",
		},
		{
			name:    "date unparseable",
			entry:   Entry{ID: "d4", Trigger: TriggerDate, RunAt: "tomorrow-ish"},
			wantErr: "invalid run_at",
		},
		{
			name:  "interval",
			entry: Entry{ID: "i1", Trigger: TriggerInterval, IntervalSeconds: 60},
			kind:  TriggerInterval,
			spec:  "@every 60s",
		},
		{
			name:    "interval zero",
			entry:   Entry{ID: "i2", Trigger: TriggerInterval},
			wantErr: "positive interval_seconds",
		},
		{
			name:    "interval negative",
			entry:   Entry{ID: "i3", Trigger: TriggerInterval, IntervalSeconds: -5},
			wantErr: "positive interval_seconds",
		},
		{
			name:  "cron hourly",
			entry: Entry{ID: "c1", Trigger: TriggerCron, Cron: map[string]string{"minute": "0", "hour": "*"}},
			kind:  TriggerCron,
			spec:  "0 * * * *",
		},
		{
			name:  "cron full mapping",
			entry: Entry{ID: "c2", Trigger: TriggerCron, Cron: map[string]string{"minute": "30", "hour": "9", "day": "1", "month": "*", "day_of_week": "*"}},
			kind:  TriggerCron,
			spec:  "30 9 1 * *",
		},
		{
			name:    "cron empty mapping",
			entry:   Entry{ID: "c3", Trigger: TriggerCron, Cron: map[string]string{}},
			wantErr: "requires a field mapping",
		},
		{
			name:    "cron unknown field",
			entry:   Entry{ID: "c4", Trigger: TriggerCron, Cron: map[string]string{"minute": "0", "week": "2"}},
			wantErr: `unknown cron field "week"`,
		},
		{
			name:    "cron bad expression",
			entry:   Entry{ID: "c5", Trigger: TriggerCron, Cron: map[string]string{"minute": "61"}},
			wantErr: "invalid cron expression",
		},
		{
			name:    "unsupported kind",
			entry:   Entry{ID: "x1", Trigger: "weekly"},
			wantErr: `unsupported trigger "weekly"`,
		},
		{
			name:    "bad timezone",
			entry:   Entry{ID: "z1", Trigger: TriggerInterval, IntervalSeconds: 10, Timezone: "Mars/Olympus"},
			wantErr: "invalid timezone",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := BuildTrigger(tt.entry, time.UTC)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("BuildTrigger(%+v) = %+v, want error containing %q", tt.entry, got, tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %q, want it to contain %q", err, tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.entry.ID) {
					t.Fatalf("error %q does not name the entry id %q", err, tt.entry.ID)
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildTrigger error: %v", err)
			}
			if got.Kind != tt.kind {
				t.Fatalf("Kind = %v, want %v", got.Kind, tt.kind)
			}
			if tt.spec != "" && got.Spec != tt.spec {
				t.Fatalf("Spec = %q, want %q", got.Spec, tt.spec)
			}
		})
	}
}

func TestBuildTriggerDateHonorsTimezone(t *testing.T) {
	t.Parallel()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	e := Entry{ID: "tz1", Trigger: TriggerDate, RunAt: "2025-06-01T12:00:00", Timezone: "America/New_York"}
	trig, err := BuildTrigger(e, time.UTC)
	if err != nil {
		t.Fatalf("BuildTrigger error: %v", err)
	}
	want := time.Date(2025, 6, 1, 12, 0, 0, 0, loc)
	if !trig.RunAt.Equal(want) {
		t.Fatalf("RunAt = %v, want %v", trig.RunAt, want)
	}
}

func TestBuildTriggerCronCarriesTimezone(t *testing.T) {
	t.Parallel()
	e := Entry{ID: "tz2", Trigger: TriggerCron, Cron: map[string]string{"minute": "0"}, Timezone: "UTC"}
	trig, err := BuildTrigger(e, nil)
	if err != nil {
		t.Fatalf("BuildTrigger error: %v", err)
	}
	if !strings.HasPrefix(trig.Spec, "CRON_TZ=UTC ") {
		t.Fatalf("Spec = %q, want CRON_TZ prefix", trig.Spec)
	}
}

// Scenario: one invalid entry must not poison a valid sibling read from the
// same store.
func TestInvalidSiblingDoesNotAffectValidEntry(t *testing.T) {
	t.Parallel()
	valid := Entry{ID: "ok", Trigger: TriggerCron, Cron: map[string]string{"minute": "0", "hour": "*"}}
	invalid := Entry{ID: "broken", Trigger: TriggerCron, Cron: map[string]string{}}

	if _, err := BuildTrigger(valid, time.UTC); err != nil {
		t.Fatalf("valid entry rejected: %v", err)
	}
	if _, err := BuildTrigger(invalid, time.UTC); err == nil {
		t.Fatal("invalid entry accepted")
	}
}
